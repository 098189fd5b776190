package models

// HealthCheckResponse returns the health check response, duh
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// PlateScanResponse is returned by the plate scan endpoint once a plate has
// been extracted from the recognized text
type PlateScanResponse struct {
	Plate   string `json:"plate"`
	RawText string `json:"rawText,omitempty"`
}

// ThreadWithMessages is the thread detail view: the thread document plus
// its messages in ascending creation order
type ThreadWithMessages struct {
	Thread   Thread    `json:"thread"`
	Messages []Message `json:"messages"`
}
