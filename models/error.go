package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
	Reason  string `json:",omitempty"`
}

// Reason codes attached to error responses. Clients branch on these to
// decide whether to retry, edit the message, or give up.
const (
	ReasonInvalidInput       = "invalid_input"
	ReasonPolicyViolation    = "policy_violation"
	ReasonUnauthenticated    = "unauthenticated"
	ReasonUnverified         = "unverified"
	ReasonForbidden          = "forbidden"
	ReasonNotFound           = "not_found"
	ReasonPreconditionFailed = "precondition_failed"
	ReasonRateLimited        = "rate_limited"
	ReasonInternal           = "internal"
)
