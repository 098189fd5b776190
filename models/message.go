package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Message holds the structure for the messages collection in mongo.
// Messages are immutable once created and belong to exactly one thread;
// display order is CreatedAt ascending.
type Message struct {
	ID       string `json:"messageId" bson:"_id"`
	ThreadID string `json:"threadId" bson:"threadId"`

	// FromID is set for identity-pair threads, FromPlate for plate-pair
	// threads. Exactly one of the two is non-empty.
	FromID    string `json:"fromId,omitempty" bson:"fromId,omitempty"`
	FromPlate string `json:"fromPlate,omitempty" bson:"fromPlate,omitempty"`

	Text      string             `json:"text" bson:"text"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// SendMessageResponse is returned by every send path
type SendMessageResponse struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
}
