package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// PendingVerification holds the structure for the pending verification
// collection in mongo. A user must confirm the emailed code before the
// chat endpoints will accept them.
type PendingVerification struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email     string             `json:"email" bson:"email"`
	Code      string             `json:"code" bson:"code"`
	Attempts  int                `json:"attempts" bson:"attempts"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
