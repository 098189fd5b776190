package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Thread status values
const (
	ThreadStatusOpen   = "open"
	ThreadStatusClosed = "closed"
)

// Thread holds the structure for the threads collection in mongo.
//
// Two addressing schemes share this collection. Identity-pair threads are
// keyed by a random opaque ID and scoped to the plate the conversation is
// about; plate-pair threads use the deterministic "MIN__MAX" join of both
// plates as their ID, which makes the ID itself the uniqueness guarantee.
type Thread struct {
	ID string `json:"threadId" bson:"_id"`

	// Plate is the vehicle the conversation is about (identity-pair
	// scheme). Empty for plate-pair threads, where both plates are in
	// ParticipantPlates instead.
	Plate string `json:"plate,omitempty" bson:"plate,omitempty"`

	// Participants holds the two user IDs (identity-pair scheme).
	Participants []string `json:"participants,omitempty" bson:"participants,omitempty"`
	// ParticipantPlates holds the two plates (plate-pair scheme).
	ParticipantPlates []string `json:"participantPlates,omitempty" bson:"participantPlates,omitempty"`

	Status string `json:"status" bson:"status"`

	// Denormalized preview of the most recent message.
	LastText string `json:"lastText,omitempty" bson:"lastText,omitempty"`
	LastFrom string `json:"lastFrom,omitempty" bson:"lastFrom,omitempty"`

	CreatedAt     primitive.DateTime `json:"createdAt" bson:"createdAt"`
	LastMessageAt primitive.DateTime `json:"lastMessageAt" bson:"lastMessageAt"`
}

// HasParticipant reports whether the given user ID is one of the two
// identity-pair participants.
func (t Thread) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// HasPlate reports whether the given plate is one of the two plate-pair
// participants.
func (t Thread) HasPlate(plate string) bool {
	for _, p := range t.ParticipantPlates {
		if p == plate {
			return true
		}
	}
	return false
}

// Counterpart returns the other identity-pair participant, or "" when the
// given user is not a participant.
func (t Thread) Counterpart(userID string) string {
	if len(t.Participants) != 2 || !t.HasParticipant(userID) {
		return ""
	}
	if t.Participants[0] == userID {
		return t.Participants[1]
	}
	return t.Participants[0]
}
