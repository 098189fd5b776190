package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Vehicle holds the structure for the vehicles collection in mongo.
// The document ID is the canonical plate, which is what guarantees at most
// one vehicle per plate.
type Vehicle struct {
	Plate string `json:"plate" bson:"_id"`
	Model string `json:"model,omitempty" bson:"model,omitempty"`
	Year  int    `json:"year,omitempty" bson:"year,omitempty"`

	// OwnerID is empty until the plate is claimed; mediated contact is
	// refused while it is unset.
	OwnerID string `json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	// OwnerPhone holds digits only (e.g. 5511999999999), used by the
	// notification sink, never exposed to senders.
	OwnerPhone string `json:"-" bson:"ownerPhone,omitempty"`

	OptIn       bool               `json:"optIn" bson:"optIn"`
	OptInAt     primitive.DateTime `json:"optInAt,omitempty" bson:"optInAt,omitempty"`
	OptInMethod string             `json:"-" bson:"optInMethod,omitempty"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// VehicleLookupResponse is the public view of a vehicle returned by the
// plate lookup endpoint. Owner identity and contact details stay private.
type VehicleLookupResponse struct {
	Exists   bool   `json:"exists"`
	Plate    string `json:"plate,omitempty"`
	OptIn    bool   `json:"optIn,omitempty"`
	HasOwner bool   `json:"hasOwner,omitempty"`
}
