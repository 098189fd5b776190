package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User holds the structure for the users collection in mongo
type User struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email         string             `json:"email" bson:"email"`
	Password      string             `json:"-" bson:"password"`
	EmailVerified bool               `json:"emailVerified" bson:"emailVerified"`
	Admin         bool               `json:"admin" bson:"admin"`

	// MyPlate mirrors the plate this user last claimed, so the client can
	// prefill the sender side of a plate-pair conversation.
	MyPlate string `json:"myPlate,omitempty" bson:"myPlate,omitempty"`
	// Whatsapp holds digits only, e.g. 5511999999999
	Whatsapp string `json:"whatsapp,omitempty" bson:"whatsapp,omitempty"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
