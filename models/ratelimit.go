package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// RateCounter holds the structure for the ratelimits collection in mongo.
// The document ID is "<action>:<actor>". Counters are only ever mutated
// through the atomic check-and-consume update; a counter whose window has
// passed is logically zero and is physically removed by the cleanup job.
type RateCounter struct {
	Key     string             `json:"key" bson:"_id"`
	Count   int                `json:"count" bson:"count"`
	ResetAt primitive.DateTime `json:"resetAt" bson:"resetAt"`
}
