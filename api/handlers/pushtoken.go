package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
)

// PushToken manages the caller's Expo push tokens
type PushToken struct {
	DB databases.PushTokenDatabase
}

type pushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// SaveHandler registers (or refreshes) an Expo push token for the caller.
// Upserts are keyed by (userId, token) so re-registering the same device
// never duplicates.
func (p PushToken) SaveHandler(w http.ResponseWriter, r *http.Request) {
	callerID := api.UserID(r.Context())

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	if req.Token == "" {
		config.ErrorReason("token is required", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("missing push token"))
		return
	}
	switch req.Platform {
	case "ios", "android", "web":
	default:
		config.ErrorReason("invalid platform", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("platform %q not supported", req.Platform))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	upsert := true
	_, err := p.DB.UpdateOne(ctx,
		bson.M{"userId": callerID, "token": req.Token},
		bson.M{
			"$set":         bson.M{"platform": req.Platform, "updatedAt": now},
			"$setOnInsert": bson.M{"userId": callerID, "token": req.Token, "createdAt": now},
		},
		&options.UpdateOptions{Upsert: &upsert},
	)
	if err != nil {
		config.ErrorStatus("failed to save push token", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteHandler removes an Expo push token, typically on logout
func (p PushToken) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	callerID := api.UserID(r.Context())

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	if req.Token == "" {
		config.ErrorReason("token is required", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("missing push token"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := p.DB.DeleteOne(ctx, bson.M{"userId": callerID, "token": req.Token})
	if err != nil {
		config.ErrorStatus("failed to delete push token", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": deleted})
}
