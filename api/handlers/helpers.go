package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
)

func userByHexID(ctx context.Context, db databases.UserDatabase, hexID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", hexID, err)
	}
	return db.FindOne(ctx, bson.M{"_id": oid})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
