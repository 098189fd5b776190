package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
	"github.com/placachat/placa-chat-api/plate"
)

var reNonDigit = regexp.MustCompile(`[^0-9]`)

// Vehicle serves the plate claim flow and the admin vehicle registry
type Vehicle struct {
	DB  databases.VehicleDatabase
	UDB databases.UserDatabase
}

type claimRequest struct {
	Plate string `json:"plate"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	Phone string `json:"phone"`
}

type adminVehicleRequest struct {
	Plate      string `json:"plate"`
	Model      string `json:"model"`
	Year       int    `json:"year"`
	OwnerEmail string `json:"ownerEmail"`
	OwnerPhone string `json:"ownerPhone"`
	OptIn      bool   `json:"optIn"`
}

// ClaimHandler lets the authenticated caller claim a plate as theirs.
// Claiming with a phone number opts the vehicle into mediated contact.
func (v Vehicle) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	callerID := api.UserID(r.Context())

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	canonical, err := plate.Normalize(req.Plate)
	if err != nil {
		config.ErrorReason("invalid plate", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	phone := reNonDigit.ReplaceAllString(req.Phone, "")

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := v.DB.FindByPlate(ctx, canonical)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to get vehicle", http.StatusInternalServerError, w, err)
		return
	}
	if existing != nil && existing.OwnerID != "" && existing.OwnerID != callerID {
		config.ErrorReason("plate already claimed by another user", http.StatusPreconditionFailed, models.ReasonPreconditionFailed,
			w, fmt.Errorf("plate %s belongs to a different owner", canonical))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	set := bson.M{
		"ownerId":     callerID,
		"ownerPhone":  phone,
		"optIn":       phone != "",
		"optInMethod": "claim",
		"updatedAt":   now,
	}
	if req.Model != "" {
		set["model"] = req.Model
	}
	if req.Year != 0 {
		set["year"] = req.Year
	}
	if phone != "" {
		set["optInAt"] = now
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	if _, err := v.DB.UpsertByPlate(ctx, canonical, update); err != nil {
		config.ErrorStatus("failed to claim plate", http.StatusInternalServerError, w, err)
		return
	}

	// mirror the claim onto the user doc so the client can prefill the
	// sender side of plate-pair conversations
	oid, err := primitive.ObjectIDFromHex(callerID)
	if err == nil {
		_, err = v.UDB.UpdateOne(ctx, bson.M{"_id": oid},
			bson.M{"$set": bson.M{"myPlate": canonical, "whatsapp": phone, "updatedAt": now}})
	}
	if err != nil {
		zap.S().Warnw("failed to mirror claim onto user", "userId", callerID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plate": canonical,
		"optIn": phone != "",
	})
}

// MineHandler returns the caller's claimed vehicle
func (v Vehicle) MineHandler(w http.ResponseWriter, r *http.Request) {
	callerID := api.UserID(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := userByHexID(ctx, v.UDB, callerID)
	if err != nil {
		config.ErrorReason("failed to load authenticated user", http.StatusUnauthorized, models.ReasonUnauthenticated, w, err)
		return
	}
	if user.MyPlate == "" {
		config.ErrorReason("no plate claimed", http.StatusNotFound, models.ReasonNotFound,
			w, fmt.Errorf("user %s has not claimed a plate", callerID))
		return
	}

	vehicle, err := v.DB.FindByPlate(ctx, user.MyPlate)
	if err != nil {
		config.ErrorReason("claimed vehicle not found", http.StatusNotFound, models.ReasonNotFound, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plate":    vehicle.Plate,
		"model":    vehicle.Model,
		"year":     vehicle.Year,
		"optIn":    vehicle.OptIn,
		"whatsapp": user.Whatsapp,
	})
}

// AdminUpsertHandler registers or updates a vehicle on behalf of an owner.
// The admin path requires an explicit opt-in; consent is never implied.
func (v Vehicle) AdminUpsertHandler(w http.ResponseWriter, r *http.Request) {
	var req adminVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	canonical, err := plate.Normalize(req.Plate)
	if err != nil {
		config.ErrorReason("invalid plate", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	if !req.OptIn {
		config.ErrorReason("explicit opt-in required", http.StatusPreconditionFailed, models.ReasonPreconditionFailed,
			w, fmt.Errorf("admin upsert for %s without optIn", canonical))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	ownerID := ""
	if req.OwnerEmail != "" {
		owner, uerr := v.UDB.FindOne(ctx, bson.M{"email": normalizeEmail(req.OwnerEmail)})
		if uerr != nil {
			config.ErrorReason("owner email not registered", http.StatusNotFound, models.ReasonNotFound, w, uerr)
			return
		}
		ownerID = owner.ID.Hex()
	}
	phone := reNonDigit.ReplaceAllString(req.OwnerPhone, "")

	now := primitive.NewDateTimeFromTime(time.Now())
	set := bson.M{
		"model":       req.Model,
		"year":        req.Year,
		"ownerPhone":  phone,
		"optIn":       true,
		"optInAt":     now,
		"optInMethod": "admin",
		"updatedAt":   now,
	}
	if ownerID != "" {
		set["ownerId"] = ownerID
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	if _, err := v.DB.UpsertByPlate(ctx, canonical, update); err != nil {
		config.ErrorStatus("failed to upsert vehicle", http.StatusInternalServerError, w, err)
		return
	}

	if ownerID != "" {
		oid, _ := primitive.ObjectIDFromHex(ownerID)
		if _, err := v.UDB.UpdateOne(ctx, bson.M{"_id": oid},
			bson.M{"$set": bson.M{"myPlate": canonical, "updatedAt": now}}); err != nil {
			zap.S().Warnw("failed to mirror admin upsert onto user", "userId", ownerID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plate": canonical,
		"optIn": true,
	})
}
