package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
	"github.com/placachat/placa-chat-api/plate"
)

// Plate serves plate extraction and the public vehicle lookup
type Plate struct {
	DB databases.VehicleDatabase
}

type plateScanRequest struct {
	RecognizedText string `json:"recognizedText"`
}

// ScanHandler extracts a plate from OCR output. The client uploads the
// photo elsewhere and hands us only the recognized text.
func (p Plate) ScanHandler(w http.ResponseWriter, r *http.Request) {
	var req plateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	extracted, err := plate.Extract(req.RecognizedText)
	if err != nil {
		var noPlate *plate.ErrNoPlate
		if errors.As(err, &noPlate) {
			config.ErrorReason("no plate found in recognized text", http.StatusUnprocessableEntity, models.ReasonInvalidInput, w, err)
			return
		}
		config.ErrorStatus("failed to extract plate", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.PlateScanResponse{Plate: extracted, RawText: req.RecognizedText})
}

// LookupHandler tells the caller whether a plate can be contacted. Owner
// identity and contact details never leave the server.
func (p Plate) LookupHandler(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["plate"]

	canonical, err := plate.Normalize(raw)
	if err != nil {
		config.ErrorReason("invalid plate", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	vehicle, err := p.DB.FindByPlate(ctx, canonical)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			writeJSON(w, http.StatusOK, models.VehicleLookupResponse{Exists: false})
			return
		}
		config.ErrorStatus("failed to get vehicle", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.VehicleLookupResponse{
		Exists:   true,
		Plate:    vehicle.Plate,
		OptIn:    vehicle.OptIn,
		HasOwner: vehicle.OwnerID != "",
	})
}
