package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	cldapi "github.com/cloudinary/cloudinary-go/v2/api"

	"github.com/placachat/placa-chat-api/config"
)

// plateUploadFolder is where clients drop plate photos before OCR
const plateUploadFolder = "plates"

// CloudinaryHandler handles Cloudinary related requests
type CloudinaryHandler struct{}

// GenerateSignature generates a signature for direct plate-photo uploads
func (c CloudinaryHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")
	if apiSecret == "" {
		config.ErrorStatus("server misconfigured", http.StatusInternalServerError, w, fmt.Errorf("CLOUDINARY_API_SECRET not set"))
		return
	}

	params := url.Values{
		"timestamp":     {timestamp},
		"upload_preset": {uploadPreset},
		"folder":        {plateUploadFolder},
	}
	signature, err := cldapi.SignParameters(params, apiSecret)
	if err != nil {
		config.ErrorStatus("failed to sign upload parameters", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"timestamp": timestamp,
		"signature": signature,
		"folder":    plateUploadFolder,
	})
}
