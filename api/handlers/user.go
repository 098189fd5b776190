package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
)

const minPasswordLength = 8

// User exported for testing purposes
type User struct {
	DB   databases.UserDatabase
	PVDB databases.PendingVerificationDatabase
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Whatsapp string `json:"whatsapp"`
}

type checkEmailRequest struct {
	Email string `json:"email"`
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// UserCreateHandler registers a new account. The account starts
// unverified; a 6-digit code is emailed and must be confirmed before the
// chat endpoints accept the user.
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		config.ErrorReason("valid email is required", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("email %q rejected", email))
		return
	}
	if len(req.Password) < minPasswordLength {
		config.ErrorReason("password too short", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("password must be at least %d characters", minPasswordLength))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := u.DB.FindOne(ctx, bson.M{"email": email}); err == nil {
		config.ErrorReason("email already registered", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("account for %s already exists", email))
		return
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to check existing user", http.StatusInternalServerError, w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	user := models.User{
		ID:            primitive.NewObjectID(),
		Email:         email,
		Password:      string(hash),
		EmailVerified: false,
		Whatsapp:      reNonDigit.ReplaceAllString(req.Whatsapp, ""),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := u.DB.InsertOne(ctx, user); err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}

	code := newVerificationCode()
	pending := models.PendingVerification{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Code:      code,
		CreatedAt: now,
	}
	if _, err := u.PVDB.InsertOne(ctx, pending); err != nil {
		config.ErrorStatus("failed to create pending verification", http.StatusInternalServerError, w, err)
		return
	}
	go sendVerificationEmail(email, code)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"_id":   user.ID.Hex(),
		"email": user.Email,
	})
}

// UserCheckEmailHandler reports whether an email is already registered
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req checkEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	exists := false
	if _, err := u.DB.FindOne(ctx, bson.M{"email": normalizeEmail(req.Email)}); err == nil {
		exists = true
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
