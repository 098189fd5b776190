package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/api"
	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/databases"
	"github.com/placachat/placa-chat-api/models"
	templates "github.com/placachat/placa-chat-api/templates/html"
)

// maxVerifyAttempts caps wrong-code guesses per pending verification
const maxVerifyAttempts = 5

// Verification handles the email confirmation flow
type Verification struct {
	PVDB databases.PendingVerificationDatabase
	UDB  databases.UserDatabase
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendCodeRequest struct {
	Email string `json:"email"`
}

func newVerificationCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}

// VerifyCodeHandler confirms the emailed code and marks the account
// verified
func (v Verification) VerifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Code == "" {
		config.ErrorReason("email and code are required", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("missing email or code"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	pending, err := v.PVDB.FindOne(ctx, bson.M{"email": email})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorReason("no verification in progress for this email", http.StatusNotFound, models.ReasonNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to find pending verification", http.StatusInternalServerError, w, err)
		return
	}

	if pending.Attempts >= maxVerifyAttempts {
		config.ErrorReason("too many attempts, request a new code", http.StatusTooManyRequests, models.ReasonRateLimited,
			w, fmt.Errorf("verification for %s locked after %d attempts", email, pending.Attempts))
		return
	}

	if pending.Code != req.Code {
		if _, uerr := v.PVDB.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$inc": bson.M{"attempts": 1}}); uerr != nil {
			config.ErrorStatus("failed to record attempt", http.StatusInternalServerError, w, uerr)
			return
		}
		config.ErrorReason("invalid verification code", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("code mismatch for %s", email))
		return
	}

	if _, err := v.UDB.UpdateOne(ctx, bson.M{"email": email},
		bson.M{"$set": bson.M{"emailVerified": true, "updatedAt": primitive.NewDateTimeFromTime(time.Now())}}); err != nil {
		config.ErrorStatus("failed to mark email verified", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := v.PVDB.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		zap.S().Warnw("failed to delete pending verification", "email", email, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ResendVerificationCodeHandler issues a fresh code with a 1-minute floor
// between sends. The response never reveals whether the email is
// registered.
func (v Verification) ResendVerificationCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req resendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorReason("failed to decode request body", http.StatusBadRequest, models.ReasonInvalidInput, w, err)
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		config.ErrorReason("email is required", http.StatusBadRequest, models.ReasonInvalidInput,
			w, fmt.Errorf("missing email"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := v.UDB.FindOne(ctx, bson.M{"email": email})
	if err != nil || user.EmailVerified {
		// nothing to verify; answer success to prevent email enumeration
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	pending, err := v.PVDB.FindOne(ctx, bson.M{"email": email})
	if err == nil && time.Since(pending.CreatedAt.Time()) < time.Minute {
		config.ErrorReason("wait before requesting a new code", http.StatusTooManyRequests, models.ReasonRateLimited,
			w, fmt.Errorf("resend for %s requested too soon", email))
		return
	}

	code := newVerificationCode()
	now := primitive.NewDateTimeFromTime(time.Now())
	if err == nil {
		if _, uerr := v.PVDB.UpdateOne(ctx, bson.M{"email": email},
			bson.M{"$set": bson.M{"code": code, "createdAt": now, "attempts": 0}}); uerr != nil {
			config.ErrorStatus("failed to refresh verification code", http.StatusInternalServerError, w, uerr)
			return
		}
	} else {
		if _, ierr := v.PVDB.InsertOne(ctx, models.PendingVerification{
			ID:        primitive.NewObjectID(),
			Email:     email,
			Code:      code,
			CreatedAt: now,
		}); ierr != nil {
			config.ErrorStatus("failed to create pending verification", http.StatusInternalServerError, w, ierr)
			return
		}
	}

	go sendVerificationEmail(email, code)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// sendVerificationEmail sends the verification code in a background
// goroutine; it never fails the request that triggered it
func sendVerificationEmail(email, code string) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Errorw("panic in sendVerificationEmail", "email", email, "panic", rec)
		}
	}()

	from := mail.NewEmail("Placa Chat", "no-reply@placachat.com.br")
	subject := "Placa Chat - código de verificação"
	to := mail.NewEmail("", email)
	plainTextContent := "Seu código de verificação: " + code + ". Este código expira em 24 horas."
	htmlContent := templates.RenderCode(code)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		zap.S().Errorw("SENDGRID_API_KEY not set, cannot send email", "email", email)
		return
	}

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send verification email", "email", email, "error", err)
		return
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		zap.S().Infow("verification email sent", "email", email, "statusCode", response.StatusCode)
	} else {
		zap.S().Warnw("verification email sent with non-2xx status", "email", email, "statusCode", response.StatusCode, "body", response.Body)
	}
}
