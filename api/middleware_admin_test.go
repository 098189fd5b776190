package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/placachat/placa-chat-api/api"
)

func adminToken(t *testing.T, secret, scope string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "admin-1",
		"scope": scope,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestRequireAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	var gotUserID string
	handler := api.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = api.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid admin token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/admin/vehicles", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "test-secret", "admin"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "admin-1", gotUserID)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/admin/vehicles", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong signing secret", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/admin/vehicles", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "other-secret", "admin"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("non-admin scope", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/admin/vehicles", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "test-secret", "user"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
