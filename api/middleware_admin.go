package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/placachat/placa-chat-api/config"
	"github.com/placachat/placa-chat-api/models"
)

// RequireAdmin verifies the HS256 token issued by the admin login endpoint.
// Admin routes do not go through go-guardian; the jwt is self-contained.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			config.ErrorReason("missing admin token", http.StatusUnauthorized, models.ReasonUnauthenticated,
				w, fmt.Errorf("no bearer token on request"))
			return
		}

		jwtSecret := []byte(os.Getenv("JWT_SECRET"))
		if len(jwtSecret) == 0 {
			config.ErrorStatus("server misconfigured", http.StatusInternalServerError, w, fmt.Errorf("JWT_SECRET not set"))
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			config.ErrorReason("invalid admin token", http.StatusUnauthorized, models.ReasonUnauthenticated, w, err)
			return
		}
		if scope, _ := claims["scope"].(string); scope != "admin" {
			config.ErrorReason("admin scope required", http.StatusForbidden, models.ReasonForbidden,
				w, fmt.Errorf("token scope is not admin"))
			return
		}

		sub, _ := claims["sub"].(string)
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
	})
}
