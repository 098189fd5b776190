package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/placachat/placa-chat-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string

	// Limits holds the anti-abuse rate limit policies. Each policy is a
	// fixed window: at most Limit actions per Window per actor.
	Limits LimitPolicies
}

// LimitPolicy is a single fixed-window rate limit policy
type LimitPolicy struct {
	Limit  int
	Window time.Duration
}

// LimitPolicies holds every rate limit enforced by the chat dispatcher
type LimitPolicies struct {
	NewThread      LimitPolicy // distinct first-contacts per actor
	MessagesPerDay LimitPolicy // follow-up messages per actor
	Cooldown       LimitPolicy // minimum spacing between any two sends
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	logger, _ := setLogger(os.Getenv("APP_ENV"))
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: os.Getenv("DB_NAME"),
		BaseURL:      os.Getenv("BASE_URL"),
		Port:         os.Getenv("PORT"),
		Limits: LimitPolicies{
			NewThread:      LimitPolicy{Limit: envInt("LIMIT_NEW_THREADS", 3), Window: 24 * time.Hour},
			MessagesPerDay: LimitPolicy{Limit: envInt("LIMIT_MESSAGES_PER_DAY", 10), Window: 24 * time.Hour},
			Cooldown:       LimitPolicy{Limit: 1, Window: time.Duration(envInt("LIMIT_COOLDOWN_SECONDS", 10)) * time.Second},
		},
	}

}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		zap.S().Warnf("invalid value for %s: %v, using default of %v", key, v, fallback)
		return fallback
	}
	return n
}

// ErrorStatus logs, writes http headers and body for a given message,
// status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	ErrorReason(message, httpStatusCode, models.ReasonInternal, w, err)
}

// ErrorReason is ErrorStatus with a machine-readable reason code so callers
// can tell a policy rejection from a throttle from a missing plate without
// parsing the message string
func ErrorReason(message string, httpStatusCode int, reason string, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{
		Message: message,
		Error:   errText,
		Reason:  reason,
	}})
	w.Write(b)
}
