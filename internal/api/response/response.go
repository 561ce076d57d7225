// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/dom/account-backend/internal/domain"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type successEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func Success(w http.ResponseWriter, status int, data any, message string) {
	write(w, status, successEnvelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// Error writes err as a failure envelope. Causes are logged, never sent.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := domain.AsAppError(err)

	fields := []zap.Field{
		zap.String("requestId", chiMiddleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", appErr.Status),
		zap.Error(err),
	}
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}

	details := appErr.Errors
	if details == nil {
		details = []string{}
	}
	write(w, appErr.Status, errorEnvelope{
		StatusCode: appErr.Status,
		Message:    appErr.Message,
		Success:    false,
		Errors:     details,
	})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
