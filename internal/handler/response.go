package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Message: message})
}

// writeError maps domain errors to status codes. Anything unknown is logged
// and reported as a generic server error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Message, Field: verr.Field})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidSubscription),
		errors.Is(err, service.ErrChannelDisabled),
		errors.Is(err, service.ErrNoPushSubscription),
		errors.Is(err, service.ErrUnknownChannel):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, repository.ErrGoalNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGoalCancelled),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrGoalBusy),
		errors.Is(err, service.ErrEmailAlreadyExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrDeliveryFailed):
		slog.Warn("notification delivery failed", "request_id", ctxkeys.RequestID(r.Context()), "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusBadGateway, service.ErrDeliveryFailed.Error())
	default:
		slog.Error("request failed", "request_id", ctxkeys.RequestID(r.Context()), "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

// decodeJSON reads a size-limited JSON body into v, reporting malformed
// input as 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseDate accepts either a calendar date or an RFC 3339 timestamp.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
