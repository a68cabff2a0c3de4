package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
	"github.com/Dexploarer/ghostspeak-go/internal/middleware"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// requireCaller returns the caller address or writes a 401 when the request
// carried none. Mutating endpoints need an identity to act as.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := middleware.CallerFromContext(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "X-Caller header is required")
		return "", false
	}
	return caller, true
}

// callerOr returns the request caller, falling back to a role name for
// key-authenticated routes where no X-Caller header is expected.
func callerOr(r *http.Request, fallback string) string {
	if caller := middleware.CallerFromContext(r.Context()); caller != "" {
		return caller
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, domain.ErrUnauthorized):
		msg := strings.TrimPrefix(err.Error(), domain.ErrUnauthorized.Error()+": ")
		writeError(w, http.StatusForbidden, msg)
	case errors.Is(err, domain.ErrState):
		msg := strings.TrimPrefix(err.Error(), domain.ErrState.Error()+": ")
		writeError(w, http.StatusConflict, msg)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "record was modified by another request")
	case errors.Is(err, domain.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, "event already processed")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, domain.ErrReentrancy):
		writeError(w, http.StatusConflict, "record is busy, retry shortly")
	case errors.Is(err, domain.ErrPaused):
		writeError(w, http.StatusServiceUnavailable, "operations are paused")
	case errors.Is(err, domain.ErrArithmetic):
		writeError(w, http.StatusUnprocessableEntity, "amount out of range")
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
