package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/resilience"
)

// isoMillis matches the timestamps browsers produce with Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// readMailJSON is readJSON for mail endpoints, which answer with the mail
// envelope instead of a bare error.
func readMailJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, mailResponse{Message: "Request body too large"})
			return v, false
		}
		msg := "Invalid request body"
		if pm, ok := domain.PublicMessage(err); ok {
			msg = pm
		}
		writeJSON(w, http.StatusBadRequest, mailResponse{Message: msg})
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

// mailResponse is the envelope every mail endpoint answers with.
type mailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
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

func writeMailOK(w http.ResponseWriter, message string, details any) {
	writeJSON(w, http.StatusOK, mailResponse{Success: true, Message: message, Details: details})
}

// writeMailError answers a failed mail request. Validation errors are 400
// with their own message; anything else is failMsg with the cause.
func writeMailError(w http.ResponseWriter, r *http.Request, err error, failMsg string) {
	if errors.Is(err, domain.ErrValidation) {
		msg, _ := domain.PublicMessage(err)
		if msg == "" {
			msg = strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		}
		writeJSON(w, http.StatusBadRequest, mailResponse{Message: msg})
		return
	}
	status := http.StatusInternalServerError
	if errors.Is(err, resilience.ErrCircuitOpen) {
		status = http.StatusServiceUnavailable
	}
	slog.ErrorContext(r.Context(), "mail request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, status, mailResponse{Message: failMsg, Error: err.Error()})
}

// writeDomainError maps domain errors onto status codes. Errors carrying a
// public message expose it; the rest get a generic text.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	msg, public := domain.PublicMessage(err)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, orText(msg, public, fallbackMsg))
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, orText(msg, public, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, orText(msg, public, "unauthorized"))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, orText(msg, public, "resource already exists"))
	case errors.Is(err, resilience.ErrCircuitOpen):
		slog.Warn("upstream unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeInternalError(w, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// publicValidation returns the client message of a validation error.
func publicValidation(err error) (string, bool) {
	if !errors.Is(err, domain.ErrValidation) {
		return "", false
	}
	return domain.PublicMessage(err)
}

func orText(msg string, ok bool, fallback string) string {
	if ok && msg != "" {
		return msg
	}
	return fallback
}

func timestamp(now time.Time) string {
	return now.UTC().Format(isoMillis)
}
