package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"leadsync-engine/internal/apollo"
	"leadsync-engine/internal/leads"
	"leadsync-engine/internal/store"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// statusFor maps an operation error to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	var se *apollo.StatusError
	switch {
	case errors.Is(err, leads.ErrInvalidInput), errors.Is(err, leads.ErrConfirmRequired):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, leads.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apollo.ErrNoAPIKey), errors.Is(err, leads.ErrNoSearcher):
		return http.StatusServiceUnavailable, "no_api_key"
	case errors.Is(err, store.ErrNotInitialized):
		return http.StatusServiceUnavailable, "not_initialized"
	case errors.Is(err, apollo.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &se):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
