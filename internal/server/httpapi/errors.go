package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Message: message})
}

func unauthorized(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "invalid or missing access token")
}

// statusFor maps service errors to HTTP statuses and caller-safe messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrRefreshTokenNotFound),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrUsernameTaken), errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}
