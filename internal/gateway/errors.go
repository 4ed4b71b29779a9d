// ABOUTME: Maps domain errors onto HTTP status codes and JSON error bodies
// ABOUTME: Authentication failures share one generic message; internals are logged, never returned

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/2389/petition-gateway/internal/account"
	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/handshake"
	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

// Client-facing messages.
const (
	msgAuthFailed       = "authentication failed"
	msgHandshakeExpired = "handshake expired, restart from init"
	msgCurrentPassword  = "current password invalid"
	msgInternal         = "internal error"
)

// errorResponse picks the status and body for err.
func errorResponse(err error) (int, api.ErrorResponse) {
	switch {
	// Checked before the generic proof mismatch it wraps
	case errors.Is(err, account.ErrCurrentPasswordInvalid):
		return http.StatusUnauthorized, api.ErrorResponse{Error: msgCurrentPassword}

	case errors.Is(err, handshake.ErrNoPendingHandshake):
		return http.StatusUnauthorized, api.ErrorResponse{Error: msgHandshakeExpired, Restart: true}

	case errors.Is(err, srp.ErrProofMismatch),
		errors.Is(err, srp.ErrMalformedPublicValue),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrExpired),
		errors.Is(err, auth.ErrRevoked),
		errors.Is(err, account.ErrUnknownIdentity):
		return http.StatusUnauthorized, api.ErrorResponse{Error: msgAuthFailed}

	case errors.Is(err, account.ErrIdentityMismatch):
		return http.StatusForbidden, api.ErrorResponse{Error: "identity mismatch"}

	case errors.Is(err, account.ErrForbidden):
		return http.StatusForbidden, api.ErrorResponse{Error: "forbidden"}

	case errors.Is(err, store.ErrDuplicateIdentity):
		return http.StatusConflict, api.ErrorResponse{Error: "identity already exists"}

	case errors.Is(err, srp.ErrGroupMismatch):
		return http.StatusBadRequest, api.ErrorResponse{Error: "unsupported SRP group"}

	case errors.Is(err, account.ErrInvalidRequest):
		return http.StatusBadRequest, api.ErrorResponse{Error: err.Error()}

	case errors.Is(err, srp.ErrInvalidSalt), errors.Is(err, srp.ErrInvalidVerifier):
		return http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"}

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, api.ErrorResponse{Error: "not found"}

	default:
		return http.StatusInternalServerError, api.ErrorResponse{Error: msgInternal}
	}
}

// sendError writes the mapped response for err. Server-side failures are
// logged with their detail.
func (g *Gateway) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		g.logger.Debug("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response body", "error", err)
	}
}
