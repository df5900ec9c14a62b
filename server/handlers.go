package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/CodeGachi/SyncNapse-sub001/auth"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain errors onto HTTP statuses. Refresh token reuse
// deliberately reports the same 401 as any other invalid token so an
// attacker probing stolen tokens learns nothing from the response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var suspended *auth.SuspendedError
	if errors.As(err, &suspended) {
		s.writeJSON(w, http.StatusForbidden, errorResponse{
			Error:            "account_suspended",
			ErrorDescription: suspended.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, autherrors.ErrAccountBanned):
		s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "account_banned"})
	case errors.Is(err, autherrors.ErrAccountSuspended):
		s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "account_suspended"})
	case errors.Is(err, autherrors.ErrProviderNotConfigured):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown_provider"})
	case errors.Is(err, autherrors.ErrMissingState):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_state"})
	case errors.Is(err, autherrors.ErrInvalidState),
		errors.Is(err, autherrors.ErrProviderMismatch),
		errors.Is(err, autherrors.ErrStateAlreadyUsed),
		errors.Is(err, autherrors.ErrStateExpired):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_state"})
	case errors.Is(err, autherrors.ErrCodeExchangeFailed),
		errors.Is(err, autherrors.ErrIdentityFetchFailed),
		errors.Is(err, autherrors.ErrIncompleteIdentity):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "oauth_failed"})
	case errors.Is(err, autherrors.ErrInvalidRefreshToken),
		errors.Is(err, autherrors.ErrRefreshTokenRevoked),
		errors.Is(err, autherrors.ErrRefreshTokenReused),
		errors.Is(err, autherrors.ErrRefreshTokenExpired):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_refresh_token"})
	case errors.Is(err, autherrors.ErrTokenExpired):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "token_expired"})
	case errors.Is(err, autherrors.ErrInvalidToken),
		errors.Is(err, autherrors.ErrInvalidTokenFormat),
		errors.Is(err, autherrors.ErrTokenRevoked):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_token"})
	case errors.Is(err, autherrors.ErrUserNotFound):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unknown_user"})
	default:
		s.logger.Error().Err(err).Msg("internal error")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
