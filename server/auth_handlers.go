package server

import (
	"encoding/json"
	"net/http"
)

// LoginHandler starts the OAuth handshake: mint a CSRF state bound to the
// provider and send the browser upstream.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		redirect := r.URL.Query().Get("redirect")

		authURL, err := s.auth.GetOAuthAuthorizationURL(r.Context(), provider, redirect)
		if err != nil {
			s.writeError(w, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the handshake. On success the refresh token is
// set as an HttpOnly cookie; when the login began with a redirect target
// the browser is sent there, otherwise the token pair is returned as JSON.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		query := r.URL.Query()

		if errCode := query.Get("error"); errCode != "" {
			s.logger.Warn().Str("provider", provider).Str("error", errCode).Msg("provider denied authorization")
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "oauth_failed", ErrorDescription: errCode})
			return
		}

		pair, redirect, err := s.auth.AuthenticateWithOAuth(r.Context(), provider, query.Get("code"), query.Get("state"), clientMetadata(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.setRefreshTokenCookie(w, r, pair.RefreshToken)

		if redirect != "" {
			http.Redirect(w, r, redirect, http.StatusFound)
			return
		}
		s.writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    pair.ExpiresIn,
		})
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshHandler exchanges a refresh token for a new pair. Browser clients
// carry the token in the HttpOnly cookie; API clients send it in the body.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := s.refreshTokenFromRequest(r)
		if refreshToken == "" {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_refresh_token"})
			return
		}

		pair, err := s.auth.RefreshAccessToken(r.Context(), refreshToken, clientMetadata(r))
		if err != nil {
			s.clearRefreshTokenCookie(w, r)
			s.writeError(w, err)
			return
		}

		s.setRefreshTokenCookie(w, r, pair.RefreshToken)
		s.writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    pair.ExpiresIn,
		})
	}
}

// LogoutHandler ends the session. Works with whatever tokens the client
// still holds; a missing refresh token only skips its revocation.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken := bearerToken(r)
		refreshToken := s.refreshTokenFromRequest(r)

		if accessToken == "" && refreshToken == "" {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_token"})
			return
		}

		if err := s.auth.Logout(r.Context(), accessToken, refreshToken); err != nil {
			s.writeError(w, err)
			return
		}

		s.clearRefreshTokenCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutAllHandler revokes every refresh token of the authenticated user.
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_token"})
			return
		}

		count, err := s.auth.LogoutAll(r.Context(), userID)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.clearRefreshTokenCookie(w, r)
		s.writeJSON(w, http.StatusOK, map[string]int64{"revoked": count})
	}
}

// MeHandler returns the identity the presented access token resolves to.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_token"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
	}
}

func (s *Server) refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body refreshRequest
	if r.Body != nil {
		// Body may legitimately be empty; decode errors just mean no token.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	return body.RefreshToken
}
