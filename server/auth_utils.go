package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/CodeGachi/SyncNapse-sub001/token/refresh"
)

// refreshTokenCookieName is the HttpOnly cookie carrying the refresh token
// for browser clients. Scoped to the refresh and logout endpoints only.
const refreshTokenCookieName = "refresh_token"

const refreshCookiePath = "/auth"

func (s *Server) setRefreshTokenCookie(w http.ResponseWriter, r *http.Request, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetRefreshTokenExpiry().Seconds()),
	})
}

func (s *Server) clearRefreshTokenCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// clientMetadata captures the caller's address and user agent for the
// refresh token audit trail.
func clientMetadata(r *http.Request) refresh.Metadata {
	return refresh.Metadata{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the original client.
		return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
