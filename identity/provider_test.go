package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeGachi/SyncNapse-sub001/identity"
	"github.com/CodeGachi/SyncNapse-sub001/internal/config"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

func testProviderSpec() config.OAuthProvider {
	return config.OAuthProvider{
		Name:         "google",
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		CallbackURL:  "http://localhost:4000/auth/callback/google",
		Scopes:       []string{"openid", "profile", "email"},
	}
}

func TestBuildAuthorizationURL(t *testing.T) {
	client := identity.NewClient()
	client.RegisterWithEndpoints(testProviderSpec(), identity.Endpoints{
		AuthURL:  "https://provider.example.com/auth",
		TokenURL: "https://provider.example.com/token",
	})

	authURL, err := client.BuildAuthorizationURL("google", "the-state")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()
	require.Equal(t, "the-state", query.Get("state"))
	require.Equal(t, "test-client-id", query.Get("client_id"))
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, "offline", query.Get("access_type"))
	require.Equal(t, "http://localhost:4000/auth/callback/google", query.Get("redirect_uri"))
}

func TestUnknownProvider(t *testing.T) {
	client := identity.NewClient()

	_, err := client.BuildAuthorizationURL("facebook", "state")
	require.ErrorIs(t, err, autherrors.ErrProviderNotConfigured)

	_, err = client.ExchangeCode(context.Background(), "facebook", "code")
	require.ErrorIs(t, err, autherrors.ErrProviderNotConfigured)
}

func TestExchangeCodeAndResolveIdentity(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "good-code", r.FormValue("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "upstream-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer upstream-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":   "provider-subject-1",
			"email": "jane@example.com",
			"name":  "Jane Doe",
		})
	}))
	defer userInfoServer.Close()

	client := identity.NewClient()
	client.RegisterWithEndpoints(testProviderSpec(), identity.Endpoints{
		AuthURL:     "https://provider.example.com/auth",
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	tokens, err := client.ExchangeCode(context.Background(), "google", "good-code")
	require.NoError(t, err)
	require.Equal(t, "upstream-access-token", tokens.AccessToken)

	id, err := client.ResolveIdentity(context.Background(), "google", tokens)
	require.NoError(t, err)
	require.Equal(t, "provider-subject-1", id.SubjectID)
	require.Equal(t, "jane@example.com", id.Email)
	require.Equal(t, "Jane Doe", id.DisplayName)
}

func TestExchangeCodeFailure(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenServer.Close()

	client := identity.NewClient()
	client.RegisterWithEndpoints(testProviderSpec(), identity.Endpoints{
		TokenURL: tokenServer.URL,
	})

	_, err := client.ExchangeCode(context.Background(), "google", "bad-code")
	require.ErrorIs(t, err, autherrors.ErrCodeExchangeFailed)
}

func TestResolveIdentityUserInfoFailure(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer userInfoServer.Close()

	client := identity.NewClient()
	client.RegisterWithEndpoints(testProviderSpec(), identity.Endpoints{
		UserInfoURL: userInfoServer.URL,
	})

	_, err := client.ResolveIdentity(context.Background(), "google", &identity.Tokens{AccessToken: "tok"})
	require.ErrorIs(t, err, autherrors.ErrIdentityFetchFailed)
}

func TestResolveIdentityFallsBackToEmailLocalPart(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":   "provider-subject-2",
			"email": "noname@example.com",
		})
	}))
	defer userInfoServer.Close()

	client := identity.NewClient()
	client.RegisterWithEndpoints(testProviderSpec(), identity.Endpoints{
		UserInfoURL: userInfoServer.URL,
	})

	id, err := client.ResolveIdentity(context.Background(), "google", &identity.Tokens{AccessToken: "tok"})
	require.NoError(t, err)
	require.Equal(t, "noname", id.DisplayName)
}

func TestResolveIdentityRequiresEmailAndSubject(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "No Email"})
	}))
	defer userInfoServer.Close()

	client := identity.NewClient()
	client.RegisterWithEndpoints(testProviderSpec(), identity.Endpoints{
		UserInfoURL: userInfoServer.URL,
	})

	_, err := client.ResolveIdentity(context.Background(), "google", &identity.Tokens{AccessToken: "tok"})
	require.ErrorIs(t, err, autherrors.ErrIncompleteIdentity)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	client := identity.NewClient()

	err := client.Register(context.Background(), config.OAuthProvider{Name: "google"})
	require.ErrorIs(t, err, autherrors.ErrProviderNotConfigured)
}
