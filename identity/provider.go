package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/CodeGachi/SyncNapse-sub001/internal/config"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

// Identity is what the upstream provider asserts about the user.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Tokens is the result of exchanging an authorization code.
type Tokens struct {
	AccessToken string
	IDToken     string
}

// Endpoints overrides the OAuth endpoints for a provider. Used for
// providers without built-in defaults and for tests.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

type providerEntry struct {
	spec        config.OAuthProvider
	oauthConfig *oauth2.Config
	userInfoURL string
	verifier    *oidc.IDTokenVerifier
}

// Client talks to the upstream OAuth identity providers. Each provider is
// registered once at startup; requests then address it by name.
type Client struct {
	mu         sync.RWMutex
	providers  map[string]*providerEntry
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for userinfo fetches
// and, via the request context, for code exchange.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(options ...ClientOption) *Client {
	c := &Client{
		providers:  make(map[string]*providerEntry),
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Register adds a provider using built-in endpoint defaults, or OIDC
// discovery when the spec names an issuer. Fails when the spec lacks
// client credentials so a misconfigured provider is caught at startup.
func (c *Client) Register(ctx context.Context, spec config.OAuthProvider) error {
	if spec.ClientID == "" || spec.CallbackURL == "" {
		return errors.Wrapf(autherrors.ErrProviderNotConfigured, "provider %q", spec.Name)
	}

	if spec.Issuer != "" {
		provider, err := oidc.NewProvider(ctx, spec.Issuer)
		if err != nil {
			return errors.Wrapf(err, "oidc discovery for provider %q", spec.Name)
		}
		entry := &providerEntry{
			spec: spec,
			oauthConfig: &oauth2.Config{
				ClientID:     spec.ClientID,
				ClientSecret: spec.ClientSecret,
				Endpoint:     provider.Endpoint(),
				RedirectURL:  spec.CallbackURL,
				Scopes:       spec.Scopes,
			},
			verifier: provider.Verifier(&oidc.Config{ClientID: spec.ClientID}),
		}
		var claims struct {
			UserInfoURL string `json:"userinfo_endpoint"`
		}
		if err := provider.Claims(&claims); err == nil {
			entry.userInfoURL = claims.UserInfoURL
		}
		c.put(spec.Name, entry)
		return nil
	}

	ep, ok := defaultEndpoints(spec.Name)
	if !ok {
		return errors.Wrapf(autherrors.ErrProviderNotConfigured, "no endpoint defaults for provider %q", spec.Name)
	}
	c.RegisterWithEndpoints(spec, ep)
	return nil
}

// RegisterWithEndpoints adds a provider with explicit endpoints.
func (c *Client) RegisterWithEndpoints(spec config.OAuthProvider, ep Endpoints) {
	c.put(spec.Name, &providerEntry{
		spec: spec,
		oauthConfig: &oauth2.Config{
			ClientID:     spec.ClientID,
			ClientSecret: spec.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  ep.AuthURL,
				TokenURL: ep.TokenURL,
			},
			RedirectURL: spec.CallbackURL,
			Scopes:      spec.Scopes,
		},
		userInfoURL: ep.UserInfoURL,
	})
}

func (c *Client) put(name string, entry *providerEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = entry
}

func (c *Client) get(name string) (*providerEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.providers[name]
	if !ok {
		return nil, errors.Wrapf(autherrors.ErrProviderNotConfigured, "provider %q", name)
	}
	return entry, nil
}

// BuildAuthorizationURL returns the provider's authorization URL with the
// given CSRF state bound in.
func (c *Client) BuildAuthorizationURL(provider, state string) (string, error) {
	entry, err := c.get(provider)
	if err != nil {
		return "", err
	}
	return entry.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// ExchangeCode swaps the authorization code for provider tokens.
func (c *Client) ExchangeCode(ctx context.Context, provider, code string) (*Tokens, error) {
	entry, err := c.get(provider)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	oauthToken, err := entry.oauthConfig.Exchange(ctx, code)
	if err != nil {
		c.logger.Warn().Err(err).Str("provider", provider).Msg("code exchange failed")
		return nil, errors.Wrap(autherrors.ErrCodeExchangeFailed, err.Error())
	}

	tokens := &Tokens{AccessToken: oauthToken.AccessToken}
	if idToken, ok := oauthToken.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	return tokens, nil
}

// ResolveIdentity turns provider tokens into a verified identity. When the
// provider was registered with an OIDC issuer the id_token is verified and
// preferred; otherwise the userinfo endpoint is consulted.
func (c *Client) ResolveIdentity(ctx context.Context, provider string, tokens *Tokens) (*Identity, error) {
	entry, err := c.get(provider)
	if err != nil {
		return nil, err
	}

	if entry.verifier != nil && tokens.IDToken != "" {
		idToken, err := entry.verifier.Verify(ctx, tokens.IDToken)
		if err != nil {
			c.logger.Warn().Err(err).Str("provider", provider).Msg("id_token verification failed")
			return nil, errors.Wrap(autherrors.ErrIdentityFetchFailed, err.Error())
		}
		var claims rawClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, errors.Wrap(autherrors.ErrIdentityFetchFailed, err.Error())
		}
		return mapIdentity(claims)
	}

	return c.fetchUserInfo(ctx, entry, provider, tokens.AccessToken)
}

func (c *Client) fetchUserInfo(ctx context.Context, entry *providerEntry, provider, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.userInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Client.fetchUserInfo NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrIdentityFetchFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("provider", provider).Msg("userinfo fetch failed")
		return nil, errors.Wrapf(autherrors.ErrIdentityFetchFailed, "status %d", resp.StatusCode)
	}

	var claims rawClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, errors.Wrap(autherrors.ErrIdentityFetchFailed, err.Error())
	}
	return mapIdentity(claims)
}

type rawClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// mapIdentity enforces the fields the local account needs. Display name
// falls back to the email local part when the provider omits it.
func mapIdentity(claims rawClaims) (*Identity, error) {
	if claims.Email == "" || claims.Sub == "" {
		return nil, autherrors.ErrIncompleteIdentity
	}
	displayName := claims.Name
	if displayName == "" {
		displayName = strings.SplitN(claims.Email, "@", 2)[0]
	}
	return &Identity{
		SubjectID:   claims.Sub,
		Email:       claims.Email,
		DisplayName: displayName,
	}, nil
}

func defaultEndpoints(provider string) (Endpoints, bool) {
	switch provider {
	case "google":
		return Endpoints{
			AuthURL:     endpoints.Google.AuthURL,
			TokenURL:    endpoints.Google.TokenURL,
			UserInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		}, true
	case "github":
		return Endpoints{
			AuthURL:     endpoints.GitHub.AuthURL,
			TokenURL:    endpoints.GitHub.TokenURL,
			UserInfoURL: "https://api.github.com/user",
		}, true
	}
	return Endpoints{}, false
}
