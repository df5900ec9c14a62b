package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate"
	"github.com/CodeGachi/SyncNapse-sub001/identity"
	"github.com/CodeGachi/SyncNapse-sub001/internal/cache"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
	"github.com/CodeGachi/SyncNapse-sub001/token"
	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist"
	"github.com/CodeGachi/SyncNapse-sub001/token/refresh"
	"github.com/CodeGachi/SyncNapse-sub001/users"
)

// TokenPair is what a successful login or refresh hands the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // access token lifetime in seconds
}

// TokenIdentity is the result of validating an access token.
type TokenIdentity struct {
	UserID string
	JTI    string
}

// IdentityProvider is the upstream OAuth collaborator.
type IdentityProvider interface {
	BuildAuthorizationURL(provider, state string) (string, error)
	ExchangeCode(ctx context.Context, provider, code string) (*identity.Tokens, error)
	ResolveIdentity(ctx context.Context, provider string, tokens *identity.Tokens) (*identity.Identity, error)
}

// Deps holds all collaborator dependencies for the Service.
type Deps struct {
	Users     users.Directory
	Issuer    *token.Issuer
	Refresh   *refresh.Manager
	Blacklist *blacklist.Service
	States    *oauthstate.Service
	Provider  IdentityProvider
	Cache     *cache.Cache
}

// Service composes the token services into the login, refresh, logout and
// validation flows exposed to the transport layer.
type Service struct {
	deps      Deps
	statusTTL time.Duration
	nowFunc   func() time.Time
	logger    zerolog.Logger
}

type ServiceOption func(*Service)

// WithNowFunc sets the time source (primarily for testing)
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithStatusCacheTTL overrides the default 5 minute account-status TTL
func WithStatusCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.statusTTL = ttl
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Users == nil {
		return nil, errors.New("[NewService] Users directory is required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("[NewService] token Issuer is required")
	}
	if deps.Refresh == nil {
		return nil, errors.New("[NewService] refresh Manager is required")
	}
	if deps.Blacklist == nil {
		return nil, errors.New("[NewService] blacklist Service is required")
	}
	if deps.States == nil {
		return nil, errors.New("[NewService] oauthstate Service is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("[NewService] identity Provider is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("[NewService] Cache is required")
	}

	s := &Service{
		deps:      deps,
		statusTTL: 5 * time.Minute,
		nowFunc:   time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// GetOAuthAuthorizationURL creates a CSRF state bound to the provider and
// returns the upstream authorization URL carrying it.
func (s *Service) GetOAuthAuthorizationURL(ctx context.Context, provider, redirectURL string) (string, error) {
	state, err := s.deps.States.CreateState(ctx, provider, redirectURL)
	if err != nil {
		return "", errors.Wrap(err, "[GetOAuthAuthorizationURL] CreateState")
	}
	authURL, err := s.deps.Provider.BuildAuthorizationURL(provider, state)
	if err != nil {
		return "", errors.Wrap(err, "[GetOAuthAuthorizationURL] BuildAuthorizationURL")
	}
	return authURL, nil
}

// AuthenticateWithOAuth completes the callback half of the OAuth
// handshake: CSRF state validation, code exchange, identity resolution,
// local user upsert, then a fresh token pair. The returned redirect is
// the target bound into the state when the handshake began.
func (s *Service) AuthenticateWithOAuth(ctx context.Context, provider, code, state string, metadata refresh.Metadata) (*TokenPair, string, error) {
	redirectURL, err := s.deps.States.ValidateState(ctx, state, provider)
	if err != nil {
		return nil, "", err
	}

	tokens, err := s.deps.Provider.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, "", err
	}

	id, err := s.deps.Provider.ResolveIdentity(ctx, provider, tokens)
	if err != nil {
		return nil, "", err
	}

	user, err := s.deps.Users.UpsertFromIdentity(ctx, id.Email, id.DisplayName)
	if err != nil {
		return nil, "", errors.Wrap(err, "[AuthenticateWithOAuth] UpsertFromIdentity")
	}

	s.logger.Info().
		Str("provider", provider).
		Str("user_id", user.ID).
		Msg("oauth login")

	pair, err := s.createTokenPair(ctx, user.ID, metadata)
	if err != nil {
		return nil, "", err
	}
	return pair, redirectURL, nil
}

// RefreshAccessToken rotates the refresh token and mints a fresh access
// token for the owning user.
func (s *Service) RefreshAccessToken(ctx context.Context, rawRefreshToken string, metadata refresh.Metadata) (*TokenPair, error) {
	rotation, err := s.deps.Refresh.ValidateAndRotate(ctx, rawRefreshToken, metadata)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.deps.Issuer.MintAccessToken(rotation.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshAccessToken] MintAccessToken")
	}

	s.logger.Debug().Str("user_id", rotation.UserID).Msg("access token refreshed")

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rotation.NewToken,
		ExpiresIn:    int(s.deps.Issuer.AccessTokenExpiry().Seconds()),
	}, nil
}

// Logout blacklists the access token and, when present, revokes the
// refresh token. The two side effects are independent: failure of one
// never blocks the other.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	blacklistErr := s.deps.Blacklist.BlacklistToken(ctx, accessToken, "logout")

	var revokeErr error
	if refreshToken != "" {
		revokeErr = s.deps.Refresh.Revoke(ctx, refreshToken, refresh.ReasonUserLogout)
	}

	if blacklistErr != nil {
		if revokeErr != nil {
			s.logger.Error().Err(revokeErr).Msg("[Logout] refresh token revoke also failed")
		}
		return errors.Wrap(blacklistErr, "[Logout] BlacklistToken")
	}
	if revokeErr != nil {
		return errors.Wrap(revokeErr, "[Logout] Revoke")
	}

	s.logger.Debug().Msg("user logged out")
	return nil
}

// LogoutAll revokes every refresh token the user holds, across devices.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.deps.Refresh.RevokeAllForUser(ctx, userID, refresh.ReasonLogoutAllDevices)
	if err != nil {
		return 0, errors.Wrap(err, "[LogoutAll] RevokeAllForUser")
	}
	s.logger.Info().Str("user_id", userID).Int64("revoked", count).Msg("all devices logged out")
	return count, nil
}

// ValidateToken structurally decodes the token and consults the
// blacklist. Signature and expiry verification is a separate, prior step
// (see token.Issuer.Verify); each failure has a distinct meaning.
func (s *Service) ValidateToken(ctx context.Context, signedToken string) (*TokenIdentity, error) {
	claims, err := s.deps.Issuer.Decode(signedToken)
	if err != nil {
		return nil, err
	}
	if claims.JTI == "" {
		return nil, autherrors.ErrInvalidTokenFormat
	}

	blacklisted, err := s.deps.Blacklist.IsBlacklisted(ctx, claims.JTI)
	if err != nil {
		return nil, errors.Wrap(err, "[ValidateToken] IsBlacklisted")
	}
	if blacklisted {
		s.logger.Warn().Str("jti", claims.JTI).Msg("blacklisted token presented")
		return nil, autherrors.ErrTokenRevoked
	}

	return &TokenIdentity{
		UserID: claims.Subject,
		JTI:    claims.JTI,
	}, nil
}

func (s *Service) createTokenPair(ctx context.Context, userID string, metadata refresh.Metadata) (*TokenPair, error) {
	accessToken, err := s.deps.Issuer.MintAccessToken(userID)
	if err != nil {
		return nil, errors.Wrap(err, "[createTokenPair] MintAccessToken")
	}

	refreshToken, _, err := s.deps.Refresh.Create(ctx, userID, metadata)
	if err != nil {
		return nil, errors.Wrap(err, "[createTokenPair] Create refresh token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.deps.Issuer.AccessTokenExpiry().Seconds()),
	}, nil
}
