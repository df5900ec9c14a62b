package auth_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/CodeGachi/SyncNapse-sub001/auth"
	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate"
	staterepofake "github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate/repofake"
	"github.com/CodeGachi/SyncNapse-sub001/identity"
	"github.com/CodeGachi/SyncNapse-sub001/internal/cache"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
	"github.com/CodeGachi/SyncNapse-sub001/token"
	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist"
	blacklistrepofake "github.com/CodeGachi/SyncNapse-sub001/token/blacklist/repofake"
	"github.com/CodeGachi/SyncNapse-sub001/token/refresh"
	refreshrepofake "github.com/CodeGachi/SyncNapse-sub001/token/refresh/repofake"
	"github.com/CodeGachi/SyncNapse-sub001/users"
	userrepofake "github.com/CodeGachi/SyncNapse-sub001/users/repofake"
)

// fakeProvider stands in for the upstream OAuth provider. It accepts one
// known code and asserts a fixed identity.
type fakeProvider struct {
	goodCode string
	identity identity.Identity
}

func (f *fakeProvider) BuildAuthorizationURL(provider, state string) (string, error) {
	return "https://provider.example.com/auth?state=" + url.QueryEscape(state), nil
}

func (f *fakeProvider) ExchangeCode(_ context.Context, provider, code string) (*identity.Tokens, error) {
	if code != f.goodCode {
		return nil, autherrors.ErrCodeExchangeFailed
	}
	return &identity.Tokens{AccessToken: "upstream-token"}, nil
}

func (f *fakeProvider) ResolveIdentity(_ context.Context, provider string, tokens *identity.Tokens) (*identity.Identity, error) {
	id := f.identity
	return &id, nil
}

type testFixture struct {
	service  *auth.Service
	users    *userrepofake.FakeUserRepo
	refresh  *refreshrepofake.FakeRefreshTokenRepo
	issuer   *token.Issuer
	now      time.Time
	setNow   func(time.Time)
	metadata refresh.Metadata
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		metadata: refresh.Metadata{IPAddress: "203.0.113.7", UserAgent: "tests"},
	}
	nowFunc := func() time.Time { return f.now }
	f.setNow = func(at time.Time) { f.now = at }

	f.users = userrepofake.NewFakeUserRepo()
	f.refresh = refreshrepofake.NewFakeRefreshTokenRepo()

	f.issuer = token.NewIssuer(
		token.NewHMACSigner("test-secret-at-least-32-characters!!"),
		"syncnapse",
		token.WithNowFunc(nowFunc),
	)

	service, err := auth.NewService(auth.Deps{
		Users:     f.users,
		Issuer:    f.issuer,
		Refresh:   refresh.NewManager(f.refresh, refresh.WithNowFunc(nowFunc)),
		Blacklist: blacklist.NewService(blacklistrepofake.NewFakeBlacklistRepo(), f.issuer, blacklist.WithNowFunc(nowFunc)),
		States:    oauthstate.NewService(staterepofake.NewFakeStateRepo(), oauthstate.WithNowFunc(nowFunc)),
		Provider: &fakeProvider{
			goodCode: "good-code",
			identity: identity.Identity{SubjectID: "sub-1", Email: "jane@example.com", DisplayName: "Jane Doe"},
		},
		Cache: cache.New(cache.WithNowFunc(nowFunc)),
	}, auth.WithNowFunc(nowFunc))
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *testFixture) advance(d time.Duration) {
	f.setNow(f.now.Add(d))
}

func TestOAuthLoginFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	authURL, err := f.service.GetOAuthAuthorizationURL(ctx, "google", "/notes")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	pair, redirect, err := f.service.AuthenticateWithOAuth(ctx, "google", "good-code", state, f.metadata)
	require.NoError(t, err)
	require.Equal(t, "/notes", redirect)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, 900, pair.ExpiresIn)

	user, err := f.users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", user.DisplayName)

	claims, err := f.issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	authURL, err := f.service.GetOAuthAuthorizationURL(ctx, "google", "")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	_, _, err = f.service.AuthenticateWithOAuth(ctx, "google", "good-code", state, f.metadata)
	require.NoError(t, err)

	_, _, err = f.service.AuthenticateWithOAuth(ctx, "google", "good-code", state, f.metadata)
	require.ErrorIs(t, err, autherrors.ErrStateAlreadyUsed)
}

func TestOAuthCodeExchangeFailure(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	authURL, err := f.service.GetOAuthAuthorizationURL(ctx, "google", "")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	_, _, err = f.service.AuthenticateWithOAuth(ctx, "google", "bad-code", parsed.Query().Get("state"), f.metadata)
	require.ErrorIs(t, err, autherrors.ErrCodeExchangeFailed)
}

func (f *testFixture) login(t *testing.T) *auth.TokenPair {
	t.Helper()
	ctx := context.Background()
	authURL, err := f.service.GetOAuthAuthorizationURL(ctx, "google", "")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	pair, _, err := f.service.AuthenticateWithOAuth(ctx, "google", "good-code", parsed.Query().Get("state"), f.metadata)
	require.NoError(t, err)
	return pair
}

func TestRefreshRotatesToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair := f.login(t)

	f.advance(time.Hour)
	next, err := f.service.RefreshAccessToken(ctx, pair.RefreshToken, f.metadata)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.Equal(t, 900, next.ExpiresIn)

	// Replaying the consumed token revokes the family, replacement included.
	_, err = f.service.RefreshAccessToken(ctx, pair.RefreshToken, f.metadata)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenReused)

	_, err = f.service.RefreshAccessToken(ctx, next.RefreshToken, f.metadata)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenRevoked)
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair := f.login(t)

	require.NoError(t, f.service.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	_, err := f.service.ValidateToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenRevoked)

	_, err = f.service.RefreshAccessToken(ctx, pair.RefreshToken, f.metadata)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenRevoked)
}

func TestLogoutWithOnlyAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair := f.login(t)

	require.NoError(t, f.service.Logout(ctx, pair.AccessToken, ""))

	_, err := f.service.ValidateToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrTokenRevoked)

	// The refresh token was not presented, so it stays live.
	_, err = f.service.RefreshAccessToken(ctx, pair.RefreshToken, f.metadata)
	require.NoError(t, err)
}

func TestLogoutAllRevokesEveryDevice(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.login(t)
	second := f.login(t)
	claims, err := f.issuer.Verify(first.AccessToken)
	require.NoError(t, err)

	count, err := f.service.LogoutAll(ctx, claims.Subject)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	_, err = f.service.RefreshAccessToken(ctx, first.RefreshToken, f.metadata)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenRevoked)
	_, err = f.service.RefreshAccessToken(ctx, second.RefreshToken, f.metadata)
	require.ErrorIs(t, err, autherrors.ErrRefreshTokenRevoked)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.ValidateToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, autherrors.ErrInvalidTokenFormat)
}

func TestValidateTokenReturnsIdentity(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair := f.login(t)

	ident, err := f.service.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, ident.UserID)
	require.NotEmpty(t, ident.JTI)
}

func TestCheckAccountStatus(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	goodID := uuid.New().String()
	bannedID := uuid.New().String()
	suspendedID := uuid.New().String()
	suspendedUntil := f.now.Add(48 * time.Hour)

	f.users.Upsert(&users.User{ID: goodID, Email: "good@example.com"})
	f.users.Upsert(&users.User{ID: bannedID, Email: "banned@example.com", Banned: true})
	f.users.Upsert(&users.User{ID: suspendedID, Email: "suspended@example.com", SuspendedUntil: &suspendedUntil})

	require.NoError(t, f.service.CheckAccountStatus(ctx, goodID))
	require.ErrorIs(t, f.service.CheckAccountStatus(ctx, bannedID), autherrors.ErrAccountBanned)
	require.ErrorIs(t, f.service.CheckAccountStatus(ctx, uuid.New().String()), autherrors.ErrUserNotFound)

	err := f.service.CheckAccountStatus(ctx, suspendedID)
	require.ErrorIs(t, err, autherrors.ErrAccountSuspended)
	var suspended *auth.SuspendedError
	require.ErrorAs(t, err, &suspended)
	require.Equal(t, suspendedUntil, suspended.Until)
}

func TestSuspensionLapseHonoredDespiteCache(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := uuid.New().String()
	suspendedUntil := f.now.Add(time.Minute)
	f.users.Upsert(&users.User{ID: userID, Email: "brief@example.com", SuspendedUntil: &suspendedUntil})

	require.ErrorIs(t, f.service.CheckAccountStatus(ctx, userID), autherrors.ErrAccountSuspended)

	// The cached entry still says suspended, but the end time has passed.
	f.advance(2 * time.Minute)
	require.NoError(t, f.service.CheckAccountStatus(ctx, userID))
}

func TestInvalidateAccountStatusBustsCache(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := uuid.New().String()
	f.users.Upsert(&users.User{ID: userID, Email: "soon-banned@example.com"})
	require.NoError(t, f.service.CheckAccountStatus(ctx, userID))

	f.users.Upsert(&users.User{ID: userID, Email: "soon-banned@example.com", Banned: true})

	// Still cached as fine until invalidated.
	require.NoError(t, f.service.CheckAccountStatus(ctx, userID))
	f.service.InvalidateAccountStatus(userID)
	require.ErrorIs(t, f.service.CheckAccountStatus(ctx, userID), autherrors.ErrAccountBanned)
}
