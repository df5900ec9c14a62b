package blacklist_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CodeGachi/SyncNapse-sub001/token"
	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist"
	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist/repofake"
)

const testSecret = "test-jwt-secret-key-for-testing-minimum-32-characters"

type testFixture struct {
	repo    *repofake.FakeBlacklistRepo
	issuer  *token.Issuer
	service *blacklist.Service
	now     time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		repo: repofake.NewFakeBlacklistRepo(),
		now:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }
	f.issuer = token.NewIssuer(token.NewHMACSigner(testSecret), "syncnapse",
		token.WithNowFunc(nowFunc),
		token.WithAccessTokenExpiry(15*time.Minute),
	)
	f.service = blacklist.NewService(f.repo, f.issuer, blacklist.WithNowFunc(nowFunc))
	return f
}

func TestBlacklistTokenThenIsBlacklisted(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	signed, err := f.issuer.MintAccessToken("user-1")
	require.NoError(t, err)

	claims, err := f.issuer.Decode(signed)
	require.NoError(t, err)

	blacklisted, err := f.service.IsBlacklisted(ctx, claims.JTI)
	require.NoError(t, err)
	require.False(t, blacklisted)

	require.NoError(t, f.service.BlacklistToken(ctx, signed, "logout"))

	blacklisted, err = f.service.IsBlacklisted(ctx, claims.JTI)
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestBlacklistMalformedTokenIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	// Not a JWT at all: logged and swallowed, never an error.
	require.NoError(t, f.service.BlacklistToken(ctx, "garbage", "logout"))
}

func TestCleanupKeepsUnexpiredRows(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	signed, err := f.issuer.MintAccessToken("user-1")
	require.NoError(t, err)
	require.NoError(t, f.service.BlacklistToken(ctx, signed, "logout"))

	// Token still valid for 15 minutes: cleanup must not touch the row.
	count, err := f.service.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	claims, err := f.issuer.Decode(signed)
	require.NoError(t, err)
	blacklisted, err := f.service.IsBlacklisted(ctx, claims.JTI)
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestCleanupRemovesExpiredRows(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	signed, err := f.issuer.MintAccessToken("user-1")
	require.NoError(t, err)
	require.NoError(t, f.service.BlacklistToken(ctx, signed, "logout"))

	f.now = f.now.Add(15*time.Minute + time.Second)

	count, err := f.service.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	claims, err := f.issuer.Decode(signed)
	require.NoError(t, err)
	blacklisted, err := f.service.IsBlacklisted(ctx, claims.JTI)
	require.NoError(t, err)
	require.False(t, blacklisted)
}
