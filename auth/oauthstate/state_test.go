package oauthstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate"
	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate/repofake"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

type testFixture struct {
	repo    *repofake.FakeStateRepo
	service *oauthstate.Service
	now     time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		repo: repofake.NewFakeStateRepo(),
		now:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	f.service = oauthstate.NewService(f.repo,
		oauthstate.WithNowFunc(func() time.Time { return f.now }),
		oauthstate.WithTTL(10*time.Minute),
	)
	return f
}

func TestValidateReturnsBoundRedirect(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, err := f.service.CreateState(ctx, "google", "/dashboard")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	redirectURL, err := f.service.ValidateState(ctx, state, "google")
	require.NoError(t, err)
	require.Equal(t, "/dashboard", redirectURL)
}

func TestStateIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, err := f.service.CreateState(ctx, "google", "/dashboard")
	require.NoError(t, err)

	_, err = f.service.ValidateState(ctx, state, "google")
	require.NoError(t, err)

	_, err = f.service.ValidateState(ctx, state, "google")
	require.ErrorIs(t, err, autherrors.ErrStateAlreadyUsed)
}

func TestMissingState(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.ValidateState(context.Background(), "", "google")
	require.ErrorIs(t, err, autherrors.ErrMissingState)
}

func TestUnknownState(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.ValidateState(context.Background(), "never-issued", "google")
	require.ErrorIs(t, err, autherrors.ErrInvalidState)
}

func TestProviderBinding(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, err := f.service.CreateState(ctx, "google", "")
	require.NoError(t, err)

	_, err = f.service.ValidateState(ctx, state, "github")
	require.ErrorIs(t, err, autherrors.ErrProviderMismatch)

	// The mismatch did not consume the state.
	_, err = f.service.ValidateState(ctx, state, "google")
	require.NoError(t, err)
}

func TestExpiredState(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	state, err := f.service.CreateState(ctx, "google", "")
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Minute)

	_, err = f.service.ValidateState(ctx, state, "google")
	require.ErrorIs(t, err, autherrors.ErrStateExpired)
}

func TestCleanupExpiredStates(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	expired, err := f.service.CreateState(ctx, "google", "")
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Minute)

	fresh, err := f.service.CreateState(ctx, "google", "")
	require.NoError(t, err)

	count, err := f.service.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	_, err = f.service.ValidateState(ctx, expired, "google")
	require.ErrorIs(t, err, autherrors.ErrInvalidState)

	_, err = f.service.ValidateState(ctx, fresh, "google")
	require.NoError(t, err)
}
