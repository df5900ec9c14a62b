package oauthstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

const stateLength = 32 // bytes of entropy per state token

// Record is one CSRF handshake state: an opaque one-time value bound to
// the provider it was created for, consumable once before its short expiry.
type Record struct {
	State       string
	Provider    string
	RedirectURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// Repo manages persistence of OAuth state records. MarkUsed must be a
// conditional update so a state can be consumed exactly once.
type Repo interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, state string) (*Record, error)
	MarkUsed(ctx context.Context, state string, at time.Time) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Service issues and validates the one-time state tokens that bind an
// OAuth authorization request to its callback.
type Service struct {
	repo    Repo
	ttl     time.Duration
	nowFunc func() time.Time
	logger  zerolog.Logger
}

type ServiceOption func(*Service)

// WithNowFunc sets the time source (primarily for testing)
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithTTL overrides the default 10 minute state lifetime
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(repo Repo, options ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		ttl:     10 * time.Minute,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CreateState generates an opaque random state bound to the provider and
// optional post-login redirect target.
func (s *Service) CreateState(ctx context.Context, provider, redirectURL string) (string, error) {
	stateBytes := make([]byte, stateLength)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", errors.Wrap(err, "Service.CreateState rand.Read")
	}
	state := base64.RawURLEncoding.EncodeToString(stateBytes)

	now := s.nowFunc()
	record := &Record{
		State:       state,
		Provider:    provider,
		RedirectURL: redirectURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return "", errors.Wrap(err, "Service.CreateState repo.Create")
	}

	s.logger.Debug().Str("provider", provider).Msg("oauth state created")
	return state, nil
}

// ValidateState consumes the state during callback validation. Each
// failure mode is distinct: a forged, replayed or cross-provider callback
// must be distinguishable in logs from a simple timeout.
func (s *Service) ValidateState(ctx context.Context, state, expectedProvider string) (redirectURL string, err error) {
	if state == "" {
		return "", autherrors.ErrMissingState
	}

	record, err := s.repo.Get(ctx, state)
	if err != nil {
		if errors.Is(err, autherrors.ErrNotFound) {
			s.logger.Warn().Str("provider", expectedProvider).Msg("unknown oauth state presented")
			return "", autherrors.ErrInvalidState
		}
		return "", errors.Wrap(err, "Service.ValidateState Get")
	}

	if record.Provider != expectedProvider {
		s.logger.Warn().
			Str("expected", expectedProvider).
			Str("bound", record.Provider).
			Msg("oauth state provider mismatch")
		return "", autherrors.ErrProviderMismatch
	}

	if record.UsedAt != nil {
		s.logger.Warn().Str("provider", expectedProvider).Msg("oauth state replayed")
		return "", autherrors.ErrStateAlreadyUsed
	}

	now := s.nowFunc()
	if record.ExpiresAt.Before(now) {
		return "", autherrors.ErrStateExpired
	}

	marked, err := s.repo.MarkUsed(ctx, state, now)
	if err != nil {
		return "", errors.Wrap(err, "Service.ValidateState MarkUsed")
	}
	if !marked {
		// Lost a race with a concurrent callback using the same state.
		s.logger.Warn().Str("provider", expectedProvider).Msg("oauth state replayed")
		return "", autherrors.ErrStateAlreadyUsed
	}

	return record.RedirectURL, nil
}

// CleanupExpired removes states past their expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, s.nowFunc())
	if err != nil {
		return 0, errors.Wrap(err, "Service.CleanupExpired")
	}
	s.logger.Debug().Int64("deleted", count).Msg("expired oauth states removed")
	return count, nil
}
