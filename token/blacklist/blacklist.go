package blacklist

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CodeGachi/SyncNapse-sub001/token"
)

// Record marks one access token jti as revoked until the token's own
// expiry. Rows never outlive the token they block, so the blacklist stays
// bounded by the access token TTL.
type Record struct {
	JTI       string
	ExpiresAt time.Time
	Reason    string
	CreatedAt time.Time
}

// Repo manages persistence of blacklist records.
type Repo interface {
	Insert(ctx context.Context, record *Record) error
	Exists(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Decoder structurally decodes a signed token without verifying it.
type Decoder interface {
	Decode(rawToken string) (*token.Claims, error)
}

// Service is the revocation side-channel for access tokens. Blacklisting
// does not shorten a token's cryptographic validity; it is an independent
// check consulted on every request.
type Service struct {
	repo    Repo
	decoder Decoder
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

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(repo Repo, decoder Decoder, options ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		decoder: decoder,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// BlacklistToken decodes the signed token and records its jti as revoked
// until the token's own expiry. A token without a jti or exp claim has
// nothing to block; that case is logged and swallowed so logout never
// fails on a malformed token.
func (s *Service) BlacklistToken(ctx context.Context, signedToken, reason string) error {
	claims, err := s.decoder.Decode(signedToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cannot blacklist undecodable token")
		return nil
	}
	if claims.JTI == "" || claims.ExpiresAt.IsZero() {
		s.logger.Warn().Msg("token missing jti or exp claim, nothing to blacklist")
		return nil
	}

	record := &Record{
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt,
		Reason:    reason,
		CreatedAt: s.nowFunc(),
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return errors.Wrap(err, "Service.BlacklistToken Insert")
	}

	s.logger.Debug().
		Str("jti", claims.JTI).
		Time("expires_at", claims.ExpiresAt).
		Str("reason", reason).
		Msg("access token blacklisted")

	return nil
}

// IsBlacklisted reports whether the jti has been revoked.
func (s *Service) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := s.repo.Exists(ctx, jti)
	if err != nil {
		return false, errors.Wrap(err, "Service.IsBlacklisted")
	}
	return exists, nil
}

// CleanupExpired removes rows whose token has passed its natural expiry;
// those tokens are rejected by expiry anyway.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, s.nowFunc())
	if err != nil {
		return 0, errors.Wrap(err, "Service.CleanupExpired")
	}
	s.logger.Debug().Int64("deleted", count).Msg("expired blacklist rows removed")
	return count, nil
}
