package refresh

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

const tokenLength = 64 // bytes of entropy per raw token

// Revocation reasons recorded on refresh token rows.
const (
	ReasonUserLogout       = "user_logout"
	ReasonLogoutAllDevices = "logout_all_devices"
	ReasonSecurity         = "security"
	ReasonExpired          = "expired"
	ReasonReuseDetected    = "token_reuse_detected"
)

// Metadata captures the client context a token was issued or exchanged under.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// Rotation is the result of a successful token exchange.
type Rotation struct {
	UserID     string
	NewToken   string
	NewTokenID string
}

// Manager implements the refresh token rotation protocol: single-use
// tokens, reuse detection, and family revocation when reuse is observed.
type Manager struct {
	repo    Repo
	expiry  time.Duration
	nowFunc func() time.Time
	logger  zerolog.Logger
}

type ManagerOption func(*Manager)

// WithNowFunc sets the time source (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithExpiry overrides the default 30 day refresh token lifetime
func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:    repo,
		expiry:  30 * 24 * time.Hour,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create generates a new refresh token for the user, persists its hash and
// returns the raw token. This is the only moment the raw value exists in
// cleartext; callers must hand it to the client and forget it.
func (m *Manager) Create(ctx context.Context, userID string, metadata Metadata) (rawToken, recordID string, err error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", errors.Wrap(err, "Manager.Create rand.Read")
	}
	rawToken = hex.EncodeToString(tokenBytes)

	now := m.nowFunc()
	record := &Record{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: hashToken(rawToken),
		CreatedAt: now,
		ExpiresAt: now.Add(m.expiry),
		IPAddress: metadata.IPAddress,
		UserAgent: metadata.UserAgent,
	}
	if err := m.repo.Create(ctx, record); err != nil {
		return "", "", errors.Wrap(err, "Manager.Create repo.Create")
	}

	m.logger.Debug().
		Str("user_id", userID).
		Str("token_id", record.ID).
		Time("expires_at", record.ExpiresAt).
		Msg("refresh token created")

	return rawToken, record.ID, nil
}

// ValidateAndRotate exchanges a refresh token for a new one. The presented
// token is single-use: a second presentation means replay or theft, and the
// whole rotation family is revoked before the caller is rejected.
func (m *Manager) ValidateAndRotate(ctx context.Context, rawToken string, metadata Metadata) (*Rotation, error) {
	record, err := m.repo.GetByHash(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, autherrors.ErrNotFound) {
			m.logger.Warn().Msg("refresh token not found")
			return nil, autherrors.ErrInvalidRefreshToken
		}
		return nil, errors.Wrap(err, "Manager.ValidateAndRotate GetByHash")
	}

	if record.RevokedAt != nil {
		m.logger.Warn().
			Str("token_id", record.ID).
			Str("reason", record.RevokedReason).
			Msg("refresh token already revoked")
		return nil, autherrors.ErrRefreshTokenRevoked
	}

	if record.UsedAt != nil {
		return nil, m.handleReuse(ctx, record)
	}

	now := m.nowFunc()
	if record.ExpiresAt.Before(now) {
		m.logger.Warn().Str("token_id", record.ID).Msg("refresh token expired")
		if _, err := m.repo.RevokeByHash(ctx, record.TokenHash, now, ReasonExpired); err != nil {
			return nil, errors.Wrap(err, "Manager.ValidateAndRotate revoke expired")
		}
		return nil, autherrors.ErrRefreshTokenExpired
	}

	// Consume the token. This conditional update is the consistency point:
	// of two concurrent rotations of the same token, at most one wins here,
	// and the loser observes used_at set and lands in the reuse branch.
	marked, err := m.repo.MarkUsed(ctx, record.ID, now)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.ValidateAndRotate MarkUsed")
	}
	if !marked {
		current, err := m.repo.GetByID(ctx, record.ID)
		if err != nil {
			return nil, errors.Wrap(err, "Manager.ValidateAndRotate GetByID")
		}
		if current.RevokedAt != nil {
			return nil, autherrors.ErrRefreshTokenRevoked
		}
		return nil, m.handleReuse(ctx, current)
	}

	newToken, newTokenID, err := m.Create(ctx, record.UserID, metadata)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.ValidateAndRotate Create")
	}

	if err := m.repo.SetReplacedBy(ctx, record.ID, newTokenID); err != nil {
		return nil, errors.Wrap(err, "Manager.ValidateAndRotate SetReplacedBy")
	}

	m.logger.Debug().
		Str("user_id", record.UserID).
		Str("old_token_id", record.ID).
		Str("new_token_id", newTokenID).
		Msg("refresh token rotated")

	return &Rotation{
		UserID:     record.UserID,
		NewToken:   newToken,
		NewTokenID: newTokenID,
	}, nil
}

// Revoke revokes a single refresh token, typically on logout. Idempotent:
// an already-revoked or unknown token is not an error.
func (m *Manager) Revoke(ctx context.Context, rawToken, reason string) error {
	count, err := m.repo.RevokeByHash(ctx, hashToken(rawToken), m.nowFunc(), reason)
	if err != nil {
		return errors.Wrap(err, "Manager.Revoke")
	}
	m.logger.Debug().Int64("revoked", count).Str("reason", reason).Msg("refresh token revoke")
	return nil
}

// RevokeAllForUser revokes every live refresh token for the user, used for
// logout-all-devices and account suspension.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	count, err := m.repo.RevokeAllForUser(ctx, userID, m.nowFunc(), reason)
	if err != nil {
		return 0, errors.Wrap(err, "Manager.RevokeAllForUser")
	}
	m.logger.Info().
		Str("user_id", userID).
		Int64("revoked", count).
		Str("reason", reason).
		Msg("revoked all refresh tokens for user")
	return count, nil
}

// CleanupExpired hard-deletes records past expiry regardless of revocation
// state. Run periodically.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := m.repo.DeleteExpired(ctx, m.nowFunc())
	if err != nil {
		return 0, errors.Wrap(err, "Manager.CleanupExpired")
	}
	m.logger.Debug().Int64("deleted", count).Msg("expired refresh tokens removed")
	return count, nil
}

// handleReuse responds to a second presentation of an already-consumed
// token: every ancestor and descendant in the rotation chain is revoked so
// a stolen token cannot be laundered through its replacements.
func (m *Manager) handleReuse(ctx context.Context, record *Record) error {
	m.logger.Error().
		Str("token_id", record.ID).
		Str("user_id", record.UserID).
		Msg("refresh token reuse detected")

	ids, err := m.collectFamily(ctx, record)
	if err != nil {
		return errors.Wrap(err, "Manager.handleReuse collectFamily")
	}

	count, err := m.repo.RevokeMany(ctx, ids, m.nowFunc(), ReasonReuseDetected)
	if err != nil {
		return errors.Wrap(err, "Manager.handleReuse RevokeMany")
	}
	m.logger.Warn().
		Int64("revoked", count).
		Int("family_size", len(ids)).
		Msg("revoked token family after reuse")

	return autherrors.ErrRefreshTokenReused
}

// collectFamily walks the ReplacedBy chain in both directions from the
// record. The walk is transitive: a long-lived chain is revoked end to end,
// not just one hop either side of the reused token.
func (m *Manager) collectFamily(ctx context.Context, record *Record) ([]string, error) {
	seen := map[string]bool{record.ID: true}
	ids := []string{record.ID}

	// Descendants: follow ReplacedBy forward.
	current := record
	for current.ReplacedBy != "" && !seen[current.ReplacedBy] {
		next, err := m.repo.GetByID(ctx, current.ReplacedBy)
		if err != nil {
			if errors.Is(err, autherrors.ErrNotFound) {
				break
			}
			return nil, err
		}
		seen[next.ID] = true
		ids = append(ids, next.ID)
		current = next
	}

	// Ancestors: records that were replaced by something we have seen.
	frontier := []string{record.ID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		predecessors, err := m.repo.GetPredecessors(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, p := range predecessors {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			ids = append(ids, p.ID)
			frontier = append(frontier, p.ID)
		}
	}

	return ids, nil
}

// hashToken returns the SHA-256 hex digest stored in place of the raw token.
func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
