package refresh

import (
	"context"
	"time"
)

// Record is the server-side row for one refresh token. The raw token is
// never persisted; only its SHA-256 hash. ReplacedBy links each rotation
// to its successor, forming the token family used for reuse response.
type Record struct {
	ID            string
	UserID        string
	TokenHash     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UsedAt        *time.Time
	RevokedAt     *time.Time
	RevokedReason string
	ReplacedBy    string
	IPAddress     string
	UserAgent     string
}

// Usable reports whether the record can still be exchanged at the given time.
func (r *Record) Usable(now time.Time) bool {
	return r.RevokedAt == nil && r.UsedAt == nil && r.ExpiresAt.After(now)
}

// Repo manages persistence of refresh token records. Conditional updates
// (MarkUsed, Revoke) must be atomic per row; the manager's reuse detection
// relies on at most one caller winning MarkUsed for a record.
type Repo interface {
	Create(ctx context.Context, record *Record) error
	GetByHash(ctx context.Context, tokenHash string) (*Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	// GetPredecessors returns records whose ReplacedBy points at the given
	// ID, i.e. the records the given one replaced.
	GetPredecessors(ctx context.Context, id string) ([]*Record, error)
	// MarkUsed sets used_at only if the record is not yet used and not
	// revoked. Returns false when the condition did not hold.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	SetReplacedBy(ctx context.Context, id, replacedByID string) error
	// RevokeByHash revokes the matching non-revoked record, if any.
	RevokeByHash(ctx context.Context, tokenHash string, at time.Time, reason string) (int64, error)
	RevokeMany(ctx context.Context, ids []string, at time.Time, reason string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time, reason string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
