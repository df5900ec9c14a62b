package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist"
)

// BlacklistRepo implements blacklist.Repo on Postgres.
type BlacklistRepo struct {
	db *sql.DB
}

// Insert records the jti. Blacklisting the same token twice is a no-op,
// not a conflict; logout must stay idempotent.
func (r *BlacklistRepo) Insert(ctx context.Context, record *blacklist.Record) error {
	query := `INSERT INTO token_blacklist (jti, expires_at, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, record.JTI, record.ExpiresAt, record.Reason, record.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "BlacklistRepo.Insert")
	}
	return nil
}

func (r *BlacklistRepo) Exists(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "BlacklistRepo.Exists")
	}
	return exists, nil
}

func (r *BlacklistRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM token_blacklist WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, errors.Wrap(err, "BlacklistRepo.DeleteExpired")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "BlacklistRepo.DeleteExpired RowsAffected")
	}
	return affected, nil
}

var _ blacklist.Repo = (*BlacklistRepo)(nil)
