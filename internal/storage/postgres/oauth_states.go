package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate"
	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

// OAuthStateRepo implements oauthstate.Repo on Postgres.
type OAuthStateRepo struct {
	db *sql.DB
}

func (r *OAuthStateRepo) Create(ctx context.Context, record *oauthstate.Record) error {
	query := `INSERT INTO oauth_states (state, provider, redirect_url, created_at, expires_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		record.State, record.Provider, record.RedirectURL,
		record.CreatedAt, record.ExpiresAt, nullTime(record.UsedAt),
	)
	if err != nil {
		return errors.Wrap(err, "OAuthStateRepo.Create")
	}
	return nil
}

func (r *OAuthStateRepo) Get(ctx context.Context, state string) (*oauthstate.Record, error) {
	query := `SELECT state, provider, redirect_url, created_at, expires_at, used_at
		FROM oauth_states WHERE state = $1`

	var record oauthstate.Record
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, state).Scan(
		&record.State, &record.Provider, &record.RedirectURL,
		&record.CreatedAt, &record.ExpiresAt, &usedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "OAuthStateRepo.Get")
	}
	if usedAt.Valid {
		record.UsedAt = &usedAt.Time
	}
	return &record, nil
}

// MarkUsed consumes the state. The used_at IS NULL guard makes each state
// single-use even under concurrent callbacks.
func (r *OAuthStateRepo) MarkUsed(ctx context.Context, state string, at time.Time) (bool, error) {
	query := `UPDATE oauth_states SET used_at = $2 WHERE state = $1 AND used_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, state, at)
	if err != nil {
		return false, errors.Wrap(err, "OAuthStateRepo.MarkUsed")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "OAuthStateRepo.MarkUsed RowsAffected")
	}
	return affected == 1, nil
}

func (r *OAuthStateRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM oauth_states WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, errors.Wrap(err, "OAuthStateRepo.DeleteExpired")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "OAuthStateRepo.DeleteExpired RowsAffected")
	}
	return affected, nil
}

var _ oauthstate.Repo = (*OAuthStateRepo)(nil)
