package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
	"github.com/CodeGachi/SyncNapse-sub001/token/refresh"
)

// RefreshTokenRepo implements refresh.Repo on Postgres. The conditional
// updates lean on single-statement atomicity, so concurrent rotations of
// the same token resolve without explicit locking.
type RefreshTokenRepo struct {
	db *sql.DB
}

const refreshTokenColumns = `id, user_id, token_hash, created_at, expires_at,
	used_at, revoked_at, revoked_reason, replaced_by, ip_address, user_agent`

func (r *RefreshTokenRepo) Create(ctx context.Context, record *refresh.Record) error {
	query := `INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.TokenHash, record.CreatedAt, record.ExpiresAt,
		nullTime(record.UsedAt), nullTime(record.RevokedAt), record.RevokedReason,
		record.ReplacedBy, record.IPAddress, record.UserAgent,
	)
	if err != nil {
		return errors.Wrap(err, "RefreshTokenRepo.Create")
	}
	return nil
}

func (r *RefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*refresh.Record, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash), "RefreshTokenRepo.GetByHash")
}

func (r *RefreshTokenRepo) GetByID(ctx context.Context, id string) (*refresh.Record, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "RefreshTokenRepo.GetByID")
}

func (r *RefreshTokenRepo) GetPredecessors(ctx context.Context, id string) ([]*refresh.Record, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE replaced_by = $1`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrap(err, "RefreshTokenRepo.GetPredecessors")
	}
	defer rows.Close()

	var records []*refresh.Record
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "RefreshTokenRepo.GetPredecessors scan")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "RefreshTokenRepo.GetPredecessors rows")
	}
	return records, nil
}

// MarkUsed consumes the token. The WHERE clause is the rotation protocol's
// consistency point: only an unused, unrevoked row can be consumed, and
// exactly one concurrent caller observes an affected row.
func (r *RefreshTokenRepo) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE refresh_tokens SET used_at = $2
		WHERE id = $1 AND used_at IS NULL AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, errors.Wrap(err, "RefreshTokenRepo.MarkUsed")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "RefreshTokenRepo.MarkUsed RowsAffected")
	}
	return affected == 1, nil
}

func (r *RefreshTokenRepo) SetReplacedBy(ctx context.Context, id, replacedByID string) error {
	query := `UPDATE refresh_tokens SET replaced_by = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, replacedByID); err != nil {
		return errors.Wrap(err, "RefreshTokenRepo.SetReplacedBy")
	}
	return nil
}

func (r *RefreshTokenRepo) RevokeByHash(ctx context.Context, tokenHash string, at time.Time, reason string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked_at = $2, revoked_reason = $3
		WHERE token_hash = $1 AND revoked_at IS NULL`
	return r.exec(ctx, "RefreshTokenRepo.RevokeByHash", query, tokenHash, at, reason)
}

func (r *RefreshTokenRepo) RevokeMany(ctx context.Context, ids []string, at time.Time, reason string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE refresh_tokens SET revoked_at = $2, revoked_reason = $3
		WHERE id = ANY($1) AND revoked_at IS NULL`
	return r.exec(ctx, "RefreshTokenRepo.RevokeMany", query, ids, at, reason)
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time, reason string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL`
	return r.exec(ctx, "RefreshTokenRepo.RevokeAllForUser", query, userID, at, reason)
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`
	return r.exec(ctx, "RefreshTokenRepo.DeleteExpired", query, before)
}

func (r *RefreshTokenRepo) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, op+" RowsAffected")
	}
	return affected, nil
}

func (r *RefreshTokenRepo) scanOne(row *sql.Row, op string) (*refresh.Record, error) {
	record, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrNotFound
		}
		return nil, errors.Wrap(err, op)
	}
	return record, nil
}

func scanRecord(scan func(dest ...any) error) (*refresh.Record, error) {
	var record refresh.Record
	var usedAt, revokedAt sql.NullTime
	err := scan(
		&record.ID, &record.UserID, &record.TokenHash, &record.CreatedAt, &record.ExpiresAt,
		&usedAt, &revokedAt, &record.RevokedReason, &record.ReplacedBy,
		&record.IPAddress, &record.UserAgent,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		record.UsedAt = &usedAt.Time
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	return &record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ refresh.Repo = (*RefreshTokenRepo)(nil)
