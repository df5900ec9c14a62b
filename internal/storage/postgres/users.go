package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
	"github.com/CodeGachi/SyncNapse-sub001/users"
)

// UserRepo implements users.Directory on Postgres.
type UserRepo struct {
	db *sql.DB
}

const userColumns = `id, email, display_name, banned, suspended_until, created_at, deleted_at`

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email), "UserRepo.FindByEmail")
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "UserRepo.FindByID")
}

// UpsertFromIdentity creates the user on first login and refreshes the
// display name on subsequent ones. Ban and suspension state is never
// touched here; that belongs to moderation tooling.
func (r *UserRepo) UpsertFromIdentity(ctx context.Context, email, displayName string) (*users.User, error) {
	query := `INSERT INTO users (id, email, display_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query, uuid.New().String(), email, displayName, time.Now().UTC())
	return r.scanOne(row, "UserRepo.UpsertFromIdentity")
}

func (r *UserRepo) scanOne(row *sql.Row, op string) (*users.User, error) {
	var user users.User
	var suspendedUntil, deletedAt sql.NullTime
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Banned,
		&suspendedUntil, &user.CreatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherrors.ErrUserNotFound
		}
		return nil, errors.Wrap(err, op)
	}
	if suspendedUntil.Valid {
		user.SuspendedUntil = &suspendedUntil.Time
	}
	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}
	return &user, nil
}

var _ users.Directory = (*UserRepo)(nil)
