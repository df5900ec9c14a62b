// Package postgres persists the auth layer's state: refresh token rows,
// the access token blacklist and OAuth handshake states. Everything else
// the product stores lives in other services; this schema holds only what
// token validation needs.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/CodeGachi/SyncNapse-sub001/internal/storage/postgres/migrations"
)

// Store owns the database handle and hands out the per-table repositories.
type Store struct {
	db            *sql.DB
	refreshTokens *RefreshTokenRepo
	blacklist     *BlacklistRepo
	oauthStates   *OAuthStateRepo
	users         *UserRepo
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Open")
	}
	return &Store{
		db:            db,
		refreshTokens: &RefreshTokenRepo{db: db},
		blacklist:     &BlacklistRepo{db: db},
		oauthStates:   &OAuthStateRepo{db: db},
		users:         &UserRepo{db: db},
	}, nil
}

func (s *Store) Conn() *sql.DB {
	return s.db
}

func (s *Store) RefreshTokens() *RefreshTokenRepo {
	return s.refreshTokens
}

func (s *Store) Blacklist() *BlacklistRepo {
	return s.blacklist
}

func (s *Store) OAuthStates() *OAuthStateRepo {
	return s.oauthStates
}

func (s *Store) Users() *UserRepo {
	return s.users
}

// RunMigrations applies the embedded goose migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "Store.RunMigrations SetDialect")
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return errors.Wrap(err, "Store.RunMigrations Up")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
