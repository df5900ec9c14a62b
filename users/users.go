package users

import (
	"context"
	"time"
)

// User is the local account record mirrored from the user-profile store.
// Only the fields the auth layer gates on live here.
type User struct {
	ID             string
	Email          string
	DisplayName    string
	Banned         bool
	SuspendedUntil *time.Time
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// SuspendedAt reports whether the account is under an active suspension
// at the given time.
func (u *User) SuspendedAt(now time.Time) bool {
	return u.SuspendedUntil != nil && u.SuspendedUntil.After(now)
}

// Directory is the user-profile store collaborator. The auth layer never
// owns user rows; it looks them up and upserts from provider identities.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// UpsertFromIdentity creates or updates the user matching the
	// provider-supplied email and returns the stored record.
	UpsertFromIdentity(ctx context.Context, email, displayName string) (*User, error)
}
