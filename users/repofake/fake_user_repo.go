package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CodeGachi/SyncNapse-sub001/internal/errors"
	"github.com/CodeGachi/SyncNapse-sub001/users"
)

// FakeUserRepo is an in-memory users.Directory for tests.
type FakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*users.User // keyed by ID
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]*users.User),
	}
}

// Upsert seeds a user directly, bypassing the identity flow.
func (f *FakeUserRepo) Upsert(user *users.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *user
	f.users[user.ID] = &clone
}

func (f *FakeUserRepo) FindByEmail(_ context.Context, email string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (f *FakeUserRepo) FindByID(_ context.Context, id string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *FakeUserRepo) UpsertFromIdentity(_ context.Context, email, displayName string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u.DisplayName = displayName
			clone := *u
			return &clone, nil
		}
	}
	u := &users.User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}
	f.users[u.ID] = u
	clone := *u
	return &clone, nil
}

var _ users.Directory = (*FakeUserRepo)(nil)
