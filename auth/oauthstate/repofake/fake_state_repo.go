package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/CodeGachi/SyncNapse-sub001/auth/oauthstate"
	"github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

// FakeStateRepo is an in-memory oauthstate.Repo for tests.
type FakeStateRepo struct {
	mu      sync.Mutex
	records map[string]*oauthstate.Record // keyed by state string
}

func NewFakeStateRepo() *FakeStateRepo {
	return &FakeStateRepo{
		records: make(map[string]*oauthstate.Record),
	}
}

func (f *FakeStateRepo) Create(_ context.Context, record *oauthstate.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *record
	f.records[record.State] = &clone
	return nil
}

func (f *FakeStateRepo) Get(_ context.Context, state string) (*oauthstate.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[state]
	if !ok {
		return nil, errors.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *FakeStateRepo) MarkUsed(_ context.Context, state string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[state]
	if !ok || r.UsedAt != nil {
		return false, nil
	}
	usedAt := at
	r.UsedAt = &usedAt
	return true, nil
}

func (f *FakeStateRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for state, r := range f.records {
		if r.ExpiresAt.Before(before) {
			delete(f.records, state)
			count++
		}
	}
	return count, nil
}

var _ oauthstate.Repo = (*FakeStateRepo)(nil)
