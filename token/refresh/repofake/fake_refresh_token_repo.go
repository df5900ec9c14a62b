package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/CodeGachi/SyncNapse-sub001/internal/errors"
	"github.com/CodeGachi/SyncNapse-sub001/token/refresh"
)

// FakeRefreshTokenRepo is an in-memory refresh.Repo for tests.
type FakeRefreshTokenRepo struct {
	mu      sync.Mutex
	records map[string]*refresh.Record // keyed by ID
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		records: make(map[string]*refresh.Record),
	}
}

func (f *FakeRefreshTokenRepo) Create(_ context.Context, record *refresh.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *FakeRefreshTokenRepo) GetByHash(_ context.Context, tokenHash string) (*refresh.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.TokenHash == tokenHash {
			clone := *r
			return &clone, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (f *FakeRefreshTokenRepo) GetByID(_ context.Context, id string) (*refresh.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *FakeRefreshTokenRepo) GetPredecessors(_ context.Context, id string) ([]*refresh.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*refresh.Record
	for _, r := range f.records {
		if r.ReplacedBy == id {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *FakeRefreshTokenRepo) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok || r.UsedAt != nil || r.RevokedAt != nil {
		return false, nil
	}
	usedAt := at
	r.UsedAt = &usedAt
	return true, nil
}

func (f *FakeRefreshTokenRepo) SetReplacedBy(_ context.Context, id, replacedByID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return errors.ErrNotFound
	}
	r.ReplacedBy = replacedByID
	return nil
}

func (f *FakeRefreshTokenRepo) RevokeByHash(_ context.Context, tokenHash string, at time.Time, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, r := range f.records {
		if r.TokenHash == tokenHash && r.RevokedAt == nil {
			revokedAt := at
			r.RevokedAt = &revokedAt
			r.RevokedReason = reason
			count++
		}
	}
	return count, nil
}

func (f *FakeRefreshTokenRepo) RevokeMany(_ context.Context, ids []string, at time.Time, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, id := range ids {
		r, ok := f.records[id]
		if !ok || r.RevokedAt != nil {
			continue
		}
		revokedAt := at
		r.RevokedAt = &revokedAt
		r.RevokedReason = reason
		count++
	}
	return count, nil
}

func (f *FakeRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID string, at time.Time, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, r := range f.records {
		if r.UserID == userID && r.RevokedAt == nil {
			revokedAt := at
			r.RevokedAt = &revokedAt
			r.RevokedReason = reason
			count++
		}
	}
	return count, nil
}

func (f *FakeRefreshTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, r := range f.records {
		if r.ExpiresAt.Before(before) {
			delete(f.records, id)
			count++
		}
	}
	return count, nil
}

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)
