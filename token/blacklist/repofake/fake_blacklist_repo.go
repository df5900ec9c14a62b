package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/CodeGachi/SyncNapse-sub001/token/blacklist"
)

// FakeBlacklistRepo is an in-memory blacklist.Repo for tests.
type FakeBlacklistRepo struct {
	mu      sync.Mutex
	records map[string]*blacklist.Record // keyed by JTI
}

func NewFakeBlacklistRepo() *FakeBlacklistRepo {
	return &FakeBlacklistRepo{
		records: make(map[string]*blacklist.Record),
	}
}

func (f *FakeBlacklistRepo) Insert(_ context.Context, record *blacklist.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *record
	f.records[record.JTI] = &clone
	return nil
}

func (f *FakeBlacklistRepo) Exists(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[jti]
	return ok, nil
}

func (f *FakeBlacklistRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for jti, r := range f.records {
		if r.ExpiresAt.Before(before) {
			delete(f.records, jti)
			count++
		}
	}
	return count, nil
}

var _ blacklist.Repo = (*FakeBlacklistRepo)(nil)
