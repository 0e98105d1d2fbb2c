package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store for tests and DB-less dev mode.
//
// InTx serializes all transactions behind one mutex, which trivially
// satisfies the rotation-serialization contract; on error the pre-fn
// snapshot is restored so failed transactions roll back like the real
// store.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]Record)}
}

func (s *MemoryStore) InTx(_ context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := maps.Clone(s.byHash)
	if err := fn(&memoryTx{s: s}); err != nil {
		s.byHash = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, now time.Time, userID string, cc ClientContext, refreshHash string, expiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{s: s}).Create(ctx, now, userID, cc, refreshHash, expiresAt)
}

func (s *MemoryStore) GetByRefreshHashForUpdate(ctx context.Context, refreshHash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{s: s}).GetByRefreshHashForUpdate(ctx, refreshHash)
}

func (s *MemoryStore) DeleteByRefreshHash(ctx context.Context, refreshHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{s: s}).DeleteByRefreshHash(ctx, refreshHash)
}

func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{s: s}).DeleteAllForUser(ctx, userID)
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{s: s}).DeleteExpired(ctx, now)
}

// CountForUser reports live records owned by userID. Test helper.
func (s *MemoryStore) CountForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.byHash {
		if rec.UserID == userID {
			n++
		}
	}
	return n
}

// Len reports the total number of records. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// memoryTx is the unlocked view used while the store mutex is held.
type memoryTx struct {
	s *MemoryStore
}

func (t *memoryTx) InTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memoryTx) Create(_ context.Context, now time.Time, userID string, cc ClientContext, refreshHash string, expiresAt time.Time) (string, error) {
	id := ulid.Make().String()

	rec := Record{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: refreshHash,
		IssuedAt:         now,
		ExpiresAt:        expiresAt,
	}
	if cc.UserAgent != "" {
		ua := cc.UserAgent
		rec.UserAgent = &ua
	}
	if cc.IP != nil {
		ip := cc.IP
		rec.IP = &ip
	}

	t.s.byHash[refreshHash] = rec
	return id, nil
}

func (t *memoryTx) GetByRefreshHashForUpdate(_ context.Context, refreshHash string) (Record, error) {
	rec, ok := t.s.byHash[refreshHash]
	if !ok {
		return Record{}, ErrSessionNotFound
	}
	return rec, nil
}

func (t *memoryTx) DeleteByRefreshHash(_ context.Context, refreshHash string) (bool, error) {
	if _, ok := t.s.byHash[refreshHash]; !ok {
		return false, nil
	}
	delete(t.s.byHash, refreshHash)
	return true, nil
}

func (t *memoryTx) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	var n int64
	for hash, rec := range t.s.byHash {
		if rec.UserID == userID {
			delete(t.s.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for hash, rec := range t.s.byHash {
		if !rec.ExpiresAt.After(now) {
			delete(t.s.byHash, hash)
			n++
		}
	}
	return n, nil
}
