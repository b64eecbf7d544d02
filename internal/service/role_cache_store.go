package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type RoleCacheStore interface {
	Get(ctx context.Context, userID int64) ([]string, bool, error)
	Set(ctx context.Context, userID int64, roles []string, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID int64) error
	InvalidateAll(ctx context.Context) error
}

type NoopRoleCacheStore struct{}

func NewNoopRoleCacheStore() *NoopRoleCacheStore {
	return &NoopRoleCacheStore{}
}

func (s *NoopRoleCacheStore) Get(context.Context, int64) ([]string, bool, error) {
	return nil, false, nil
}

func (s *NoopRoleCacheStore) Set(context.Context, int64, []string, time.Duration) error {
	return nil
}

func (s *NoopRoleCacheStore) InvalidateUser(context.Context, int64) error {
	return nil
}

func (s *NoopRoleCacheStore) InvalidateAll(context.Context) error {
	return nil
}

type roleCacheEntry struct {
	roles     []string
	expiresAt time.Time
}

// InMemoryRoleCacheStore invalidates by bumping epochs that are part of every key,
// so stale entries simply stop being addressed and age out on read.
type InMemoryRoleCacheStore struct {
	mu          sync.RWMutex
	data        map[string]roleCacheEntry
	globalEpoch uint64
	userEpoch   map[int64]uint64
}

func NewInMemoryRoleCacheStore() *InMemoryRoleCacheStore {
	return &InMemoryRoleCacheStore{
		data:      make(map[string]roleCacheEntry),
		userEpoch: make(map[int64]uint64),
	}
}

func (s *InMemoryRoleCacheStore) Get(_ context.Context, userID int64) ([]string, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	key := s.cacheKeyLocked(userID)
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]string(nil), entry.roles...), true, nil
}

func (s *InMemoryRoleCacheStore) Set(_ context.Context, userID int64, roles []string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.cacheKeyLocked(userID)] = roleCacheEntry{
		roles:     append([]string(nil), roles...),
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *InMemoryRoleCacheStore) InvalidateUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userEpoch[userID]++
	return nil
}

func (s *InMemoryRoleCacheStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalEpoch++
	return nil
}

func (s *InMemoryRoleCacheStore) cacheKeyLocked(userID int64) string {
	return buildRoleCacheKey(s.globalEpoch, s.userEpoch[userID], userID)
}

func buildRoleCacheKey(globalEpoch, userEpoch uint64, userID int64) string {
	return fmt.Sprintf("roles:g%d:u%d:user:%d", globalEpoch, userEpoch, userID)
}
