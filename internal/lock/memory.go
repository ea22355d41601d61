package lock

import (
	"context"
	"sync"
	"time"

	"tako/internal/domain"
)

// MemoryStore is an in-process LockStore for single-instance deployments
// and tests.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]domain.Lease
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]domain.Lease)}
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, lease domain.Lease, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.leases[lease.Key]; ok && cur.ExpiresAt.After(now) {
		return false, nil
	}
	s.leases[lease.Key] = lease
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.leases, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, l := range s.leases {
		if !l.ExpiresAt.After(now) {
			delete(s.leases, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored leases, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leases)
}
