// Package lock implements the per-user single-flight lock and its stores.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tako/internal/domain"
	"tako/internal/metrics"
)

// ErrStore wraps lock store failures other than contention.
var ErrStore = errors.New("lock store")

// DefaultTTL is used when Acquire is called with a non-positive ttl.
const DefaultTTL = 60 * time.Second

// Manager acquires and releases per-user leases on a LockStore.
type Manager struct {
	store  domain.LockStore
	logger *slog.Logger
	now    func() time.Time
}

// Config configures a Manager.
type Config struct {
	Store  domain.LockStore
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewManager wraps a lock store.
func NewManager(cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{store: cfg.Store, logger: cfg.Logger, now: cfg.Now}
}

// Acquire takes the lease for userID. It returns false when another live
// lease exists. Any other store failure is returned wrapped in ErrStore and
// must be treated as fatal by the caller.
func (m *Manager) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("%w: empty user id", ErrStore)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.now()
	lease := domain.Lease{
		Key:       userID,
		Owner:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
	ok, err := m.store.CreateIfAbsent(ctx, lease, now)
	if err != nil {
		return false, fmt.Errorf("%w: acquire %s: %w", ErrStore, userID, err)
	}
	if !ok {
		metrics.LockContention.Inc()
		m.logger.Debug("lock held by another invocation", "user_id", userID)
	}
	return ok, nil
}

// Release deletes the lease for userID. Failures are logged and otherwise
// ignored; the record then lives until it expires.
func (m *Manager) Release(ctx context.Context, userID string) {
	if err := m.store.Delete(ctx, userID); err != nil {
		metrics.LockReleaseErrors.Inc()
		m.logger.Error("lock release failed", "user_id", userID, "err", err)
	}
}
