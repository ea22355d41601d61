package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tako/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type storeFactory func(t *testing.T) domain.LockStore

func stores(t *testing.T) map[string]storeFactory {
	t.Helper()
	factories := map[string]storeFactory{
		"memory": func(t *testing.T) domain.LockStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) domain.LockStore {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "locks.db"), testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"dynamodb": func(t *testing.T) domain.LockStore {
			return NewDynamoStore(newFakeDynamo(), "tako_locks")
		},
	}
	if dsn := os.Getenv("TAKO_TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) domain.LockStore {
			_, err := MigrateUp(dsn)
			require.NoError(t, err)
			s, err := OpenPostgres(context.Background(), dsn, testLogger())
			require.NoError(t, err)
			t.Cleanup(func() {
				s.db.Exec(`DELETE FROM locks`)
				s.Close()
			})
			return s
		}
	}
	return factories
}

func TestStores_ConcurrentAcquireHasOneWinner(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(Config{Store: factory(t), Logger: testLogger()})
			ctx := context.Background()

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := m.Acquire(ctx, "u1", time.Minute)
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())

			m.Release(ctx, "u1")
			ok, err := m.Acquire(ctx, "u1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "acquire after release")
		})
	}
}

func TestStores_ExpiredLeaseIsReacquirable(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			m := NewManager(Config{Store: factory(t), Logger: testLogger(), Now: func() time.Time { return now }})
			ctx := context.Background()

			ok, err := m.Acquire(ctx, "u2", 30*time.Second)
			require.NoError(t, err)
			require.True(t, ok)

			now = now.Add(29 * time.Second)
			ok, err = m.Acquire(ctx, "u2", 30*time.Second)
			require.NoError(t, err)
			assert.False(t, ok, "lease still live")

			now = now.Add(time.Second)
			ok, err = m.Acquire(ctx, "u2", 30*time.Second)
			require.NoError(t, err)
			assert.True(t, ok, "lease expired at its deadline")
		})
	}
}

func TestStores_ReleaseIsIdempotentAndPerUser(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			m := NewManager(Config{Store: store, Logger: testLogger()})
			ctx := context.Background()

			require.NoError(t, store.Delete(ctx, "nobody"))

			ok, err := m.Acquire(ctx, "a", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = m.Acquire(ctx, "b", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "users do not contend")

			m.Release(ctx, "a")
			m.Release(ctx, "a")
			ok, err = m.Acquire(ctx, "b", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "releasing a leaves b held")
		})
	}
}

type failingStore struct{ err error }

func (f failingStore) CreateIfAbsent(context.Context, domain.Lease, time.Time) (bool, error) {
	return false, f.err
}

func (f failingStore) Delete(context.Context, string) error { return f.err }

func TestManager_AcquireFailsClosed(t *testing.T) {
	m := NewManager(Config{Store: failingStore{err: errors.New("connection refused")}, Logger: testLogger()})

	ok, err := m.Acquire(context.Background(), "u1", time.Minute)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestManager_ReleaseSwallowsErrors(t *testing.T) {
	m := NewManager(Config{Store: failingStore{err: errors.New("timeout")}, Logger: testLogger()})
	assert.NotPanics(t, func() { m.Release(context.Background(), "u1") })
}

func TestManager_RejectsEmptyUser(t *testing.T) {
	m := NewManager(Config{Store: NewMemoryStore(), Logger: testLogger()})
	_, err := m.Acquire(context.Background(), "  ", time.Minute)
	assert.ErrorIs(t, err, ErrStore)
}

func TestManager_DefaultTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore()
	m := NewManager(Config{Store: store, Logger: testLogger(), Now: func() time.Time { return now }})

	ok, err := m.Acquire(context.Background(), "u", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now.Add(DefaultTTL), store.leases["u"].ExpiresAt)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "locks.db"), testLogger())
	require.NoError(t, err)
	defer sqlStore.Close()

	purgers := map[string]interface {
		domain.LockStore
		domain.LockPurger
	}{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
	for name, s := range purgers {
		t.Run(name, func(t *testing.T) {
			for key, exp := range map[string]time.Duration{"old": -time.Minute, "edge": 0, "live": time.Minute} {
				ok, err := s.CreateIfAbsent(ctx, domain.Lease{Key: key, Owner: "o", ExpiresAt: now.Add(exp)}, now.Add(-time.Hour))
				require.NoError(t, err)
				require.True(t, ok)
			}
			n, err := s.PurgeExpired(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			ok, err := s.CreateIfAbsent(ctx, domain.Lease{Key: "live", Owner: "p", ExpiresAt: now.Add(time.Hour)}, now)
			require.NoError(t, err)
			assert.False(t, ok, "live lease survives the purge")
		})
	}
}
