package lock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"tako/internal/domain"
)

type dialect struct {
	name    string
	acquire string
	release string
	purge   string
}

var sqliteDialect = dialect{
	name: "sqlite",
	acquire: `INSERT INTO locks (user_id, owner, expires_at, acquired_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at,
			acquired_at = excluded.acquired_at
		WHERE locks.expires_at <= ?`,
	release: `DELETE FROM locks WHERE user_id = ?`,
	purge:   `DELETE FROM locks WHERE expires_at <= ?`,
}

var postgresDialect = dialect{
	name: "postgres",
	acquire: `INSERT INTO locks (user_id, owner, expires_at, acquired_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at,
			acquired_at = EXCLUDED.acquired_at
		WHERE locks.expires_at <= $5`,
	release: `DELETE FROM locks WHERE user_id = $1`,
	purge:   `DELETE FROM locks WHERE expires_at <= $1`,
}

// SQLStore keeps leases in a "locks" table. expires_at holds epoch seconds.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// OpenSQLite opens (and creates if needed) a sqlite lock database.
func OpenSQLite(dbPath string, logger *slog.Logger) (*SQLStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open lock database: %w", err)
	}
	// Single connection: the conditional upsert relies on sqlite's writer lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS locks (
		user_id     TEXT PRIMARY KEY,
		owner       TEXT NOT NULL,
		expires_at  INTEGER NOT NULL,
		acquired_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_locks_expires ON locks(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("lock schema: %w", err)
	}

	logger.Info("lock store opened", "backend", "sqlite", "path", dbPath)
	return &SQLStore{db: db, dialect: sqliteDialect, logger: logger}, nil
}

// OpenPostgres connects through pgx. The schema is managed by Migrate.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("lock store opened", "backend", "postgres")
	return &SQLStore{db: db, dialect: postgresDialect, logger: logger}, nil
}

func (s *SQLStore) CreateIfAbsent(ctx context.Context, lease domain.Lease, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.acquire,
		lease.Key, lease.Owner, lease.ExpiresAt.Unix(), now.Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("%s acquire: %w", s.dialect.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s acquire rows: %w", s.dialect.name, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.release, key); err != nil {
		return fmt.Errorf("%s release: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQLStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.purge, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("%s purge: %w", s.dialect.name, err)
	}
	return res.RowsAffected()
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
