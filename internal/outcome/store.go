// Package outcome keeps an audit trail of dispatch outcomes in SQLite.
package outcome

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tako/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.OutcomeRecorder using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Record inserts one outcome. A zero CreatedAt is stamped with the current
// time.
func (s *SQLiteStore) Record(ctx context.Context, o domain.Outcome) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (invocation_id, user_id, status, intent, tone, tier, rule, agent, confidence,
		   user_message, intermediate, final_message, intermediate_sent, final_sent, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.InvocationID, o.UserID, o.Status, o.Intent, o.Tone, string(o.Tier), o.Rule, o.Agent, o.Confidence,
		o.UserMessage, o.Intermediate, o.FinalMessage, o.IntermediateSent, o.FinalSent, o.DurationMs,
		o.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	UserID string
	Tier   domain.Tier
	Limit  int
}

// List returns outcomes newest first.
func (s *SQLiteStore) List(ctx context.Context, f ListFilter) ([]domain.Outcome, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, invocation_id, user_id, status, intent, tone, tier, rule, agent, confidence,
		        user_message, intermediate, final_message, intermediate_sent, final_sent, duration_ms, created_at
		 FROM outcomes
		 WHERE (? = '' OR user_id = ?) AND (? = '' OR tier = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		f.UserID, f.UserID, string(f.Tier), string(f.Tier), f.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		var (
			o         domain.Outcome
			tier      string
			createdMs int64
		)
		if err := rows.Scan(&o.ID, &o.InvocationID, &o.UserID, &o.Status, &o.Intent, &o.Tone, &tier, &o.Rule,
			&o.Agent, &o.Confidence, &o.UserMessage, &o.Intermediate, &o.FinalMessage,
			&o.IntermediateSent, &o.FinalSent, &o.DurationMs, &createdMs); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Tier = domain.Tier(tier)
		o.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, o)
	}
	return out, rows.Err()
}

// TierCounts returns the number of recorded outcomes per escalation tier.
func (s *SQLiteStore) TierCounts(ctx context.Context) (map[domain.Tier]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tier, COUNT(*) FROM outcomes WHERE tier <> '' GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Tier]int)
	for rows.Next() {
		var (
			tier string
			n    int
		)
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[domain.Tier(tier)] = n
	}
	return counts, rows.Err()
}
