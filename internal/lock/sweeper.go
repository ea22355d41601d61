package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"tako/internal/domain"
)

// DefaultSweepCron purges expired leases every five minutes.
const DefaultSweepCron = "*/5 * * * *"

// Sweeper periodically deletes expired leases from stores that have no
// native expiry.
type Sweeper struct {
	purger domain.LockPurger
	expr   string
	logger *slog.Logger
	now    func() time.Time
	next   func(time.Time) (time.Time, error)
}

// NewSweeper validates expr (five-field cron) and returns a Sweeper.
func NewSweeper(purger domain.LockPurger, expr string, logger *slog.Logger) (*Sweeper, error) {
	if expr == "" {
		expr = DefaultSweepCron
	}
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid sweep schedule %q", expr)
	}
	s := &Sweeper{purger: purger, expr: expr, logger: logger, now: time.Now}
	s.next = func(ref time.Time) (time.Time, error) {
		return gronx.NextTickAfter(s.expr, ref, false)
	}
	return s, nil
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("lock sweeper started", "schedule", s.expr)
	for {
		at, err := s.next(s.now())
		if err != nil {
			return fmt.Errorf("next sweep: %w", err)
		}
		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("lock sweeper stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Warn("lock sweep failed", "error", err)
		}
	}
}

// SweepOnce purges leases expired as of now.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.purger.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired locks purged", "count", n)
	}
	return n, nil
}
