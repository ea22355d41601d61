package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tako/internal/domain"
)

// Failover tries generation backends in order and returns the first
// successful output.
type Failover struct {
	generators []domain.Generator
	logger     *slog.Logger
}

// NewFailover creates a failover chain. At least one generator is required.
func NewFailover(generators []domain.Generator, logger *slog.Logger) *Failover {
	return &Failover{
		generators: generators,
		logger:     logger,
	}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.generators))
	for i, g := range f.generators {
		names[i] = g.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

// Generate stops early when ctx is done; the remaining backends would fail
// the same way.
func (f *Failover) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, g := range f.generators {
		out, err := g.Generate(ctx, prompt)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback backend", "backend", g.Name(), "attempt", i+1)
			}
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		f.logger.Warn("failover: backend failed, trying next", "backend", g.Name(), "attempt", i+1, "err", err)
	}
	return "", fmt.Errorf("all generation backends failed: %w", lastErr)
}
