// Package router maps a classified intent to exactly one resolver.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tako/internal/domain"
)

// ErrConfiguration marks failures with no safe default, such as a missing
// prompt template. The dispatcher aborts on it.
var ErrConfiguration = errors.New("resolver configuration")

// Request is what a resolver sees of the inbound event.
type Request struct {
	UserID   string
	Message  string
	Analysis domain.Analysis
}

// Resolver produces a normalized Resolution with one external call.
// Upstream failures are absorbed into canned answers; only configuration
// failures are returned as errors.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (domain.Resolution, error)
}

// Router holds one resolver per intent, fallback included.
type Router struct {
	resolvers [domain.NumIntents]Resolver
	logger    *slog.Logger
}

// New builds a Router. Every intent in domain.Intents must have a resolver.
func New(resolvers map[domain.Intent]Resolver, logger *slog.Logger) (*Router, error) {
	r := &Router{logger: logger}
	var missing []string
	for _, intent := range domain.Intents() {
		res, ok := resolvers[intent]
		if !ok || res == nil {
			missing = append(missing, intent.String())
			continue
		}
		r.resolvers[intent] = res
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no resolver for intents: %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return r, nil
}

// Route runs the resolver for intent. Out-of-range values use fallback.
func (r *Router) Route(ctx context.Context, intent domain.Intent, req Request) (domain.Resolution, error) {
	if intent < 0 || intent >= domain.NumIntents {
		intent = domain.IntentFallback
	}
	res, err := r.resolvers[intent].Resolve(ctx, req)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("route %s: %w", intent, err)
	}
	r.logger.Debug("intent resolved",
		"intent", intent.String(),
		"agent", res.Agent,
		"confidence", res.Confidence,
	)
	return res, nil
}
