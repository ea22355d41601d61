package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tako/internal/domain"
	"tako/internal/prompts"
)

// AgentName is the name reported in debug output for intent's resolver.
func AgentName(intent domain.Intent) string {
	return intent.String() + "_agent"
}

// FlowResolver renders a named prompt and sends it to a Generator.
type FlowResolver struct {
	agent     string
	prompt    string
	prompts   domain.PromptStore
	gen       domain.Generator
	apologies Apologies
	logger    *slog.Logger
}

// FlowConfig configures a FlowResolver.
type FlowConfig struct {
	Intent    domain.Intent
	Prompts   domain.PromptStore
	Generator domain.Generator
	// Apologies defaults to DefaultApologies when zero.
	Apologies Apologies
	Logger    *slog.Logger
}

// NewFlowResolver builds a resolver using the "<intent>_agent" template.
func NewFlowResolver(cfg FlowConfig) *FlowResolver {
	if cfg.Apologies == (Apologies{}) {
		cfg.Apologies = DefaultApologies
	}
	name := AgentName(cfg.Intent)
	return &FlowResolver{
		agent:     name,
		prompt:    name,
		prompts:   cfg.Prompts,
		gen:       cfg.Generator,
		apologies: cfg.Apologies,
		logger:    cfg.Logger,
	}
}

// Resolve fails only when the template is missing; generation errors become
// the canned apology.
func (r *FlowResolver) Resolve(ctx context.Context, req Request) (domain.Resolution, error) {
	tmpl, err := r.prompts.Load(r.prompt)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	raw, err := r.gen.Generate(ctx, prompts.Render(tmpl, req.Message))
	if err != nil {
		r.logger.Warn("resolver generation failed",
			"agent", r.agent,
			"generator", r.gen.Name(),
			"error", err,
		)
		raw = ""
	}
	return Normalize(r.agent, raw, r.apologies), nil
}

// AgentResolver sends the user's message to a specialized agent with a
// per-user session.
type AgentResolver struct {
	intent    domain.Intent
	agentName string
	agent     domain.Agent
	apologies Apologies
	logger    *slog.Logger
}

// AgentConfig configures an AgentResolver.
type AgentConfig struct {
	Intent    domain.Intent
	Agent     domain.Agent
	Apologies Apologies
	Logger    *slog.Logger
}

// NewAgentResolver builds a resolver reporting "<intent>_agent".
func NewAgentResolver(cfg AgentConfig) *AgentResolver {
	if cfg.Apologies == (Apologies{}) {
		cfg.Apologies = DefaultApologies
	}
	return &AgentResolver{
		intent:    cfg.Intent,
		agentName: AgentName(cfg.Intent),
		agent:     cfg.Agent,
		apologies: cfg.Apologies,
		logger:    cfg.Logger,
	}
}

// Resolve never fails; invocation errors become the canned apology.
func (r *AgentResolver) Resolve(ctx context.Context, req Request) (domain.Resolution, error) {
	session := SessionID(r.intent, req.UserID)
	raw, err := r.agent.Invoke(ctx, session, req.Message)
	if err != nil {
		r.logger.Warn("agent invocation failed",
			"agent", r.agentName,
			"session_id", session,
			"error", err,
		)
		raw = ""
	}
	return Normalize(r.agentName, raw, r.apologies), nil
}

// SessionID derives a stable agent session for one user and intent:
// "tako-<intent>-<digits of user id>". Non-phone ids keep their safe
// characters instead. The result fits the 2-100 character session limit.
func SessionID(intent domain.Intent, userID string) string {
	var digits, safe strings.Builder
	for _, r := range userID {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
			safe.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '.', r == '_', r == ':', r == '-':
			safe.WriteRune(r)
		}
	}
	suffix := digits.String()
	if suffix == "" {
		suffix = safe.String()
	}
	if suffix == "" {
		suffix = "anonymous"
	}
	id := "tako-" + strings.ReplaceAll(intent.String(), "_", "-") + "-" + suffix
	if len(id) > 100 {
		id = id[:100]
	}
	return id
}
