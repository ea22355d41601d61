package provider

import (
	"context"
	"strings"
	"sync"
)

// Rule returns Output for prompts containing Contains.
type Rule struct {
	Contains string
	Output   string
}

// Scripted is an offline Generator that answers from fixed rules. The first
// matching rule wins; otherwise the fallback text is returned.
type Scripted struct {
	rules    []Rule
	fallback string

	mu      sync.Mutex
	prompts []string
}

func NewScripted(rules []Rule, fallback string) *Scripted {
	return &Scripted{rules: rules, fallback: fallback}
}

func (s *Scripted) Name() string { return "mock" }

func (s *Scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	for _, r := range s.rules {
		if strings.Contains(prompt, r.Contains) {
			return r.Output, nil
		}
	}
	return s.fallback, nil
}

// Invoke lets a Scripted stand in for an agent.
func (s *Scripted) Invoke(ctx context.Context, _ string, input string) (string, error) {
	return s.Generate(ctx, input)
}

// Prompts returns every prompt seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
