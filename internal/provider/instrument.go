package provider

import (
	"context"
	"time"

	"tako/internal/domain"
	"tako/internal/metrics"
)

// Instrumented records latency and failures of a Generator.
type Instrumented struct {
	next domain.Generator
}

func NewInstrumented(next domain.Generator) *Instrumented {
	return &Instrumented{next: next}
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, prompt)
	metrics.GenerationLatency(i.next.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationErrors(i.next.Name()).Inc()
	}
	return out, err
}

// InstrumentedAgent records latency and failures of an Agent.
type InstrumentedAgent struct {
	next domain.Agent
}

func NewInstrumentedAgent(next domain.Agent) *InstrumentedAgent {
	return &InstrumentedAgent{next: next}
}

func (i *InstrumentedAgent) Name() string { return i.next.Name() }

func (i *InstrumentedAgent) Invoke(ctx context.Context, sessionID, input string) (string, error) {
	start := time.Now()
	out, err := i.next.Invoke(ctx, sessionID, input)
	metrics.GenerationLatency(i.next.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationErrors(i.next.Name()).Inc()
	}
	return out, err
}
