package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"tako/internal/config"
	"tako/internal/domain"
)

// GeneratorConstructor builds a generation backend from config.
type GeneratorConstructor func(ctx context.Context, f *Factory) (domain.Generator, error)

// Factory creates and caches the generation backend and agents from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]GeneratorConstructor

	mu        sync.Mutex
	generator domain.Generator
	awsCfg    *aws.Config
}

// NewFactory creates a factory with the built-in backends registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]GeneratorConstructor),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a backend constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor GeneratorConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["bedrock-flow"] = func(ctx context.Context, f *Factory) (domain.Generator, error) {
		awsCfg, err := f.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		fc := f.cfg.Generation.Flow
		return NewBedrockFlow(BedrockFlowConfig{
			AWS:        awsCfg,
			FlowID:     fc.FlowID,
			AliasID:    fc.AliasID,
			InputNode:  fc.InputNode,
			OutputName: fc.OutputName,
			Logger:     f.logger,
		}), nil
	}

	f.constructors["genai"] = func(ctx context.Context, f *Factory) (domain.Generator, error) {
		gc := f.cfg.Generation.GenAI
		return NewGenAI(ctx, GenAIConfig{
			APIKey:   gc.APIKey,
			Model:    gc.Model,
			Vertex:   gc.Vertex,
			Project:  gc.Project,
			Location: gc.Location,
			Logger:   f.logger,
		})
	}

	f.constructors["openai"] = func(_ context.Context, f *Factory) (domain.Generator, error) {
		oc := f.cfg.Generation.OpenAI
		return NewOpenAI(OpenAIConfig{
			APIKey:     oc.APIKey,
			APIBase:    oc.APIBase,
			Model:      oc.Model,
			MaxRetries: f.cfg.Generation.MaxRetries,
			Timeout:    time.Duration(f.cfg.Generation.TimeoutSeconds) * time.Second,
			Logger:     f.logger,
		}), nil
	}

	f.constructors["mock"] = func(_ context.Context, f *Factory) (domain.Generator, error) {
		return f.scripted(), nil
	}
}

func (f *Factory) scripted() *Scripted {
	mc := f.cfg.Generation.Mock
	rules := make([]Rule, 0, len(mc.Rules))
	for _, r := range mc.Rules {
		rules = append(rules, Rule{Contains: r.Contains, Output: r.Output})
	}
	return NewScripted(rules, mc.Default)
}

// Generator returns the configured backend, instrumented and rate limited.
// With generation.fallback set it is a failover chain over every listed
// backend. The instance is built once and reused.
func (f *Factory) Generator(ctx context.Context) (domain.Generator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generator != nil {
		return f.generator, nil
	}

	names := append([]string{f.cfg.Generation.Backend}, f.cfg.Generation.Fallback...)
	chain := make([]domain.Generator, 0, len(names))
	for _, name := range names {
		g, err := f.build(ctx, name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, NewInstrumented(g))
	}

	g := chain[0]
	if len(chain) > 1 {
		g = NewFailover(chain, f.logger)
	}
	if n := f.cfg.Generation.RateLimitPerMinute; n > 0 {
		g = NewRateLimited(g, n)
	}
	f.logger.Info("generation backend ready", "backend", g.Name())
	f.generator = g
	return g, nil
}

func (f *Factory) build(ctx context.Context, name string) (domain.Generator, error) {
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown generation backend: %s", name)
	}
	g, err := ctor(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("generation backend %s: %w", name, err)
	}
	return g, nil
}

// Agent returns the Bedrock Agent bound by ref, or nil when ref is not
// configured. With the mock backend the scripted generator answers instead.
func (f *Factory) Agent(ctx context.Context, name string, ref config.AgentRef) (domain.Agent, error) {
	if !ref.Configured() {
		return nil, nil
	}
	if f.cfg.Generation.Backend == "mock" {
		return f.scripted(), nil
	}
	f.mu.Lock()
	awsCfg, err := f.awsConfig(ctx)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return NewInstrumentedAgent(NewBedrockAgent(BedrockAgentConfig{
		AWS:     awsCfg,
		Name:    name,
		AgentID: ref.AgentID,
		AliasID: ref.AliasID,
		Logger:  f.logger,
	})), nil
}

// awsConfig loads the shared AWS configuration once. Callers hold f.mu.
func (f *Factory) awsConfig(ctx context.Context) (aws.Config, error) {
	if f.awsCfg != nil {
		return *f.awsCfg, nil
	}
	cfg, err := LoadAWSConfig(ctx, f.cfg.AWS.Region, f.cfg.AWS.Profile)
	if err != nil {
		return aws.Config{}, err
	}
	f.awsCfg = &cfg
	return cfg, nil
}

// AWSConfig returns the shared AWS configuration used by Bedrock, for other
// AWS clients such as the DynamoDB lock store.
func (f *Factory) AWSConfig(ctx context.Context) (aws.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awsConfig(ctx)
}
