package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tako/internal/config"
	"tako/internal/domain"
)

type stubGenerator struct {
	name  string
	out   string
	err   error
	calls int
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Generate(context.Context, string) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestFailover_UsesFirstBackend(t *testing.T) {
	p1 := &stubGenerator{name: "primary", out: "from-primary"}
	p2 := &stubGenerator{name: "secondary", out: "from-secondary"}
	f := NewFailover([]domain.Generator{p1, p2}, testLogger())

	out, err := f.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from-primary" {
		t.Fatalf("expected 'from-primary', got %q", out)
	}
	if p2.calls != 0 {
		t.Fatalf("secondary should not be called, got %d calls", p2.calls)
	}
}

func TestFailover_FallsBackOnError(t *testing.T) {
	p1 := &stubGenerator{name: "primary", err: errors.New("throttled")}
	p2 := &stubGenerator{name: "secondary", out: "from-secondary"}
	f := NewFailover([]domain.Generator{p1, p2}, testLogger())

	out, err := f.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from-secondary" {
		t.Fatalf("expected 'from-secondary', got %q", out)
	}
}

func TestFailover_AllBackendsFail(t *testing.T) {
	last := errors.New("second down")
	f := NewFailover([]domain.Generator{
		&stubGenerator{name: "a", err: errors.New("first down")},
		&stubGenerator{name: "b", err: last},
	}, testLogger())

	_, err := f.Generate(context.Background(), "x")
	if !errors.Is(err, last) {
		t.Fatalf("expected wrapped last error, got %v", err)
	}
}

func TestFailover_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p2 := &stubGenerator{name: "b", out: "late"}
	f := NewFailover([]domain.Generator{&stubGenerator{name: "a", err: context.Canceled}, p2}, testLogger())

	if _, err := f.Generate(ctx, "x"); err == nil {
		t.Fatal("expected error")
	}
	if p2.calls != 0 {
		t.Fatalf("fallback should not run after cancellation, got %d calls", p2.calls)
	}
}

func TestFailover_Name(t *testing.T) {
	f := NewFailover([]domain.Generator{&stubGenerator{name: "bedrock-flow"}, &stubGenerator{name: "genai"}}, testLogger())
	if got := f.Name(); got != "failover(bedrock-flow→genai)" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestFactory_FallbackChain(t *testing.T) {
	cfg := config.Defaults()
	cfg.Generation.Backend = "primary-test"
	cfg.Generation.Fallback = []string{"mock"}
	cfg.Generation.Mock.Default = "from-mock"

	f := NewFactory(cfg, testLogger())
	f.RegisterConstructor("primary-test", func(context.Context, *Factory) (domain.Generator, error) {
		return &stubGenerator{name: "primary-test", err: errors.New("unavailable")}, nil
	})

	g, err := f.Generator(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(g.Name(), "failover(") {
		t.Fatalf("expected a failover chain, got %q", g.Name())
	}
	out, err := g.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from-mock" {
		t.Fatalf("expected 'from-mock', got %q", out)
	}
}

func TestOpenAI_RetriesTransientStatus(t *testing.T) {
	defer func(d time.Duration) { retryBaseDelay = d }(retryBaseDelay)
	retryBaseDelay = time.Millisecond

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, MaxRetries: 2, Logger: testLogger()})
	out, err := o.Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || hits.Load() != 3 {
		t.Fatalf("got %q after %d attempts", out, hits.Load())
	}
}

func TestOpenAI_RetriesExhausted(t *testing.T) {
	defer func(d time.Duration) { retryBaseDelay = d }(retryBaseDelay)
	retryBaseDelay = time.Millisecond

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIBase: srv.URL, MaxRetries: 1, Logger: testLogger()})
	_, err := o.Generate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected 502 error, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestFactory_DefaultOpenAIMakesOneAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Generation.Backend = "openai"
	cfg.Generation.OpenAI.APIBase = srv.URL

	g, err := NewFactory(cfg, testLogger()).Generator(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 500")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly 1 attempt with default config, got %d", hits.Load())
	}
}
