// Package dispatch sequences one inbound event through lock, analysis,
// routing, escalation, composition and delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tako/internal/analysis"
	"tako/internal/domain"
	"tako/internal/escalation"
	"tako/internal/metrics"
	"tako/internal/prompts"
	"tako/internal/router"
)

// ErrAnalysis is returned when the classification call itself fails.
var ErrAnalysis = errors.New("message analysis failed")

// DefaultNonTextNotice is sent when the user delivers audio, images or
// other non-text content.
const DefaultNonTextNotice = "Por enquanto eu só consigo entender mensagens de texto. Pode escrever sua dúvida?"

const tracerName = "tako/internal/dispatch"

// Locker is the per-user single-flight lock.
type Locker interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID string)
}

// Router resolves an intent to a draft answer.
type Router interface {
	Route(ctx context.Context, intent domain.Intent, req router.Request) (domain.Resolution, error)
}

// Composer turns a draft into the final outbound text.
type Composer interface {
	Compose(ctx context.Context, userMessage, draft string, tier domain.Tier, tone domain.Tone) string
}

// Config wires the dispatcher's collaborators. Notifier, Outcomes and
// Tracer are optional.
type Config struct {
	Locker        Locker
	LockTTL       time.Duration
	Prompts       domain.PromptStore
	Analyzer      domain.Generator
	Router        Router
	Composer      Composer
	Sender        domain.Sender
	Notifier      domain.Notifier
	Outcomes      domain.OutcomeRecorder
	NonTextNotice string
	Tracer        trace.Tracer
	Logger        *slog.Logger
	Now           func() time.Time
}

// Dispatcher handles inbound events. It holds no per-request state and is
// safe for concurrent use.
type Dispatcher struct {
	locker   Locker
	lockTTL  time.Duration
	prompts  domain.PromptStore
	analyzer domain.Generator
	router   Router
	composer Composer
	sender   domain.Sender
	notifier domain.Notifier
	outcomes domain.OutcomeRecorder
	nonText  string
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Dispatcher, filling the non-text notice, tracer and clock
// when unset.
func New(cfg Config) *Dispatcher {
	if cfg.NonTextNotice == "" {
		cfg.NonTextNotice = DefaultNonTextNotice
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		locker:   cfg.Locker,
		lockTTL:  cfg.LockTTL,
		prompts:  cfg.Prompts,
		analyzer: cfg.Analyzer,
		router:   cfg.Router,
		composer: cfg.Composer,
		sender:   cfg.Sender,
		notifier: cfg.Notifier,
		outcomes: cfg.Outcomes,
		nonText:  cfg.NonTextNotice,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Handle runs one inbound event to a terminal state. Short-circuit paths
// (ignored, locked, non-text) return a status envelope. Lock store failures
// on acquire, analysis failures and configuration failures are returned as
// errors; the lock is released on every path once it was taken.
func (d *Dispatcher) Handle(ctx context.Context, payload domain.InboundPayload) (Response, error) {
	start := d.now()
	invocationID := uuid.NewString()
	logger := d.logger.With("invocation_id", invocationID)

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("invocation_id", invocationID),
	))
	defer span.End()

	phone := strings.TrimSpace(payload.Phone)
	switch {
	case phone == "":
		return d.finish(span, logger, StatusIgnored, "missing user id"), nil
	case payload.FromMe:
		return d.finish(span, logger, StatusIgnored, "own message echo"), nil
	case !payload.HasText():
		d.deliver(ctx, logger, phone, d.nonText, "non_text_notice")
		return d.finish(span, logger, StatusNonText, "non-text message"), nil
	}

	event, ok := payload.Event()
	if !ok {
		return d.finish(span, logger, StatusIgnored, "empty message"), nil
	}
	span.SetAttributes(attribute.String("user_id", event.UserID))

	acquired, err := d.acquire(ctx, event.UserID)
	if err != nil {
		return Response{}, d.fail(span, logger, err)
	}
	if !acquired {
		return d.finish(span, logger, StatusLocked, "lock held"), nil
	}

	metrics.InFlight.Inc()
	defer func() {
		d.locker.Release(context.WithoutCancel(ctx), event.UserID)
		metrics.InFlight.Dec()
	}()

	rec := domain.Outcome{
		InvocationID: invocationID,
		UserID:       event.UserID,
		Status:       StatusProcessed,
		UserMessage:  event.RawText,
		CreatedAt:    start,
	}
	result, err := d.process(ctx, logger, event, &rec)
	if err != nil {
		return Response{}, d.fail(span, logger, err)
	}

	elapsed := d.now().Sub(start)
	rec.DurationMs = elapsed.Milliseconds()
	metrics.DispatchLatency.Observe(elapsed.Seconds())
	metrics.DispatchTotal(StatusProcessed).Inc()
	metrics.EscalationTotal(string(rec.Tier)).Inc()
	span.SetAttributes(
		attribute.String("status", StatusProcessed),
		attribute.String("tier", string(rec.Tier)),
	)

	logger.Info("dispatch outcome",
		"user_id", rec.UserID,
		"intent", rec.Intent,
		"tone", rec.Tone,
		"tier", rec.Tier,
		"rule", rec.Rule,
		"agent", rec.Agent,
		"confidence", rec.Confidence,
		"intermediate_sent", rec.IntermediateSent,
		"final_sent", rec.FinalSent,
		"duration_ms", rec.DurationMs,
	)
	d.record(ctx, logger, rec)

	return jsonResponse(http.StatusOK, result), nil
}

// process runs the locked part of the pipeline and fills rec as it goes.
func (d *Dispatcher) process(ctx context.Context, logger *slog.Logger, event domain.InboundEvent, rec *domain.Outcome) (Result, error) {
	a, err := d.analyze(ctx, event.RawText)
	if err != nil {
		return Result{}, err
	}
	rec.Intent = a.Intent.String()
	rec.Tone = string(a.Tone)
	rec.Intermediate = a.Intermediate

	if a.Intermediate != "" && a.Intent != domain.IntentFallback {
		rec.IntermediateSent = d.deliver(ctx, logger, event.UserID, a.Intermediate, "intermediate")
	}

	res, err := d.resolve(ctx, a, event)
	if err != nil {
		return Result{}, err
	}
	rec.Agent = res.Agent
	rec.Confidence = res.Confidence

	decision := escalation.Evaluate(a.Tone, a.Risks, res.Confidence)
	rec.Tier = decision.Tier
	rec.Rule = decision.Rule

	final := d.compose(ctx, event.RawText, res.DraftAnswer, decision.Tier, a.Tone)
	rec.FinalMessage = final
	if final != "" {
		rec.FinalSent = d.deliver(ctx, logger, event.UserID, final, "final")
	}

	if decision.Tier.NeedsHuman() {
		d.notify(ctx, logger, domain.EscalationAlert{
			UserID:      event.UserID,
			Intent:      a.Intent,
			Tier:        decision.Tier,
			Agent:       res.Agent,
			Confidence:  res.Confidence,
			UserMessage: event.RawText,
			DraftAnswer: res.DraftAnswer,
		})
	}

	result := Result{
		Final:      final,
		Tone:       a.Tone,
		Risks:      a.Risks,
		Escalation: decision.Tier,
		Debug:      res,
	}
	if a.Intermediate != "" {
		intermediate := a.Intermediate
		result.Intermediate = &intermediate
	}
	return result, nil
}

func (d *Dispatcher) acquire(ctx context.Context, userID string) (bool, error) {
	ctx, span := d.tracer.Start(ctx, "lock")
	defer span.End()
	ok, err := d.locker.Acquire(ctx, userID, d.lockTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire failed")
		return false, err
	}
	span.SetAttributes(attribute.Bool("acquired", ok))
	return ok, nil
}

func (d *Dispatcher) analyze(ctx context.Context, message string) (domain.Analysis, error) {
	ctx, span := d.tracer.Start(ctx, "analysis")
	defer span.End()

	tmpl, err := d.prompts.Load(analysis.PromptName)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("load analysis prompt: %w", err)
	}
	raw, err := d.analyzer.Generate(ctx, prompts.Render(tmpl, message))
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %s: %w", ErrAnalysis, d.analyzer.Name(), err)
	}
	a, err := analysis.Parse(raw)
	if err != nil {
		return domain.Analysis{}, err
	}
	span.SetAttributes(
		attribute.String("intent", a.Intent.String()),
		attribute.String("tone", string(a.Tone)),
	)
	return a, nil
}

func (d *Dispatcher) resolve(ctx context.Context, a domain.Analysis, event domain.InboundEvent) (domain.Resolution, error) {
	ctx, span := d.tracer.Start(ctx, "route", trace.WithAttributes(
		attribute.String("intent", a.Intent.String()),
	))
	defer span.End()

	res, err := d.router.Route(ctx, a.Intent, router.Request{
		UserID:   event.UserID,
		Message:  event.RawText,
		Analysis: a,
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	span.SetAttributes(
		attribute.String("agent", res.Agent),
		attribute.Float64("confidence", res.Confidence),
	)
	return res, nil
}

func (d *Dispatcher) compose(ctx context.Context, message, draft string, tier domain.Tier, tone domain.Tone) string {
	ctx, span := d.tracer.Start(ctx, "compose", trace.WithAttributes(
		attribute.String("tier", string(tier)),
		attribute.String("tone", string(tone)),
	))
	defer span.End()
	return d.composer.Compose(ctx, message, draft, tier, tone)
}

// deliver sends one outbound message. Failures are logged and counted, never
// returned.
func (d *Dispatcher) deliver(ctx context.Context, logger *slog.Logger, phone, message, kind string) bool {
	ctx, span := d.tracer.Start(ctx, "deliver", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("channel", d.sender.Name()),
	))
	defer span.End()

	if err := d.sender.Send(ctx, phone, message); err != nil {
		metrics.DeliveryFailures(d.sender.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		logger.Warn("delivery failed", "kind", kind, "channel", d.sender.Name(), "err", err)
		return false
	}
	return true
}

func (d *Dispatcher) notify(ctx context.Context, logger *slog.Logger, alert domain.EscalationAlert) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, alert); err != nil {
		logger.Warn("escalation notify failed", "tier", alert.Tier, "err", err)
	}
}

func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, rec domain.Outcome) {
	if d.outcomes == nil {
		return
	}
	if err := d.outcomes.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("outcome record failed", "err", err)
	}
}

func (d *Dispatcher) finish(span trace.Span, logger *slog.Logger, status, reason string) Response {
	metrics.DispatchTotal(status).Inc()
	span.SetAttributes(attribute.String("status", status))
	logger.Debug("dispatch short-circuited", "status", status, "reason", reason)
	return statusResponse(status)
}

func (d *Dispatcher) fail(span trace.Span, logger *slog.Logger, err error) error {
	metrics.DispatchTotal(StatusError).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "dispatch failed")
	logger.Error("dispatch failed", "err", err)
	return err
}
