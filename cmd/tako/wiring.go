package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"tako/internal/channel"
	"tako/internal/composer"
	"tako/internal/config"
	"tako/internal/dispatch"
	"tako/internal/domain"
	"tako/internal/lock"
	"tako/internal/outcome"
	"tako/internal/prompts"
	"tako/internal/provider"
	"tako/internal/router"
)

// app is the wired pipeline plus the resources it owns.
type app struct {
	cfg        *config.Config
	factory    *provider.Factory
	dispatcher *dispatch.Dispatcher
	locks      *lock.Manager
	purger     domain.LockPurger // nil when the store expires records natively
	outcomes   *outcome.SQLiteStore
	closers    []func() error
	logger     *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
}

// buildApp constructs every collaborator from cfg. The caller must Close
// the returned app.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, factory: provider.NewFactory(cfg, logger)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.openLocks(ctx); err != nil {
		return nil, err
	}

	store, err := openPrompts(cfg.Prompts)
	if err != nil {
		return nil, err
	}

	gen, err := a.factory.Generator(ctx)
	if err != nil {
		return nil, err
	}

	rt, err := buildRouter(ctx, a.factory, cfg.Agents, gen, store, logger)
	if err != nil {
		return nil, err
	}

	sender, err := channel.NewSender(cfg.Delivery, logger)
	if err != nil {
		return nil, err
	}

	var notifier domain.Notifier
	if tg := cfg.Notify.Telegram; tg.Enabled {
		n, err := channel.NewTelegramNotifier(channel.TelegramConfig{
			Token:  tg.Token,
			ChatID: tg.ChatID,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		notifier = n
	}

	var recorder domain.OutcomeRecorder
	if cfg.Outcomes.Enabled {
		if err := a.openOutcomes(); err != nil {
			return nil, err
		}
		recorder = a.outcomes
	}

	a.dispatcher = dispatch.New(dispatch.Config{
		Locker:        a.locks,
		LockTTL:       time.Duration(cfg.Lock.TTLSeconds) * time.Second,
		Prompts:       store,
		Analyzer:      gen,
		Router:        rt,
		Composer:      composer.New(gen, logger),
		Sender:        sender,
		Notifier:      notifier,
		Outcomes:      recorder,
		NonTextNotice: cfg.Messages.NonText,
		Logger:        logger,
	})
	return a, nil
}

// openLocks builds the lock store selected by lock.backend.
func (a *app) openLocks(ctx context.Context) error {
	lc := a.cfg.Lock
	var store domain.LockStore

	switch lc.Backend {
	case "memory", "":
		s := lock.NewMemoryStore()
		store, a.purger = s, s
	case "sqlite":
		s, err := lock.OpenSQLite(config.ExpandPath(lc.SQLitePath), a.logger)
		if err != nil {
			return err
		}
		store, a.purger = s, s
		a.closers = append(a.closers, s.Close)
	case "postgres":
		s, err := lock.OpenPostgres(ctx, lc.PostgresDSN, a.logger)
		if err != nil {
			return err
		}
		store, a.purger = s, s
		a.closers = append(a.closers, s.Close)
	case "dynamodb":
		awsCfg, err := a.factory.AWSConfig(ctx)
		if err != nil {
			return err
		}
		store = lock.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), lc.DynamoTable)
	case "firestore":
		client, err := firestore.NewClient(ctx, lc.FirestoreProject)
		if err != nil {
			return fmt.Errorf("firestore client: %w", err)
		}
		store = lock.NewFirestoreStore(client, lc.FirestoreCollection)
		a.closers = append(a.closers, client.Close)
	default:
		return fmt.Errorf("unknown lock backend %q", lc.Backend)
	}

	a.locks = lock.NewManager(lock.Config{Store: store, Logger: a.logger})
	a.logger.Debug("lock store ready", "backend", lc.Backend)
	return nil
}

func (a *app) openOutcomes() error {
	s, err := outcome.NewSQLiteStore(config.ExpandPath(a.cfg.Outcomes.DBPath), a.logger)
	if err != nil {
		return fmt.Errorf("outcome store: %w", err)
	}
	a.outcomes = s
	a.closers = append(a.closers, s.Close)
	return nil
}

// openPrompts layers the prompt directory and pack over the embedded
// templates.
func openPrompts(pc config.PromptsConfig) (domain.PromptStore, error) {
	var layers prompts.Layered
	if pc.Dir != "" {
		layers = append(layers, prompts.Dir(config.ExpandPath(pc.Dir)))
	}
	if pc.Pack != "" {
		pack, err := prompts.LoadPack(config.ExpandPath(pc.Pack))
		if err != nil {
			return nil, err
		}
		layers = append(layers, pack)
	}
	return append(layers, prompts.Embedded()), nil
}

// buildRouter binds every intent to a resolver. Intents with a configured
// agent call it; the rest render their template on the generator.
func buildRouter(ctx context.Context, f *provider.Factory, agents config.AgentsConfig, gen domain.Generator, store domain.PromptStore, logger *slog.Logger) (*router.Router, error) {
	refs := map[domain.Intent]config.AgentRef{
		domain.IntentLatePayment: agents.LatePayment,
		domain.IntentTermination: agents.Termination,
	}

	resolvers := make(map[domain.Intent]router.Resolver, domain.NumIntents)
	for _, intent := range domain.Intents() {
		apologies := router.DefaultApologies
		if intent == domain.IntentTermination {
			apologies = router.TerminationApologies
		}

		agent, err := f.Agent(ctx, router.AgentName(intent), refs[intent])
		if err != nil {
			return nil, fmt.Errorf("agent for %s: %w", intent, err)
		}
		if agent != nil {
			resolvers[intent] = router.NewAgentResolver(router.AgentConfig{
				Intent:    intent,
				Agent:     agent,
				Apologies: apologies,
				Logger:    logger,
			})
			continue
		}
		resolvers[intent] = router.NewFlowResolver(router.FlowConfig{
			Intent:    intent,
			Prompts:   store,
			Generator: gen,
			Apologies: apologies,
			Logger:    logger,
		})
	}
	return router.New(resolvers, logger)
}
