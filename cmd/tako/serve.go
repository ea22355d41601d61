package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tako/internal/channel"
	"tako/internal/lock"
	"tako/internal/metrics"
	"tako/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the inbound webhook server and the lock sweeper",
		Long:  "Starts the webhook endpoint that feeds the dispatch pipeline. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Collector.Handler()
	}
	webhook := channel.NewWebhook(channel.WebhookConfig{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Path:        cfg.Server.WebhookPath,
		Secret:      cfg.Server.WebhookSecret,
		Dispatcher:  a.dispatcher,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Endpoint,
		Logger:      logger,
	})

	var sweeper *lock.Sweeper
	if a.purger != nil {
		sweeper, err = lock.NewSweeper(a.purger, cfg.Lock.SweepCron, logger)
		if err != nil {
			return fmt.Errorf("lock sweeper: %w", err)
		}
	} else {
		logger.Info("lock store expires records natively, sweeper disabled", "backend", cfg.Lock.Backend)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webhook.Start(gctx)
	})
	if sweeper != nil {
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	logger.Info("tako serving. Press Ctrl+C to stop.", "version", version)
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
