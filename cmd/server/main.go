package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/agent-manager/internal/backend"
	"github.com/blackmichael/agent-manager/internal/config"
	"github.com/blackmichael/agent-manager/internal/domain"
	"github.com/blackmichael/agent-manager/internal/httpserver"
	"github.com/blackmichael/agent-manager/internal/journal"
	"github.com/blackmichael/agent-manager/internal/poller"
	"github.com/blackmichael/agent-manager/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger(os.Stdout)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	client := backend.NewClient(cfg.BackendURL, nil)
	store := domain.NewStore(cfg.BotIntervalMinutes)
	reconciler := poller.NewReconciler(client, store, cfg.PollInterval, cfg.PollTimeout, metrics, logger)

	// The journal is optional; without it the dispatcher skips recording.
	var (
		journalRepo domain.JournalRepository
		recorder    domain.Journal
	)
	if cfg.JournalDSN != "" {
		repo, err := journal.Open(ctx, cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer repo.Close()
		journalRepo, recorder = repo, repo
		logger.Info("connected to journal database")

		retention := journal.NewRetention(repo, cfg.JournalMaxAge, cfg.JournalMaxRows, logger)
		sched, err := retention.Schedule(ctx, journal.CleanupInterval)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	dispatcher := domain.NewDispatcher(client, store, reconciler, recorder, metrics, domain.DispatcherConfig{
		CommandTimeout:  cfg.CommandTimeout,
		LogRefreshDelay: cfg.LogRefreshDelay,
	}, logger)
	defer dispatcher.Close()

	go func() {
		if err := reconciler.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reconciler exited with error", "error", err)
		}
	}()

	// Posts are not polled; load them once so the dashboard starts populated.
	go func() {
		if err := dispatcher.RefreshPosts(ctx); err != nil {
			logger.Warn("initial post load failed", "error", err)
		}
	}()

	server := httpserver.NewServer(cfg.Port, store, dispatcher, journalRepo, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started",
		"port", cfg.Port,
		"backend", client.BaseURL(),
		"journal", cfg.JournalDSN != "",
	)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
