package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/blackmichael/agent-manager/internal/backend"
	"github.com/blackmichael/agent-manager/internal/config"
	"github.com/blackmichael/agent-manager/internal/console"
	"github.com/blackmichael/agent-manager/internal/domain"
	"github.com/blackmichael/agent-manager/internal/journal"
	"github.com/blackmichael/agent-manager/internal/poller"
	"github.com/blackmichael/agent-manager/internal/telemetry"
)

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

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := tea.LogToFile("console.log", "")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := cfg.NewLogger(logFile)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := backend.NewClient(cfg.BackendURL, nil)
	store := domain.NewStore(cfg.BotIntervalMinutes)
	reconciler := poller.NewReconciler(client, store, cfg.PollInterval, cfg.PollTimeout, metrics, logger)

	var recorder domain.Journal
	if cfg.JournalDSN != "" {
		repo, err := journal.Open(ctx, cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer repo.Close()
		recorder = repo

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

	model := console.NewModel(ctx, store, dispatcher)
	defer model.Close()

	logger.Info("console started", "backend", client.BaseURL())
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
