package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/agent-manager/internal/domain"
	"github.com/blackmichael/agent-manager/internal/telemetry"
)

const (
	// DefaultInterval is the reconciliation cadence.
	DefaultInterval = 2 * time.Second

	// DefaultTimeout bounds each poll fetch so abandoned requests do not pile
	// up against a hung backend.
	DefaultTimeout = 10 * time.Second

	tickJobTag = "reconcile"
)

// Source is the subset of the backend the reconciler polls.
type Source interface {
	FetchLogs(ctx context.Context) ([]domain.LogEntry, error)
	FetchBotStatus(ctx context.Context) (bool, error)
}

// Reconciler keeps the Store's log list and running flag in line with the
// backend. Fetch failures keep the previous value and are never surfaced.
type Reconciler struct {
	source   Source
	store    *domain.Store
	interval time.Duration
	timeout  time.Duration
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

var _ domain.LogRefresher = (*Reconciler)(nil)

// NewReconciler creates a Reconciler. Zero interval or timeout select the
// defaults; metrics may be nil.
func NewReconciler(
	source Source,
	store *domain.Store,
	interval, timeout time.Duration,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reconciler{
		source:   source,
		store:    store,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Start ticks immediately and then every interval until ctx is cancelled.
// Ticks are not serialized: a tick slower than the interval overlaps the next
// one and whichever finishes last wins.
func (r *Reconciler) Start(ctx context.Context) error {
	sched := NewScheduler()
	if err := sched.Every(tickJobTag, r.interval, func() { r.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}

	r.logger.Info("reconciler started", "interval", r.interval, "timeout", r.timeout)
	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	r.logger.Info("reconciler stopped")
	return ctx.Err()
}

// Tick fetches logs and bot status concurrently and applies whichever
// succeed. It returns the first fetch error, for logging only.
func (r *Reconciler) Tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var g errgroup.Group
	g.Go(func() error { return r.RefreshLogs(ctx) })
	g.Go(func() error { return r.RefreshStatus(ctx) })

	err := g.Wait()
	if err != nil {
		r.logger.Debug("reconcile tick incomplete", "error", err)
	}
	return err
}

// RefreshLogs replaces the Store's logs with the backend's full snapshot.
func (r *Reconciler) RefreshLogs(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logs, err := r.source.FetchLogs(ctx)
	if err != nil {
		r.metrics.RecordPollFailure(ctx, "logs")
		return fmt.Errorf("refresh logs: %w", err)
	}
	r.store.ReplaceLogs(logs)
	return nil
}

// RefreshStatus applies the backend's running flag, reconciling any pending
// client assertion made before this request was issued.
func (r *Reconciler) RefreshStatus(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	startedAt := r.now()
	running, err := r.source.FetchBotStatus(ctx)
	if err != nil {
		r.metrics.RecordPollFailure(ctx, "status")
		return fmt.Errorf("refresh status: %w", err)
	}
	r.store.ReconcileRunning(running, startedAt)
	return nil
}
