package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackmichael/agent-manager/internal/domain"
	"github.com/blackmichael/agent-manager/internal/poller"
)

// CleanupInterval is how often retention runs.
const CleanupInterval = time.Hour

const retentionJobTag = "journal-retention"

// Retention trims a journal to an age and row budget.
type Retention struct {
	repo    domain.JournalRepository
	maxAge  time.Duration
	maxRows int
	logger  *slog.Logger
}

// NewRetention creates a Retention for repo.
func NewRetention(repo domain.JournalRepository, maxAge time.Duration, maxRows int, logger *slog.Logger) *Retention {
	return &Retention{repo: repo, maxAge: maxAge, maxRows: maxRows, logger: logger}
}

// Run performs one cleanup pass.
func (r *Retention) Run(ctx context.Context) {
	deleted, err := r.repo.DeleteOld(ctx, r.maxAge, r.maxRows)
	if err != nil {
		r.logger.Error("journal cleanup failed", "error", err)
	} else if deleted > 0 {
		r.logger.Info("journal cleanup complete", "deleted", deleted)
	}
}

// Schedule runs a cleanup pass now and then every interval. The caller stops
// the returned scheduler on shutdown.
func (r *Retention) Schedule(ctx context.Context, interval time.Duration) (*poller.Scheduler, error) {
	sched := poller.NewScheduler()
	if err := sched.Every(retentionJobTag, interval, func() { r.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule journal retention: %w", err)
	}
	sched.Start()
	return sched, nil
}
