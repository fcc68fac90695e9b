package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blackmichael/agent-manager/internal/telemetry"
)

const (
	defaultCommandTimeout  = 5 * time.Minute
	defaultLogRefreshDelay = 500 * time.Millisecond
	journalWriteTimeout    = 5 * time.Second
)

// DispatcherConfig tunes command execution.
type DispatcherConfig struct {
	// CommandTimeout bounds every backend call a command makes. A hung
	// backend surfaces as an unreachable notice once it expires.
	CommandTimeout time.Duration

	// LogRefreshDelay is how long after a successful bot toggle the log list
	// is refreshed out of band.
	LogRefreshDelay time.Duration
}

// Dispatcher executes operator commands against the backend and records
// their effect in the Store. Commands may overlap; only the per-kind
// single-flight flags gate duplicates.
type Dispatcher struct {
	backend Backend
	store   *Store
	logs    LogRefresher
	journal Journal
	metrics *telemetry.Metrics
	logger  *slog.Logger
	cfg     DispatcherConfig
	now     func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. journal and metrics may be nil.
func NewDispatcher(
	backend Backend,
	store *Store,
	logs LogRefresher,
	journal Journal,
	metrics *telemetry.Metrics,
	cfg DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.LogRefreshDelay <= 0 {
		cfg.LogRefreshDelay = defaultLogRefreshDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		backend: backend,
		store:   store,
		logs:    logs,
		journal: journal,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close abandons scheduled follow-up work and waits for any that already
// started.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.pending.Wait()
}

// ToggleBot stops the bot if it is running, otherwise starts it with the
// configured interval. The local running flag flips only on an explicit
// success response.
func (d *Dispatcher) ToggleBot(ctx context.Context) error {
	running := d.store.Running()
	interval := d.store.Interval()

	cmd, target := CommandStartBot, strconv.Itoa(interval)
	if running {
		cmd, target = CommandStopBot, ""
	}

	return d.run(ctx, cmd, target, func(ctx context.Context) error {
		if !running && interval < 1 {
			return &ValidationError{Message: MsgMinInterval}
		}

		var (
			res CommandResult
			err error
		)
		if running {
			res, err = d.backend.StopBot(ctx)
		} else {
			res, err = d.backend.StartBot(ctx, interval)
		}
		if err != nil {
			return err
		}
		if !res.Succeeded() {
			return &RemoteError{Op: string(cmd), Status: res.Status, Message: res.Message}
		}

		d.store.AssertRunning(!running, d.now())
		d.scheduleLogRefresh()
		return nil
	})
}

// SetInterval changes the bot interval. Values below one minute are kept so
// the operator sees them, and are rejected when starting the bot.
func (d *Dispatcher) SetInterval(minutes int) error {
	if err := d.store.SetInterval(minutes); err != nil {
		d.notify(NoticeValidation, err.Error())
		return err
	}
	return nil
}

// Scrape asks the backend to scrape listings for location and refreshes the
// post list on success.
func (d *Dispatcher) Scrape(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)

	return d.run(ctx, CommandScrape, location, func(ctx context.Context) error {
		if location == "" {
			return &ValidationError{Message: MsgLocationRequired}
		}
		if !d.store.Acquire(ActionScrape, 0) {
			return ErrBusy
		}
		defer d.store.Release(ActionScrape)

		res, err := d.backend.Scrape(ctx, location)
		if err != nil {
			return err
		}
		if !res.Accepted() {
			return &RemoteError{Op: string(CommandScrape), Status: res.Status, Message: res.Message}
		}

		d.refreshPostsQuietly(ctx)
		return nil
	})
}

// Generate asks the backend to generate captions for pending listings and
// refreshes the post list on success.
func (d *Dispatcher) Generate(ctx context.Context) error {
	return d.run(ctx, CommandGenerate, "", func(ctx context.Context) error {
		if !d.store.Acquire(ActionGenerate, 0) {
			return ErrBusy
		}
		defer d.store.Release(ActionGenerate)

		res, err := d.backend.GenerateContent(ctx)
		if err != nil {
			return err
		}
		if !res.Accepted() {
			return &RemoteError{Op: string(CommandGenerate), Status: res.Status, Message: res.Message}
		}

		d.refreshPostsQuietly(ctx)
		return nil
	})
}

// Publish publishes one post. The post occupies the publishing slot for the
// duration of the call.
func (d *Dispatcher) Publish(ctx context.Context, postID int64) error {
	return d.run(ctx, CommandPublish, strconv.FormatInt(postID, 10), func(ctx context.Context) error {
		if postID <= 0 {
			return &ValidationError{Message: MsgInvalidPost}
		}
		if !d.store.Acquire(ActionPublish, postID) {
			return ErrBusy
		}
		defer d.store.Release(ActionPublish)

		res, err := d.backend.PublishPost(ctx, postID)
		if err != nil {
			return err
		}
		if !res.Accepted() {
			return &RemoteError{Op: string(CommandPublish), Status: res.Status, Message: res.Message}
		}

		d.refreshPostsQuietly(ctx)
		return nil
	})
}

// RefreshPosts replaces the post list with the backend's. On failure the
// previous list is kept.
func (d *Dispatcher) RefreshPosts(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	posts, err := d.backend.FetchPosts(ctx)
	if err != nil {
		return fmt.Errorf("refresh posts: %w", err)
	}
	d.store.ReplacePosts(posts)
	return nil
}

// LoadRawRecords reloads the raw record explorer.
func (d *Dispatcher) LoadRawRecords(ctx context.Context) error {
	d.store.BeginExplorerLoad()
	defer d.store.EndExplorerLoad()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	records, err := d.backend.FetchRawRecords(ctx)
	if err != nil {
		d.notify(NoticeError, MsgBackendUnreachable)
		return fmt.Errorf("load raw records: %w", err)
	}
	d.store.ReplaceRawRecords(records, d.now())
	return nil
}

// run executes fn with the command timeout and then classifies, surfaces,
// journals and counts the result.
func (d *Dispatcher) run(ctx context.Context, cmd Command, target string, fn func(ctx context.Context) error) error {
	start := d.now()

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	err := fn(callCtx)
	cancel()

	outcome, message := d.classify(err)
	elapsed := d.now().Sub(start)

	switch outcome {
	case OutcomeSuccess:
		d.logger.Info("command succeeded", "command", cmd, "target", target, "duration", elapsed)
	case OutcomeBusy:
		d.logger.Debug("command skipped, already in progress", "command", cmd, "target", target)
	case OutcomeValidation:
		d.logger.Info("command rejected locally", "command", cmd, "target", target, "reason", message)
		d.notify(NoticeValidation, message)
	default:
		d.logger.Warn("command failed", "command", cmd, "target", target, "outcome", outcome, "error", err)
		d.notify(NoticeError, message)
	}

	d.metrics.RecordCommand(ctx, string(cmd), string(outcome), elapsed)
	if outcome != OutcomeBusy {
		d.record(ctx, JournalEntry{
			Command:   cmd,
			Target:    target,
			Outcome:   outcome,
			Message:   message,
			Duration:  elapsed,
			CreatedAt: start,
		})
	}

	return err
}

func (d *Dispatcher) classify(err error) (Outcome, string) {
	if err == nil {
		return OutcomeSuccess, ""
	}

	var (
		ve *ValidationError
		re *RemoteError
	)
	switch {
	case errors.Is(err, ErrBusy):
		return OutcomeBusy, ""
	case errors.As(err, &ve):
		return OutcomeValidation, ve.Message
	case errors.As(err, &re):
		if re.Message != "" {
			return OutcomeRejected, re.Message
		}
		return OutcomeRejected, fmt.Sprintf("Perintah ditolak backend (status %q).", re.Status)
	default:
		return OutcomeUnavailable, MsgBackendUnreachable
	}
}

func (d *Dispatcher) notify(kind NoticeKind, message string) {
	d.store.PushNotice(Notice{Kind: kind, Message: message, At: d.now()})
}

func (d *Dispatcher) record(ctx context.Context, entry JournalEntry) {
	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	if err := d.journal.Record(ctx, entry); err != nil {
		d.logger.Error("failed to journal command", "command", entry.Command, "error", err)
	}
}

// refreshPostsQuietly reloads posts after a successful command. A failed
// reload keeps the previous list; the command itself already succeeded.
func (d *Dispatcher) refreshPostsQuietly(ctx context.Context) {
	posts, err := d.backend.FetchPosts(ctx)
	if err != nil {
		d.logger.Warn("post refresh after command failed", "error", err)
		return
	}
	d.store.ReplacePosts(posts)
}

// scheduleLogRefresh refreshes logs once after LogRefreshDelay so the
// backend's own line about the bot transition shows up before the next poll.
func (d *Dispatcher) scheduleLogRefresh() {
	if d.logs == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()

		timer := time.NewTimer(d.cfg.LogRefreshDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(d.ctx, d.cfg.CommandTimeout)
		defer cancel()
		if err := d.logs.RefreshLogs(ctx); err != nil {
			d.logger.Debug("delayed log refresh failed", "error", err)
		}
	}()
}
