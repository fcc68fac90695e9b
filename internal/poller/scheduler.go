package poller

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs recurring jobs. Runs of the same job may overlap: a slow run
// never delays or cancels the next one.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler creates a stopped scheduler. Jobs are left in gocron's
// concurrent mode; singleton or max-concurrency limits would serialize runs.
func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

// Every registers job under tag to run immediately on Start and then every
// interval.
func (s *Scheduler) Every(tag string, interval time.Duration, job func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", tag, interval)
	}
	if _, err := s.scheduler.Every(interval).Tag(tag).StartImmediately().Do(job); err != nil {
		return fmt.Errorf("schedule job %s: %w", tag, err)
	}
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts the scheduler. Runs already in progress are not interrupted.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
