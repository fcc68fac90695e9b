package domain

import (
	"context"
	"time"
)

// CommandResult is the body of a mutating backend call.
type CommandResult struct {
	// Status is "success" on explicit success. Empty when the backend
	// accepted the call without a status field.
	Status string

	// Message is the optional server-provided text.
	Message string
}

// StatusSuccess is the status value the backend uses for an explicit success.
const StatusSuccess = "success"

// Succeeded reports an explicit success.
func (r CommandResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Accepted reports success for endpoints where a bare 2xx means acceptance.
func (r CommandResult) Accepted() bool {
	return r.Status == "" || r.Status == StatusSuccess
}

// Backend is the remote service the client controls. Every method is a single
// request/response with no retries.
type Backend interface {
	FetchLogs(ctx context.Context) ([]LogEntry, error)
	FetchBotStatus(ctx context.Context) (bool, error)
	FetchPosts(ctx context.Context) ([]Post, error)
	FetchRawRecords(ctx context.Context) ([]RawRecord, error)

	StartBot(ctx context.Context, minutes int) (CommandResult, error)
	StopBot(ctx context.Context) (CommandResult, error)
	Scrape(ctx context.Context, location string) (CommandResult, error)
	GenerateContent(ctx context.Context) (CommandResult, error)
	PublishPost(ctx context.Context, postID int64) (CommandResult, error)
}

// LogRefresher replaces the Store's log list with a fresh backend snapshot.
type LogRefresher interface {
	RefreshLogs(ctx context.Context) error
}

// JournalEntry is one recorded command outcome.
type JournalEntry struct {
	ID        int64         `json:"id"`
	Command   Command       `json:"command"`
	Target    string        `json:"target,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Journal records command outcomes.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// JournalRepository defines persistence operations for the command journal.
type JournalRepository interface {
	Journal

	// List returns entries newest first. The cursor is opaque; an empty next
	// cursor means there are no more entries.
	List(ctx context.Context, limit int, cursor string) ([]JournalEntry, string, error)

	// DeleteOld removes entries older than maxAge and any excess beyond
	// maxRows, keeping the newest. Returns the number of rows deleted.
	DeleteOld(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error)
}
