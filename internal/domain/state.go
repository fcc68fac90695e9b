package domain

import "time"

// BotRunState is the recurring job's status.
type BotRunState struct {
	Running bool `json:"running"`

	// IntervalMinutes is the operator-chosen interval used when starting the
	// bot. It is read-only while Running.
	IntervalMinutes int `json:"interval_minutes"`

	// Confirmed is false while Running is a client assertion that no status
	// poll has reconciled yet.
	Confirmed bool `json:"confirmed"`
}

// ActionKind names a command with its own single-flight flag.
type ActionKind int

const (
	ActionScrape ActionKind = iota
	ActionGenerate
	ActionPublish
)

// ActionState is client-only transient state for in-flight commands.
type ActionState struct {
	Scraping   bool `json:"scraping"`
	Generating bool `json:"generating"`

	// PublishingID is the post currently being published; 0 means none.
	PublishingID int64 `json:"publishing_id"`
}

// NoticeKind classifies an operator notice.
type NoticeKind string

const (
	NoticeValidation NoticeKind = "validation"
	NoticeError      NoticeKind = "error"
)

// Notice is a user-visible message produced by a command.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// ExplorerState is the raw record explorer's data.
type ExplorerState struct {
	Records  []RawRecord `json:"records"`
	Loading  bool        `json:"loading"`
	LoadedAt time.Time   `json:"loaded_at"`
}

// Snapshot is a consistent, caller-owned copy of the Store.
type Snapshot struct {
	Posts    []Post        `json:"posts"`
	Logs     []LogEntry    `json:"logs"`
	Bot      BotRunState   `json:"bot"`
	Actions  ActionState   `json:"actions"`
	Explorer ExplorerState `json:"explorer"`
	Notices  []Notice      `json:"notices"`
}

// PostStatusOf returns the status to display for a post, which is publishing
// while the post occupies the publishing slot.
func (s Snapshot) PostStatusOf(p Post) PostStatus {
	if s.Actions.PublishingID != 0 && s.Actions.PublishingID == p.ID {
		return PostStatusPublishing
	}
	return p.Status
}

// Command identifies an operator command.
type Command string

const (
	CommandStartBot Command = "bot.start"
	CommandStopBot  Command = "bot.stop"
	CommandScrape   Command = "scrape"
	CommandGenerate Command = "generate"
	CommandPublish  Command = "publish"
)

// Outcome classifies how a command ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRejected    Outcome = "rejected"
	OutcomeValidation  Outcome = "validation"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeBusy        Outcome = "busy"
)
