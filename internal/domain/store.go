package domain

import (
	"sync"
	"time"
)

const maxNotices = 20

// runningAssertion is a client-side claim about the bot's running flag made
// after a successful start/stop, ahead of server confirmation.
type runningAssertion struct {
	running bool
	at      time.Time
}

// Store is the single source of truth read by the views. The Reconciler
// writes logs and the running flag; the Dispatcher writes everything else.
// Every write is atomic and the last write wins.
type Store struct {
	mu sync.RWMutex

	posts         []Post
	logs          []LogEntry
	serverRunning bool
	asserted      *runningAssertion
	interval      int
	actions       ActionState
	explorer      ExplorerState
	explorerLoads int
	notices       []Notice

	subs   map[int]chan struct{}
	nextID int
}

// NewStore creates an empty Store with the given default bot interval.
func NewStore(defaultInterval int) *Store {
	return &Store{
		interval: defaultInterval,
		subs:     make(map[int]chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Posts: append([]Post(nil), s.posts...),
		Logs:  append([]LogEntry(nil), s.logs...),
		Bot: BotRunState{
			Running:         s.runningLocked(),
			IntervalMinutes: s.interval,
			Confirmed:       s.asserted == nil,
		},
		Actions: s.actions,
		Explorer: ExplorerState{
			Records:  append([]RawRecord(nil), s.explorer.Records...),
			Loading:  s.explorerLoads > 0,
			LoadedAt: s.explorer.LoadedAt,
		},
		Notices: append([]Notice(nil), s.notices...),
	}
}

// ReplaceLogs swaps in a full log snapshot exactly as the backend returned it.
func (s *Store) ReplaceLogs(logs []LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append([]LogEntry(nil), logs...)
	s.notifyLocked()
}

// ReplacePosts swaps in a full post list.
func (s *Store) ReplacePosts(posts []Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append([]Post(nil), posts...)
	s.notifyLocked()
}

// Running returns the displayed running flag: the client assertion when one
// is pending, the last polled value otherwise.
func (s *Store) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runningLocked()
}

func (s *Store) runningLocked() bool {
	if s.asserted != nil {
		return s.asserted.running
	}
	return s.serverRunning
}

// AssertRunning records the client's claim that the bot is now running (or
// stopped) as of at. The claim is displayed until a status poll issued after
// at reconciles it.
func (s *Store) AssertRunning(running bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asserted = &runningAssertion{running: running, at: at}
	s.notifyLocked()
}

// ReconcileRunning applies a polled running flag. startedAt is when the poll
// request was issued; a poll issued before the pending assertion cannot
// override it, a later one replaces it.
func (s *Store) ReconcileRunning(running bool, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverRunning = running
	if s.asserted != nil && !startedAt.Before(s.asserted.at) {
		s.asserted = nil
	}
	s.notifyLocked()
}

// Interval returns the configured bot interval in minutes.
func (s *Store) Interval() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// SetInterval changes the bot interval. It fails while the bot is running.
func (s *Store) SetInterval(minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return &ValidationError{Message: MsgIntervalLocked}
	}
	s.interval = minutes
	s.notifyLocked()
	return nil
}

// Acquire sets the flag for kind if it is free. For ActionPublish, target is
// the post ID placed in the publishing slot. It reports whether the flag was
// acquired.
func (s *Store) Acquire(kind ActionKind, target int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case ActionScrape:
		if s.actions.Scraping {
			return false
		}
		s.actions.Scraping = true
	case ActionGenerate:
		if s.actions.Generating {
			return false
		}
		s.actions.Generating = true
	case ActionPublish:
		if s.actions.PublishingID != 0 {
			return false
		}
		s.actions.PublishingID = target
	default:
		return false
	}
	s.notifyLocked()
	return true
}

// Release clears the flag for kind.
func (s *Store) Release(kind ActionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case ActionScrape:
		s.actions.Scraping = false
	case ActionGenerate:
		s.actions.Generating = false
	case ActionPublish:
		s.actions.PublishingID = 0
	}
	s.notifyLocked()
}

// Actions returns the current action flags.
func (s *Store) Actions() ActionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actions
}

// BeginExplorerLoad marks one raw record load as in flight. The explorer
// reports loading until every begun load has ended.
func (s *Store) BeginExplorerLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explorerLoads++
	s.notifyLocked()
}

// EndExplorerLoad marks one raw record load as finished.
func (s *Store) EndExplorerLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explorerLoads > 0 {
		s.explorerLoads--
	}
	s.notifyLocked()
}

// ReplaceRawRecords swaps in a full raw record list.
func (s *Store) ReplaceRawRecords(records []RawRecord, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explorer.Records = append([]RawRecord(nil), records...)
	s.explorer.LoadedAt = at
	s.notifyLocked()
}

// PushNotice appends a notice, dropping the oldest beyond the retention cap.
func (s *Store) PushNotice(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = append([]Notice(nil), s.notices[len(s.notices)-maxNotices:]...)
	}
	s.notifyLocked()
}

// Subscribe returns a channel that receives a signal after writes. Signals
// are coalesced: a slow reader sees one pending signal, never a backlog. The
// returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
