// Package console is the terminal presentation: a pipeline dashboard and a
// raw record explorer driven by the same Store and Dispatcher as the web
// views.
package console

import (
	"context"
	"errors"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/blackmichael/agent-manager/internal/domain"
)

// Commands is the operator command surface the console drives.
type Commands interface {
	ToggleBot(ctx context.Context) error
	SetInterval(minutes int) error
	Scrape(ctx context.Context, location string) error
	Generate(ctx context.Context) error
	Publish(ctx context.Context, postID int64) error
	RefreshPosts(ctx context.Context) error
	LoadRawRecords(ctx context.Context) error
}

// Tab selects the visible view.
type Tab int

const (
	TabDashboard Tab = iota
	TabExplorer
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeLocation
	modeFilter
)

// Model is the root Bubble Tea model.
type Model struct {
	store    *domain.Store
	commands Commands
	ctx      context.Context

	updates     <-chan struct{}
	unsubscribe func()

	snap    domain.Snapshot
	tab     Tab
	mode    inputMode
	cursor  int
	rawRow  int
	status  string
	loading bool

	location textinput.Model
	filter   textinput.Model
	spinner  spinner.Model

	width  int
	height int
}

// NewModel creates a Model subscribed to store. Call Close once the program
// exits.
func NewModel(ctx context.Context, store *domain.Store, commands Commands) *Model {
	loc := textinput.New()
	loc.Placeholder = "Lokasi, mis. Bali"
	loc.CharLimit = 80

	filter := textinput.New()
	filter.Placeholder = "Cari hotel atau lokasi"
	filter.CharLimit = 80

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = busyStyle

	updates, unsubscribe := store.Subscribe()
	return &Model{
		store:       store,
		commands:    commands,
		ctx:         ctx,
		updates:     updates,
		unsubscribe: unsubscribe,
		snap:        store.Snapshot(),
		location:    loc,
		filter:      filter,
		spinner:     spin,
	}
}

// Close releases the Store subscription.
func (m *Model) Close() {
	m.unsubscribe()
}

// Init loads posts and starts listening for Store changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.updates),
		m.spinner.Tick,
		m.run("refresh", func(ctx context.Context) error { return m.commands.RefreshPosts(ctx) }),
	)
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case storeChangedMsg:
		m.snap = m.store.Snapshot()
		m.clampCursors()
		return m, waitForChange(m.updates)

	case storeClosedMsg:
		return m, nil

	case commandDoneMsg:
		if msg.name == "explorer" {
			m.loading = false
		}
		switch {
		case msg.err == nil:
			m.status = msg.name + " selesai"
		case errors.Is(msg.err, domain.ErrBusy):
			m.status = msg.name + " masih berjalan"
		default:
			// The notice carries the operator-facing text.
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeLocation:
			return m.updateLocation(msg)
		case modeFilter:
			return m.updateFilter(msg)
		default:
			return m.updateNormal(msg)
		}
	}
	return m, nil
}

func (m *Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.tab == TabDashboard {
			m.tab = TabExplorer
			if m.snap.Explorer.LoadedAt.IsZero() {
				return m, m.loadExplorer()
			}
			return m, nil
		}
		m.tab = TabDashboard
		return m, nil

	case "up", "k":
		m.moveCursor(-1)
		return m, nil

	case "down", "j":
		m.moveCursor(1)
		return m, nil

	case "r":
		if m.tab == TabExplorer {
			return m, m.loadExplorer()
		}
		return m, m.run("refresh", func(ctx context.Context) error { return m.commands.RefreshPosts(ctx) })
	}

	if m.tab == TabExplorer {
		if msg.String() == "/" {
			m.mode = modeFilter
			return m, m.filter.Focus()
		}
		return m, nil
	}

	switch msg.String() {
	case "b":
		return m, m.run("bot", func(ctx context.Context) error { return m.commands.ToggleBot(ctx) })

	case "+", "=":
		m.adjustInterval(1)
		return m, nil

	case "-":
		m.adjustInterval(-1)
		return m, nil

	case "s":
		m.mode = modeLocation
		m.location.Reset()
		return m, m.location.Focus()

	case "g":
		return m, m.run("generate", func(ctx context.Context) error { return m.commands.Generate(ctx) })

	case "p":
		post, ok := m.selectedPost()
		if !ok {
			return m, nil
		}
		if !post.Publishable() {
			m.status = "Post " + strconv.FormatInt(post.ID, 10) + " belum bisa dipublish"
			return m, nil
		}
		id := post.ID
		return m, m.run("publish", func(ctx context.Context) error { return m.commands.Publish(ctx, id) })
	}
	return m, nil
}

func (m *Model) updateLocation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.location.Blur()
		return m, nil
	case "enter":
		m.mode = modeNormal
		m.location.Blur()
		location := m.location.Value()
		return m, m.run("scrape", func(ctx context.Context) error { return m.commands.Scrape(ctx, location) })
	}

	var cmd tea.Cmd
	m.location, cmd = m.location.Update(msg)
	return m, cmd
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.mode = modeNormal
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.rawRow = 0
	return m, cmd
}

// adjustInterval steps the bot interval. The Dispatcher rejects edits while
// the bot runs and surfaces the notice.
func (m *Model) adjustInterval(delta int) {
	next := m.snap.Bot.IntervalMinutes + delta
	if next < 0 {
		next = 0
	}
	if err := m.commands.SetInterval(next); err == nil {
		m.snap = m.store.Snapshot()
	}
}

func (m *Model) loadExplorer() tea.Cmd {
	m.loading = true
	return m.run("explorer", func(ctx context.Context) error { return m.commands.LoadRawRecords(ctx) })
}

func (m *Model) selectedPost() (domain.Post, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Posts) {
		return domain.Post{}, false
	}
	return m.snap.Posts[m.cursor], true
}

func (m *Model) visibleRecords() []domain.RawRecord {
	return domain.FilterRecords(m.snap.Explorer.Records, m.filter.Value())
}

func (m *Model) moveCursor(delta int) {
	if m.tab == TabExplorer {
		m.rawRow += delta
	} else {
		m.cursor += delta
	}
	m.clampCursors()
}

func (m *Model) clampCursors() {
	m.cursor = clamp(m.cursor, len(m.snap.Posts))
	m.rawRow = clamp(m.rawRow, len(m.visibleRecords()))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
