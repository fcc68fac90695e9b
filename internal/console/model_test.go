package console

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/agent-manager/internal/domain"
)

type fakeCommands struct {
	mu    sync.Mutex
	store *domain.Store
	calls []string
	err   error
}

func (f *fakeCommands) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeCommands) ToggleBot(context.Context) error { return f.record("toggle") }

func (f *fakeCommands) SetInterval(minutes int) error {
	if err := f.store.SetInterval(minutes); err != nil {
		return err
	}
	return f.record("interval")
}

func (f *fakeCommands) Scrape(_ context.Context, location string) error {
	return f.record("scrape:" + location)
}

func (f *fakeCommands) Generate(context.Context) error { return f.record("generate") }

func (f *fakeCommands) Publish(_ context.Context, id int64) error {
	return f.record("publish:" + strconv.FormatInt(id, 10))
}

func (f *fakeCommands) RefreshPosts(context.Context) error { return f.record("refresh") }

func (f *fakeCommands) LoadRawRecords(context.Context) error { return f.record("raw") }

func newTestModel(t *testing.T) (*Model, *fakeCommands, *domain.Store) {
	t.Helper()
	store := domain.NewStore(60)
	cmds := &fakeCommands{store: store}
	m := NewModel(context.Background(), store, cmds)
	t.Cleanup(m.Close)
	return m, cmds, store
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *Model, s string) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(key(s))
	return cmd
}

func TestModel_ToggleBot(t *testing.T) {
	m, cmds, _ := newTestModel(t)

	cmd := press(t, m, "b")
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, commandDoneMsg{name: "bot"}, msg)
	assert.Equal(t, []string{"toggle"}, cmds.calls)

	m.Update(msg)
	assert.Equal(t, "bot selesai", m.status)
}

func TestModel_Interval(t *testing.T) {
	m, _, store := newTestModel(t)

	press(t, m, "+")
	press(t, m, "+")
	press(t, m, "-")
	assert.Equal(t, 61, store.Interval())

	store.ReconcileRunning(true, time.Now())
	m.Update(storeChangedMsg{})
	press(t, m, "+")
	assert.Equal(t, 61, store.Interval())
}

func TestModel_ScrapePrompt(t *testing.T) {
	m, cmds, _ := newTestModel(t)

	press(t, m, "s")
	assert.Equal(t, modeLocation, m.mode)

	for _, r := range "Bali" {
		press(t, m, string(r))
	}
	cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, []string{"scrape:Bali"}, cmds.calls)
}

func TestModel_ScrapePrompt_Cancel(t *testing.T) {
	m, cmds, _ := newTestModel(t)

	press(t, m, "s")
	press(t, m, "x")
	assert.Nil(t, press(t, m, "esc"))
	assert.Equal(t, modeNormal, m.mode)
	assert.Empty(t, cmds.calls)
}

func TestModel_PublishSelected(t *testing.T) {
	m, cmds, store := newTestModel(t)
	store.ReplacePosts([]domain.Post{
		{ID: 1, HotelName: "Ayana", Status: domain.PostStatusPublished},
		{ID: 2, HotelName: "Mulia", Status: domain.PostStatusReady},
	})
	m.Update(storeChangedMsg{})

	// published posts cannot be published again
	assert.Nil(t, press(t, m, "p"))
	assert.Contains(t, m.status, "belum bisa dipublish")

	press(t, m, "down")
	cmd := press(t, m, "p")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"publish:2"}, cmds.calls)
}

func TestModel_ExplorerFilter(t *testing.T) {
	m, cmds, store := newTestModel(t)
	store.ReplaceRawRecords([]domain.RawRecord{
		{ID: 1, HotelName: "Ayana Resort", Location: "Bali"},
		{ID: 2, HotelName: "Hotel Tentrem", Location: "Yogyakarta"},
	}, time.Now())
	m.Update(storeChangedMsg{})

	// records already loaded, no reload on switch
	assert.Nil(t, press(t, m, "tab"))
	assert.Equal(t, TabExplorer, m.tab)

	press(t, m, "/")
	for _, r := range "yogya" {
		press(t, m, string(r))
	}
	press(t, m, "enter")

	records := m.visibleRecords()
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)

	// dashboard keys are inert here
	assert.Nil(t, press(t, m, "g"))

	cmd := press(t, m, "r")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"raw"}, cmds.calls)
	assert.Contains(t, m.View(), "Hotel Tentrem")
	assert.NotContains(t, m.View(), "Ayana Resort")
}

func TestModel_StoreChanges(t *testing.T) {
	m, _, store := newTestModel(t)

	cmd := waitForChange(m.updates)
	store.ReplaceLogs([]domain.LogEntry{"[10:00:00] ❌ Scrape gagal"})
	store.PushNotice(domain.Notice{Kind: domain.NoticeError, Message: domain.MsgBackendUnreachable})

	msg := cmd()
	require.IsType(t, storeChangedMsg{}, msg)
	_, next := m.Update(msg)
	assert.NotNil(t, next)

	view := m.View()
	assert.Contains(t, view, "Scrape gagal")
	assert.Contains(t, view, domain.MsgBackendUnreachable)
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)

	cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.True(t, strings.HasSuffix(truncate("Hotel Indonesia Kempinski Jakarta", 10), "…"))
}
