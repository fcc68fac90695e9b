package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/blackmichael/agent-manager/internal/domain"
)

var (
	accent  = lipgloss.Color("#50E3C2")
	muted   = lipgloss.Color("#8CA1AE")
	warning = lipgloss.Color("#F6AE2D")
	danger  = lipgloss.Color("#FF6B6B")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(accent).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Foreground(muted).Padding(0, 1)
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1)
	mutedStyle     = lipgloss.NewStyle().Foreground(muted)
	busyStyle      = lipgloss.NewStyle().Foreground(warning)
	runningStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E"))
	stoppedStyle   = lipgloss.NewStyle().Bold(true).Foreground(danger)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	errorStyle     = lipgloss.NewStyle().Foreground(danger)
	validateStyle  = lipgloss.NewStyle().Foreground(warning)
	helpStyle      = lipgloss.NewStyle().Foreground(muted).Italic(true)

	logStyles = map[domain.LogCategory]lipgloss.Style{
		domain.LogCategoryError:      lipgloss.NewStyle().Foreground(danger),
		domain.LogCategorySuccess:    lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80")),
		domain.LogCategoryBotCycle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")),
		domain.LogCategoryGeneration: lipgloss.NewStyle().Foreground(lipgloss.Color("#C084FC")),
		domain.LogCategoryPublish:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F472B6")),
		domain.LogCategoryInfo:       lipgloss.NewStyle(),
	}

	statusStyles = map[domain.PostStatus]lipgloss.Style{
		domain.PostStatusPending:    mutedStyle,
		domain.PostStatusReady:      lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")),
		domain.PostStatusPublishing: busyStyle,
		domain.PostStatusPublished:  lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80")),
		domain.PostStatusFailed:     errorStyle,
	}
)

const (
	minLogLines = 6
	chromeLines = 14
)

// View renders the active tab.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Hotel Agent Manager"))
	b.WriteString("  ")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.tab == TabExplorer {
		b.WriteString(m.renderExplorer())
	} else {
		b.WriteString(m.renderDashboard())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := []struct {
		tab   Tab
		label string
	}{
		{TabDashboard, "Dashboard"},
		{TabExplorer, "Raw data"},
	}

	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		if t.tab == m.tab {
			parts = append(parts, activeTabStyle.Render(t.label))
		} else {
			parts = append(parts, tabStyle.Render(t.label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderDashboard() string {
	bot := m.snap.Bot
	state := stoppedStyle.Render("● STOPPED")
	if bot.Running {
		state = runningStyle.Render("● RUNNING")
	}
	if !bot.Confirmed {
		state += mutedStyle.Render(" (menunggu konfirmasi)")
	}

	var actions []string
	if m.snap.Actions.Scraping {
		actions = append(actions, m.spinner.View()+" scraping")
	}
	if m.snap.Actions.Generating {
		actions = append(actions, m.spinner.View()+" generating")
	}
	if id := m.snap.Actions.PublishingID; id != 0 {
		actions = append(actions, fmt.Sprintf("%s publishing #%d", m.spinner.View(), id))
	}

	header := fmt.Sprintf("Bot %s   interval %d menit", state, bot.IntervalMinutes)
	if len(actions) > 0 {
		header += "   " + busyStyle.Render(strings.Join(actions, "  "))
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	if m.mode == modeLocation {
		b.WriteString("Scrape lokasi: ")
		b.WriteString(m.location.View())
		b.WriteString("\n")
	}

	b.WriteString(panelStyle.Render(m.renderLogs()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderPosts()))
	return b.String()
}

func (m *Model) renderLogs() string {
	logs := m.snap.Logs
	if len(logs) == 0 {
		return mutedStyle.Render("Menunggu log...")
	}

	n := minLogLines
	if m.height > chromeLines+minLogLines {
		n = (m.height - chromeLines) / 2
	}
	if len(logs) > n {
		logs = logs[len(logs)-n:]
	}

	lines := make([]string, len(logs))
	for i, l := range logs {
		clock := l.Clock()
		if clock != "" {
			clock = mutedStyle.Render(clock) + " "
		}
		lines[i] = clock + logStyles[l.Category()].Render(l.Message())
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPosts() string {
	if len(m.snap.Posts) == 0 {
		return mutedStyle.Render("Belum ada post.")
	}

	lines := make([]string, 0, len(m.snap.Posts))
	for i, p := range m.snap.Posts {
		status := m.snap.PostStatusOf(p)
		row := fmt.Sprintf("#%-4d %-12s %s", p.ID, statusStyles[status].Render(string(status)), p.HotelName)
		if i == m.cursor {
			row = selectedStyle.Render("> ") + row
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}

	if p, ok := m.selectedPost(); ok && p.Caption != "" {
		lines = append(lines, "", mutedStyle.Render(firstLine(p.Caption)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderExplorer() string {
	var b strings.Builder

	b.WriteString("Filter: ")
	if m.mode == modeFilter {
		b.WriteString(m.filter.View())
	} else if v := m.filter.Value(); v != "" {
		b.WriteString(v)
	} else {
		b.WriteString(mutedStyle.Render("(tekan / untuk mencari)"))
	}
	b.WriteString("\n")

	records := m.visibleRecords()
	summary := fmt.Sprintf("%d record", len(records))
	if m.loading || m.snap.Explorer.Loading {
		summary = m.spinner.View() + " memuat... " + summary
	} else if !m.snap.Explorer.LoadedAt.IsZero() {
		summary += ", dimuat " + m.snap.Explorer.LoadedAt.Local().Format("15:04:05")
	}
	b.WriteString(mutedStyle.Render(summary))
	b.WriteString("\n")

	if len(records) == 0 {
		b.WriteString(panelStyle.Render(mutedStyle.Render("Tidak ada data.")))
		return b.String()
	}

	lines := make([]string, 0, len(records))
	for i, r := range records {
		processed := " "
		if r.IsProcessed {
			processed = "✓"
		}
		row := fmt.Sprintf("%s #%-4d %-32s %-16s %-14s %s",
			processed, r.ID, truncate(r.HotelName, 32), truncate(r.Location, 16),
			orDash(r.DiscountedPrice), orDash(r.Rating))
		if i == m.rawRow {
			row = selectedStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

func (m *Model) renderFooter() string {
	var b strings.Builder

	if n := len(m.snap.Notices); n > 0 {
		notice := m.snap.Notices[n-1]
		switch notice.Kind {
		case domain.NoticeValidation:
			b.WriteString(validateStyle.Render("! " + notice.Message))
		case domain.NoticeError:
			b.WriteString(errorStyle.Render("✗ " + notice.Message))
		default:
			b.WriteString(notice.Message)
		}
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(mutedStyle.Render(m.status))
		b.WriteString("\n")
	}

	if m.tab == TabExplorer {
		b.WriteString(helpStyle.Render("tab dashboard · ↑/↓ pilih · / cari · r muat ulang · q keluar"))
	} else {
		b.WriteString(helpStyle.Render("tab raw data · b start/stop · +/- interval · s scrape · g generate · p publish · r refresh · q keluar"))
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
