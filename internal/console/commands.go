package console

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

type storeChangedMsg struct{}

type storeClosedMsg struct{}

// commandDoneMsg reports a finished operator command. The Store already
// holds its effect and any notice.
type commandDoneMsg struct {
	name string
	err  error
}

// waitForChange returns a tea.Cmd that blocks until the Store signals a
// write.
func waitForChange(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return storeClosedMsg{}
		}
		return storeChangedMsg{}
	}
}

// run executes fn off the UI goroutine.
func (m *Model) run(name string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{name: name, err: fn(ctx)}
	}
}
