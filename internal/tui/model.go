package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"soakq/internal/check"
	"soakq/internal/report"
	"soakq/internal/runner"
	"soakq/internal/tui/live"
	"soakq/internal/tui/result"
	"soakq/internal/tui/styles"
)

type runDoneMsg struct{ err error }

// Model shows the live dashboard while a soak run is in progress and
// the result view once it ends.
type Model struct {
	Runner     *runner.Runner
	Thresholds check.Thresholds

	updates runner.StatsUpdateChan
	done    <-chan error
	cancel  context.CancelFunc

	live   live.Model
	result result.Model

	Finished bool
	Stopping bool
	Err      error

	Width  int
	Height int
}

// NewModel wires the dashboard to a runner that is already running:
// updates is its stats channel, done receives Run's return value and
// cancel stops it early.
func NewModel(r *runner.Runner, updates runner.StatsUpdateChan, done <-chan error, cancel context.CancelFunc, ts check.Thresholds) Model {
	return Model{
		Runner:     r,
		Thresholds: ts,
		updates:    updates,
		done:       done,
		cancel:     cancel,
		live:       live.NewModel(r.Cfg.TotalDuration()),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForDone(m.done))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.live, cmd = m.live.Update(msg)
		m.result, _ = m.result.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Finished {
				return m, tea.Quit
			}
			// Stop the run and wait for runDoneMsg to show results.
			m.Stopping = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case runner.StatsSnapshot:
		var cmd tea.Cmd
		m.live, cmd = m.live.Update(msg)
		if m.Finished {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case runDoneMsg:
		m.Finished = true
		m.Err = msg.err
		if msg.err != nil {
			return m, nil
		}
		s, err := report.Build(m.Runner, m.Thresholds)
		if err != nil {
			m.Err = err
			return m, nil
		}
		m.result = result.NewModel(s)
		m.result.Width, m.result.Height = m.Width, m.Height
		return m, nil

	default:
		var cmd tea.Cmd
		m.live, cmd = m.live.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("🐊 Soak Test: " + m.Runner.Cfg.BaseURL))
	s.WriteString("\n\n")

	switch {
	case m.Finished && m.Err != nil:
		s.WriteString(styles.Error.Render(fmt.Sprintf("Run failed: %v", m.Err)))
		s.WriteString("\n\n")
		s.WriteString(styles.RenderKey("q", "quit"))
	case m.Finished:
		s.WriteString(m.result.View())
	default:
		s.WriteString(m.live.View())
		s.WriteString("\n")
		if m.Stopping {
			s.WriteString(styles.Warn.Render("Stopping, waiting for in-flight requests..."))
		} else {
			s.WriteString(styles.RenderKey("q", "stop"))
		}
	}
	return s.String()
}

func waitForUpdate(updates runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func waitForDone(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return runDoneMsg{err: <-done}
	}
}
