package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"soakq/internal/runner"
	"soakq/internal/tracker"
	"soakq/internal/tui/components"
	"soakq/internal/tui/styles"
)

type Model struct {
	Stats    runner.StatsSnapshot
	Progress progress.Model

	LatencyLine     components.Sparkline
	DegradationLine components.Sparkline

	Duration time.Duration

	Width  int
	Height int
}

func NewModel(totalDur time.Duration) Model {
	return Model{
		Progress:        progress.New(progress.WithDefaultGradient()),
		LatencyLine:     components.NewSparkline(40, "Latency P95 (ms)", styles.Active),
		DegradationLine: components.NewSparkline(40, "Degradation P95 vs baseline (ms)", styles.Warn),
		Duration:        totalDur,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		m.LatencyLine.Add(msg.P95Ms)
		m.DegradationLine.Add(msg.DegradationP95Ms)
		m.Stats = msg

		pct := 1.0
		if m.Duration > 0 {
			pct = float64(msg.Elapsed) / float64(m.Duration)
		}
		if pct > 1.0 {
			pct = 1.0
		}
		cmd := m.Progress.SetPercent(pct)
		return m, cmd

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.LatencyLine.Width = half
		m.DegradationLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// ErrorRate is the failed share of requests as a percentage.
func (m Model) ErrorRate() float64 {
	if m.Stats.Requests == 0 {
		return 0
	}
	return float64(m.Stats.Fail) / float64(m.Stats.Requests) * 100
}

func (m Model) View() string {
	s := strings.Builder{}
	st := m.Stats

	errRate := m.ErrorRate()
	errColor := styles.Active
	if errRate > 5.0 {
		errColor = styles.Error
	} else if errRate > 1.0 {
		errColor = styles.Warn
	}

	col1 := fmt.Sprintf("PHASE: %s\nVUS:   %d",
		styles.Phase(st.Phase).Render(string(st.Phase)), st.ActiveVUs)
	col2 := fmt.Sprintf("REQ: %d\nINF: %d", st.Requests, st.Inflight)
	col3 := errColor.Render(fmt.Sprintf("ERR:  %.2f%%\nFAIL: %d", errRate, st.Fail))

	baseline := styles.Subtle.Render("pending")
	if st.HasBaseline {
		baseline = fmt.Sprintf("%.0f ms", st.BaselineMs)
	}
	leakStyle := styles.Active
	if st.LeakFlags > 0 {
		leakStyle = styles.Error
	}
	col4 := fmt.Sprintf("BASE:  %s\nLEAKS: %s", baseline, leakStyle.Render(fmt.Sprint(st.LeakFlags)))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.LatencyLine.View()),
		styles.Box.Render(m.DegradationLine.View()),
	))
	s.WriteString("\n\n")

	details := fmt.Sprintf(
		"P50: %.2f ms  |  P95: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms  |  Checks: %.1f%%",
		st.P50Ms, st.P95Ms, st.P99Ms, st.MaxMs, st.ChecksRate*100,
	)
	if st.DegradationP95Ms > tracker.LeakThresholdMs {
		details += "  |  " + styles.Error.Render("degradation above leak threshold")
	}
	box := styles.Box
	if m.Width > 4 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(details))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("%s / %s", st.Elapsed.Round(time.Second), m.Duration)))

	return s.String()
}
