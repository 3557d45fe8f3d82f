package result

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"soakq/internal/report"
	"soakq/internal/tui/styles"
)

type Model struct {
	Summary report.Summary

	Width  int
	Height int
}

func NewModel(s report.Summary) Model {
	return Model{Summary: s}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	sum := m.Summary

	s.WriteString(styles.Title.Render("📊 Soak Test Complete"))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")
	overview := fmt.Sprintf(
		"Total Requests: %d\nSuccess:        %d\nFailed:         %d\nError Rate:     %.2f%%\nChecks:         %.2f%%",
		sum.TotalRequests, sum.Success, sum.Fail, sum.ErrorRate*100, sum.ChecksRate*100,
	)
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Response Times"))
	s.WriteString("\n")
	latency := fmt.Sprintf(
		"Min: %.2f ms\nAvg: %.2f ms\nP95: %.2f ms\nMax: %.2f ms\nRange: %.2f ms (%.1f%%)",
		sum.MinMs, sum.AvgMs, sum.P95Ms, sum.MaxMs, sum.RangeMs, sum.DegradationPct,
	)
	s.WriteString(styles.Box.Render(latency))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Stability"))
	s.WriteString("\n")
	baseline := "not established"
	if sum.BaselineMs != nil {
		baseline = fmt.Sprintf("%.2f ms", *sum.BaselineMs)
	}
	stability := fmt.Sprintf(
		"Baseline:        %s\nDegradation P95: %.2f ms\nLeak Flags:      %d (%.2f%%)",
		baseline, sum.Degradation.P95, sum.LeakFlags, sum.LeakRate*100,
	)
	s.WriteString(styles.Box.Render(stability))
	s.WriteString("\n\n")

	if len(sum.Thresholds) > 0 {
		var lines []string
		for _, t := range sum.Thresholds {
			mark := styles.Success.Render("✓")
			if !t.Passed {
				mark = styles.Error.Render("✗")
			}
			lines = append(lines, fmt.Sprintf("%s %s %s", mark, t.Metric, t.Threshold))
		}
		s.WriteString(styles.Active.Render("Thresholds"))
		s.WriteString("\n")
		s.WriteString(styles.Box.Render(strings.Join(lines, "\n")))
		s.WriteString("\n\n")
	}

	s.WriteString(verdictStyle(sum.Verdict).Render(string(sum.Verdict)))
	s.WriteString("\n\n")
	s.WriteString(styles.RenderKey("q", "quit"))

	return s.String()
}

func verdictStyle(v report.Verdict) lipgloss.Style {
	switch v {
	case report.VerdictSignificant:
		return styles.Error
	case report.VerdictModerate, report.VerdictElevatedErrors:
		return styles.Warn
	default:
		return styles.Success
	}
}
