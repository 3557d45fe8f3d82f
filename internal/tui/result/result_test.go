package result

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"soakq/internal/check"
	"soakq/internal/report"
	"soakq/internal/tui/styles"
)

func TestView(t *testing.T) {
	baseline := 120.0
	m := NewModel(report.Summary{
		TotalRequests: 100,
		Success:       97,
		Fail:          3,
		BaselineMs:    &baseline,
		LeakFlags:     2,
		Thresholds: []check.Result{
			{Metric: check.MetricReqFailed, Threshold: "rate<0.01", Passed: false},
		},
		Verdict: report.VerdictModerate,
	})

	v := m.View()
	assert.Contains(t, v, "Total Requests: 100")
	assert.Contains(t, v, "120.00 ms")
	assert.Contains(t, v, "rate<0.01")
	assert.Contains(t, v, string(report.VerdictModerate))
}

func TestView_NoBaseline(t *testing.T) {
	v := NewModel(report.Summary{Verdict: report.VerdictStable}).View()
	assert.Contains(t, v, "not established")
}

func TestVerdictStyle(t *testing.T) {
	assert.Equal(t, styles.Error, verdictStyle(report.VerdictSignificant))
	assert.Equal(t, styles.Warn, verdictStyle(report.VerdictElevatedErrors))
	assert.Equal(t, styles.Success, verdictStyle(report.VerdictStable))
}
