package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soakq/internal/check"
	"soakq/internal/phase"
	"soakq/internal/runner"
)

func newRunner(t *testing.T) *runner.Runner {
	t.Helper()
	r, err := runner.NewRunner(runner.Config{
		BaseURL:    "http://target",
		DetailPath: "/public/crocodiles/1/",
		RampUp:     "1m",
		SoakTime:   "5m",
		RampDown:   "1m",
		VUs:        10,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func feed(r *runner.Runner, p phase.Phase, ms float64, ok bool) {
	d := time.Duration(ms * float64(time.Millisecond))
	errMsg := ""
	if !ok {
		errMsg = "HTTP 500"
	}
	r.Stats.AddRequest(p, ok, 10, d, errMsg)
	r.Stats.Checks.Add(ok)
	r.Tracker.Record(ms, ok)
}

func TestAnalyze(t *testing.T) {
	assert.Equal(t, VerdictSignificant, Analyze(51, 0))
	assert.Equal(t, VerdictSignificant, Analyze(80, 0.5))
	assert.Equal(t, VerdictModerate, Analyze(26, 0.5))
	assert.Equal(t, VerdictModerate, Analyze(50, 0))
	assert.Equal(t, VerdictElevatedErrors, Analyze(25, 0.06))
	assert.Equal(t, VerdictStable, Analyze(25, 0.05))
	assert.Equal(t, VerdictStable, Analyze(0, 0))
}

func TestBuild_Stable(t *testing.T) {
	r := newRunner(t)
	for i := 0; i < 100; i++ {
		feed(r, phase.Baseline, 100, true)
		feed(r, phase.Midpoint, 110, true)
		feed(r, phase.Endgame, 120, true)
	}

	s, err := Build(r, check.SoakThresholds())
	require.NoError(t, err)

	assert.Equal(t, uint64(300), s.TotalRequests)
	assert.Equal(t, 0.0, s.ErrorRate)
	assert.InDelta(t, 100, s.MinMs, 0.5)
	assert.InDelta(t, 120, s.MaxMs, 0.5)
	assert.InDelta(t, 20, s.DegradationPct, 1)
	assert.Equal(t, VerdictStable, s.Verdict)
	require.NotNil(t, s.BaselineMs)
	assert.Equal(t, 100.0, *s.BaselineMs)
	assert.Equal(t, int64(0), s.LeakFlags)

	require.Len(t, s.Phases, 3)
	assert.Equal(t, phase.Baseline, s.Phases[0].Phase)
	assert.True(t, s.ThresholdsPassed())
}

func TestBuild_LeakingTarget(t *testing.T) {
	r := newRunner(t)
	feed(r, phase.Baseline, 100, true)
	for i := 0; i < 50; i++ {
		feed(r, phase.Endgame, 1500, true)
	}

	s, err := Build(r, check.SoakThresholds())
	require.NoError(t, err)

	assert.Equal(t, VerdictSignificant, s.Verdict)
	assert.Equal(t, int64(50), s.LeakFlags)
	assert.False(t, s.ThresholdsPassed())

	failed := map[string]bool{}
	for _, res := range s.Thresholds {
		if !res.Passed {
			failed[res.Metric] = true
		}
	}
	assert.True(t, failed[check.MetricDegradation])
	assert.True(t, failed[check.MetricReqDuration+"{type:endgame}"])
}

func TestBuild_NoSuccess(t *testing.T) {
	r := newRunner(t)
	for i := 0; i < 10; i++ {
		feed(r, phase.Baseline, 50, false)
	}

	s, err := Build(r, check.SoakThresholds())
	require.NoError(t, err)
	assert.Nil(t, s.BaselineMs)
	assert.Equal(t, 1.0, s.ErrorRate)
	assert.Equal(t, VerdictElevatedErrors, s.Verdict)
	assert.Equal(t, map[string]int{"HTTP 500": 10}, s.Errors)
}

func TestBuild_Empty(t *testing.T) {
	s, err := Build(newRunner(t), check.SoakThresholds())
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.DegradationPct)
	assert.Equal(t, VerdictStable, s.Verdict)
	for _, res := range s.Thresholds {
		assert.True(t, res.NoData, res.Metric)
	}
}

func TestBuild_DegradationAnyPercentile(t *testing.T) {
	r := newRunner(t)
	feed(r, phase.Baseline, 100, true)
	for i := 0; i < 50; i++ {
		feed(r, phase.Endgame, 3000, true)
	}

	s, err := Build(r, check.Thresholds{
		check.MetricDegradation: {"p(75)<500", "p(33.3)<500"},
	})
	require.NoError(t, err)
	require.Len(t, s.Thresholds, 2)
	for _, res := range s.Thresholds {
		assert.False(t, res.Passed, res.Threshold)
		assert.False(t, res.NoData, res.Threshold)
		assert.InDelta(t, 2900, res.Observed, 5, res.Threshold)
	}
}

func TestBuild_RejectsUnknownThresholds(t *testing.T) {
	r := newRunner(t)
	feed(r, phase.Baseline, 100, true)
	for i := 0; i < 50; i++ {
		feed(r, phase.Endgame, 3000, true)
	}

	for _, ts := range []check.Thresholds{
		{"http_req_durration": {"p(95)<1"}},
		{check.MetricReqDuration: {"rate<0.01"}},
		{check.MetricReqDuration + "{type:soak}": {"p(95)<1"}},
	} {
		_, err := Build(r, ts)
		assert.Error(t, err, "%v", ts)
	}
}

func TestRunSource_Stat(t *testing.T) {
	r := newRunner(t)
	src := runSource{r: r}

	_, ok := src.Stat(check.MetricDegradation, "p(75)")
	assert.False(t, ok)

	feed(r, phase.Baseline, 100, true)
	feed(r, phase.Baseline, 60, true)

	v, ok := src.Stat(check.MetricDegradation, "min")
	require.True(t, ok)
	assert.Equal(t, -40.0, v)

	v, ok = src.Stat(check.MetricDegradation, "p(10)")
	require.True(t, ok)
	assert.InDelta(t, -40, v, 0.1)

	v, ok = src.Stat(check.MetricReqDuration+"{phase:baseline}", "count")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = src.Stat(check.MetricReqDuration+"{type:endgame}", "p(95)")
	assert.False(t, ok)
}

func TestWriteText(t *testing.T) {
	r := newRunner(t)
	feed(r, phase.Baseline, 100, true)
	feed(r, phase.Endgame, 300, true)
	s, err := Build(r, check.SoakThresholds())
	require.NoError(t, err)

	var buf bytes.Buffer
	WriteText(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "SOAK TEST ANALYSIS")
	assert.Contains(t, out, "Total Requests: 2")
	assert.Contains(t, out, string(VerdictSignificant))
	assert.Contains(t, out, "endgame")
}

func TestExports(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t)
	feed(r, phase.Baseline, 100, true)
	s, err := Build(r, check.SoakThresholds())
	require.NoError(t, err)

	jsonPath := filepath.Join(dir, "out_summary.json")
	require.NoError(t, ExportJSON(s, jsonPath))
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, string(VerdictStable), decoded["verdict"])
	assert.EqualValues(t, 1, decoded["total_requests"])

	htmlPath := filepath.Join(dir, "out.html")
	require.NoError(t, ExportHTML(s, htmlPath))
	page, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Soak Test Report")
	assert.Contains(t, string(page), "100.00 ms")

	deg := 12.5
	results := []runner.ExperimentResult{
		{TimeStamp: time.UnixMilli(1000), Latency: 150 * time.Millisecond, Status: 200, Success: true, Bytes: 42, VU: 1, Phase: phase.Baseline, Endpoint: runner.EndpointMain, URL: "http://target/x", DegradationMs: &deg},
		{TimeStamp: time.UnixMilli(2000), Status: 0, VU: 2, Phase: phase.RampUp, Endpoint: runner.EndpointDetail, Err: "timeout"},
	}
	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, ExportCSV(results, csvPath))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1000", "150", "main", "200", "OK", "VU 1", "text", "true", "", "42", "http://target/x", "baseline", "12.500"}, rows[1])
	assert.Equal(t, "timeout", rows[2][8])
	assert.Equal(t, "", rows[2][12])
}
