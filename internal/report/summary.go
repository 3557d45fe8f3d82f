// Package report turns a finished run into a summary, a verdict and
// report files.
package report

import (
	"sync/atomic"
	"time"

	"soakq/internal/check"
	"soakq/internal/phase"
	"soakq/internal/runner"
	"soakq/internal/stats"
)

// Verdict is the overall stability call for a soak run.
type Verdict string

const (
	VerdictSignificant    Verdict = "SIGNIFICANT DEGRADATION DETECTED"
	VerdictModerate       Verdict = "MODERATE DEGRADATION DETECTED"
	VerdictElevatedErrors Verdict = "ELEVATED ERROR RATE"
	VerdictStable         Verdict = "SYSTEM STABLE"
)

// Analyze picks the verdict from the response time range and error rate.
// Degradation outranks errors; see Summary.DegradationPct.
func Analyze(degradationPct, errorRate float64) Verdict {
	switch {
	case degradationPct > 50:
		return VerdictSignificant
	case degradationPct > 25:
		return VerdictModerate
	case errorRate > 0.05:
		return VerdictElevatedErrors
	default:
		return VerdictStable
	}
}

// PhaseLatency summarizes one phase tag.
type PhaseLatency struct {
	Phase    phase.Phase `json:"phase"`
	Requests int64       `json:"requests"`
	AvgMs    float64     `json:"avg_ms"`
	P95Ms    float64     `json:"p95_ms"`
	MaxMs    float64     `json:"max_ms"`
}

type Summary struct {
	Title      string        `json:"title"`
	Target     string        `json:"target"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Config     runner.Config `json:"config"`

	TotalRequests uint64  `json:"total_requests"`
	Success       uint64  `json:"success"`
	Fail          uint64  `json:"fail"`
	ErrorRate     float64 `json:"error_rate"`

	MinMs float64 `json:"min_ms"`
	AvgMs float64 `json:"avg_ms"`
	P95Ms float64 `json:"p95_ms"`
	MaxMs float64 `json:"max_ms"`

	// RangeMs is max - min; DegradationPct is RangeMs relative to min.
	RangeMs        float64 `json:"range_ms"`
	DegradationPct float64 `json:"degradation_pct"`

	BaselineMs  *float64            `json:"baseline_ms,omitempty"`
	Degradation stats.TrendSnapshot `json:"performance_degradation"`
	LeakFlags   int64               `json:"memory_leak_flags"`
	LeakRate    float64             `json:"memory_leak_rate"`
	ChecksRate  float64             `json:"checks_rate"`

	Phases     []PhaseLatency `json:"phases"`
	Thresholds []check.Result `json:"thresholds"`
	Errors     map[string]int `json:"errors,omitempty"`
	Verdict    Verdict        `json:"verdict"`
}

// ThresholdsPassed reports whether every threshold held.
func (s Summary) ThresholdsPassed() bool {
	return check.AllPassed(s.Thresholds)
}

// Build assembles the summary of a finished run and evaluates ts.
func Build(r *runner.Runner, ts check.Thresholds) (Summary, error) {
	st := r.Stats
	s := Summary{
		Title:         "Soak Test Report - Long-term Stability Analysis",
		Target:        r.Cfg.BaseURL,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Config:        r.Cfg,
		TotalRequests: atomic.LoadUint64(&st.Requests),
		Success:       atomic.LoadUint64(&st.Success),
		Fail:          atomic.LoadUint64(&st.Fail),
		ErrorRate:     st.ErrorRate(),
		MinMs:         st.MinMs(),
		AvgMs:         st.AvgMs(),
		P95Ms:         st.GetP95Ms(),
		MaxMs:         st.MaxMs(),
		Degradation:   r.Tracker.Degradation(),
		LeakFlags:     r.Tracker.Leaks().Hits(),
		LeakRate:      r.Tracker.Leaks().Value(),
		ChecksRate:    st.Checks.Value(),
		Errors:        st.GetErrorCounts(),
	}

	s.RangeMs = s.MaxMs - s.MinMs
	if s.MinMs > 0 {
		s.DegradationPct = s.RangeMs / s.MinMs * 100
	}
	if b, ok := r.Tracker.Baseline(); ok {
		s.BaselineMs = &b
	}

	for _, p := range phase.All {
		h := st.ByPhase[p]
		n := h.TotalCount()
		if n == 0 {
			continue
		}
		s.Phases = append(s.Phases, PhaseLatency{
			Phase:    p,
			Requests: n,
			AvgMs:    h.Mean() / 1000.0,
			P95Ms:    h.QuantileMs(95),
			MaxMs:    float64(h.Max()) / 1000.0,
		})
	}

	results, err := ts.Evaluate(runSource{r: r})
	if err != nil {
		return s, err
	}
	s.Thresholds = results
	s.Verdict = Analyze(s.DegradationPct, s.ErrorRate)
	return s, nil
}
