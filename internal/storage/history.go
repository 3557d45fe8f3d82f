package storage

import (
	"time"

	"github.com/google/uuid"

	"soakq/internal/report"
	"soakq/internal/runner"
)

type HistoryItem struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Config    runner.Config `json:"config"`
	Summary   RunSummary    `json:"summary"`
}

type RunSummary struct {
	TotalRequests  uint64         `json:"total_requests"`
	Success        uint64         `json:"success"`
	Fail           uint64         `json:"fail"`
	AvgLatencyMs   float64        `json:"avg_latency_ms"`
	P95LatencyMs   float64        `json:"p95_latency_ms"`
	BaselineMs     float64        `json:"baseline_ms"`
	DegradationPct float64        `json:"degradation_pct"`
	LeakFlags      int64          `json:"leak_flags"`
	Verdict        report.Verdict `json:"verdict"`
	Passed         bool           `json:"thresholds_passed"`
}

// NewHistoryItem condenses a run summary for storage.
func NewHistoryItem(s report.Summary) HistoryItem {
	rs := RunSummary{
		TotalRequests:  s.TotalRequests,
		Success:        s.Success,
		Fail:           s.Fail,
		AvgLatencyMs:   s.AvgMs,
		P95LatencyMs:   s.P95Ms,
		DegradationPct: s.DegradationPct,
		LeakFlags:      s.LeakFlags,
		Verdict:        s.Verdict,
		Passed:         s.ThresholdsPassed(),
	}
	if s.BaselineMs != nil {
		rs.BaselineMs = *s.BaselineMs
	}

	ts := s.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return HistoryItem{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Config:    s.Config,
		Summary:   rs,
	}
}
