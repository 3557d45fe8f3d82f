package report

import (
	"sync/atomic"

	"soakq/internal/check"
	"soakq/internal/phase"
	"soakq/internal/runner"
	"soakq/internal/stats"
)

// runSource exposes a runner's aggregates to threshold evaluation.
type runSource struct {
	r *runner.Runner
}

func (s runSource) Stat(metric, stat string) (float64, bool) {
	st := s.r.Stats
	name, tag, err := check.SplitMetric(metric)
	if err != nil {
		return 0, false
	}

	switch name {
	case check.MetricReqDuration:
		h := st.Duration
		if tag != "" {
			var ok bool
			h, ok = st.ByPhase[phase.Phase(tag)]
			if !ok {
				return 0, false
			}
		}
		return histogramStat(h, stat)

	case check.MetricReqFailed:
		reqs := atomic.LoadUint64(&st.Requests)
		if reqs == 0 {
			return 0, false
		}
		return rateStat(st.ErrorRate(), int64(reqs), stat)

	case check.MetricChecks:
		return rateStat(st.Checks.Value(), st.Checks.Total(), stat)

	case check.MetricDegradation:
		return trendStat(s.r.Tracker.DegradationTrend(), stat)
	}
	return 0, false
}

func histogramStat(h *stats.SafeHistogram, stat string) (float64, bool) {
	if h.TotalCount() == 0 {
		return 0, false
	}
	if q, ok := check.Percentile(stat); ok {
		return h.QuantileMs(q), true
	}
	switch stat {
	case "avg":
		return h.Mean() / 1000.0, true
	case "min":
		return float64(h.Min()) / 1000.0, true
	case "max":
		return float64(h.Max()) / 1000.0, true
	case "med":
		return h.QuantileMs(50), true
	case "count":
		return float64(h.TotalCount()), true
	}
	return 0, false
}

func trendStat(t *stats.Trend, stat string) (float64, bool) {
	snap := t.Snapshot()
	if snap.Count == 0 {
		return 0, false
	}
	if q, ok := check.Percentile(stat); ok {
		return t.Quantile(q), true
	}
	switch stat {
	case "avg":
		return snap.Avg, true
	case "min":
		return snap.Min, true
	case "max":
		return snap.Max, true
	case "med":
		return t.Quantile(50), true
	case "count":
		return float64(snap.Count), true
	}
	return 0, false
}

func rateStat(rate float64, total int64, stat string) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	switch stat {
	case "rate":
		return rate, true
	case "count":
		return float64(total), true
	}
	return 0, false
}
