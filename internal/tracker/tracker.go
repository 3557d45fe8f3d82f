// Package tracker keeps the run-wide performance baseline and derives
// degradation and leak signals from every observed response.
package tracker

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"soakq/internal/stats"
)

// LeakThresholdMs is how far above baseline a response must be before it
// counts as a leak indicator.
const LeakThresholdMs = 1000.0

// Observation is what Record derived from one response.
type Observation struct {
	DegradationMs float64
	Leak          int
}

// Tracker is shared by all virtual users of a run. Construct one per run
// with New and release it with Close.
type Tracker struct {
	baseline atomic.Pointer[float64]

	degradation *stats.Trend
	leaks       *stats.Rate

	reg           prometheus.Registerer
	degradHist    prometheus.Histogram
	leakGauge     prometheus.Gauge
	leaksTotal    prometheus.Counter
	baselineGauge prometheus.Gauge
}

// New builds a tracker and registers its collectors on reg. A nil reg
// keeps the collectors private.
func New(reg prometheus.Registerer) (*Tracker, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	t := &Tracker{
		degradation: stats.NewTrend(),
		leaks:       &stats.Rate{},
		reg:         reg,
		degradHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soakq_performance_degradation_ms",
			Help:    "Response time above the performance baseline in milliseconds",
			Buckets: []float64{-500, -100, 0, 100, 250, 500, 1000, 2000, 5000},
		}),
		leakGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soakq_memory_leak_indicator",
			Help: "1 when the last observation exceeded the leak threshold, else 0",
		}),
		leaksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soakq_memory_leak_flags_total",
			Help: "Observations that exceeded the leak threshold",
		}),
		baselineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soakq_performance_baseline_ms",
			Help: "First successful response time of the run",
		}),
	}

	var registered []prometheus.Collector
	for _, c := range t.collectors() {
		if err := reg.Register(c); err != nil {
			for _, r := range registered {
				reg.Unregister(r)
			}
			return nil, fmt.Errorf("register tracker metrics: %w", err)
		}
		registered = append(registered, c)
	}
	return t, nil
}

func (t *Tracker) collectors() []prometheus.Collector {
	return []prometheus.Collector{t.degradHist, t.leakGauge, t.leaksTotal, t.baselineGauge}
}

func (t *Tracker) unregister() {
	for _, c := range t.collectors() {
		t.reg.Unregister(c)
	}
}

// Close unregisters the tracker's collectors.
func (t *Tracker) Close() {
	t.unregister()
}

// Record feeds one response into the tracker. The first successful
// response fixes the baseline for the rest of the run. ok is false while
// no baseline exists, in which case nothing is recorded.
func (t *Tracker) Record(responseMs float64, succeeded bool) (obs Observation, ok bool) {
	if succeeded && t.baseline.Load() == nil {
		v := responseMs
		if t.baseline.CompareAndSwap(nil, &v) {
			t.baselineGauge.Set(v)
		}
	}

	base := t.baseline.Load()
	if base == nil {
		return Observation{}, false
	}

	obs.DegradationMs = responseMs - *base
	if obs.DegradationMs > LeakThresholdMs {
		obs.Leak = 1
	}

	t.degradation.Add(obs.DegradationMs)
	t.degradHist.Observe(obs.DegradationMs)
	t.leaks.Add(obs.Leak == 1)
	t.leakGauge.Set(float64(obs.Leak))
	if obs.Leak == 1 {
		t.leaksTotal.Inc()
	}
	return obs, true
}

// Baseline returns the baseline in milliseconds, if one has been set.
func (t *Tracker) Baseline() (float64, bool) {
	b := t.baseline.Load()
	if b == nil {
		return 0, false
	}
	return *b, true
}

// Degradation returns a snapshot of every degradation sample so far.
func (t *Tracker) Degradation() stats.TrendSnapshot {
	return t.degradation.Snapshot()
}

// DegradationTrend exposes the live degradation distribution for queries
// beyond the fixed snapshot percentiles.
func (t *Tracker) DegradationTrend() *stats.Trend {
	return t.degradation
}

// Leaks returns the leak indicator aggregate.
func (t *Tracker) Leaks() *stats.Rate {
	return t.leaks
}
