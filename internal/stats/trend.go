package stats

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Trend accumulates a distribution of millisecond values that may be
// negative. Count, min, max and mean are exact. Percentiles come from two
// histograms, one for values >= 0 and one for the magnitudes of negative
// values, so a run that mostly speeds up still reports negative quantiles.
type Trend struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
	pos   *hdrhistogram.Histogram
	neg   *hdrhistogram.Histogram
}

// TrendSnapshot is a point-in-time copy of a Trend.
type TrendSnapshot struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

func NewTrend() *Trend {
	return &Trend{
		min: math.Inf(1),
		max: math.Inf(-1),
		pos: hdrhistogram.New(1, maxTrackableUs, 3),
		neg: hdrhistogram.New(1, maxTrackableUs, 3),
	}
}

// Add appends one sample in milliseconds.
func (t *Trend) Add(ms float64) {
	us := int64(math.Abs(ms) * 1000)
	if us > maxTrackableUs {
		us = maxTrackableUs
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.sum += ms
	if ms < t.min {
		t.min = ms
	}
	if ms > t.max {
		t.max = ms
	}
	if ms < 0 {
		t.neg.RecordValue(us)
	} else {
		t.pos.RecordValue(us)
	}
}

func (t *Trend) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Quantile returns the q-th percentile (0..100) in milliseconds, or 0
// when the trend is empty.
func (t *Trend) Quantile(q float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quantile(q)
}

func (t *Trend) quantile(q float64) float64 {
	negN, posN := t.neg.TotalCount(), t.pos.TotalCount()
	total := negN + posN
	if total == 0 {
		return 0
	}
	q = math.Max(0, math.Min(100, q))

	// rank is 1-based over all samples sorted ascending.
	rank := int64(math.Ceil(q / 100 * float64(total)))
	if rank < 1 {
		rank = 1
	}
	if rank <= negN {
		// The most negative value has the largest magnitude, so walk
		// the negative histogram from the top.
		j := negN - rank + 1
		return -float64(t.neg.ValueAtQuantile(100*float64(j)/float64(negN))) / 1000.0
	}
	j := rank - negN
	return float64(t.pos.ValueAtQuantile(100*float64(j)/float64(posN))) / 1000.0
}

func (t *Trend) Snapshot() TrendSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return TrendSnapshot{}
	}
	return TrendSnapshot{
		Count: t.count,
		Min:   t.min,
		Max:   t.max,
		Avg:   t.sum / float64(t.count),
		P50:   t.quantile(50),
		P90:   t.quantile(90),
		P95:   t.quantile(95),
		P99:   t.quantile(99),
	}
}

// Rate counts boolean samples; Value is the fraction that were true.
type Rate struct {
	total atomic.Int64
	hits  atomic.Int64
	last  atomic.Int64
}

func (r *Rate) Add(hit bool) {
	r.total.Add(1)
	if hit {
		r.hits.Add(1)
		r.last.Store(1)
	} else {
		r.last.Store(0)
	}
}

func (r *Rate) Total() int64 { return r.total.Load() }
func (r *Rate) Hits() int64  { return r.hits.Load() }

// Last is the most recently added sample as 0 or 1.
func (r *Rate) Last() int64 { return r.last.Load() }

func (r *Rate) Value() float64 {
	total := r.total.Load()
	if total == 0 {
		return 0
	}
	return float64(r.hits.Load()) / float64(total)
}
