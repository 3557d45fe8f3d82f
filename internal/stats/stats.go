package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"soakq/internal/phase"
)

// Stats holds real-time aggregated metrics for a run
type Stats struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64

	// Request duration (microseconds), overall and per phase tag
	Duration *SafeHistogram
	ByPhase  map[phase.Phase]*SafeHistogram

	// Check outcomes across all endpoints
	Checks *Rate

	errMu  sync.Mutex
	errors map[string]int
}

func NewStats() *Stats {
	byPhase := make(map[phase.Phase]*SafeHistogram, len(phase.All))
	for _, p := range phase.All {
		byPhase[p] = NewSafeHistogram()
	}
	return &Stats{
		Duration: NewSafeHistogram(),
		ByPhase:  byPhase,
		Checks:   &Rate{},
		errors:   make(map[string]int),
	}
}

// AddRequest records one completed request. errMsg is empty on success.
func (s *Stats) AddRequest(p phase.Phase, success bool, bytes int64, d time.Duration, errMsg string) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
	}
	if bytes > 0 {
		atomic.AddUint64(&s.Bytes, uint64(bytes))
	}

	us := d.Microseconds()
	s.Duration.RecordValue(us)
	if h, ok := s.ByPhase[p]; ok {
		h.RecordValue(us)
	}

	if errMsg != "" {
		s.errMu.Lock()
		s.errors[errMsg]++
		s.errMu.Unlock()
	}
}

// ErrorRate is the failed fraction of requests in [0,1].
func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return float64(fails) / float64(reqs)
}

func (s *Stats) GetP50Ms() float64 { return s.Duration.QuantileMs(50) }
func (s *Stats) GetP90Ms() float64 { return s.Duration.QuantileMs(90) }
func (s *Stats) GetP95Ms() float64 { return s.Duration.QuantileMs(95) }
func (s *Stats) GetP99Ms() float64 { return s.Duration.QuantileMs(99) }

func (s *Stats) AvgMs() float64 { return s.Duration.Mean() / 1000.0 }
func (s *Stats) MinMs() float64 { return float64(s.Duration.Min()) / 1000.0 }
func (s *Stats) MaxMs() float64 { return float64(s.Duration.Max()) / 1000.0 }

// GetErrorCounts returns a copy of failure messages and their counts.
func (s *Stats) GetErrorCounts() map[string]int {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make(map[string]int, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}
