package runner

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type runMetrics struct {
	requests          *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	checks            *prometheus.CounterVec
	consecutiveErrors prometheus.Counter
	activeVUs         prometheus.Gauge
}

func newRunMetrics(reg prometheus.Registerer) (*runMetrics, error) {
	m := &runMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soakq_http_reqs_total",
				Help: "Requests sent, by phase, endpoint and status class",
			},
			[]string{"phase", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soakq_http_req_duration_seconds",
				Help:    "Request duration in seconds, by phase",
				Buckets: []float64{.05, .1, .25, .5, .8, 1, 1.2, 2, 5, 10},
			},
			[]string{"phase"},
		),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soakq_checks_total",
				Help: "Check outcomes by check name",
			},
			[]string{"check", "result"},
		),
		consecutiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soakq_consecutive_errors_total",
			Help: "Iterations whose main checks failed",
		}),
		activeVUs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soakq_active_vus",
			Help: "Virtual users the schedule currently allows",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.checks, m.consecutiveErrors, m.activeVUs} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register runner metrics: %w", err)
		}
	}
	return m, nil
}

func statusClass(status int) string {
	if status == 0 {
		return "none"
	}
	return fmt.Sprintf("%dxx", status/100)
}
