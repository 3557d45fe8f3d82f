package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"soakq/internal/check"
	"soakq/internal/phase"
	"soakq/internal/profile"
	"soakq/internal/stats"
	"soakq/internal/tracker"
)

const (
	// maxBodyBytes caps how much of each response body is kept for checks.
	maxBodyBytes = 1 << 20
	// setupAttempts bounds the reachability check before the run starts.
	setupAttempts = 3
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64
	Inflight int64

	Elapsed   time.Duration
	Phase     phase.Phase
	ActiveVUs int

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P95Ms float64
	P99Ms float64
	MaxMs float64

	BaselineMs       float64
	HasBaseline      bool
	DegradationP95Ms float64
	LeakFlags        int64
	ChecksRate       float64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

type vuState struct {
	id     int
	iter   int64
	streak tracker.Streak
}

type Runner struct {
	Cfg      Config
	Stats    *stats.Stats
	Tracker  *tracker.Tracker
	Registry *prometheus.Registry
	Client   *http.Client

	StartedAt  time.Time
	FinishedAt time.Time

	mu      sync.Mutex
	results []ExperimentResult

	inflight int64
	profile  profile.Profile
	schedule phase.Schedule
	wall     *phase.WallClock
	clock    phase.Clock
	started  atomic.Bool

	// lastPhase is the tag of the most recent iteration
	lastPhase atomic.Value

	engine       *TemplateEngine
	detailTmpl   *template.Template
	mainChecks   check.Set
	detailChecks check.Set
	metrics      *runMetrics
	log          *zap.Logger

	// Event Channel
	Updates StatsUpdateChan
}

func NewRunner(cfg Config, updates StatsUpdateChan, log *zap.Logger) (*Runner, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}

	client := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Transport: t,
	}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}
	if log == nil {
		log = zap.NewNop()
	}

	prof, err := cfg.VUProfile()
	if err != nil {
		return nil, err
	}

	engine := NewTemplateEngine()
	detail, err := engine.Parse("detail", cfg.DetailPath)
	if err != nil {
		return nil, fmt.Errorf("parse detail path: %w", err)
	}

	reg := prometheus.NewRegistry()
	tr, err := tracker.New(reg)
	if err != nil {
		return nil, err
	}
	m, err := newRunMetrics(reg)
	if err != nil {
		tr.Close()
		return nil, err
	}

	return &Runner{
		Cfg:          cfg,
		Stats:        stats.NewStats(),
		Tracker:      tr,
		Registry:     reg,
		Client:       client,
		profile:      prof,
		schedule:     prof.Schedule(),
		engine:       engine,
		detailTmpl:   detail,
		mainChecks:   check.MainChecks(),
		detailChecks: check.DetailChecks(),
		metrics:      m,
		log:          log,
		Updates:      updates,
	}, nil
}

// Close releases the tracker. Call it once the run and its reporting are done.
func (r *Runner) Close() {
	r.Tracker.Close()
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

// Snapshot captures the current state of the run.
func (r *Runner) Snapshot() StatsSnapshot {
	var elapsed time.Duration
	p := phase.RampUp
	if r.started.Load() {
		elapsed = time.Since(r.StartedAt)
		p = r.currentPhase()
	}

	s := StatsSnapshot{
		Requests:   atomic.LoadUint64(&r.Stats.Requests),
		Success:    atomic.LoadUint64(&r.Stats.Success),
		Fail:       atomic.LoadUint64(&r.Stats.Fail),
		Bytes:      atomic.LoadUint64(&r.Stats.Bytes),
		Inflight:   atomic.LoadInt64(&r.inflight),
		Elapsed:    elapsed,
		Phase:      p,
		ActiveVUs:  r.activeUsers(elapsed),
		P50Ms:      r.Stats.GetP50Ms(),
		P95Ms:      r.Stats.GetP95Ms(),
		P99Ms:      r.Stats.GetP99Ms(),
		MaxMs:      r.Stats.MaxMs(),
		LeakFlags:  r.Tracker.Leaks().Hits(),
		ChecksRate: r.Stats.Checks.Value(),
	}
	s.BaselineMs, s.HasBaseline = r.Tracker.Baseline()
	s.DegradationP95Ms = r.Tracker.Degradation().P95
	return s
}

// currentPhase is the phase requests are being tagged with right now.
// Under the iteration clock that is whatever the latest iteration was
// tagged, since wall time and iteration counts disagree.
func (r *Runner) currentPhase() phase.Phase {
	if r.Cfg.Clock == ClockIteration {
		if p, ok := r.lastPhase.Load().(phase.Phase); ok {
			return p
		}
		return phase.RampUp
	}
	return phase.Classify(r.wall.Elapsed(0), r.schedule)
}

func (r *Runner) sendUpdate() {
	s := r.Snapshot()
	r.metrics.activeVUs.Set(float64(s.ActiveVUs))

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run drives the whole ramp-up / soak / ramp-down schedule and returns
// when it ends or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.setup(ctx)

	r.StartedAt = time.Now()
	r.wall = phase.NewWallClock(r.StartedAt)
	if r.Cfg.Clock == ClockIteration {
		r.clock = phase.IterationClock{SecondsPerIteration: r.Cfg.SecondsPerIteration}
	} else {
		r.clock = r.wall
	}
	r.started.Store(true)

	tickCtx, stopTicks := context.WithCancel(ctx)
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	err := r.runUsers(ctx)

	stopTicks()
	r.FinishedAt = time.Now()
	r.sendUpdate()
	r.teardown()
	return err
}

func (r *Runner) setup(ctx context.Context) {
	r.log.Info("soak test starting",
		zap.String("target", r.Cfg.BaseURL),
		zap.String("profile", r.profile.Name),
		zap.Stringer("stages", r.profile),
		zap.Int64("ramp_up_s", r.schedule.RampUp),
		zap.Int64("soak_s", r.schedule.Soak),
		zap.Int64("ramp_down_s", r.schedule.RampDown),
		zap.Int("max_vus", r.profile.MaxTarget()),
		zap.String("clock", r.Cfg.Clock),
	)

	status, err := r.checkReachable(ctx)
	if err != nil {
		r.log.Warn("target may not be accessible", zap.Int("attempts", setupAttempts), zap.Error(err))
		return
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		r.log.Warn("target may not be accessible", zap.Int("status", status))
		return
	}
	r.log.Info("target is accessible", zap.Int("status", status))
}

// checkReachable GETs the base URL, retrying transport errors with backoff. Any
// HTTP status counts as an answer.
func (r *Runner) checkReachable(ctx context.Context) (int, error) {
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 2 * time.Second, Factor: 2}

	var lastErr error
	for attempt := 1; attempt <= setupAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Cfg.BaseURL, nil)
		if err != nil {
			return 0, err
		}
		resp, err := r.Client.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return resp.StatusCode, nil
		}
		lastErr = err

		if attempt == setupAttempts {
			break
		}
		r.log.Debug("setup request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if !sleepCtx(ctx, b.Duration()) {
			break
		}
	}
	return 0, lastErr
}

func (r *Runner) teardown() {
	r.log.Info("soak test completed",
		zap.Time("started_at", r.StartedAt),
		zap.Time("completed_at", r.FinishedAt),
		zap.Uint64("requests", atomic.LoadUint64(&r.Stats.Requests)),
	)
}

func (r *Runner) runUsers(ctx context.Context) error {
	totalDur := r.profile.Total()
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < r.profile.MaxTarget(); i++ {
		vu := &vuState{id: i}
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				elapsed := time.Since(r.StartedAt)
				if elapsed >= totalDur {
					return nil
				}
				if vu.id >= r.activeUsers(elapsed) {
					if !sleepCtx(gctx, 100*time.Millisecond) {
						return nil
					}
					continue
				}
				r.iteration(gctx, vu)
			}
		})
	}
	return g.Wait()
}

// iteration is one pass of the soak body for a single VU.
func (r *Runner) iteration(ctx context.Context, vu *vuState) {
	p := phase.Classify(r.clock.Elapsed(vu.iter), r.schedule)
	r.lastPhase.Store(p)
	defer func() { vu.iter++ }()

	mainURL := joinURL(r.Cfg.BaseURL, r.Cfg.MainPath)
	resp, ok := r.executeRequest(ctx, vu, p, EndpointMain, mainURL, uuid.New().String())
	if !ok {
		return
	}

	passed := r.mainChecks.Run(resp, r)
	if !passed {
		r.metrics.consecutiveErrors.Inc()
	}
	n := vu.streak.Track(passed)
	if vu.streak.Warn() {
		r.log.Warn("error streak detected",
			zap.Int("vu", vu.id),
			zap.Int("consecutive_failures", n),
			zap.String("phase", p.String()),
		)
	}

	if !r.think(ctx) {
		return
	}

	// The rendered path and the X-Request-ID header carry the same ID.
	detailID := uuid.New().String()
	path, err := r.engine.Execute(r.detailTmpl, TemplateData{
		VU:        vu.id,
		Iteration: vu.iter,
		RequestID: detailID,
	})
	if err != nil {
		r.log.Error("render detail path", zap.Error(err))
		return
	}
	resp, ok = r.executeRequest(ctx, vu, p, EndpointDetail, joinURL(r.Cfg.BaseURL, path), detailID)
	if !ok {
		return
	}
	r.detailChecks.Run(resp, r)

	r.think(ctx)
}

// executeRequest performs one GET sent with reqID as X-Request-ID. ok is
// false when ctx was cancelled mid-flight; such requests are not recorded.
func (r *Runner) executeRequest(ctx context.Context, vu *vuState, p phase.Phase, endpoint, url, reqID string) (check.Response, bool) {
	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	res := ExperimentResult{
		TimeStamp: time.Now(),
		VU:        vu.id,
		Iteration: vu.iter,
		Phase:     p,
		Endpoint:  endpoint,
		URL:       url,
		RequestID: reqID,
	}

	var out check.Response
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err == nil {
		for k, v := range r.Cfg.Headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("X-Request-ID", reqID)

		var resp *http.Response
		resp, err = r.Client.Do(req)
		if err == nil {
			out.Status = resp.StatusCode
			out.Body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			resp.Body.Close()
		}
	}
	out.Duration = time.Since(start)
	out.Err = err

	if ctx.Err() != nil {
		return out, false
	}

	res.Latency = out.Duration
	res.Status = out.Status
	res.Bytes = int64(len(out.Body))
	res.Success = err == nil && out.Status >= 200 && out.Status < 300

	switch {
	case err != nil:
		res.Err = err.Error()
	case !res.Success:
		res.Err = fmt.Sprintf("HTTP %d", out.Status)
	}

	r.Stats.AddRequest(p, res.Success, res.Bytes, res.Latency, res.Err)
	r.metrics.requests.WithLabelValues(p.String(), endpoint, statusClass(out.Status)).Inc()
	r.metrics.duration.WithLabelValues(p.String()).Observe(res.Latency.Seconds())

	ms := float64(res.Latency.Microseconds()) / 1000.0
	if obs, ok := r.Tracker.Record(ms, res.Success); ok {
		d := obs.DegradationMs
		res.DegradationMs = &d
	}

	if r.Cfg.KeepResults {
		r.mu.Lock()
		r.results = append(r.results, res)
		r.mu.Unlock()
	}
	return out, true
}

// RecordCheck implements check.Recorder.
func (r *Runner) RecordCheck(name string, ok bool) {
	r.Stats.Checks.Add(ok)
	result := "pass"
	if !ok {
		result = "fail"
	}
	r.metrics.checks.WithLabelValues(name, result).Inc()
}

// think pauses for a random time in [ThinkMin, ThinkMax]. It returns
// false if ctx ended first.
func (r *Runner) think(ctx context.Context) bool {
	d := r.Cfg.ThinkMin
	if spread := r.Cfg.ThinkMax - r.Cfg.ThinkMin; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	if d <= 0 {
		return ctx.Err() == nil
	}
	return sleepCtx(ctx, d)
}

// activeUsers is how many VUs the load profile allows at elapsed.
func (r *Runner) activeUsers(elapsed time.Duration) int {
	return r.profile.Target(elapsed)
}

// Profile returns the resolved load profile.
func (r *Runner) Profile() profile.Profile {
	return r.profile
}

// Results returns a copy of per-request results kept when KeepResults is set.
func (r *Runner) Results() []ExperimentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExperimentResult, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
