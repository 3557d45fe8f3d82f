package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"soakq/internal/check"
	"soakq/internal/profile"
	"soakq/internal/report"
	"soakq/internal/runner"
	"soakq/internal/storage"
)

// ErrThresholdsFailed is returned when a run completes but at least one
// threshold did not hold.
var ErrThresholdsFailed = errors.New("thresholds failed")

// Options carries everything a run needs besides the runner config.
type Options struct {
	Thresholds  check.Thresholds
	HistoryPath string // empty disables history
	MetricsAddr string // empty disables the /metrics endpoint
	Log         *zap.Logger
	Out         io.Writer
}

func (o *Options) defaults() {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Thresholds == nil {
		o.Thresholds = check.SoakThresholds()
	}
}

// Start runs a soak test headless, printing a progress line until the
// schedule ends or ctx is cancelled, then reports.
func Start(ctx context.Context, cfg runner.Config, opts Options) error {
	opts.defaults()

	updates := make(runner.StatsUpdateChan, 100)
	r, err := runner.NewRunner(cfg, updates, opts.Log)
	if err != nil {
		return err
	}
	defer r.Close()
	printHeader(opts.Out, cfg, r.Profile())

	stop := ServeMetrics(opts.MetricsAddr, r, opts.Log)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	totalDuration := cfg.TotalDuration()
	var runErr error
loop:
	for {
		select {
		case s := <-updates:
			printProgress(opts.Out, s, totalDuration)
		case runErr = <-done:
			break loop
		}
	}
	fmt.Fprintln(opts.Out)

	if runErr != nil {
		return fmt.Errorf("soak run: %w", runErr)
	}
	return Finish(r, opts)
}

// Finish builds the summary of a completed run, prints it, writes any
// requested report files and records the run in history.
func Finish(r *runner.Runner, opts Options) error {
	opts.defaults()

	s, err := report.Build(r, opts.Thresholds)
	if err != nil {
		return fmt.Errorf("build summary: %w", err)
	}
	report.WriteText(opts.Out, s)

	if err := handleAutoReport(opts.Out, r, s); err != nil {
		return err
	}
	if opts.HistoryPath != "" {
		if err := saveHistory(opts.HistoryPath, s); err != nil {
			opts.Log.Warn("could not save run history", zap.String("path", opts.HistoryPath), zap.Error(err))
		}
	}

	if !s.ThresholdsPassed() {
		return ErrThresholdsFailed
	}
	return nil
}

// ServeMetrics exposes the runner's registry on addr until the returned
// stop func is called. An empty addr serves nothing.
func ServeMetrics(addr string, r *runner.Runner, log *zap.Logger) (stop func()) {
	if addr == "" {
		return func() {}
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func printHeader(w io.Writer, cfg runner.Config, p profile.Profile) {
	fmt.Fprintf(w, "\n🚀 STARTING SOAK TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target     : %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Endpoints  : %s , %s\n", cfg.MainPath, cfg.DetailPath)
	fmt.Fprintf(w, "Profile    : %s\n", p.Name)
	fmt.Fprintf(w, "VUs        : %d\n", p.MaxTarget())
	if p.Name == profile.NameSoak {
		fmt.Fprintf(w, "Stages     : %s (RampUp) + %s (Soak) + %s (RampDown) = %s\n",
			cfg.RampUp, cfg.SoakTime, cfg.RampDown, p.Total())
	} else {
		s := p.Schedule()
		fmt.Fprintf(w, "Stages     : %d (%ds up, %ds peak, %ds down) = %s\n",
			len(p.Stages), s.RampUp, s.Soak, s.RampDown, p.Total())
	}
	fmt.Fprintf(w, "Phase Clock: %s\n", cfg.Clock)
	fmt.Fprintf(w, "Timeout    : %ds\n", cfg.TimeoutSec)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func printProgress(w io.Writer, s runner.StatsSnapshot, total time.Duration) {
	pct := 1.0
	if total > 0 {
		pct = s.Elapsed.Seconds() / total.Seconds()
	}
	if pct > 1.0 {
		pct = 1.0
	}

	baseline := "-"
	if s.HasBaseline {
		baseline = fmt.Sprintf("%.0fms", s.BaselineMs)
	}

	fmt.Fprintf(w, "\r%s %3.0f%% | %s/%s | %-9s | VUs: %3d | OK: %d | Err: %d | Base: %s | Δp95: %.0fms | Leaks: %d",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second), total,
		s.Phase, s.ActiveVUs,
		s.Success, s.Fail,
		baseline, s.DegradationP95Ms, s.LeakFlags,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func handleAutoReport(w io.Writer, r *runner.Runner, s report.Summary) error {
	prefix := r.Cfg.OutPrefix
	if prefix == "" {
		return nil
	}

	fmt.Fprintf(w, "\n💾 Generating reports with prefix: %s\n", prefix)
	if err := report.ExportJSON(s, prefix+"_summary.json"); err != nil {
		return err
	}
	if err := report.ExportHTML(s, prefix+".html"); err != nil {
		return err
	}
	if err := report.ExportCSV(r.Results(), prefix+".csv"); err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ Reports saved to %s{_summary.json,.html,.csv}\n", prefix)
	return nil
}

func saveHistory(path string, s report.Summary) error {
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(storage.NewHistoryItem(s))
}
