package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"soakq/internal/banner"
	"soakq/internal/cli"
	"soakq/internal/config"
	"soakq/internal/logging"
	"soakq/internal/runner"
	"soakq/internal/storage"
	"soakq/internal/tui"
)

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	logFile     string
	historyPath string
	noHistory   bool
	metricsAddr string
	useTUI      bool
)

var rootCmd = &cobra.Command{
	Use:   "soakq",
	Short: "soakq - long-running soak tests for HTTP APIs",
	Long: `
soakq drives a closed-loop HTTP workload through ramp-up, soak and
ramp-down stages and watches for slow degradation over time. The stress,
spike and load profiles, or explicit --stage entries, reshape the VU
curve while keeping the same analysis.

The first successful response becomes the baseline; every later response
is compared against it and flagged as a possible leak when it is more
than 1s slower.

Stages can be set with flags, a config file, or the BASE_URL, RAMP_UP,
SOAK_TIME, RAMP_DOWN and VUS environment variables.`,
	SilenceUsage: true,
	RunE:         runSoak,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(dummyCmd, historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.soakq.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", logging.FormatConsole, "Log format (console, json)")
	pf.StringVar(&historyPath, "history", "", "History database path (default is $HOME/.soakq/history.db)")

	f := rootCmd.Flags()
	f.StringP(config.KeyBaseURL, "u", "", "Target base URL [BASE_URL]")
	f.String(config.KeyMainPath, "", "Main endpoint path")
	f.String(config.KeyDetailPath, "", "Detail endpoint path template")
	f.StringP(config.KeyProfile, "p", "", "Load profile: soak, stress, spike or load")
	f.String(config.KeyIntensity, "", "Load profile intensity: light, medium or heavy")
	f.StringSlice(config.KeyStages, nil, "Explicit stage as <duration>:<target>, repeatable; overrides the profile")
	f.String(config.KeyRampUp, "", "Ramp up duration, e.g. 2m [RAMP_UP]")
	f.String(config.KeySoakTime, "", "Soak duration, e.g. 4h [SOAK_TIME]")
	f.String(config.KeyRampDown, "", "Ramp down duration [RAMP_DOWN]")
	f.IntP(config.KeyVUs, "U", 0, "Virtual users [VUS]")
	f.Int(config.KeyTimeout, 0, "Request timeout in seconds")
	f.Duration(config.KeyThinkMin, 0, "Minimum think time between requests")
	f.Duration(config.KeyThinkMax, 0, "Maximum think time between requests")
	f.String(config.KeyClock, "", "Phase clock: wall or iteration")
	f.Int64(config.KeySecsPerIter, 0, "Seconds per iteration for the iteration clock")
	f.Bool(config.KeyInsecure, true, "Skip TLS certificate verification")
	f.StringSliceP(config.KeyHeaders, "H", nil, "HTTP Header (e.g. \"Key: Value\")")
	f.StringP(config.KeyOut, "o", "", "Output filename prefix for reports")
	f.String(config.KeyThresholdLevel, "", "Threshold level: strict, moderate or relaxed")

	f.BoolVar(&useTUI, "tui", false, "Show the live terminal dashboard")
	f.BoolVar(&noHistory, "no-history", false, "Do not record this run in history")
	f.StringVar(&logFile, "log-file", "soakq.log", "Log file used while the dashboard is shown")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	// Unset flags fall through to the environment, the config file and
	// then config.SetDefaults.
	viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".soakq")
		}
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
}

func runSoak(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	ts, err := config.Thresholds(viper.GetViper())
	if err != nil {
		return err
	}

	var outputs []string
	if useTUI {
		outputs = []string{logFile}
	}
	log, err := logging.New(logLevel, logFormat, outputs...)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := cli.Options{
		Thresholds:  ts,
		MetricsAddr: metricsAddr,
		Log:         log,
	}
	if !noHistory {
		if opts.HistoryPath, err = resolveHistoryPath(); err != nil {
			log.Warn("run history disabled", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if useTUI {
		return runTUI(ctx, cfg, opts)
	}
	return cli.Start(ctx, cfg, opts)
}

func runTUI(ctx context.Context, cfg runner.Config, opts cli.Options) error {
	updates := make(runner.StatsUpdateChan, 100)
	r, err := runner.NewRunner(cfg, updates, opts.Log)
	if err != nil {
		return err
	}
	defer r.Close()

	stopMetrics := cli.ServeMetrics(opts.MetricsAddr, r, opts.Log)
	defer stopMetrics()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	m := tui.NewModel(r, updates, done, cancel, opts.Thresholds)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	fm := final.(tui.Model)
	if !fm.Finished {
		// The dashboard exited before Run returned.
		cancel()
		if err := <-done; err != nil {
			return fmt.Errorf("soak run: %w", err)
		}
	} else if fm.Err != nil {
		return fm.Err
	}
	return cli.Finish(r, opts)
}

func resolveHistoryPath() (string, error) {
	if historyPath != "" {
		return historyPath, nil
	}
	return storage.DefaultPath()
}
