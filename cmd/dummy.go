package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"soakq/internal/dummy"
	"soakq/internal/logging"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the demo crocodile API",
	Long: `Run a local stand-in for the soak target. It serves the same
crocodile endpoints and can grow its latency with every request to
simulate a leak, or fail a share of requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		leak, _ := cmd.Flags().GetDuration("leak")
		latency, _ := cmd.Flags().GetDuration("latency")
		errRate, _ := cmd.Flags().GetFloat64("error-rate")
		items, _ := cmd.Flags().GetInt("items")

		log, err := logging.New(logLevel, logFormat)
		if err != nil {
			return err
		}
		defer log.Sync()

		srv, err := dummy.Start(dummy.ServerConfig{
			Port:           port,
			BaseLatency:    latency,
			LeakPerRequest: leak,
			ErrorRate:      errRate,
			Items:          items,
		}, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info("dummy server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	f := dummyCmd.Flags()
	f.IntP("port", "p", 8080, "Port to run dummy server on")
	f.Duration("latency", 0, "Base latency added to every response")
	f.Duration("leak", 0, "Extra latency added per request served, e.g. 1ms")
	f.Float64("error-rate", 0, "Share of requests answered with 500 (0..1)")
	f.Int("items", 10, "Number of crocodiles served")
}
