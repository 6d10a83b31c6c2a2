package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hospitalstats/internal/config"
	"hospitalstats/internal/logging"
	"hospitalstats/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hospitalstats",
		Short: "Hospital records analysis: insights, dashboards and reports",
		Long: `hospitalstats reads patients, encounters, procedures, organizations and
payers CSV exports from DATA_DIR, derives per-patient and per-encounter
features and writes the aggregated insights to OUTPUT_DIR.

Running it without a subcommand is the same as "hospitalstats analyze".
Configuration comes from environment variables or a .env file.`,
		SilenceUsage: true,
		RunE:         runAnalyze,
	}

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(dashboardsCmd())
	rootCmd.AddCommand(consolidatedCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(pdfCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(loadPGCmd())
	rootCmd.AddCommand(synthCmd())
	return rootCmd
}

// env carries what every subcommand needs once configuration is loaded.
type env struct {
	cfg     *config.Config
	metrics *metrics.Recorder
	cmd     *cobra.Command
}

// run loads configuration, sets up logging and signal handling, then calls
// fn. The run outcome and duration are recorded in the metrics file.
func run(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, metrics: metrics.New(), cmd: cmd}
	start := time.Now()
	err = fn(ctx, e)
	e.metrics.RecordRun(start, time.Now(), err == nil)
	if werr := e.metrics.WriteFile(cfg.OutputPath(cfg.MetricsFile)); werr != nil {
		log.Warn().Err(werr).Msg("Metrics not written")
	}

	if err != nil {
		log.Error().Err(err).Str("command", cmd.Name()).Msg("Command failed")
		return err
	}
	log.Info().Str("command", cmd.Name()).Dur("elapsed", time.Since(start)).Msg("Done")
	return nil
}

func runE(fn func(ctx context.Context, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return run(cmd, fn)
	}
}
