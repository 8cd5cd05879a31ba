package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appnet-org/wirebench/internal/bench"
	"github.com/appnet-org/wirebench/internal/client"
	"github.com/appnet-org/wirebench/internal/config"
	"github.com/appnet-org/wirebench/internal/metrics"
	"github.com/appnet-org/wirebench/internal/report"
	"github.com/appnet-org/wirebench/pkg/forecast"
	"github.com/appnet-org/wirebench/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	RunCmdLiteral = "run"
	RunCmdExample = `# Benchmark the default local endpoints every second
wirebench run

# One cycle with 500 records, settings from a file
wirebench run --config wirebench.toml --count 500 --once`
)

type runOptions struct {
	configPath string
	count      int32
	once       bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:     RunCmdLiteral,
		Short:   "Run the benchmark loop",
		Long:    "Call every enabled client once per cycle and print a table of data size, network time and deserialization time.",
		Example: RunCmdExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBenchmark(ctx, opts, cmd.Flags().Changed("count"), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML configuration file")
	cmd.Flags().Int32VarP(&opts.count, "count", "n", forecast.DefaultReturnCount, "Records requested per call")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Run a single cycle and exit")
	return cmd
}

func runBenchmark(ctx context.Context, opts *runOptions, countSet bool, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if countSet {
		if opts.count < 0 {
			return fmt.Errorf("--count must not be negative, got %d", opts.count)
		}
		cfg.Workload.ReturnCount = opts.count
	}
	if opts.once {
		cfg.Cycle.MaxCycles = 1
	}

	if err := logging.Init(logging.ConfigFromEnv(cfg.Logging.Level, cfg.Logging.Format)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logging.Sync() }()

	clients, err := client.Build(cfg)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections(clients)

	logging.Info("Benchmark starting",
		zap.String("version", Version),
		zap.Int32("returnCount", cfg.Workload.ReturnCount),
		zap.Duration("pause", cfg.Cycle.Pause),
		zap.Int("clients", len(clients)),
	)

	runnerOpts := []bench.Option{
		bench.WithRequest(forecast.Request{ReturnCount: cfg.Workload.ReturnCount}),
		bench.WithPause(cfg.Cycle.Pause),
		bench.WithRequestTimeout(cfg.Cycle.RequestTimeout),
		bench.WithClamp(cfg.Measurement.ClampNegative),
		bench.WithMaxCycles(cfg.Cycle.MaxCycles),
		bench.WithObserver(report.NewTable(out)),
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		recorder := metrics.NewRecorder()
		runnerOpts = append(runnerOpts, bench.WithObserver(recorder))
		metricsServer = metrics.NewServer(cfg.Metrics.Port, recorder.Registry())
	}

	runner := bench.NewRunner(clients, runnerOpts...)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		defer cancelRun()
		return runner.Run(runCtx)
	})
	if metricsServer != nil {
		g.Go(metricsServer.Start)
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Stop(shutdownCtx)
		})
	}

	return g.Wait()
}
