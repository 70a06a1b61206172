package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ananya-mh/searchload/internal/catalog"
	"github.com/ananya-mh/searchload/internal/config"
	"github.com/ananya-mh/searchload/internal/dashboard"
	"github.com/ananya-mh/searchload/internal/httpclient"
	"github.com/ananya-mh/searchload/internal/logging"
	"github.com/ananya-mh/searchload/internal/metrics"
	"github.com/ananya-mh/searchload/internal/output"
	"github.com/ananya-mh/searchload/internal/runner"
	"github.com/ananya-mh/searchload/internal/threshold"
	"github.com/ananya-mh/searchload/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoaderWithOutput(stdout).Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}

	logger := logging.SetupWriter(stderr, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector()
	var requester runner.Requester = &searchRequester{
		sampler:   catalog.NewSampler(cfg.Seed),
		client:    httpclient.NewClient(cfg.Timeout),
		builder:   builder,
		collector: collector,
		tracer:    tp.Tracer(),
		propagate: tp.ShouldPropagate(),
	}
	if cfg.LogErrors {
		requester = runner.WithLogging(requester, slogFailureLogger{logger: logging.WithComponent("requester")})
	}

	r := runner.New(runner.Options{
		Users:         cfg.Users,
		SpawnRate:     cfg.SpawnRate,
		TotalRequests: cfg.Total,
		Duration:      cfg.Duration,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival.Model),
		WaitMin:       cfg.WaitMin,
		WaitMax:       cfg.WaitMax,
		RandomSeed:    cfg.Seed,
		Requester:     requester,
	})

	runID := ulid.Make().String()
	logger.Info("starting load test",
		"run_id", runID,
		"target", builder.Base(),
		"users", cfg.Users,
		"spawn_rate", cfg.SpawnRate,
		"duration", cfg.Duration,
		"total", cfg.Total,
		"rate", cfg.Rate,
		"tracing", tp.Exporting(),
	)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var live liveView
	switch {
	case cfg.Dashboard:
		dash, err := dashboard.New(collector, dashboard.RunConfig{
			Target:    builder.Base(),
			Users:     cfg.Users,
			SpawnRate: cfg.SpawnRate,
			Duration:  cfg.Duration,
			Total:     cfg.Total,
			Rate:      cfg.Rate,
			WaitMin:   cfg.WaitMin,
			WaitMax:   cfg.WaitMax,
			Timeout:   cfg.Timeout,
			RunID:     runID,
		}, r.ActiveUsers, stopRun)
		if err != nil {
			return err
		}
		live = dash
	case cfg.Output == config.OutputText:
		live = output.NewProgressReporter(collector, progressInterval, r.ActiveUsers, stdout)
	}

	result, err := execute(runCtx, cfg, r, collector, live, logger)
	if err != nil {
		return err
	}

	stats := collector.Stats(result.Duration)
	report := output.Report{
		RunID:      runID,
		Target:     builder.Base(),
		Users:      result.Users,
		Stats:      stats,
		Thresholds: threshold.NewEvaluator(thresholds).Evaluate(stats),
	}

	if err := writeReport(stdout, cfg.Output, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if cfg.CSVFile != "" {
		if err := writeCSVFile(cfg.CSVFile, stats); err != nil {
			return err
		}
	}

	logger.Info("load test finished",
		"run_id", runID,
		"requests", stats.Total,
		"failures", stats.Failures,
		"aborted", result.Aborted,
		"elapsed", result.Duration.Round(time.Millisecond),
	)
	return verdict(report)
}

// liveView is a display refreshed while the load runs: the progress line or
// the terminal dashboard.
type liveView interface {
	Start()
	Stop()
}

// execute runs the load and, when configured, the metrics endpoint. The
// endpoint stops once the load finishes.
func execute(ctx context.Context, cfg *config.Config, r *runner.Runner, collector *metrics.Collector, live liveView, logger *slog.Logger) (runner.Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(serveCtx, cfg.MetricsAddr, metrics.NewRegistry(collector)); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	var result runner.Result
	g.Go(func() error {
		defer stopServe()
		if live != nil {
			live.Start()
			defer live.Stop()
		}
		collector.Start()
		result = r.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return runner.Result{}, err
	}
	return result, nil
}

func writeReport(w io.Writer, format config.OutputFormat, report output.Report) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, report)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, report)
	default:
		output.PrintReport(w, report)
		return nil
	}
}

func writeCSVFile(path string, stats metrics.Stats) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close csv: %w", cerr)
		}
	}()
	if err := output.WriteCSV(f, stats); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func verdict(report output.Report) error {
	var errs []error
	if report.Stats.Failures > 0 {
		errs = append(errs, fmt.Errorf("%d requests failed", report.Stats.Failures))
	}
	failed := 0
	for _, res := range report.Thresholds {
		if !res.Pass {
			failed++
		}
	}
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d of %d thresholds failed", failed, len(report.Thresholds)))
	}
	return errors.Join(errs...)
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	if model == config.ArrivalModelPoisson {
		return runner.ArrivalModelPoisson
	}
	return runner.ArrivalModelUniform
}
