package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/openmorph/morphctl/pkg/engine"
	"github.com/openmorph/morphctl/pkg/stores"
	"github.com/openmorph/morphctl/pkg/telemetry"
)

func newDeployCommand() *cobra.Command {
	var (
		skipOrphanSweep bool
		watch           bool
		historyPath     string
		metricsListen   string
		traceExporter   string
		traceEndpoint   string
	)

	cmd := &cobra.Command{
		Use:   "deploy [file|dir]...",
		Short: "Deploy YAML entity trees to Morpheus",
		Long: `Deploy one or more YAML files (or directories of YAML files) to the
Morpheus data API.

Entities nested inside other entities are created first, and their
identifiers substituted into the parent body. Entities that already
exist are updated, and left untouched when the remote state already
matches. $deleteIds sweeps remove named orphans before their document's
entities are applied.`,
		Example: `  # Deploy a single file
  morphctl deploy config/tasks.yaml

  # Deploy a directory, keeping orphans
  morphctl deploy config/ --skip-orphan-sweep

  # Redeploy whenever the files change
  morphctl deploy config/ --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), args, runOptions{
				undeploy:        false,
				skipOrphanSweep: skipOrphanSweep,
				watch:           watch,
				historyPath:     historyPath,
				metricsListen:   metricsListen,
				traceExporter:   traceExporter,
				traceEndpoint:   traceEndpoint,
			})
		},
	}

	cmd.Flags().BoolVar(&skipOrphanSweep, "skip-orphan-sweep", false, "skip $deleteIds orphan sweeps")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "redeploy when the files change")
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite file to record run history in")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "expose Prometheus metrics on this address")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "", "trace exporter (otlp, stdout)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP trace endpoint")

	return cmd
}

type runOptions struct {
	undeploy        bool
	skipOrphanSweep bool
	watch           bool
	historyPath     string
	metricsListen   string
	traceExporter   string
	traceEndpoint   string
}

func runDeploy(ctx context.Context, paths []string, opts runOptions) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	metrics, err := newMetrics(opts.metricsListen)
	if err != nil {
		return err
	}
	tracer, err := newTracer(opts.traceExporter, opts.traceEndpoint)
	if err != nil {
		return err
	}
	client, err := newClient(logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Cannot build API client")
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	var history stores.Store
	if opts.historyPath != "" {
		history, err = openHistory(ctx, opts.historyPath)
		if err != nil {
			logger.WithError(err).Error("Cannot open run history")
			return err
		}
		defer history.Close()
	}

	deployer := engine.NewDeployer(client, logger.Zerolog(), metrics, tracer, engine.OrchestratorOptions{
		SkipSweeps: opts.skipOrphanSweep,
	})

	runOnce := func(ctx context.Context) error {
		operation := "deploy"
		if opts.undeploy {
			operation = "undeploy"
		}
		report, err := deployer.Run(ctx, paths, opts.undeploy)
		if err != nil {
			return err
		}
		if history != nil {
			if err := recordHistory(ctx, history, report, paths, operation); err != nil {
				logger.WithError(err).Warn("Cannot record run history")
			}
		}
		if !report.Success() {
			err := fmt.Errorf("%d entity(ies) failed: %s", report.Count(engine.OutcomeFailed), report.Summary())
			logger.WithRunID(report.RunID).Error(err.Error())
			return err
		}
		return nil
	}

	if !opts.watch {
		return runOnce(ctx)
	}
	return watchAndRun(ctx, logger, paths, runOnce)
}

// watchAndRun reruns fn whenever a watched yaml file changes. Events are
// debounced so an editor save triggers one run, not several.
func watchAndRun(ctx context.Context, logger *telemetry.Logger, paths []string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logger.WithError(err).Error("Run failed, watching for changes")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("cannot watch %s: %w", p, err)
		}
	}
	logger.Infof("Watching %d path(s) for changes", len(paths))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(500 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Watch error")
		case <-debounce:
			debounce = nil
			if err := fn(ctx); err != nil {
				logger.WithError(err).Error("Run failed, watching for changes")
			}
		}
	}
}

// newMetrics builds the metrics collector; an empty listen address
// disables collection.
func newMetrics(listen string) (*telemetry.Metrics, error) {
	cfg := telemetry.DefaultConfig().Metrics
	if listen != "" {
		cfg.Enabled = true
		cfg.ListenAddress = listen
	}
	metrics, err := telemetry.NewMetrics(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Enabled {
		if err := metrics.StartMetricsServer(); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

// newTracer builds the tracer; an empty exporter disables tracing.
func newTracer(exporter, endpoint string) (*telemetry.Tracer, error) {
	cfg := telemetry.DefaultConfig().Tracing
	if exporter != "" {
		cfg.Enabled = true
		cfg.Exporter = exporter
		cfg.Endpoint = endpoint
	}
	return telemetry.NewTracer(cfg, "morphctl", "dev", envOr("MORPHCTL_ENV", "development"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openHistory opens (and migrates) the run history database.
func openHistory(ctx context.Context, path string) (stores.Store, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// recordHistory persists one run and its per-entity outcomes.
func recordHistory(ctx context.Context, store stores.Store, report *engine.Report, paths []string, operation string) error {
	sources, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	now := time.Now()
	run := &stores.Run{
		ID:        report.RunID,
		Operation: operation,
		Sources:   string(sources),
		Status:    stores.RunStatusRunning,
		StartedAt: report.Started,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return err
	}
	for _, rec := range report.Records() {
		item := &stores.RunItem{
			RunID:     report.RunID,
			Source:    rec.Source,
			Kind:      rec.Kind,
			Name:      rec.Name,
			Outcome:   string(rec.Outcome),
			Timestamp: now,
		}
		if rec.EntityID != nil {
			s := fmt.Sprintf("%v", rec.EntityID)
			item.EntityID = &s
		}
		if rec.Err != nil {
			s := rec.Err.Error()
			item.Error = &s
		}
		if err := store.AppendRunItem(ctx, item); err != nil {
			return err
		}
	}
	status := stores.RunStatusCompleted
	var runErr *string
	if !report.Success() {
		status = stores.RunStatusFailed
		s := report.Summary()
		runErr = &s
	}
	return store.CompleteRun(ctx, report.RunID, status, runErr)
}
