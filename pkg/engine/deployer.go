package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/telemetry"
)

// Deployer runs deploy and undeploy invocations over one or more
// configuration files. All files of a run share one registry, so
// entities persisted by an earlier file resolve in later ones, and one
// report, which carries the final verdict.
type Deployer struct {
	service EntityService
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	opts    OrchestratorOptions
}

// NewDeployer returns a deployer executing against service.
func NewDeployer(service EntityService, logger zerolog.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer, opts OrchestratorOptions) *Deployer {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NopTracer()
	}
	return &Deployer{service: service, logger: logger, metrics: metrics, tracer: tracer, opts: opts}
}

// Run deploys (or undeploys) the given files and directories. Directory
// arguments expand to their *.yaml files; the full set is processed in
// sorted order. A file that fails to load or plan is reported and does
// not stop the remaining files.
func (d *Deployer) Run(ctx context.Context, paths []string, undeploy bool) (*Report, error) {
	files, err := CollectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, NewValidationError(
			fmt.Sprintf("no yaml files found in %s", strings.Join(paths, ", ")), nil)
	}

	operation := "deployed"
	spanOp := "deploy"
	if undeploy {
		operation = "undeployed"
		spanOp = "undeploy"
	}
	report := NewReport(undeploy)
	registry := NewRegistry()
	started := time.Now()
	ctx, runSpan := d.tracer.StartRunSpan(ctx, report.RunID, spanOp)
	defer runSpan.End()
	d.metrics.RecordRunStarted()
	d.logger.Info().
		Str("run_id", report.RunID).
		Int("files", len(files)).
		Bool("undeploy", undeploy).
		Msg("Starting run")

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(runSpan, err)
			return report, err
		}
		fileCtx, fileSpan := d.tracer.StartFileSpan(ctx, file)
		if err := d.runFile(fileCtx, file, undeploy, registry, report); err != nil {
			report.Add(Record{Source: file, Name: filepath.Base(file), Outcome: OutcomeFailed, Err: err})
			d.logger.Error().Err(err).Str("file", file).Msg("File failed")
			telemetry.RecordError(fileSpan, err)
			fileSpan.End()
			continue
		}
		report.AddFile()
		d.logger.Info().Msgf("%d/%d] %s %s", i+1, len(files), operation, filepath.Base(file))
		telemetry.RecordSuccess(fileSpan)
		fileSpan.End()
	}

	status := "success"
	if !report.Success() {
		status = "failure"
		telemetry.RecordError(runSpan, fmt.Errorf("run finished with failures: %s", report.Summary()))
	} else {
		telemetry.RecordSuccess(runSpan)
	}
	d.metrics.RecordRunCompleted(status, time.Since(started))
	d.logger.Info().
		Str("run_id", report.RunID).
		Str("status", status).
		Msgf("%s %d/%d file(s): %s", operation, report.Files(), len(files), report.Summary())
	return report, nil
}

// runFile loads, plans and executes one configuration file.
func (d *Deployer) runFile(ctx context.Context, file string, undeploy bool, registry *Registry, report *Report) error {
	root, err := document.Load(file)
	if err != nil {
		return NewMaterializationError(fmt.Sprintf("cannot load %s", file), err)
	}
	return d.RunDocument(ctx, root, file, filepath.Dir(file), undeploy, registry, report)
}

// RunDocument plans and executes one already-parsed document.
func (d *Deployer) RunDocument(ctx context.Context, root *document.Node, source, baseDir string, undeploy bool, registry *Registry, report *Report) error {
	plan, err := NewPlanner(baseDir).BuildPlan(root, source)
	if err != nil {
		return err
	}
	orch := NewOrchestrator(d.service, registry, d.logger, d.metrics, d.tracer, d.opts)
	if undeploy {
		orch.Undeploy(ctx, plan, report)
	} else {
		orch.Deploy(ctx, plan, report)
	}
	return nil
}

// CollectFiles expands files and directories into the sorted list of
// yaml files a run will process.
func CollectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("cannot read %s", p), err)
		}
		if info.IsDir() {
			matches, err := filepath.Glob(filepath.Join(p, "*.yaml"))
			if err != nil {
				return nil, NewValidationError(fmt.Sprintf("cannot scan %s", p), err)
			}
			files = append(files, matches...)
			continue
		}
		if strings.HasSuffix(p, ".yaml") {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files, nil
}
