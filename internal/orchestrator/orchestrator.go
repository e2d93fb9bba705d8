// Package orchestrator coordinates the full media-mix workflow.
// Flow: schema validation → fit → attribution → optimization → persistence → report
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediamix-lab/internal/bayes"
	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/observability"
	"mediamix-lab/internal/optimizer"
	"mediamix-lab/internal/report"
	"mediamix-lab/internal/roi"
	"mediamix-lab/internal/storage"
)

// Orchestrator runs the phased pipeline against one dataset. Each phase is
// timed and recorded; a failed phase aborts the run with the phase named in
// the error.
type Orchestrator struct {
	// Stores; any may be nil, which skips persisting that artifact
	modelStore        storage.ModelStore
	sampleStore       storage.SampleStore
	optimizationStore storage.OptimizationStore

	// Model configuration
	channels []domain.ChannelSpec
	controls []string
	fitCfg   domain.FitConfig

	// Optimization request
	totalBudget float64
	bounds      map[string]optimizer.Bounds

	// Report output directory; empty skips report files
	outputDir string

	logger *slog.Logger
	now    func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Stores. All optional: a nil store skips that persistence step.
	ModelStore        storage.ModelStore
	SampleStore       storage.SampleStore
	OptimizationStore storage.OptimizationStore

	// Model configuration
	Channels []domain.ChannelSpec
	Controls []string
	Fit      domain.FitConfig

	// Budget to optimize. Zero derives the historical per-period budget from
	// the fitted channels' mean spend.
	TotalBudget float64
	Bounds      map[string]optimizer.Bounds

	// OutputDir receives REPORT.md and the CSV exports; empty skips them.
	OutputDir string

	// Logger for engine events. Nil means silent.
	Logger *slog.Logger

	// Now is the report clock. Nil means time.Now UTC.
	Now func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		modelStore:        opts.ModelStore,
		sampleStore:       opts.SampleStore,
		optimizationStore: opts.OptimizationStore,
		channels:          opts.Channels,
		controls:          opts.Controls,
		fitCfg:            opts.Fit,
		totalBudget:       opts.TotalBudget,
		bounds:            opts.Bounds,
		outputDir:         opts.OutputDir,
		logger:            logger,
		now:               now,
	}
}

// RunResult contains results from one pipeline run.
type RunResult struct {
	ModelID        string
	RunID          string
	OptimizationID string
	Budget         float64

	Model        *domain.FittedModel
	ROI          *roi.Result
	Optimization *domain.OptimizationResult

	DrawsPersisted int
	ReportPaths    []string
	PhaseDurations map[string]time.Duration
	Warnings       []string
}

// Run executes the full pipeline on one dataset.
// Phases:
//  1. schema: validate the series shape and configured columns
//  2. fit: posterior sampling and diagnostics
//  3. roi: per-channel attribution
//  4. optimize: budget allocation
//  5. persist: store model, draws and allocation
//  6. report: render markdown and CSV files
func (o *Orchestrator) Run(ctx context.Context, data *domain.TimeSeries) (*RunResult, error) {
	result := &RunResult{PhaseDurations: make(map[string]time.Duration)}

	// Phase 1: Schema validation. SchemaError here fails fast, before any
	// sampling budget is spent.
	err := o.phase("schema", result, func() error {
		return o.validateSchema(data)
	})
	if err != nil {
		return nil, err
	}

	// Phase 2: Fit
	err = o.phase("fit", result, func() error {
		started := time.Now()
		model, err := bayes.FitWithLogger(ctx, data, o.channels, o.controls, o.fitCfg, o.logger)
		if err != nil {
			observability.RecordFit("error", time.Since(started).Seconds())
			return err
		}
		observability.RecordFit("success", time.Since(started).Seconds())
		observability.RecordFitDiagnostics(
			model.Diagnostics.MaxRHat,
			model.Diagnostics.MinESS,
			model.Diagnostics.Divergences,
			float64(model.CreatedAt.Unix()),
		)
		result.Model = model
		result.ModelID = model.ModelID
		result.RunID = model.RunID
		result.Warnings = append(result.Warnings, model.Diagnostics.Warnings...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info("model fitted",
		"model_id", result.ModelID,
		"converged", result.Model.Diagnostics.Converged,
		"max_r_hat", result.Model.Diagnostics.MaxRHat,
		"divergences", result.Model.Diagnostics.Divergences)

	// Phase 3: Attribution
	err = o.phase("roi", result, func() error {
		res, err := roi.Compute(result.Model, data)
		if err != nil {
			return err
		}
		observability.RecordROIComputation()
		result.ROI = res
		result.Warnings = append(result.Warnings, res.Warnings...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Phase 4: Optimization
	err = o.phase("optimize", result, func() error {
		budget := o.totalBudget
		if budget <= 0 {
			for _, spec := range o.channels {
				budget += result.Model.ChannelStats[spec.Name].MeanSpend
			}
		}
		result.Budget = budget

		opt, err := optimizer.OptimizeWithConfig(result.Model, optimizer.Config{
			TotalBudget: budget,
			Bounds:      o.bounds,
		})
		if err != nil {
			var infeasible *domain.InfeasibleBudgetError
			if errors.As(err, &infeasible) {
				observability.RecordOptimizerRun("infeasible")
			} else {
				observability.RecordOptimizerRun("error")
			}
			return err
		}
		observability.RecordOptimizerRun("success")
		result.Optimization = opt
		result.OptimizationID = opt.OptimizationID
		if !opt.Converged {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("optimizer did not equalize marginals for %s within tolerance", opt.OptimizationID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info("budget optimized",
		"optimization_id", result.OptimizationID,
		"budget", result.Budget,
		"expected", result.Optimization.Expected.Mean)

	// Phase 5: Persistence
	err = o.phase("persist", result, func() error {
		return o.persist(ctx, result)
	})
	if err != nil {
		return nil, err
	}

	// Phase 6: Reporting
	if o.outputDir != "" {
		err = o.phase("report", result, func() error {
			return o.writeReports(result)
		})
		if err != nil {
			return nil, err
		}
	}

	o.logger.Info("pipeline completed",
		"model_id", result.ModelID,
		"optimization_id", result.OptimizationID,
		"draws_persisted", result.DrawsPersisted,
		"warnings", len(result.Warnings))
	return result, nil
}

// phase times one pipeline phase and records its outcome.
func (o *Orchestrator) phase(name string, result *RunResult, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	result.PhaseDurations[name] = elapsed

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelinePhase(name, status, elapsed.Seconds())
	o.logger.Debug("pipeline phase finished", "phase", name, "status", status, "elapsed", elapsed.Round(time.Millisecond))

	if err != nil {
		return fmt.Errorf("phase %s failed: %w", name, err)
	}
	return nil
}

// validateSchema checks the dataset shape and that every configured column
// is present, naming the first missing one.
func (o *Orchestrator) validateSchema(data *domain.TimeSeries) error {
	if len(o.channels) == 0 {
		return &domain.SchemaError{Reason: "no channels configured"}
	}
	if err := data.Validate(); err != nil {
		return err
	}
	for _, spec := range o.channels {
		if _, err := data.SpendColumn(spec.Name); err != nil {
			return err
		}
	}
	for _, name := range o.controls {
		if _, err := data.ControlColumn(name); err != nil {
			return err
		}
	}
	return nil
}

// persist stores the fit artifacts on whichever stores are configured.
// A model that already exists (deterministic IDs make reruns collide) is
// reported as a warning, not an error, and its draws are not re-inserted.
func (o *Orchestrator) persist(ctx context.Context, result *RunResult) error {
	duplicateModel := false
	if o.modelStore != nil {
		err := o.modelStore.Insert(ctx, result.Model)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			duplicateModel = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("model %s already stored; skipping model and draw persistence", result.ModelID))
		case err != nil:
			return fmt.Errorf("store model %s: %w", result.ModelID, err)
		}
	}

	if o.sampleStore != nil && !duplicateModel {
		draws := result.Model.PosteriorDraws()
		if err := o.sampleStore.InsertBatch(ctx, draws); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("store draws for %s: %w", result.ModelID, err)
			}
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("draws for %s already stored", result.ModelID))
		} else {
			result.DrawsPersisted = len(draws)
		}
	}

	if o.optimizationStore != nil {
		if err := o.optimizationStore.Insert(ctx, result.Optimization); err != nil {
			return fmt.Errorf("store optimization %s: %w", result.OptimizationID, err)
		}
	}
	return nil
}

// writeReports renders the run report to the output directory.
func (o *Orchestrator) writeReports(result *RunResult) error {
	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	rep := report.Build(result.Model, result.ROI, result.Optimization, nil, o.now())

	files := []struct {
		name    string
		content string
	}{
		{"REPORT.md", report.RenderMarkdown(rep)},
		{"channel_roi.csv", report.RenderROICSV(rep)},
		{"allocation.csv", report.RenderAllocationCSV(rep)},
	}
	for _, f := range files {
		path := filepath.Join(o.outputDir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
		result.ReportPaths = append(result.ReportPaths, path)
	}
	observability.RecordReportGenerated()
	return nil
}
