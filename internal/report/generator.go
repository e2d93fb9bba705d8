// Package report renders fitted models, attribution results and budget
// allocations into markdown and CSV for human review.
package report

import (
	"context"
	"fmt"
	"time"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/roi"
	"mediamix-lab/internal/storage"
	"mediamix-lab/internal/validation"
)

// Generator produces reports from stored models and optimizations.
type Generator struct {
	modelStore storage.ModelStore
	optStore   storage.OptimizationStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(modelStore storage.ModelStore, optStore storage.OptimizationStore) *Generator {
	return &Generator{
		modelStore: modelStore,
		optStore:   optStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles the report for one stored model. The attribution result
// and validation outcome are computed upstream and passed in; either may be
// nil, which leaves its section empty. The allocation section uses the most
// recent stored optimization for the model, if any.
func (g *Generator) Generate(ctx context.Context, modelID string, attribution *roi.Result, suite *validation.SuiteResult) (*Report, error) {
	model, err := g.modelStore.GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", modelID, err)
	}

	opt, err := g.latestOptimization(ctx, modelID)
	if err != nil {
		return nil, err
	}

	return Build(model, attribution, opt, suite, g.now()), nil
}

// Build assembles a report directly from in-memory results, without touching
// any store. Attribution, optimization and suite may each be nil, which
// leaves the corresponding section empty.
func Build(model *domain.FittedModel, attribution *roi.Result, opt *domain.OptimizationResult, suite *validation.SuiteResult, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		ModelID:     model.ModelID,
		RunID:       model.RunID,
		Fit:         buildFitSection(model),
		Parameters:  buildParameterRows(model),
	}
	if attribution != nil {
		r.ROI = buildROISection(attribution)
	}
	if opt != nil {
		r.Allocation = buildAllocationSection(model, opt)
	}
	if suite != nil {
		r.Validation = buildValidationSection(suite)
	}
	return r
}

// latestOptimization returns the newest stored optimization for the model,
// or nil when none has been run. The store lists oldest first.
func (g *Generator) latestOptimization(ctx context.Context, modelID string) (*domain.OptimizationResult, error) {
	results, err := g.optStore.ListByModelID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("loading optimizations for %s: %w", modelID, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[len(results)-1], nil
}

func buildFitSection(model *domain.FittedModel) FitSection {
	return FitSection{
		CreatedAt:     model.CreatedAt,
		Chains:        model.NumChains,
		DrawsPerChain: model.DrawsPerChain,
		Warmup:        model.Config.Warmup,
		Channels:      len(model.Channels),
		Controls:      len(model.Controls),
		Converged:     model.Diagnostics.Converged,
		Strict:        model.Diagnostics.Strict,
		MaxRHat:       model.Diagnostics.MaxRHat,
		MinESS:        model.Diagnostics.MinESS,
		Divergences:   model.Diagnostics.Divergences,
		Warnings:      model.Diagnostics.Warnings,
	}
}

// buildParameterRows builds sorted posterior rows with per-parameter
// convergence flags checked against the model's own thresholds.
func buildParameterRows(model *domain.FittedModel) []ParameterRow {
	rhatMax := model.Config.RHatMax
	minESS := model.Config.MinESS
	def := domain.DefaultFitConfig()
	if rhatMax <= 0 {
		rhatMax = def.RHatMax
	}
	if minESS <= 0 {
		minESS = def.MinESS
	}

	names := model.ParameterNames()
	rows := make([]ParameterRow, len(names))
	for i, name := range names {
		s := model.Summary[name]
		rows[i] = ParameterRow{
			Name:   name,
			Mean:   s.Mean,
			SD:     s.SD,
			Q025:   s.Q025,
			Q975:   s.Q975,
			RHat:   s.RHat,
			ESS:    s.ESS,
			RHatOK: s.RHat <= rhatMax,
			ESSOK:  s.ESS >= minESS,
		}
	}
	return rows
}

// buildROISection maps the attribution result into report rows, keeping the
// calculator's channel order (the model's configuration order).
func buildROISection(res *roi.Result) ROISection {
	rows := make([]ROIRow, len(res.Channels))
	for i, c := range res.Channels {
		rows[i] = ROIRow{
			Channel:      c.Channel,
			TotalSpend:   c.TotalSpend,
			ContribMean:  c.Contribution.Mean,
			ContribLower: c.Contribution.Lower,
			ContribUpper: c.Contribution.Upper,
			ROIMean:      c.ROI.Mean,
			ROILower:     c.ROI.Lower,
			ROIUpper:     c.ROI.Upper,
			Share:        c.Share,
		}
	}
	return ROISection{
		Rows:             rows,
		ExcludedFraction: res.ExcludedFraction,
		Unstable:         res.Unstable,
		Warnings:         res.Warnings,
	}
}

// buildAllocationSection diffs the optimizer's allocation against the
// historical spend recorded on the model at fit time.
func buildAllocationSection(model *domain.FittedModel, opt *domain.OptimizationResult) AllocationSection {
	bounds := make(map[string]string, len(opt.PinnedAtMin)+len(opt.PinnedAtMax))
	for _, name := range opt.PinnedAtMin {
		bounds[name] = "min"
	}
	for _, name := range opt.PinnedAtMax {
		bounds[name] = "max"
	}

	names := model.ChannelNames()
	rows := make([]AllocationRow, len(names))
	for i, name := range names {
		current := model.ChannelStats[name].MeanSpend
		optimized := opt.Allocation[name]
		rows[i] = AllocationRow{
			Channel:   name,
			Current:   current,
			Optimized: optimized,
			Delta:     optimized - current,
			Marginal:  opt.Marginal[name],
			Bound:     bounds[name],
		}
	}

	return AllocationSection{
		OptimizationID: opt.OptimizationID,
		TotalBudget:    opt.TotalBudget,
		ExpectedMean:   opt.Expected.Mean,
		ExpectedLower:  opt.Expected.Lower,
		ExpectedUpper:  opt.Expected.Upper,
		Converged:      opt.Converged,
		Iterations:     opt.Iterations,
		Rows:           rows,
	}
}

func buildValidationSection(suite *validation.SuiteResult) ValidationSection {
	criteria := suite.Criteria()
	rows := make([]CriterionRow, len(criteria))
	for i, c := range criteria {
		rows[i] = CriterionRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return ValidationSection{
		Verdict:  string(suite.Verdict),
		Criteria: rows,
	}
}
