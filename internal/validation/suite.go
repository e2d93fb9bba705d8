package validation

import (
	"context"
	"fmt"
	"log/slog"

	"mediamix-lab/internal/bayes"
	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/optimizer"
	"mediamix-lab/internal/synthetic"
)

// SuiteConfig configures one end-to-end validation run.
type SuiteConfig struct {
	Truth      *synthetic.GroundTruth // nil runs RecoveryTruth
	Periods    int                    // 0 uses the generator default
	Seed       uint64
	Fit        domain.FitConfig // zero fields use the production defaults
	Budget     float64          // 0 derives the budget from the truth's mean spends
	Samples    int              // random allocations for the uplift benchmark
	Tolerances Tolerances
	Logger     *slog.Logger
}

// SuiteResult is the complete outcome of a validation run. The fitted model
// is kept so callers can persist or inspect it.
type SuiteResult struct {
	Verdict     Verdict             `json:"verdict"`
	Recovery    []CriterionResult   `json:"recovery"`
	Diagnostics []CriterionResult   `json:"diagnostics"`
	Accuracy    []CriterionResult   `json:"accuracy"`
	Attribution []CriterionResult   `json:"attribution"`
	Uplift      *UpliftResult       `json:"uplift"`
	Metrics     AccuracyMetrics     `json:"metrics"`
	Model       *domain.FittedModel `json:"-"`
}

// Criteria returns every criterion row in report order.
func (r *SuiteResult) Criteria() []CriterionResult {
	rows := make([]CriterionResult, 0,
		len(r.Recovery)+len(r.Diagnostics)+len(r.Accuracy)+len(r.Attribution)+2)
	rows = append(rows, r.Recovery...)
	rows = append(rows, r.Diagnostics...)
	rows = append(rows, r.Accuracy...)
	rows = append(rows, r.Attribution...)
	if r.Uplift != nil {
		rows = append(rows, r.Uplift.Criteria...)
	}
	return rows
}

// RecoveryTruth is the default ground truth for the suite: one channel with
// realistic observation noise, small enough to fit quickly yet exercising
// adstock, saturation and the noise model end to end.
func RecoveryTruth() synthetic.GroundTruth {
	t := synthetic.SingleChannelTruth()
	t.Sigma = 0.05
	return t
}

// RunSuite generates a synthetic dataset with known ground truth, fits the
// model on it and checks parameter recovery, sampler health, predictive
// accuracy, attribution and optimizer uplift.
func RunSuite(ctx context.Context, cfg SuiteConfig) (*SuiteResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	truth := RecoveryTruth()
	if cfg.Truth != nil {
		truth = *cfg.Truth
	}
	data, err := synthetic.Generate(synthetic.Config{Periods: cfg.Periods, Seed: cfg.Seed}, truth)
	if err != nil {
		return nil, fmt.Errorf("generating validation dataset: %w", err)
	}
	logger.Info("validation dataset generated",
		"periods", data.Len(),
		"channels", len(truth.Channels),
		"controls", len(truth.Controls))

	model, err := bayes.FitWithLogger(ctx, data, truth.Specs(), truth.ControlNames(), cfg.Fit, logger)
	if err != nil {
		return nil, fmt.Errorf("fitting validation model: %w", err)
	}

	tol := cfg.Tolerances.withDefaults()
	recovery, err := RecoveryCriteria(model, truth, tol)
	if err != nil {
		return nil, err
	}
	diagnostics := DiagnosticsCriteria(model, tol)

	metrics, err := PredictionAccuracy(model, data)
	if err != nil {
		return nil, err
	}
	accuracy := AccuracyCriteria(metrics, tol)

	attribution, err := AttributionCriteria(model, data, truth, tol)
	if err != nil {
		return nil, err
	}

	budget := cfg.Budget
	if budget <= 0 {
		for _, ch := range truth.Channels {
			budget += ch.MeanSpend
		}
	}
	uplift, err := OptimizerUplift(model, optimizer.Config{TotalBudget: budget}, cfg.Samples, cfg.Seed+1)
	if err != nil {
		return nil, err
	}

	out := &SuiteResult{
		Verdict:     VerdictOf(recovery, diagnostics, accuracy, attribution, uplift.Criteria),
		Recovery:    recovery,
		Diagnostics: diagnostics,
		Accuracy:    accuracy,
		Attribution: attribution,
		Uplift:      uplift,
		Metrics:     metrics,
		Model:       model,
	}
	logger.Info("validation suite finished",
		"verdict", out.Verdict,
		"criteria", len(out.Criteria()),
		"model_id", model.ModelID)
	return out, nil
}
