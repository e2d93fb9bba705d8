package validation

import (
	"fmt"
	"math"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/synthetic"
)

// RecoveryCriteria compares fitted posterior means against the ground truth
// that generated the dataset, one row per identifiable channel parameter.
// Decay is judged on an absolute scale because it lives in [0, 1); beta and
// kappa on a relative scale because their magnitude follows the data units.
func RecoveryCriteria(model *domain.FittedModel, truth synthetic.GroundTruth, tol Tolerances) ([]CriterionResult, error) {
	tol = tol.withDefaults()
	rows := make([]CriterionResult, 0, 3*len(truth.Channels))
	for _, ch := range truth.Channels {
		p, err := model.ChannelParameters(ch.Name)
		if err != nil {
			return nil, err
		}
		rows = append(rows,
			absCriterion(fmt.Sprintf("Decay recovery [%s]", ch.Name), p.Decay, ch.Decay, tol.DecayAbs),
			relCriterion(fmt.Sprintf("Beta recovery [%s]", ch.Name), p.Beta, ch.Beta, tol.BetaRel),
			relCriterion(fmt.Sprintf("Kappa recovery [%s]", ch.Name), p.Kappa, ch.Kappa, tol.KappaRel),
		)
	}
	return rows, nil
}

// DiagnosticsCriteria checks sampler health against the thresholds the fit
// was configured with.
func DiagnosticsCriteria(model *domain.FittedModel, tol Tolerances) []CriterionResult {
	tol = tol.withDefaults()
	d := model.Diagnostics
	return []CriterionResult{
		{
			Name:      "Sampler converged",
			Threshold: "true",
			Actual:    fmt.Sprintf("%t", d.Converged),
			Pass:      d.Converged,
		},
		{
			Name:      "Max R-hat",
			Threshold: fmt.Sprintf("<= %.2f", model.Config.RHatMax),
			Actual:    fmt.Sprintf("%.3f", d.MaxRHat),
			Pass:      d.MaxRHat <= model.Config.RHatMax,
		},
		{
			Name:      "Min ESS",
			Threshold: fmt.Sprintf(">= %.0f", model.Config.MinESS),
			Actual:    fmt.Sprintf("%.0f", d.MinESS),
			Pass:      d.MinESS >= model.Config.MinESS,
		},
		{
			Name:      "Divergent transitions",
			Threshold: fmt.Sprintf("<= %d", tol.MaxDivergences),
			Actual:    fmt.Sprintf("%d", d.Divergences),
			Pass:      d.Divergences <= tol.MaxDivergences,
		},
	}
}

func absCriterion(name string, got, want, tol float64) CriterionResult {
	return CriterionResult{
		Name:      name,
		Threshold: fmt.Sprintf("within %.2f of %.2f", tol, want),
		Actual:    fmt.Sprintf("%.3f", got),
		Pass:      math.Abs(got-want) <= tol,
	}
}

func relCriterion(name string, got, want, tol float64) CriterionResult {
	return CriterionResult{
		Name:      name,
		Threshold: fmt.Sprintf("within %.0f%% of %.4g", tol*100, want),
		Actual:    fmt.Sprintf("%.4g", got),
		Pass:      math.Abs(got-want) <= tol*math.Abs(want),
	}
}
