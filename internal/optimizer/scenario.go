package optimizer

import (
	"errors"
	"fmt"
	"math"

	"mediamix-lab/internal/domain"
)

// ExpectedResponse evaluates the point expected per-period response of an
// arbitrary allocation under the model's posterior-mean parameters.
// Channels absent from the allocation spend nothing; names that are not
// model channels are an error.
func ExpectedResponse(model *domain.FittedModel, allocation map[string]float64) (float64, error) {
	curves, err := buildCurves(model)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(curves))
	for _, c := range curves {
		known[c.name] = true
	}
	for name, x := range allocation {
		if !known[name] {
			return 0, fmt.Errorf("allocation name %q is not a model channel", name)
		}
		if x < 0 || math.IsNaN(x) {
			return 0, fmt.Errorf("allocation for %q is %v, want non-negative", name, x)
		}
	}
	var total float64
	for _, c := range curves {
		total += c.value(allocation[c.name])
	}
	return total, nil
}

// Scenario is a named what-if allocation.
type Scenario struct {
	Name       string             `json:"name"`
	Allocation map[string]float64 `json:"allocation"`
}

// HistoricalScenario rebuilds the average historical allocation recorded on
// the model at fit time.
func HistoricalScenario(model *domain.FittedModel) Scenario {
	alloc := make(map[string]float64, len(model.Channels))
	for _, spec := range model.Channels {
		alloc[spec.Name] = model.ChannelStats[spec.Name].MeanSpend
	}
	return Scenario{Name: "historical", Allocation: alloc}
}

// OptimalScenario wraps an optimization result as a scenario for comparison.
func OptimalScenario(res *domain.OptimizationResult) Scenario {
	alloc := make(map[string]float64, len(res.Allocation))
	for name, x := range res.Allocation {
		alloc[name] = x
	}
	return Scenario{Name: "optimal", Allocation: alloc}
}

// ScenarioOutcome is one evaluated scenario.
type ScenarioOutcome struct {
	Name     string  `json:"name"`
	Total    float64 `json:"total"`    // summed spend
	Expected float64 `json:"expected"` // point expected per-period response
}

// CompareScenarios evaluates named allocations under one model, preserving
// input order so callers can diff rows against whichever one they treat as
// the baseline.
func CompareScenarios(model *domain.FittedModel, scenarios []Scenario) ([]ScenarioOutcome, error) {
	out := make([]ScenarioOutcome, len(scenarios))
	for i, sc := range scenarios {
		expected, err := ExpectedResponse(model, sc.Allocation)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		var total float64
		for _, v := range sc.Allocation {
			total += v
		}
		out[i] = ScenarioOutcome{Name: sc.Name, Total: total, Expected: expected}
	}
	return out, nil
}

// DefaultSensitivityFactors are the budget perturbations swept when the
// caller does not choose their own.
var DefaultSensitivityFactors = []float64{0.8, 0.9, 1.1, 1.2}

// SensitivityPoint is the optimum under one perturbed budget.
type SensitivityPoint struct {
	Factor     float64 `json:"factor"`
	Budget     float64 `json:"budget"`
	Expected   float64 `json:"expected"`
	Delta      float64 `json:"delta"` // vs the unperturbed optimum
	Infeasible bool    `json:"infeasible,omitempty"`
}

// Sensitivity re-optimizes under perturbed budgets with the configured
// bounds held fixed. Perturbations that leave no feasible region come back
// as infeasible rows rather than failing the sweep.
func Sensitivity(model *domain.FittedModel, cfg Config, factors []float64) ([]SensitivityPoint, error) {
	if len(factors) == 0 {
		factors = DefaultSensitivityFactors
	}
	base, err := OptimizeWithConfig(model, cfg)
	if err != nil {
		return nil, err
	}
	baseExpected, err := ExpectedResponse(model, base.Allocation)
	if err != nil {
		return nil, err
	}

	out := make([]SensitivityPoint, len(factors))
	for i, f := range factors {
		scaled := cfg
		scaled.TotalBudget = cfg.TotalBudget * f
		pt := SensitivityPoint{Factor: f, Budget: scaled.TotalBudget}

		res, err := OptimizeWithConfig(model, scaled)
		var infeasible *domain.InfeasibleBudgetError
		switch {
		case err == nil:
			if pt.Expected, err = ExpectedResponse(model, res.Allocation); err != nil {
				return nil, err
			}
			pt.Delta = pt.Expected - baseExpected
		case errors.As(err, &infeasible):
			pt.Infeasible = true
		default:
			return nil, err
		}
		out[i] = pt
	}
	return out, nil
}

// FrontierPoint is one budget level on the efficiency frontier.
type FrontierPoint struct {
	Budget     float64 `json:"budget"`
	Expected   float64 `json:"expected"`
	Marginal   float64 `json:"marginal"` // shadow price: response per extra unit of budget
	Infeasible bool    `json:"infeasible,omitempty"`
}

// Frontier sweeps budget levels and reports the optimal expected response
// and the shadow price at each. A nil sweep covers 0.5x to 1.5x of the
// configured budget in eleven steps.
func Frontier(model *domain.FittedModel, cfg Config, budgets []float64) ([]FrontierPoint, error) {
	cfg = cfg.withDefaults()
	if len(budgets) == 0 {
		budgets = make([]float64, 11)
		for i := range budgets {
			budgets[i] = cfg.TotalBudget * (0.5 + 0.1*float64(i))
		}
	}
	curves, err := buildCurves(model)
	if err != nil {
		return nil, err
	}

	out := make([]FrontierPoint, len(budgets))
	for i, b := range budgets {
		pt := FrontierPoint{Budget: b}
		level := cfg
		level.TotalBudget = b
		if err := applyBounds(curves, level); err != nil {
			return nil, err
		}
		var minTotal, maxTotal float64
		for _, c := range curves {
			minTotal += c.lo
			maxTotal += c.hi
		}
		if minTotal > b || maxTotal < b {
			pt.Infeasible = true
			out[i] = pt
			continue
		}
		sol := solve(curves, level)
		for j, c := range curves {
			pt.Expected += c.value(sol.xs[j])
		}
		pt.Marginal = sol.lambda
		out[i] = pt
	}
	return out, nil
}
