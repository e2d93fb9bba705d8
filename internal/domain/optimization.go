package domain

import "time"

// OptimizationResult is the allocation produced by one optimizer call against
// one FittedModel and one budget constraint. Read-only after creation.
type OptimizationResult struct {
	OptimizationID string    `json:"optimization_id"`
	ModelID        string    `json:"model_id"`
	CreatedAt      time.Time `json:"created_at"`

	TotalBudget float64            `json:"total_budget"`
	Allocation  map[string]float64 `json:"allocation"` // optimal spend per channel
	Marginal    map[string]float64 `json:"marginal"`   // marginal response per dollar at the optimum

	// Channels held at a bound in the solution. Unpinned channels share an
	// equal marginal response; pinned ones may sit above (max) or below (min).
	PinnedAtMin []string `json:"pinned_at_min,omitempty"`
	PinnedAtMax []string `json:"pinned_at_max,omitempty"`

	// Expected total response at the optimum with its posterior credible
	// interval, evaluated across the model's retained draws.
	Expected Interval `json:"expected"`

	Converged  bool `json:"converged"`
	Iterations int  `json:"iterations"`
}

// AllocatedTotal sums the allocation across channels.
func (r *OptimizationResult) AllocatedTotal() float64 {
	var total float64
	for _, v := range r.Allocation {
		total += v
	}
	return total
}

// Clone returns a deep copy. Stores use it to keep handed-out results
// independent from their internal state.
func (r *OptimizationResult) Clone() *OptimizationResult {
	out := *r
	out.Allocation = copyFloatMap(r.Allocation)
	out.Marginal = copyFloatMap(r.Marginal)
	out.PinnedAtMin = append([]string(nil), r.PinnedAtMin...)
	out.PinnedAtMax = append([]string(nil), r.PinnedAtMax...)
	return &out
}
