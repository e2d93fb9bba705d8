package domain

import "fmt"

// SchemaError reports input data that does not match the configured model:
// a required column missing from the TimeSeries or a broken shape invariant.
// Fatal for the calling operation; surfaced immediately, never retried.
type SchemaError struct {
	Column string // offending column name; empty for dataset-level violations
	Reason string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema: column %q %s", e.Column, e.Reason)
	}
	return "schema: " + e.Reason
}

// NewMissingColumnError builds the SchemaError for a column absent from the input.
func NewMissingColumnError(column string) *SchemaError {
	return &SchemaError{Column: column, Reason: "is missing"}
}

// InfeasibleBudgetError reports optimizer constraints that admit no feasible
// allocation: the minimum bounds already exceed the budget, or the maximum
// bounds cannot absorb it. Fatal for that call; no degraded result is returned.
type InfeasibleBudgetError struct {
	MinTotal float64 // sum of per-channel minimum bounds
	MaxTotal float64 // sum of per-channel maximum bounds
	Budget   float64
}

// Error implements the error interface.
func (e *InfeasibleBudgetError) Error() string {
	if e.MinTotal > e.Budget {
		return fmt.Sprintf("infeasible budget: minimum bounds total %g exceeds budget %g", e.MinTotal, e.Budget)
	}
	return fmt.Sprintf("infeasible budget: maximum bounds total %g cannot absorb budget %g", e.MaxTotal, e.Budget)
}

// NumericInstabilityError reports a non-finite value produced while evaluating
// the response under a single posterior draw. Posterior reductions catch it
// per-draw and exclude the draw instead of aborting the whole computation.
type NumericInstabilityError struct {
	Draw    int     // posterior draw index
	Channel string  // channel being evaluated, empty for the composed response
	Value   float64 // the offending value (NaN or Inf)
}

// Error implements the error interface.
func (e *NumericInstabilityError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("numeric instability: draw %d channel %q produced %v", e.Draw, e.Channel, e.Value)
	}
	return fmt.Sprintf("numeric instability: draw %d produced %v", e.Draw, e.Value)
}
