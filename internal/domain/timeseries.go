package domain

import (
	"fmt"
	"math"
	"time"
)

// TimeSeries is the observed dataset a model is fitted against: one row per
// weekly period with a target value, per-channel spend and optional controls.
type TimeSeries struct {
	Timestamps []time.Time          `json:"timestamps"` // period starts, strictly increasing, uniform step
	Target     []float64            `json:"target"`     // observed target (revenue, conversions)
	Spend      map[string][]float64 `json:"spend"`      // spend column per channel name
	Controls   map[string][]float64 `json:"controls"`   // exogenous control columns
}

// Len returns the number of periods.
func (ts *TimeSeries) Len() int {
	return len(ts.Timestamps)
}

// Validate checks the shape invariants: strictly increasing timestamps with a
// uniform step, equal column lengths, and a finite target everywhere.
// Returns a SchemaError describing the first violation found.
func (ts *TimeSeries) Validate() error {
	n := len(ts.Timestamps)
	if n == 0 {
		return &SchemaError{Reason: "time series is empty"}
	}
	if len(ts.Target) != n {
		return &SchemaError{Column: "target", Reason: fmt.Sprintf("has %d values, want %d", len(ts.Target), n)}
	}

	// Periods must be contiguous: same positive step between all neighbours.
	var step time.Duration
	for i := 1; i < n; i++ {
		d := ts.Timestamps[i].Sub(ts.Timestamps[i-1])
		if d <= 0 {
			return &SchemaError{Reason: fmt.Sprintf("timestamps not strictly increasing at index %d", i)}
		}
		if step == 0 {
			step = d
		} else if d != step {
			return &SchemaError{Reason: fmt.Sprintf("non-uniform period step at index %d: %s, want %s", i, d, step)}
		}
	}

	for i, v := range ts.Target {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &SchemaError{Column: "target", Reason: fmt.Sprintf("has non-finite value at index %d", i)}
		}
	}

	for name, col := range ts.Spend {
		if len(col) != n {
			return &SchemaError{Column: name, Reason: fmt.Sprintf("has %d values, want %d", len(col), n)}
		}
	}
	for name, col := range ts.Controls {
		if len(col) != n {
			return &SchemaError{Column: name, Reason: fmt.Sprintf("has %d values, want %d", len(col), n)}
		}
	}

	return nil
}

// SpendColumn returns the spend series for a channel.
// Returns a SchemaError naming the column if it is absent.
func (ts *TimeSeries) SpendColumn(name string) ([]float64, error) {
	col, ok := ts.Spend[name]
	if !ok {
		return nil, NewMissingColumnError(name)
	}
	return col, nil
}

// ControlColumn returns a control series by name.
// Returns a SchemaError naming the column if it is absent.
func (ts *TimeSeries) ControlColumn(name string) ([]float64, error) {
	col, ok := ts.Controls[name]
	if !ok {
		return nil, NewMissingColumnError(name)
	}
	return col, nil
}

// TotalSpend sums a channel's spend over the full window.
// Unknown channels total zero.
func (ts *TimeSeries) TotalSpend(name string) float64 {
	var total float64
	for _, v := range ts.Spend[name] {
		total += v
	}
	return total
}

// Clone returns a deep copy.
func (ts *TimeSeries) Clone() *TimeSeries {
	out := &TimeSeries{
		Timestamps: append([]time.Time(nil), ts.Timestamps...),
		Target:     append([]float64(nil), ts.Target...),
	}
	if ts.Spend != nil {
		out.Spend = make(map[string][]float64, len(ts.Spend))
		for k, v := range ts.Spend {
			out.Spend[k] = append([]float64(nil), v...)
		}
	}
	if ts.Controls != nil {
		out.Controls = make(map[string][]float64, len(ts.Controls))
		for k, v := range ts.Controls {
			out.Controls[k] = append([]float64(nil), v...)
		}
	}
	return out
}
