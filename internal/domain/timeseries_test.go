package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func weeklyTimestamps(n int) []time.Time {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, 7*i)
	}
	return out
}

func validSeries(n int) *TimeSeries {
	target := make([]float64, n)
	spend := make([]float64, n)
	for i := range target {
		target[i] = 100000 + float64(i)*10
		spend[i] = 5000
	}
	return &TimeSeries{
		Timestamps: weeklyTimestamps(n),
		Target:     target,
		Spend:      map[string][]float64{"TV": spend},
	}
}

func TestTimeSeriesValidate_OK(t *testing.T) {
	ts := validSeries(52)
	if err := ts.Validate(); err != nil {
		t.Fatalf("Validate failed on valid series: %v", err)
	}
}

func TestTimeSeriesValidate_Violations(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(ts *TimeSeries)
		wantColumn string
	}{
		{
			name:   "empty series",
			mutate: func(ts *TimeSeries) { ts.Timestamps = nil; ts.Target = nil },
		},
		{
			name:       "target length mismatch",
			mutate:     func(ts *TimeSeries) { ts.Target = ts.Target[:10] },
			wantColumn: "target",
		},
		{
			name: "timestamps not increasing",
			mutate: func(ts *TimeSeries) {
				ts.Timestamps[5] = ts.Timestamps[3]
			},
		},
		{
			name: "non-uniform step",
			mutate: func(ts *TimeSeries) {
				ts.Timestamps[10] = ts.Timestamps[10].Add(24 * time.Hour)
			},
		},
		{
			name:       "non-finite target",
			mutate:     func(ts *TimeSeries) { ts.Target[7] = math.NaN() },
			wantColumn: "target",
		},
		{
			name:       "spend length mismatch",
			mutate:     func(ts *TimeSeries) { ts.Spend["TV"] = ts.Spend["TV"][:20] },
			wantColumn: "TV",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := validSeries(52)
			tt.mutate(ts)

			err := ts.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}

			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %T: %v", err, err)
			}
			if schemaErr.Column != tt.wantColumn {
				t.Errorf("SchemaError column = %q, want %q", schemaErr.Column, tt.wantColumn)
			}
		})
	}
}

func TestSpendColumn_MissingNamesColumn(t *testing.T) {
	ts := validSeries(10)

	_, err := ts.SpendColumn("TV_spend")
	if err == nil {
		t.Fatal("expected error for missing column")
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T", err)
	}
	if schemaErr.Column != "TV_spend" {
		t.Errorf("SchemaError column = %q, want %q", schemaErr.Column, "TV_spend")
	}
}

func TestTotalSpend(t *testing.T) {
	ts := validSeries(10)

	if got := ts.TotalSpend("TV"); got != 50000 {
		t.Errorf("TotalSpend(TV) = %f, want 50000", got)
	}
	if got := ts.TotalSpend("missing"); got != 0 {
		t.Errorf("TotalSpend(missing) = %f, want 0", got)
	}
}

func TestTimeSeriesClone_Independent(t *testing.T) {
	ts := validSeries(10)
	clone := ts.Clone()

	clone.Target[0] = -1
	clone.Spend["TV"][0] = -1

	if ts.Target[0] == -1 {
		t.Error("mutating clone target changed the original")
	}
	if ts.Spend["TV"][0] == -1 {
		t.Error("mutating clone spend changed the original")
	}
}
