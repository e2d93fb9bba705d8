package report

import "time"

// Report represents the full run report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	ModelID     string
	RunID       string

	// Fit summary and convergence outcome
	Fit FitSection

	// Posterior parameter table (sorted by parameter name)
	Parameters []ParameterRow

	// Channel attribution (model channel order)
	ROI ROISection

	// Budget allocation: historical vs optimized
	Allocation AllocationSection

	// Validation criteria
	Validation ValidationSection
}

// FitSection summarizes the sampling run and its convergence outcome.
type FitSection struct {
	CreatedAt     time.Time
	Chains        int
	DrawsPerChain int
	Warmup        int
	Channels      int
	Controls      int
	Converged     bool
	Strict        bool
	MaxRHat       float64
	MinESS        float64
	Divergences   int
	Warnings      []string
}

// ParameterRow is one parameter's posterior summary with convergence flags.
type ParameterRow struct {
	Name   string
	Mean   float64
	SD     float64
	Q025   float64
	Q975   float64
	RHat   float64
	ESS    float64
	RHatOK bool
	ESSOK  bool
}

// ROISection holds per-channel attribution rows plus stability flags.
type ROISection struct {
	Rows             []ROIRow
	ExcludedFraction float64
	Unstable         bool
	Warnings         []string
}

// ROIRow is one channel's contribution and return with 95% bounds.
type ROIRow struct {
	Channel      string
	TotalSpend   float64
	ContribMean  float64
	ContribLower float64
	ContribUpper float64
	ROIMean      float64
	ROILower     float64
	ROIUpper     float64
	Share        float64
}

// AllocationSection compares the historical allocation with the optimizer's.
type AllocationSection struct {
	OptimizationID string
	TotalBudget    float64
	ExpectedMean   float64
	ExpectedLower  float64
	ExpectedUpper  float64
	Converged      bool
	Iterations     int
	Rows           []AllocationRow
}

// AllocationRow is one channel's historical vs optimized spend. Bound marks
// channels held at a box constraint in the solution ("min", "max" or empty).
type AllocationRow struct {
	Channel   string
	Current   float64
	Optimized float64
	Delta     float64
	Marginal  float64
	Bound     string
}

// ValidationSection carries the validation verdict and its criterion rows.
type ValidationSection struct {
	Verdict  string
	Criteria []CriterionRow
}

// CriterionRow represents one validation criterion.
type CriterionRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}
