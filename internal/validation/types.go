// Package validation gates the inference engine. It fits the model on
// synthetic data with known ground truth and checks that the truth is
// recovered, that the sampler is healthy, that predictions track the data,
// that attribution matches the generating process and that the optimizer
// beats naive allocations. A FAIL verdict means the pipeline should not be
// trusted on real datasets.
package validation

// Verdict is the aggregate outcome of a validation run.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// CriterionResult is one checked criterion with its threshold and observed
// value rendered for reports.
type CriterionResult struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// Tolerances bound how far a fit may drift from ground truth, and how much
// predictive error is acceptable, before a criterion fails. Zero fields fall
// back to the standard thresholds.
type Tolerances struct {
	DecayAbs       float64 `json:"decay_abs"`       // absolute decay error
	BetaRel        float64 `json:"beta_rel"`        // relative beta error
	KappaRel       float64 `json:"kappa_rel"`       // relative kappa error
	ROIRel         float64 `json:"roi_rel"`         // relative ROI error against the truth
	MaxDivergences int     `json:"max_divergences"` // divergent transitions allowed after warm-up
	MAPEMax        float64 `json:"mape_max"`        // percent
	R2Min          float64 `json:"r2_min"`
	CoverageMin    float64 `json:"coverage_min"` // share of observations inside the 95% band
	RMSERel        float64 `json:"rmse_rel"`     // RMSE over the mean absolute target
}

// DefaultTolerances returns the thresholds the standard suite runs with.
func DefaultTolerances() Tolerances {
	return Tolerances{
		DecayAbs:    0.05,
		BetaRel:     0.10,
		KappaRel:    0.30,
		ROIRel:      0.30,
		MAPEMax:     10,
		R2Min:       0.80,
		CoverageMin: 0.85,
		RMSERel:     0.20,
	}
}

func (t Tolerances) withDefaults() Tolerances {
	def := DefaultTolerances()
	if t.DecayAbs <= 0 {
		t.DecayAbs = def.DecayAbs
	}
	if t.BetaRel <= 0 {
		t.BetaRel = def.BetaRel
	}
	if t.KappaRel <= 0 {
		t.KappaRel = def.KappaRel
	}
	if t.ROIRel <= 0 {
		t.ROIRel = def.ROIRel
	}
	if t.MAPEMax <= 0 {
		t.MAPEMax = def.MAPEMax
	}
	if t.R2Min <= 0 {
		t.R2Min = def.R2Min
	}
	if t.CoverageMin <= 0 {
		t.CoverageMin = def.CoverageMin
	}
	if t.RMSERel <= 0 {
		t.RMSERel = def.RMSERel
	}
	return t
}

// AllPass reports whether every criterion in the list passed.
func AllPass(rows []CriterionResult) bool {
	for _, r := range rows {
		if !r.Pass {
			return false
		}
	}
	return true
}

// VerdictOf folds criterion groups into a single verdict: PASS only when
// every row of every group passed.
func VerdictOf(groups ...[]CriterionResult) Verdict {
	for _, g := range groups {
		if !AllPass(g) {
			return VerdictFail
		}
	}
	return VerdictPass
}
