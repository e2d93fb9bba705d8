package domain

// FitConfig controls one Bayesian fit: sampler budget, model structure and
// convergence thresholds. All budgets are fixed; nothing adapts unbounded.
type FitConfig struct {
	// Sampler budget
	Draws        int     `json:"draws"`  // retained draws per chain
	Warmup       int     `json:"warmup"` // discarded adaptation draws per chain
	Chains       int     `json:"chains"`
	TargetAccept float64 `json:"target_accept"`
	MaxTreeDepth int     `json:"max_tree_depth"`
	Seed         int64   `json:"seed"`

	// Model structure
	Harmonics    int     `json:"harmonics"`     // Fourier pairs for seasonality; 0 disables
	SeasonPeriod float64 `json:"season_period"` // periods per seasonal cycle
	Trend        bool    `json:"trend"`
	BetaScale    float64 `json:"beta_scale"`  // half-normal prior scale for channel effects
	SigmaFloor   float64 `json:"sigma_floor"` // lower bound on the standardized noise scale
	PreEstimate  bool    `json:"pre_estimate"`

	// Convergence thresholds
	RHatStrict float64 `json:"r_hat_strict"`
	RHatMax    float64 `json:"r_hat_max"`
	MinESS     float64 `json:"min_ess"`

	// Progress enables sampling progress output. Not part of model identity.
	Progress bool `json:"-"`
}

// DefaultFitConfig returns the production sampling configuration.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Draws:        1000,
		Warmup:       1000,
		Chains:       4,
		TargetAccept: 0.9,
		MaxTreeDepth: 10,
		Harmonics:    2,
		SeasonPeriod: 52,
		Trend:        true,
		BetaScale:    1.0,
		SigmaFloor:   1e-3,
		RHatStrict:   1.05,
		RHatMax:      1.1,
		MinESS:       100,
	}
}
