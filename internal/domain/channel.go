package domain

// AdstockKind selects the carryover transform applied to a channel's spend.
type AdstockKind string

const (
	// AdstockNone applies no carryover; exposure equals spend.
	AdstockNone AdstockKind = "none"

	// AdstockGeometric is the recursive geometric decay. MaxLag > 0 truncates
	// the kernel to a finite window with the same decay weights.
	AdstockGeometric AdstockKind = "geometric"

	// AdstockWeibull convolves with a discretized Weibull survival kernel over
	// a bounded lag window, renormalized to unit mass.
	AdstockWeibull AdstockKind = "weibull"

	// AdstockDelayed is the geometric kernel shifted to peak a few periods
	// after spend, for channels with lagged impact.
	AdstockDelayed AdstockKind = "delayed"
)

// SaturationKind selects the diminishing-returns transform for a channel.
type SaturationKind string

const (
	// SaturationNone passes exposure through unchanged.
	SaturationNone SaturationKind = "none"

	// SaturationHill is the Hill function x^n / (kappa^n + x^n).
	SaturationHill SaturationKind = "hill"

	// SaturationLogistic is a zero-anchored logistic curve.
	SaturationLogistic SaturationKind = "logistic"

	// SaturationLinear is an unbounded linear response.
	SaturationLinear SaturationKind = "linear"
)

// ChannelSpec configures one media channel: which spend column it reads and
// which transforms apply. Created at model-configuration time and immutable
// during a fit.
type ChannelSpec struct {
	Name       string         `json:"name"` // spend column name in the TimeSeries
	Adstock    AdstockKind    `json:"adstock"`
	Saturation SaturationKind `json:"saturation"`
	MaxLag     int            `json:"max_lag,omitempty"` // finite kernel window; 0 keeps unbounded geometric memory
}

// NewChannelSpec returns the default configuration for a channel:
// geometric adstock with unbounded memory and Hill saturation.
func NewChannelSpec(name string) ChannelSpec {
	return ChannelSpec{
		Name:       name,
		Adstock:    AdstockGeometric,
		Saturation: SaturationHill,
	}
}
