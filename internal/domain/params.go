package domain

import "fmt"

// Global parameter names used across summaries, samples and reports.
const (
	ParamIntercept = "intercept"
	ParamTrend     = "trend"
	ParamSigma     = "sigma"
)

// BetaParam returns the effectiveness parameter name for a channel.
func BetaParam(channel string) string { return fmt.Sprintf("beta[%s]", channel) }

// DecayParam returns the adstock decay parameter name for a channel.
func DecayParam(channel string) string { return fmt.Sprintf("decay[%s]", channel) }

// KappaParam returns the half-saturation parameter name for a channel.
func KappaParam(channel string) string { return fmt.Sprintf("kappa[%s]", channel) }

// ShapeParam returns the saturation shape parameter name for a channel.
func ShapeParam(channel string) string { return fmt.Sprintf("shape[%s]", channel) }

// ControlParam returns the coefficient name for a control column.
func ControlParam(name string) string { return fmt.Sprintf("gamma[%s]", name) }

// SeasonSinParam returns the sine coefficient name for a Fourier harmonic.
func SeasonSinParam(h int) string { return fmt.Sprintf("season[sin%d]", h) }

// SeasonCosParam returns the cosine coefficient name for a Fourier harmonic.
func SeasonCosParam(h int) string { return fmt.Sprintf("season[cos%d]", h) }

// ChannelParameters are posterior point estimates for one channel, expressed
// in data units: decay per period, kappa in spend units, beta in target units.
type ChannelParameters struct {
	Decay float64 `json:"decay"`
	Kappa float64 `json:"kappa"`
	Shape float64 `json:"shape"`
	Beta  float64 `json:"beta"`
}
