package bayes

import "math"

// bijection maps one unconstrained sampler coordinate to a constrained
// parameter value. logDetJacobian is the log absolute derivative of the
// forward map, added to the posterior so priors stay expressed on the
// constrained scale.
type bijection interface {
	forward(z float64) float64
	inverse(v float64) float64
	logDetJacobian(z float64) float64
}

// identityBijection leaves unconstrained parameters alone.
type identityBijection struct{}

func (identityBijection) forward(z float64) float64      { return z }
func (identityBijection) inverse(v float64) float64      { return v }
func (identityBijection) logDetJacobian(float64) float64 { return 0 }

// logBijection maps the real line to positive values.
type logBijection struct{}

func (logBijection) forward(z float64) float64        { return math.Exp(z) }
func (logBijection) inverse(v float64) float64        { return math.Log(v) }
func (logBijection) logDetJacobian(z float64) float64 { return z }

// logitBijection maps the real line to the open unit interval.
type logitBijection struct{}

func (logitBijection) forward(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (logitBijection) inverse(v float64) float64 {
	return math.Log(v / (1 - v))
}

// logDetJacobian is log(s*(1-s)) computed through softplus so it stays
// finite deep in the tails where s*(1-s) underflows.
func (logitBijection) logDetJacobian(z float64) float64 {
	return -softplus(z) - softplus(-z)
}

// shiftedLogBijection maps the real line to (floor, +inf), used for the
// noise scale so a noise-free dataset cannot collapse the posterior onto an
// improper spike at zero.
type shiftedLogBijection struct {
	floor float64
}

func (b shiftedLogBijection) forward(z float64) float64        { return b.floor + math.Exp(z) }
func (b shiftedLogBijection) inverse(v float64) float64        { return math.Log(v - b.floor) }
func (b shiftedLogBijection) logDetJacobian(z float64) float64 { return z }

func softplus(t float64) float64 {
	if t > 30 {
		return t
	}
	return math.Log1p(math.Exp(t))
}
