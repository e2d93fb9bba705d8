// Package transform implements the carryover (adstock) and diminishing-returns
// (saturation) transforms applied to channel spend, plus the analytic helpers
// the optimizer and reports derive from them.
package transform

import (
	"fmt"
	"math"

	"mediamix-lab/internal/domain"
)

// GeometricAdstock converts spend into carryover-adjusted exposure using the
// recursive geometric kernel: out[t] = spend[t] + decay*out[t-1], out[-1] = 0.
// Decay 0 is the identity transform. Output is unnormalized; the kernel mass
// is 1/(1-decay), so exposure stays bounded for decay < 1. The same mode is
// used at fit and prediction time.
func GeometricAdstock(spend []float64, decay float64) ([]float64, error) {
	if err := validateDecay(decay); err != nil {
		return nil, err
	}
	return GeometricAdstockInto(make([]float64, len(spend)), spend, decay), nil
}

// GeometricAdstockInto is the allocation-free form used inside the sampler's
// likelihood loop. decay must already be in [0,1) and dst must have the same
// length as spend.
func GeometricAdstockInto(dst, spend []float64, decay float64) []float64 {
	carry := 0.0
	for i, s := range spend {
		carry = s + decay*carry
		dst[i] = carry
	}
	return dst
}

// WindowedAdstock truncates the geometric kernel to a finite lag window:
// out[t] = sum over l=0..maxLag of decay^l * spend[t-l].
func WindowedAdstock(spend []float64, decay float64, maxLag int) ([]float64, error) {
	if err := validateDecay(decay); err != nil {
		return nil, err
	}
	if maxLag < 1 {
		return nil, fmt.Errorf("adstock window must be at least 1 lag, got %d", maxLag)
	}
	kernel := geometricKernelInto(make([]float64, maxLag+1), decay)
	return convolveInto(make([]float64, len(spend)), spend, kernel), nil
}

// WeibullAdstock convolves spend with a discretized Weibull survival kernel
// over lags 0..maxLag: w[l] = exp(-(l/scale)^shape), renormalized to unit
// total mass so spend mass is conserved regardless of shape and scale.
func WeibullAdstock(spend []float64, shape, scale float64, maxLag int) ([]float64, error) {
	kernel, err := WeibullKernel(shape, scale, maxLag)
	if err != nil {
		return nil, err
	}
	return convolveInto(make([]float64, len(spend)), spend, kernel), nil
}

// WeibullKernel returns the unit-mass discretized Weibull survival kernel.
func WeibullKernel(shape, scale float64, maxLag int) ([]float64, error) {
	if shape <= 0 || scale <= 0 {
		return nil, fmt.Errorf("weibull kernel needs positive shape and scale, got shape=%v scale=%v", shape, scale)
	}
	if maxLag < 1 {
		return nil, fmt.Errorf("weibull kernel needs at least 1 lag, got %d", maxLag)
	}

	kernel := make([]float64, maxLag+1)
	var mass float64
	for l := range kernel {
		kernel[l] = math.Exp(-math.Pow(float64(l)/scale, shape))
		mass += kernel[l]
	}
	for l := range kernel {
		kernel[l] /= mass
	}
	return kernel, nil
}

// DelayedAdstock shifts the carryover peak to a few periods after spend:
// w[l] = decay^((l-delay)^2) over lags 0..maxLag, renormalized to unit mass.
// Used for channels whose impact lags the spend (e.g. direct mail).
func DelayedAdstock(spend []float64, decay float64, delay, maxLag int) ([]float64, error) {
	if err := validateDecay(decay); err != nil {
		return nil, err
	}
	if maxLag < 1 || delay < 0 || delay > maxLag {
		return nil, fmt.Errorf("delayed adstock needs 0 <= delay <= maxLag and maxLag >= 1, got delay=%d maxLag=%d", delay, maxLag)
	}

	kernel := make([]float64, maxLag+1)
	var mass float64
	for l := range kernel {
		d := float64(l - delay)
		kernel[l] = math.Pow(decay, d*d)
		mass += kernel[l]
	}
	for l := range kernel {
		kernel[l] /= mass
	}
	return convolveInto(make([]float64, len(spend)), spend, kernel), nil
}

// HalfLife returns the number of periods until carryover halves:
// ln(0.5)/ln(decay). Reporting only, never used in inference.
func HalfLife(decay float64) float64 {
	if decay <= 0 {
		return 0
	}
	if decay >= 1 {
		return math.Inf(1)
	}
	return math.Log(0.5) / math.Log(decay)
}

// KernelMass returns the total carryover mass of a geometric kernel:
// 1/(1-decay) for the unbounded recursion, the truncated geometric sum when
// maxLag > 0.
func KernelMass(decay float64, maxLag int) float64 {
	if maxLag > 0 {
		var mass float64
		w := 1.0
		for l := 0; l <= maxLag; l++ {
			mass += w
			w *= decay
		}
		return mass
	}
	return 1 / (1 - decay)
}

// SteadyStateMultiplier derives the per-channel scalar the optimizer uses in
// place of full temporal adstock dynamics: the ratio of mean exposure to mean
// spend over the observed history. Falls back to the kernel mass when the
// history carries no spend.
func SteadyStateMultiplier(spend []float64, decay float64, maxLag int) float64 {
	var totalSpend float64
	for _, s := range spend {
		totalSpend += s
	}
	if len(spend) == 0 || totalSpend <= 0 {
		return KernelMass(decay, maxLag)
	}

	exposure := make([]float64, len(spend))
	if maxLag > 0 {
		kernel := geometricKernelInto(make([]float64, maxLag+1), decay)
		convolveInto(exposure, spend, kernel)
	} else {
		GeometricAdstockInto(exposure, spend, decay)
	}
	var totalExposure float64
	for _, e := range exposure {
		totalExposure += e
	}
	return totalExposure / totalSpend
}

// CarryoverWeights returns the fraction of a channel's effect landing at each
// lag, for reporting how long spend keeps working.
func CarryoverWeights(decay float64, lags int) []float64 {
	if lags < 1 {
		return nil
	}
	weights := geometricKernelInto(make([]float64, lags), decay)
	var mass float64
	for _, w := range weights {
		mass += w
	}
	if mass > 0 {
		for i := range weights {
			weights[i] /= mass
		}
	}
	return weights
}

// Carryover evaluates one channel's configured carryover for decay values
// proposed during inference. It owns kernel scratch, so each sampler chain
// uses its own instance.
type Carryover struct {
	kind   domain.AdstockKind
	maxLag int
	kernel []float64
}

// NewCarryover builds the carryover evaluator for a channel spec.
func NewCarryover(spec domain.ChannelSpec) *Carryover {
	return &Carryover{kind: spec.Adstock, maxLag: spec.MaxLag}
}

// SupportsInference reports whether the kind can be fitted jointly: the
// Weibull and delayed kernels carry extra shape parameters and are applied
// through their own functions instead.
func (c *Carryover) SupportsInference() bool {
	return c.kind == domain.AdstockNone || c.kind == domain.AdstockGeometric
}

// ApplyInto writes the exposure series for one decay value into dst.
func (c *Carryover) ApplyInto(dst, spend []float64, decay float64) []float64 {
	switch {
	case c.kind == domain.AdstockNone:
		copy(dst, spend)
		return dst
	case c.maxLag > 0:
		if c.kernel == nil {
			c.kernel = make([]float64, c.maxLag+1)
		}
		geometricKernelInto(c.kernel, decay)
		return convolveInto(dst, spend, c.kernel)
	default:
		return GeometricAdstockInto(dst, spend, decay)
	}
}

// Mass returns the kernel mass at a decay value.
func (c *Carryover) Mass(decay float64) float64 {
	if c.kind == domain.AdstockNone {
		return 1
	}
	return KernelMass(decay, c.maxLag)
}

func geometricKernelInto(kernel []float64, decay float64) []float64 {
	w := 1.0
	for l := range kernel {
		kernel[l] = w
		w *= decay
	}
	return kernel
}

func convolveInto(dst, spend, kernel []float64) []float64 {
	for t := range spend {
		var acc float64
		for l, w := range kernel {
			if t-l < 0 {
				break
			}
			acc += w * spend[t-l]
		}
		dst[t] = acc
	}
	return dst
}

func validateDecay(decay float64) error {
	if decay < 0 || decay >= 1 || math.IsNaN(decay) {
		return fmt.Errorf("adstock decay must be in [0,1), got %v", decay)
	}
	return nil
}
