package transform

import (
	"fmt"
	"math"

	"mediamix-lab/internal/domain"
)

// SaturationCurve is the response-shape contract shared by the selectable
// saturation families. At maps exposure to response, Marginal is its exact
// first derivative (the optimizer equalizes marginals across channels, so a
// finite-difference approximation is not good enough here).
type SaturationCurve interface {
	At(x float64) float64
	Marginal(x float64) float64
}

// Hill is the S-shaped response ceiling/(1+(kappa/x)^shape). The output is
// exactly ceiling/2 at x = kappa, 0 at x <= 0, and approaches ceiling as
// x grows. Writing the curve in ratio form keeps it overflow-safe: a huge
// (kappa/x)^shape lands on +Inf and the division returns 0 rather than NaN.
type Hill struct {
	Kappa   float64
	Shape   float64
	Ceiling float64
}

// NewHill builds a unit-ceiling Hill curve, the form used by the fitted
// model where the effect scale lives in the channel coefficient.
func NewHill(kappa, shape float64) (Hill, error) {
	if kappa <= 0 || shape <= 0 {
		return Hill{}, fmt.Errorf("hill curve needs positive kappa and shape, got kappa=%v shape=%v", kappa, shape)
	}
	return Hill{Kappa: kappa, Shape: shape, Ceiling: 1}, nil
}

// At evaluates the curve.
func (h Hill) At(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return h.Ceiling / (1 + math.Pow(h.Kappa/x, h.Shape))
}

// Marginal evaluates dAt/dx. With r = (kappa/x)^shape the derivative is
// ceiling*shape*r/(x*(1+r)^2), which stays finite where the textbook
// x^(shape-1) form overflows. At x = 0 it returns the one-sided limit.
func (h Hill) Marginal(x float64) float64 {
	if x <= 0 {
		switch {
		case h.Shape > 1:
			return 0
		case h.Shape == 1:
			return h.Ceiling / h.Kappa
		default:
			return math.Inf(1)
		}
	}
	r := math.Pow(h.Kappa/x, h.Shape)
	if math.IsInf(r, 1) {
		return 0
	}
	return h.Ceiling * h.Shape * r / (x * (1 + r) * (1 + r))
}

// SpendAtFraction inverts the curve: the exposure at which the response
// reaches the given fraction of the ceiling. Fraction must be in (0,1).
func (h Hill) SpendAtFraction(fraction float64) (float64, error) {
	if fraction <= 0 || fraction >= 1 {
		return 0, fmt.Errorf("fraction must be in (0,1), got %v", fraction)
	}
	return h.Kappa * math.Pow(fraction/(1-fraction), 1/h.Shape), nil
}

// HillValueInto is the unit-ceiling fast path used inside the sampler's
// likelihood loop. kappa and shape must already be positive.
func HillValueInto(dst, xs []float64, kappa, shape float64) []float64 {
	for i, x := range xs {
		if x <= 0 {
			dst[i] = 0
			continue
		}
		dst[i] = 1 / (1 + math.Pow(kappa/x, shape))
	}
	return dst
}

// Logistic is a zero-anchored logistic response: the raw sigmoid
// 1/(1+exp(-steepness*(x-midpoint))) shifted and rescaled so the curve
// passes through the origin and still approaches ceiling.
type Logistic struct {
	Midpoint  float64
	Steepness float64
	Ceiling   float64
}

// NewLogistic builds a unit-ceiling zero-anchored logistic curve.
func NewLogistic(midpoint, steepness float64) (Logistic, error) {
	if midpoint <= 0 || steepness <= 0 {
		return Logistic{}, fmt.Errorf("logistic curve needs positive midpoint and steepness, got midpoint=%v steepness=%v", midpoint, steepness)
	}
	return Logistic{Midpoint: midpoint, Steepness: steepness, Ceiling: 1}, nil
}

func (l Logistic) raw(x float64) float64 {
	return 1 / (1 + math.Exp(-l.Steepness*(x-l.Midpoint)))
}

// At evaluates the curve.
func (l Logistic) At(x float64) float64 {
	if x <= 0 {
		return 0
	}
	r0 := l.raw(0)
	return l.Ceiling * (l.raw(x) - r0) / (1 - r0)
}

// Marginal evaluates dAt/dx.
func (l Logistic) Marginal(x float64) float64 {
	if x < 0 {
		return 0
	}
	r := l.raw(x)
	return l.Ceiling * l.Steepness * r * (1 - r) / (1 - l.raw(0))
}

// Linear is the no-saturation response slope*x, useful as a null model when
// comparing fits.
type Linear struct {
	Slope float64
}

// At evaluates the curve.
func (l Linear) At(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return l.Slope * x
}

// Marginal evaluates dAt/dx.
func (l Linear) Marginal(x float64) float64 {
	if x < 0 {
		return 0
	}
	return l.Slope
}

// Identity passes exposure through untransformed.
type Identity struct{}

// At evaluates the curve.
func (Identity) At(x float64) float64 { return x }

// Marginal evaluates dAt/dx.
func (Identity) Marginal(float64) float64 { return 1 }

// CurveParams carries the family parameters for NewCurve. Kappa and Shape map
// to midpoint and steepness for the logistic family and to the slope (Kappa)
// for the linear one. A zero Ceiling means unit ceiling.
type CurveParams struct {
	Kappa   float64
	Shape   float64
	Ceiling float64
}

// NewCurve builds the saturation curve configured on a channel spec.
func NewCurve(kind domain.SaturationKind, p CurveParams) (SaturationCurve, error) {
	ceiling := p.Ceiling
	if ceiling == 0 {
		ceiling = 1
	}
	switch kind {
	case domain.SaturationNone:
		return Identity{}, nil
	case domain.SaturationHill:
		h, err := NewHill(p.Kappa, p.Shape)
		if err != nil {
			return nil, err
		}
		h.Ceiling = ceiling
		return h, nil
	case domain.SaturationLogistic:
		l, err := NewLogistic(p.Kappa, p.Shape)
		if err != nil {
			return nil, err
		}
		l.Ceiling = ceiling
		return l, nil
	case domain.SaturationLinear:
		if p.Kappa <= 0 {
			return nil, fmt.Errorf("linear curve needs a positive slope, got %v", p.Kappa)
		}
		return Linear{Slope: p.Kappa}, nil
	default:
		return nil, fmt.Errorf("unknown saturation kind %q", kind)
	}
}
