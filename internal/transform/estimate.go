package transform

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// TransformEstimate carries the starting values proposed for one channel by a
// cheap analytic pass over the data. These seed the sampler; they are never a
// substitute for joint inference.
type TransformEstimate struct {
	Decay       float64
	Kappa       float64
	Shape       float64
	Scale       float64
	Correlation float64
}

// EstimateDecay grid-searches decay over [0, 0.95] in steps of 0.05 and
// returns the value maximizing the Pearson correlation between adstocked
// spend and the target, along with that correlation.
func EstimateDecay(spend, target []float64) (float64, float64) {
	if len(spend) == 0 || len(spend) != len(target) {
		return 0, 0
	}

	exposure := make([]float64, len(spend))
	bestDecay, bestCorr := 0.0, math.Inf(-1)
	for decay := 0.0; decay < 0.951; decay += 0.05 {
		GeometricAdstockInto(exposure, spend, decay)
		corr := stat.Correlation(exposure, target, nil)
		if math.IsNaN(corr) {
			continue
		}
		if corr > bestCorr {
			bestDecay, bestCorr = decay, corr
		}
	}
	if math.IsInf(bestCorr, -1) {
		return 0, 0
	}
	return bestDecay, bestCorr
}

// EstimateSaturation least-squares fits scale*Hill(x; kappa, shape) to the
// exposure/response pairs, searching over log-parameters with Nelder-Mead so
// positivity needs no explicit constraint.
func EstimateSaturation(exposure, response []float64) (TransformEstimate, error) {
	if len(exposure) < 3 || len(exposure) != len(response) {
		return TransformEstimate{}, fmt.Errorf("saturation estimate needs matched series of at least 3 points, got %d and %d", len(exposure), len(response))
	}

	kappa0 := positiveMedian(exposure)
	scale0 := absMax(response)
	if kappa0 <= 0 || scale0 <= 0 {
		return TransformEstimate{}, fmt.Errorf("saturation estimate needs positive exposure and a non-flat response")
	}

	sse := func(z []float64) float64 {
		kappa, shape, scale := math.Exp(z[0]), math.Exp(z[1]), math.Exp(z[2])
		var acc float64
		for i, x := range exposure {
			var fit float64
			if x > 0 {
				fit = scale / (1 + math.Pow(kappa/x, shape))
			}
			d := fit - response[i]
			acc += d * d
		}
		return acc
	}

	init := []float64{math.Log(kappa0), 0, math.Log(scale0)}
	result, err := optimize.Minimize(optimize.Problem{Func: sse}, init, nil, &optimize.NelderMead{})
	if err != nil {
		return TransformEstimate{}, fmt.Errorf("saturation estimate did not converge: %w", err)
	}

	return TransformEstimate{
		Kappa: math.Exp(result.X[0]),
		Shape: math.Exp(result.X[1]),
		Scale: math.Exp(result.X[2]),
	}, nil
}

// Estimate runs both analytic passes for one channel: decay from the
// correlation grid, then the saturation fit against the adstocked exposure.
// The response is shifted to be non-negative first since the target carries
// baseline sales the channel did not cause.
func Estimate(spend, target []float64) (TransformEstimate, error) {
	decay, corr := EstimateDecay(spend, target)

	exposure := GeometricAdstockInto(make([]float64, len(spend)), spend, decay)
	shifted := make([]float64, len(target))
	low := math.Inf(1)
	for _, v := range target {
		low = math.Min(low, v)
	}
	for i, v := range target {
		shifted[i] = v - low
	}

	est, err := EstimateSaturation(exposure, shifted)
	if err != nil {
		return TransformEstimate{}, err
	}
	est.Decay = decay
	est.Correlation = corr
	return est, nil
}

func positiveMedian(xs []float64) float64 {
	pos := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x > 0 {
			pos = append(pos, x)
		}
	}
	if len(pos) == 0 {
		return 0
	}
	sort.Float64s(pos)
	return stat.Quantile(0.5, stat.Empirical, pos, nil)
}

func absMax(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
