package transform

import (
	"math"
	"math/rand/v2"
	"testing"
)

func syntheticSpend(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0))
	spend := make([]float64, n)
	for i := range spend {
		spend[i] = 1000 + 4000*rng.Float64()
		if rng.Float64() < 0.15 {
			spend[i] = 0 // dark weeks keep the series from being flat
		}
	}
	return spend
}

func TestEstimateDecay_RecoversTruth(t *testing.T) {
	spend := syntheticSpend(156, 7)
	const truth = 0.6

	target, err := GeometricAdstock(spend, truth)
	if err != nil {
		t.Fatalf("GeometricAdstock: %v", err)
	}

	decay, corr := EstimateDecay(spend, target)
	if math.Abs(decay-truth) > 0.026 {
		t.Errorf("estimated decay %v, want %v within one grid step", decay, truth)
	}
	if corr < 0.999 {
		t.Errorf("correlation at truth = %v, want near 1", corr)
	}
}

func TestEstimateDecay_DegenerateInput(t *testing.T) {
	if decay, corr := EstimateDecay(nil, nil); decay != 0 || corr != 0 {
		t.Errorf("empty input: got (%v, %v), want zeros", decay, corr)
	}
	flat := []float64{5, 5, 5, 5}
	if decay, corr := EstimateDecay(flat, flat); corr != 0 && math.IsNaN(corr) {
		t.Errorf("flat input: correlation = %v, want defined", corr)
	}
}

func TestEstimateSaturation_RecoversCurve(t *testing.T) {
	const (
		kappa = 50000.0
		shape = 2.0
		scale = 10000.0
	)
	exposure := make([]float64, 80)
	response := make([]float64, 80)
	for i := range exposure {
		x := 2500.0 * float64(i+1)
		exposure[i] = x
		response[i] = scale / (1 + math.Pow(kappa/x, shape))
	}

	est, err := EstimateSaturation(exposure, response)
	if err != nil {
		t.Fatalf("EstimateSaturation: %v", err)
	}
	if math.Abs(est.Kappa-kappa)/kappa > 0.10 {
		t.Errorf("kappa = %v, want within 10%% of %v", est.Kappa, kappa)
	}
	if math.Abs(est.Shape-shape)/shape > 0.10 {
		t.Errorf("shape = %v, want within 10%% of %v", est.Shape, shape)
	}
	if math.Abs(est.Scale-scale)/scale > 0.10 {
		t.Errorf("scale = %v, want within 10%% of %v", est.Scale, scale)
	}
}

func TestEstimateSaturation_RejectsShortInput(t *testing.T) {
	if _, err := EstimateSaturation([]float64{1, 2}, []float64{1, 2}); err == nil {
		t.Error("expected error for short input, got nil")
	}
	if _, err := EstimateSaturation([]float64{1, 2, 3}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths, got nil")
	}
}

func TestEstimate_EndToEnd(t *testing.T) {
	const (
		decay = 0.5
		kappa = 4000.0
		shape = 2.0
		scale = 9000.0
	)
	spend := syntheticSpend(156, 11)
	for i := 0; i < 5; i++ {
		spend[i] = 0 // quiet lead-in anchors the baseline shift
	}

	exposure, err := GeometricAdstock(spend, decay)
	if err != nil {
		t.Fatalf("GeometricAdstock: %v", err)
	}
	target := make([]float64, len(spend))
	for i, x := range exposure {
		target[i] = 40000 // flat baseline
		if x > 0 {
			target[i] += scale / (1 + math.Pow(kappa/x, shape))
		}
	}

	est, err := Estimate(spend, target)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(est.Decay-decay) > 0.051 {
		t.Errorf("decay = %v, want %v within one grid step", est.Decay, decay)
	}
	if est.Correlation < 0.9 {
		t.Errorf("correlation = %v, want above 0.9", est.Correlation)
	}
	if est.Kappa <= 0 || est.Shape <= 0 || est.Scale <= 0 {
		t.Errorf("estimate has non-positive parameters: %+v", est)
	}
	if math.Abs(est.Kappa-kappa)/kappa > 0.5 {
		t.Errorf("kappa = %v, want within 50%% of %v", est.Kappa, kappa)
	}
}
