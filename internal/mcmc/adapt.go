package mcmc

import "math"

// dualAveraging tunes the leapfrog step size toward a target acceptance
// rate using the Nesterov dual-averaging scheme with the usual constants
// (gamma 0.05, t0 10, kappa 0.75).
type dualAveraging struct {
	mu        float64
	logEps    float64
	logEpsBar float64
	hBar      float64
	target    float64
	count     int
}

func newDualAveraging(eps0, target float64) *dualAveraging {
	return &dualAveraging{
		mu:     math.Log(10 * eps0),
		logEps: math.Log(eps0),
		target: target,
	}
}

// update incorporates one iteration's acceptance statistic and returns the
// step size to use next.
func (da *dualAveraging) update(accept float64) float64 {
	const (
		gamma = 0.05
		t0    = 10.0
		kappa = 0.75
	)
	if math.IsNaN(accept) {
		accept = 0
	}
	da.count++
	m := float64(da.count)

	da.hBar = (1-1/(m+t0))*da.hBar + (da.target-accept)/(m+t0)
	da.logEps = da.mu - math.Sqrt(m)/gamma*da.hBar
	w := math.Pow(m, -kappa)
	da.logEpsBar = w*da.logEps + (1-w)*da.logEpsBar
	return math.Exp(da.logEps)
}

// final returns the smoothed step size used once adaptation freezes.
func (da *dualAveraging) final() float64 {
	if da.count == 0 {
		return math.Exp(da.logEps)
	}
	return math.Exp(da.logEpsBar)
}

// welford accumulates per-coordinate running variance for the mass matrix
// window.
type welford struct {
	count int
	mean  []float64
	m2    []float64
}

func newWelford(dim int) *welford {
	return &welford{mean: make([]float64, dim), m2: make([]float64, dim)}
}

func (w *welford) observe(x []float64) {
	w.count++
	n := float64(w.count)
	for j := range x {
		delta := x[j] - w.mean[j]
		w.mean[j] += delta / n
		w.m2[j] += delta * (x[j] - w.mean[j])
	}
}

// regularizedVariance returns the inverse-mass diagonal: the sample
// variances shrunk toward a small constant the way Stan regularizes its
// warmup estimate, which keeps the metric positive and stable for short
// windows.
func (w *welford) regularizedVariance() []float64 {
	out := make([]float64, len(w.mean))
	n := float64(w.count)
	shrink := n / (n + 5)
	for j := range out {
		variance := 0.0
		if w.count > 1 {
			variance = w.m2[j] / (n - 1)
		}
		out[j] = shrink*variance + 1e-3*(1-shrink)
	}
	return out
}
