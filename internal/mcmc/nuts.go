package mcmc

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"
)

// point is one phase-space state: position, momentum, cached gradient and
// log density at the position. Slices are never shared between points.
type point struct {
	x    []float64
	p    []float64
	g    []float64
	logp float64
}

func (z point) clone() point {
	out := point{
		x:    make([]float64, len(z.x)),
		p:    make([]float64, len(z.p)),
		g:    make([]float64, len(z.g)),
		logp: z.logp,
	}
	copy(out.x, z.x)
	copy(out.p, z.p)
	copy(out.g, z.g)
	return out
}

// walker runs the Hamiltonian dynamics for one chain.
type walker struct {
	target Target
	rng    *rand.Rand
	fdset  *fd.Settings
}

func newWalker(target Target, rng *rand.Rand) *walker {
	return &walker{
		target: target,
		rng:    rng,
		fdset:  &fd.Settings{Formula: fd.Central},
	}
}

func (w *walker) grad(dst, x []float64) {
	if w.target.Gradient != nil {
		w.target.Gradient(dst, x)
		return
	}
	fd.Gradient(dst, w.target.LogDensity, x, w.fdset)
}

// at evaluates density and gradient at a position, with zero momentum.
func (w *walker) at(x []float64) point {
	z := point{
		x: make([]float64, len(x)),
		p: make([]float64, len(x)),
		g: make([]float64, len(x)),
	}
	copy(z.x, x)
	z.logp = w.target.LogDensity(z.x)
	w.grad(z.g, z.x)
	return z
}

// leapfrog advances one step of size eps (negative eps steps backwards in
// time). The input point is left untouched.
func (w *walker) leapfrog(z point, eps float64, minv []float64) point {
	next := z.clone()
	for j := range next.p {
		next.p[j] += 0.5 * eps * next.g[j]
	}
	for j := range next.x {
		next.x[j] += eps * minv[j] * next.p[j]
	}
	next.logp = w.target.LogDensity(next.x)
	w.grad(next.g, next.x)
	for j := range next.p {
		next.p[j] += 0.5 * eps * next.g[j]
	}
	return next
}

// kinetic is the Gaussian kinetic energy 0.5 * p' * Minv * p under the
// diagonal inverse mass.
func kinetic(minv, p []float64) float64 {
	var k float64
	for j := range p {
		k += minv[j] * p[j] * p[j]
	}
	return 0.5 * k
}

func joint(minv []float64, z point) float64 {
	return z.logp - kinetic(minv, z.p)
}

// noUTurn reports whether the trajectory spanned by the two endpoints is
// still expanding: the span dotted with the velocity at each end must be
// non-negative.
func noUTurn(minus, plus point, minv []float64) bool {
	var dotMinus, dotPlus float64
	for j := range minus.x {
		span := plus.x[j] - minus.x[j]
		dotMinus += span * minv[j] * minus.p[j]
		dotPlus += span * minv[j] * plus.p[j]
	}
	return dotMinus >= 0 && dotPlus >= 0
}

// tree is the state returned by one subtree build.
type tree struct {
	minus    point
	plus     point
	proposal point
	n        int  // leaves below the slice
	ok       bool // no U-turn, no divergence anywhere in the subtree
	diverged bool
	alpha    float64 // accumulated acceptance statistic
	nalpha   int
}

// buildTree doubles the trajectory by 2^depth leapfrog steps in one
// direction, tracking the slice-sampler state.
func (w *walker) buildTree(z point, logu float64, dir int, depth int, eps float64, minv []float64, joint0, maxDeltaH float64) tree {
	if depth == 0 {
		z1 := w.leapfrog(z, float64(dir)*eps, minv)
		j1 := joint(minv, z1)

		t := tree{minus: z1, plus: z1, proposal: z1, nalpha: 1}
		if logu <= j1 {
			t.n = 1
		}
		// Divergent when the energy error leaves the slice too far behind
		// or the density became NaN.
		if math.IsNaN(j1) || logu-j1 >= maxDeltaH {
			t.diverged = true
		}
		t.ok = !t.diverged
		if a := math.Exp(j1 - joint0); !math.IsNaN(a) {
			t.alpha = math.Min(1, a)
		}
		return t
	}

	first := w.buildTree(z, logu, dir, depth-1, eps, minv, joint0, maxDeltaH)
	if !first.ok {
		return first
	}

	var second tree
	if dir < 0 {
		second = w.buildTree(first.minus, logu, dir, depth-1, eps, minv, joint0, maxDeltaH)
		first.minus = second.minus
	} else {
		second = w.buildTree(first.plus, logu, dir, depth-1, eps, minv, joint0, maxDeltaH)
		first.plus = second.plus
	}

	if total := first.n + second.n; total > 0 && w.rng.Float64() < float64(second.n)/float64(total) {
		first.proposal = second.proposal
	}
	first.n += second.n
	first.alpha += second.alpha
	first.nalpha += second.nalpha
	first.diverged = first.diverged || second.diverged
	first.ok = second.ok && noUTurn(first.minus, first.plus, minv)
	return first
}

// transition runs one NUTS update from x and returns the next position, the
// mean acceptance statistic of the trajectory and whether it diverged.
func (w *walker) transition(x []float64, eps float64, minv []float64, cfg Config) ([]float64, float64, bool) {
	z := w.at(x)
	for j := range z.p {
		z.p[j] = w.rng.NormFloat64() / math.Sqrt(minv[j])
	}
	joint0 := joint(minv, z)
	logu := joint0 - w.rng.ExpFloat64()

	minus, plus := z.clone(), z.clone()
	proposal := z
	n := 1
	var alphaSum float64
	var nalpha int
	var diverged bool

	for depth := 0; depth < cfg.MaxTreeDepth; depth++ {
		var t tree
		if w.rng.Float64() < 0.5 {
			t = w.buildTree(minus, logu, -1, depth, eps, minv, joint0, cfg.MaxDeltaH)
			minus = t.minus
		} else {
			t = w.buildTree(plus, logu, +1, depth, eps, minv, joint0, cfg.MaxDeltaH)
			plus = t.plus
		}
		alphaSum += t.alpha
		nalpha += t.nalpha
		diverged = diverged || t.diverged

		if t.ok && t.n > 0 && w.rng.Float64() < float64(t.n)/float64(n) {
			proposal = t.proposal
		}
		n += t.n
		if !t.ok || !noUTurn(minus, plus, minv) {
			break
		}
	}

	accept := 0.0
	if nalpha > 0 {
		accept = alphaSum / float64(nalpha)
	}
	return proposal.x, accept, diverged
}

// findReasonableStepSize doubles or halves the step size until a single
// leapfrog step crosses 50% acceptance, following the standard heuristic.
func (w *walker) findReasonableStepSize(x []float64, minv []float64) float64 {
	eps := 1.0
	z := w.at(x)
	for j := range z.p {
		z.p[j] = w.rng.NormFloat64() / math.Sqrt(minv[j])
	}
	joint0 := joint(minv, z)

	ratio := func(eps float64) float64 {
		r := math.Exp(joint(minv, w.leapfrog(z, eps, minv)) - joint0)
		if math.IsNaN(r) {
			return 0
		}
		return r
	}

	dir := 1.0
	if ratio(eps) <= 0.5 {
		dir = -1
	}
	for i := 0; i < 100; i++ {
		if dir > 0 && ratio(eps) <= 0.5 {
			break
		}
		if dir < 0 && ratio(eps) >= 0.5 {
			break
		}
		eps *= math.Pow(2, dir)
		if eps < 1e-10 || eps > 1e7 {
			break
		}
	}
	return eps
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
