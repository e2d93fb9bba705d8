// Package optimizer allocates a total budget across a fitted model's
// channels to maximize the expected per-period response.
//
// Carryover is collapsed to a fixed steady-state multiplier per channel
// (the fit-time multiplier recorded on the model), which turns the temporal
// allocation problem into a single-period one: maximize
// sum_k beta_k * Saturate(m_k * x_k) subject to sum x_k = B and per-channel
// box bounds. The solver equalizes marginal response across channels by
// bisecting the shadow price, repairs the budget to exact equality, then
// runs a bounded pairwise-transfer ascent to polish non-concave cases.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/transform"
)

// Bounds is the per-channel box constraint. A zero Max means unset and
// defaults to the total budget (or the minimum, whichever is larger).
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Config carries one optimization request.
type Config struct {
	TotalBudget float64           `json:"total_budget"`
	Bounds      map[string]Bounds `json:"bounds,omitempty"` // channels omitted default to (0, TotalBudget)

	BisectIter  int     `json:"bisect_iter,omitempty"`  // shadow-price bisection iterations
	PolishIter  int     `json:"polish_iter,omitempty"`  // pairwise-transfer ascent iterations
	MarginalTol float64 `json:"marginal_tol,omitempty"` // relative marginal spread accepted as equalized
}

func (cfg Config) withDefaults() Config {
	if cfg.BisectIter <= 0 {
		cfg.BisectIter = 200
	}
	if cfg.PolishIter <= 0 {
		cfg.PolishIter = 400
	}
	if cfg.MarginalTol <= 0 {
		cfg.MarginalTol = 1e-3
	}
	return cfg
}

// Optimize allocates totalBudget across the model's channels. A nil bounds
// map leaves every channel on the default (0, totalBudget) box.
func Optimize(model *domain.FittedModel, totalBudget float64, bounds map[string]Bounds) (*domain.OptimizationResult, error) {
	return OptimizeWithConfig(model, Config{TotalBudget: totalBudget, Bounds: bounds})
}

// OptimizeWithConfig is Optimize with explicit solver settings.
func OptimizeWithConfig(model *domain.FittedModel, cfg Config) (*domain.OptimizationResult, error) {
	cfg = cfg.withDefaults()

	// 1. Build the per-channel response curves and feasible boxes.
	curves, err := buildCurves(model)
	if err != nil {
		return nil, err
	}
	if err := applyBounds(curves, cfg); err != nil {
		return nil, err
	}

	var minTotal, maxTotal float64
	for _, c := range curves {
		minTotal += c.lo
		maxTotal += c.hi
	}
	if minTotal > cfg.TotalBudget || maxTotal < cfg.TotalBudget {
		return nil, &domain.InfeasibleBudgetError{MinTotal: minTotal, MaxTotal: maxTotal, Budget: cfg.TotalBudget}
	}

	// 2. Solve for the allocation.
	sol := solve(curves, cfg)

	// 3. Assemble the result.
	res := &domain.OptimizationResult{
		OptimizationID: uuid.NewString(),
		ModelID:        model.ModelID,
		CreatedAt:      time.Now().UTC(),
		TotalBudget:    cfg.TotalBudget,
		Allocation:     make(map[string]float64, len(curves)),
		Marginal:       make(map[string]float64, len(curves)),
		Iterations:     sol.iterations,
	}
	var unpinned []int
	for i, c := range curves {
		x := sol.xs[i]
		res.Allocation[c.name] = x
		res.Marginal[c.name] = c.marginal(x)
		switch {
		case x <= c.lo+c.pinEps():
			res.PinnedAtMin = append(res.PinnedAtMin, c.name)
		case x >= c.hi-c.pinEps():
			res.PinnedAtMax = append(res.PinnedAtMax, c.name)
		default:
			unpinned = append(unpinned, i)
		}
	}
	res.Converged = marginalsEqualized(curves, sol.xs, unpinned, cfg.MarginalTol)
	res.Expected = expectedInterval(model, curves, sol.xs)
	return res, nil
}

// curve is one channel's steady-state response in spend units.
type curve struct {
	name string
	spec domain.ChannelSpec
	beta float64
	mult float64 // steady-state exposure per unit of per-period spend
	sat  transform.SaturationCurve
	peak float64 // spend with maximum marginal response; 0 for concave curves

	lo, hi float64
}

func (c *curve) value(x float64) float64    { return c.beta * c.sat.At(c.mult*x) }
func (c *curve) marginal(x float64) float64 { return c.beta * c.mult * c.sat.Marginal(c.mult*x) }

func (c *curve) pinEps() float64 {
	return 1e-6 * math.Max(1, c.hi-c.lo)
}

func buildCurves(model *domain.FittedModel) ([]*curve, error) {
	if len(model.Channels) == 0 {
		return nil, fmt.Errorf("model %s has no channels to allocate across", model.ModelID)
	}
	curves := make([]*curve, len(model.Channels))
	for i, spec := range model.Channels {
		p, err := model.ChannelParameters(spec.Name)
		if err != nil {
			return nil, err
		}
		sat, err := satCurve(spec, p.Kappa, p.Shape)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", spec.Name, err)
		}
		mult := steadyStateMult(model, spec, p.Decay)
		curves[i] = &curve{
			name: spec.Name,
			spec: spec,
			beta: p.Beta,
			mult: mult,
			sat:  sat,
			peak: marginalPeakSpend(sat, mult),
		}
	}
	return curves, nil
}

// satCurve mirrors the response composer: Hill and logistic use the fitted
// kappa/shape, while linear and none pass exposure through and let beta
// carry the slope.
func satCurve(spec domain.ChannelSpec, kappa, shape float64) (transform.SaturationCurve, error) {
	switch spec.Saturation {
	case domain.SaturationHill:
		return transform.NewHill(kappa, shape)
	case domain.SaturationLogistic:
		return transform.NewLogistic(kappa, shape)
	default:
		return transform.Identity{}, nil
	}
}

func steadyStateMult(model *domain.FittedModel, spec domain.ChannelSpec, decay float64) float64 {
	if spec.Adstock == domain.AdstockNone {
		return 1
	}
	if stats, ok := model.ChannelStats[spec.Name]; ok && stats.Carryover > 0 {
		return stats.Carryover
	}
	if spec.Adstock == domain.AdstockGeometric && decay >= 0 && decay < 1 {
		return transform.KernelMass(decay, spec.MaxLag)
	}
	return 1
}

// marginalPeakSpend locates the spend level where the marginal response
// peaks. Hill with shape > 1 and the logistic are S-shaped, so their
// marginal rises before falling; everything else is concave with the peak
// at the origin.
func marginalPeakSpend(sat transform.SaturationCurve, mult float64) float64 {
	var exposure float64
	switch s := sat.(type) {
	case transform.Hill:
		if s.Shape > 1 {
			exposure = s.Kappa * math.Pow((s.Shape-1)/(s.Shape+1), 1/s.Shape)
		}
	case transform.Logistic:
		exposure = s.Midpoint
	}
	if exposure <= 0 || mult <= 0 {
		return 0
	}
	return exposure / mult
}

func applyBounds(curves []*curve, cfg Config) error {
	if !(cfg.TotalBudget > 0) || math.IsInf(cfg.TotalBudget, 0) {
		return fmt.Errorf("total budget must be a positive finite number, got %v", cfg.TotalBudget)
	}
	byName := make(map[string]*curve, len(curves))
	for _, c := range curves {
		c.lo, c.hi = 0, cfg.TotalBudget
		byName[c.name] = c
	}
	for name, b := range cfg.Bounds {
		c, ok := byName[name]
		if !ok {
			return fmt.Errorf("bounds name %q is not a model channel", name)
		}
		if b.Min < 0 {
			return fmt.Errorf("channel %q: minimum bound %v is negative", name, b.Min)
		}
		max := b.Max
		if max == 0 {
			// An unset maximum follows the budget but never undercuts the
			// minimum; a too-small budget is infeasibility, not bad bounds.
			max = math.Max(cfg.TotalBudget, b.Min)
		}
		if max < b.Min {
			return fmt.Errorf("channel %q: maximum bound %v is below minimum %v", name, max, b.Min)
		}
		c.lo, c.hi = b.Min, max
	}
	return nil
}

type solution struct {
	xs         []float64
	lambda     float64
	iterations int
}

// solve equalizes marginal response by bisecting the shadow price lambda.
// The total best-response spend is non-increasing in lambda, so the
// bracket [lo, hi] keeps T(lo) >= B >= T(hi) throughout.
func solve(curves []*curve, cfg Config) *solution {
	budget := cfg.TotalBudget
	xs := make([]float64, len(curves))
	iters := 0

	// 1. Bracket the shadow price. lambda = 0 sends every channel to its
	// maximum, so T(0) >= B holds whenever the problem is feasible.
	lo := 0.0
	hi := 1e-9
	for totalAt(curves, hi, xs) > budget {
		hi *= 2
		iters++
		if hi > 1e30 {
			break
		}
	}

	// 2. Bisect.
	for i := 0; i < cfg.BisectIter; i++ {
		mid := 0.5 * (lo + hi)
		if totalAt(curves, mid, xs) >= budget {
			lo = mid
		} else {
			hi = mid
		}
		iters++
	}
	lambda := lo
	totalAt(curves, lambda, xs)

	// 3. Repair to exact budget by spreading the residual over the
	// remaining box room.
	repair(curves, xs, budget)

	// 4. Pairwise-transfer ascent. Moves spend from the lowest-marginal
	// channel to the highest-marginal one while that improves the
	// objective, which also polishes non-concave cases the bisection
	// cannot equalize.
	iters += polish(curves, xs, budget, cfg.PolishIter)

	return &solution{xs: xs, lambda: lambda, iterations: iters}
}

func totalAt(curves []*curve, lambda float64, xs []float64) float64 {
	var total float64
	for i, c := range curves {
		xs[i] = c.bestResponse(lambda)
		total += xs[i]
	}
	return total
}

// bestResponse maximizes value(x) - lambda*x over the channel's box. The
// marginal is unimodal for every supported family, so the only interior
// candidate is the root on its falling branch; the endpoints cover the rest.
func (c *curve) bestResponse(lambda float64) float64 {
	bestX := c.lo
	bestV := c.value(c.lo) - lambda*c.lo
	if v := c.value(c.hi) - lambda*c.hi; v > bestV {
		bestX, bestV = c.hi, v
	}

	a := math.Max(c.lo, c.peak)
	b := c.hi
	if a >= b || !(c.marginal(a) > lambda) || !(c.marginal(b) < lambda) {
		return bestX
	}
	for i := 0; i < 80; i++ {
		mid := 0.5 * (a + b)
		if c.marginal(mid) > lambda {
			a = mid
		} else {
			b = mid
		}
	}
	x := 0.5 * (a + b)
	if v := c.value(x) - lambda*x; v > bestV {
		bestX = x
	}
	return bestX
}

func repair(curves []*curve, xs []float64, budget float64) {
	for iter := 0; iter < 50; iter++ {
		var total float64
		for _, x := range xs {
			total += x
		}
		diff := budget - total
		if math.Abs(diff) <= 1e-12*math.Max(1, budget) {
			return
		}
		var room float64
		for i, c := range curves {
			if diff > 0 {
				room += c.hi - xs[i]
			} else {
				room += xs[i] - c.lo
			}
		}
		if room <= 0 {
			return
		}
		for i, c := range curves {
			if diff > 0 {
				xs[i] += diff * (c.hi - xs[i]) / room
				xs[i] = math.Min(xs[i], c.hi)
			} else {
				xs[i] += diff * (xs[i] - c.lo) / room
				xs[i] = math.Max(xs[i], c.lo)
			}
		}
	}
}

func polish(curves []*curve, xs []float64, budget float64, maxIter int) int {
	step := budget / 64
	floor := 1e-12 * math.Max(1, budget)
	moves := 0
	for iter := 0; iter < maxIter && step > floor; iter++ {
		src, dst := -1, -1
		var low, high float64
		for i, c := range curves {
			m := c.marginal(xs[i])
			if xs[i] > c.lo+floor && (src < 0 || m < low) {
				src, low = i, m
			}
			if xs[i] < c.hi-floor && (dst < 0 || m > high) {
				dst, high = i, m
			}
		}
		if src < 0 || dst < 0 || src == dst {
			break
		}
		delta := math.Min(step, math.Min(xs[src]-curves[src].lo, curves[dst].hi-xs[dst]))
		gain := curves[dst].value(xs[dst]+delta) + curves[src].value(xs[src]-delta) -
			curves[dst].value(xs[dst]) - curves[src].value(xs[src])
		if gain > 0 {
			xs[dst] += delta
			xs[src] -= delta
			moves++
		} else {
			step /= 2
		}
	}
	return moves
}

func marginalsEqualized(curves []*curve, xs []float64, unpinned []int, tol float64) bool {
	if len(unpinned) < 2 {
		return true
	}
	low, high := math.Inf(1), math.Inf(-1)
	for _, i := range unpinned {
		m := curves[i].marginal(xs[i])
		low = math.Min(low, m)
		high = math.Max(high, m)
	}
	if high <= 0 {
		return true
	}
	return (high-low)/high <= tol
}

// expectedInterval evaluates the total response at the final allocation
// across the model's retained draws. The carryover multiplier is rescaled
// per draw by the kernel-mass ratio between the draw's decay and the
// posterior mean it was recorded at. Models without samples get a point
// interval. Non-finite draws are skipped.
func expectedInterval(model *domain.FittedModel, curves []*curve, xs []float64) domain.Interval {
	var point float64
	for i, c := range curves {
		point += c.value(xs[i])
	}

	draws := model.NumDraws()
	arrs := make([]drawArrays, len(curves))
	for i, c := range curves {
		a, ok := samplesFor(model, c.name)
		if !ok {
			draws = 0
			break
		}
		if c.spec.Adstock == domain.AdstockGeometric {
			a.baseMass = transform.KernelMass(clampDecay(stat.Mean(a.decay, nil)), c.spec.MaxLag)
		}
		arrs[i] = a
	}
	if draws == 0 {
		return domain.Interval{Mean: point, Lower: point, Upper: point}
	}

	totals := make([]float64, 0, draws)
	for s := 0; s < draws; s++ {
		total, ok := 0.0, true
		for i, c := range curves {
			v, err := drawValue(c, arrs[i], s, xs[i])
			if err != nil {
				ok = false
				break
			}
			total += v
		}
		if !ok || math.IsNaN(total) || math.IsInf(total, 0) {
			continue
		}
		totals = append(totals, total)
	}
	if len(totals) == 0 {
		return domain.Interval{Mean: point, Lower: point, Upper: point}
	}
	sorted := append([]float64(nil), totals...)
	sort.Float64s(sorted)
	return domain.Interval{
		Mean:  stat.Mean(totals, nil),
		Lower: stat.Quantile(0.025, stat.Empirical, sorted, nil),
		Upper: stat.Quantile(0.975, stat.Empirical, sorted, nil),
	}
}

type drawArrays struct {
	beta, decay, kappa, shape []float64

	baseMass float64 // kernel mass at the posterior-mean decay
}

func samplesFor(model *domain.FittedModel, name string) (drawArrays, bool) {
	var a drawArrays
	var ok bool
	if a.beta, ok = model.SamplesOf(domain.BetaParam(name)); !ok {
		return a, false
	}
	if a.decay, ok = model.SamplesOf(domain.DecayParam(name)); !ok {
		return a, false
	}
	if a.kappa, ok = model.SamplesOf(domain.KappaParam(name)); !ok {
		return a, false
	}
	if a.shape, ok = model.SamplesOf(domain.ShapeParam(name)); !ok {
		return a, false
	}
	n := len(a.beta)
	return a, len(a.decay) == n && len(a.kappa) == n && len(a.shape) == n
}

func drawValue(c *curve, a drawArrays, s int, x float64) (float64, error) {
	sat, err := satCurve(c.spec, a.kappa[s], a.shape[s])
	if err != nil {
		return 0, err
	}
	mult := c.mult
	if c.spec.Adstock == domain.AdstockGeometric && a.baseMass > 0 {
		d := a.decay[s]
		if !(d >= 0 && d < 1) {
			return 0, fmt.Errorf("draw %d decay %v outside [0,1)", s, d)
		}
		mult = c.mult * transform.KernelMass(d, c.spec.MaxLag) / a.baseMass
	}
	return a.beta[s] * sat.At(mult*x), nil
}

func clampDecay(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d >= 1 {
		return 1 - 1e-9
	}
	return d
}
