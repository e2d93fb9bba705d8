// Package mcmc implements the No-U-Turn sampler used for posterior
// inference: multiplicative-doubling trajectories with a slice variable,
// dual-averaging step-size adaptation and a diagonal mass matrix estimated
// during warmup. The split R-hat and effective-sample-size diagnostics used
// to judge convergence live here too.
//
// The sampler is generic over the target density. Chains run in parallel
// goroutines, each with a private RNG derived from the seed, so results are
// reproducible for a fixed seed and chain count.
package mcmc

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// Target is an unnormalized log density over an unconstrained parameter
// space. Gradient may be nil, in which case central finite differences are
// used. LogDensity must be safe for concurrent calls; each chain evaluates
// it from its own goroutine.
type Target struct {
	Dim        int
	LogDensity func(x []float64) float64
	Gradient   func(dst, x []float64)
}

// Config controls one sampling run.
type Config struct {
	Chains       int
	Warmup       int
	Draws        int
	TargetAccept float64
	MaxTreeDepth int
	MaxDeltaH    float64 // energy error that counts as a divergence
	StepSize     float64 // 0 means search for a reasonable initial value
	Seed         int64
	Jitter       float64   // per-coordinate spread of the chain starts
	Init         []float64 // nil starts at the origin

	// Progress, when set, is called once per completed iteration across all
	// chains. It must be safe for concurrent calls.
	Progress func()
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Chains <= 0 {
		c.Chains = 4
	}
	if c.Warmup <= 0 {
		c.Warmup = 1000
	}
	if c.Draws <= 0 {
		c.Draws = 1000
	}
	if c.TargetAccept <= 0 || c.TargetAccept >= 1 {
		c.TargetAccept = 0.8
	}
	if c.MaxTreeDepth <= 0 {
		c.MaxTreeDepth = 10
	}
	if c.MaxDeltaH <= 0 {
		c.MaxDeltaH = 1000
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.1
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Chain is the output of a single chain.
type Chain struct {
	Draws       [][]float64 // retained post-warmup draws
	Divergences int
	AcceptRate  float64 // mean acceptance statistic over retained draws
	StepSize    float64 // step size after adaptation
}

// Result is the output of a full run.
type Result struct {
	Dim    int
	Chains []Chain
}

// NumDraws returns the total number of retained draws across chains.
func (r *Result) NumDraws() int {
	var total int
	for _, c := range r.Chains {
		total += len(c.Draws)
	}
	return total
}

// Divergences returns the total post-warmup divergence count.
func (r *Result) Divergences() int {
	var total int
	for _, c := range r.Chains {
		total += c.Divergences
	}
	return total
}

// ParamChains returns the per-chain series of coordinate j, the layout the
// convergence diagnostics consume.
func (r *Result) ParamChains(j int) [][]float64 {
	out := make([][]float64, len(r.Chains))
	for i, c := range r.Chains {
		series := make([]float64, len(c.Draws))
		for d, draw := range c.Draws {
			series[d] = draw[j]
		}
		out[i] = series
	}
	return out
}

// Merged returns all draws of coordinate j in chain-major order.
func (r *Result) Merged(j int) []float64 {
	out := make([]float64, 0, r.NumDraws())
	for _, c := range r.Chains {
		for _, draw := range c.Draws {
			out = append(out, draw[j])
		}
	}
	return out
}

// Run samples the target. It blocks until every chain finishes or the
// context is cancelled, whichever comes first.
func Run(ctx context.Context, target Target, cfg Config) (*Result, error) {
	if target.Dim <= 0 {
		return nil, fmt.Errorf("target dimension must be positive, got %d", target.Dim)
	}
	if target.LogDensity == nil {
		return nil, fmt.Errorf("target log density is required")
	}
	if cfg.Init != nil && len(cfg.Init) != target.Dim {
		return nil, fmt.Errorf("init has %d coordinates, target has %d", len(cfg.Init), target.Dim)
	}
	cfg = cfg.withDefaults()

	chains := make([]Chain, cfg.Chains)
	errs := make([]error, cfg.Chains)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Chains; i++ {
		wg.Add(1)
		go func(chain int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(chain)+1))
			chains[chain], errs[chain] = runChain(ctx, target, cfg, chain, rng)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &Result{Dim: target.Dim, Chains: chains}, nil
}

func runChain(ctx context.Context, target Target, cfg Config, chain int, rng *rand.Rand) (Chain, error) {
	w := newWalker(target, rng)

	// 1. Jittered start in the unconstrained space. Retry with a tighter
	// spread if the density is not finite there.
	x := make([]float64, target.Dim)
	jitter := cfg.Jitter
	for attempt := 0; ; attempt++ {
		if cfg.Init != nil {
			copy(x, cfg.Init)
		} else {
			for j := range x {
				x[j] = 0
			}
		}
		for j := range x {
			x[j] += jitter * rng.NormFloat64()
		}
		if isFinite(target.LogDensity(x)) {
			break
		}
		if attempt >= 10 {
			return Chain{}, fmt.Errorf("chain %d: log density is not finite near the starting point", chain)
		}
		jitter /= 2
	}

	// 2. Identity mass, initial step size, fresh dual averaging.
	minv := make([]float64, target.Dim)
	for j := range minv {
		minv[j] = 1
	}
	eps := cfg.StepSize
	if eps == 0 {
		eps = w.findReasonableStepSize(x, minv)
	}
	da := newDualAveraging(eps, cfg.TargetAccept)

	// 3. Warmup. The first 75 iterations adapt the step size only. Then a
	// Welford window accumulates posterior variance until 50 iterations
	// before the end, the mass matrix is updated once with regularized
	// variances, and the final 50 iterations re-adapt the step size to the
	// new metric. Small budgets skip the mass update entirely.
	welfordStart, massUpdate := 75, cfg.Warmup-50
	if cfg.Warmup < 150 {
		welfordStart, massUpdate = cfg.Warmup, -1
	}
	acc := newWelford(target.Dim)
	for iter := 0; iter < cfg.Warmup; iter++ {
		if err := ctx.Err(); err != nil {
			return Chain{}, err
		}
		var stat float64
		x, stat, _ = w.transition(x, eps, minv, cfg)
		eps = da.update(stat)
		if iter >= welfordStart && iter < massUpdate {
			acc.observe(x)
		}
		if iter == massUpdate && acc.count > 10 {
			minv = acc.regularizedVariance()
			eps = w.findReasonableStepSize(x, minv)
			da = newDualAveraging(eps, cfg.TargetAccept)
			cfg.Logger.Debug("mass matrix updated", "chain", chain, "window", acc.count)
		}
		if cfg.Progress != nil {
			cfg.Progress()
		}
	}
	eps = da.final()

	// 4. Sampling with adaptation frozen.
	out := Chain{Draws: make([][]float64, 0, cfg.Draws), StepSize: eps}
	var acceptSum float64
	for iter := 0; iter < cfg.Draws; iter++ {
		if err := ctx.Err(); err != nil {
			return Chain{}, err
		}
		var stat float64
		var diverged bool
		x, stat, diverged = w.transition(x, eps, minv, cfg)
		if diverged {
			out.Divergences++
		}
		acceptSum += stat
		keep := make([]float64, target.Dim)
		copy(keep, x)
		out.Draws = append(out.Draws, keep)
		if cfg.Progress != nil {
			cfg.Progress()
		}
	}
	out.AcceptRate = acceptSum / float64(cfg.Draws)

	cfg.Logger.Debug("chain finished",
		"chain", chain,
		"step_size", out.StepSize,
		"accept", out.AcceptRate,
		"divergences", out.Divergences)
	return out, nil
}
