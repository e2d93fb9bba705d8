// Package bayes builds the marketing-mix posterior and runs the sampler
// against it: standardization of the inputs, the prior stack, the
// unconstrained reparameterization the sampler needs, and conversion of
// draws back to original units.
package bayes

import (
	"fmt"
	"math"
	"sync"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/response"
	"mediamix-lab/internal/transform"
)

// Offsets of one channel's parameters inside its variable block.
const (
	offBeta = iota
	offDecay
	offKappa
	offShape
	channelVars
)

// variable is one sampled coordinate: its reporting name, the bijection
// from sampler space, its prior on the constrained value and its starting
// point in unconstrained space.
type variable struct {
	name     string
	bij      bijection
	logPrior func(v float64) float64
	init     float64
}

// Model is the posterior over a standardized dataset. It is read-only after
// construction; LogDensity is safe for concurrent sampler chains.
type Model struct {
	cfg      domain.FitConfig
	specs    []domain.ChannelSpec
	controls []string

	composer  *response.Composer
	std       *domain.TimeSeries
	scale     domain.ScaleInfo
	vars      []variable
	numLinear int

	pool sync.Pool
}

type evalScratch struct {
	values    []float64
	predicted []float64
	params    response.Params
	rs        *response.Scratch
}

// BuildModel standardizes the dataset and assembles the parameter graph:
// baseline coefficients, four parameters per channel (effect, decay,
// half-saturation, shape) and the noise scale.
func BuildModel(data *domain.TimeSeries, specs []domain.ChannelSpec, controls []string, cfg domain.FitConfig) (*Model, error) {
	// 1. Structural validation before any arithmetic.
	if len(specs) == 0 {
		return nil, &domain.SchemaError{Column: "channels", Reason: "must name at least one spend channel"}
	}
	for _, spec := range specs {
		if !transform.NewCarryover(spec).SupportsInference() {
			return nil, fmt.Errorf("adstock kind %q on channel %q is not supported for joint inference; fit it as a fixed transform instead", spec.Adstock, spec.Name)
		}
		switch spec.Saturation {
		case domain.SaturationHill, domain.SaturationLogistic:
		default:
			return nil, fmt.Errorf("saturation kind %q on channel %q is not supported for joint inference", spec.Saturation, spec.Name)
		}
	}

	// 2. Standardize and build the shared response composer on the scaled
	// copy.
	std, scale, err := standardize(data, specs, controls)
	if err != nil {
		return nil, err
	}
	composer, err := response.NewComposer(std, specs, controls, response.StructureFrom(cfg))
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:       cfg,
		specs:     specs,
		controls:  controls,
		composer:  composer,
		std:       std,
		scale:     scale,
		numLinear: composer.NumLinear(),
	}

	// 3. Baseline block: intercept first, then trend, seasonality and
	// controls in composer order.
	priors := newPriorSet(cfg.BetaScale)
	for i, name := range composer.LinearNames() {
		prior := priors.linear
		if i == 0 {
			prior = priors.intercept
		}
		m.vars = append(m.vars, variable{
			name:     name,
			bij:      identityBijection{},
			logPrior: prior.LogProb,
			init:     0,
		})
	}

	// 4. Channel blocks. Starting points come from the analytic
	// pre-estimation pass when enabled, otherwise from prior centers.
	for k, spec := range specs {
		start := channelStart{decay: 0.5, shape: 1, beta: 0.1}
		start.kappa = composer.MeanExposureAt(k, 0.5)
		if start.kappa <= 0 {
			start.kappa = 1
		}
		if cfg.PreEstimate {
			start = m.preEstimate(k, start)
		}

		kp := kappaPrior(composer.MeanExposureAt(k, 0.5))
		m.vars = append(m.vars,
			variable{
				name:     domain.BetaParam(spec.Name),
				bij:      logBijection{},
				logPrior: priors.beta.LogProb,
				init:     math.Log(start.beta),
			},
			variable{
				name:     domain.DecayParam(spec.Name),
				bij:      logitBijection{},
				logPrior: priors.decay.LogProb,
				init:     logitBijection{}.inverse(start.decay),
			},
			variable{
				name:     domain.KappaParam(spec.Name),
				bij:      logBijection{},
				logPrior: kp.LogProb,
				init:     math.Log(start.kappa),
			},
			variable{
				name:     domain.ShapeParam(spec.Name),
				bij:      logBijection{},
				logPrior: priors.shape.LogProb,
				init:     math.Log(start.shape),
			},
		)
	}

	// 5. Noise scale with a hard floor so noise-free data keeps the
	// posterior proper.
	floor := cfg.SigmaFloor
	if floor <= 0 {
		floor = 1e-3
	}
	sigmaBij := shiftedLogBijection{floor: floor}
	m.vars = append(m.vars, variable{
		name:     domain.ParamSigma,
		bij:      sigmaBij,
		logPrior: priors.sigma.LogProb,
		init:     sigmaBij.inverse(0.5),
	})

	m.pool.New = func() any { return m.newScratch() }
	return m, nil
}

type channelStart struct {
	beta  float64
	decay float64
	kappa float64
	shape float64
}

// preEstimate refines one channel's starting point from the standardized
// data. Failures fall back to the prior-centered start; a bad starting point
// only costs warmup time.
func (m *Model) preEstimate(k int, fallback channelStart) channelStart {
	spend, err := m.std.SpendColumn(m.specs[k].Name)
	if err != nil {
		return fallback
	}
	est, err := transform.Estimate(spend, m.std.Target)
	if err != nil {
		return fallback
	}
	out := fallback
	if est.Decay > 0.02 && est.Decay < 0.98 {
		out.decay = est.Decay
	}
	if est.Kappa > 1e-6 && est.Kappa < 1e6 {
		out.kappa = est.Kappa
	}
	if est.Shape > 0.2 && est.Shape < 8 {
		out.shape = est.Shape
	}
	if est.Scale > 1e-6 && est.Scale < 1e3 {
		out.beta = est.Scale
	}
	return out
}

func (m *Model) newScratch() *evalScratch {
	return &evalScratch{
		values:    make([]float64, len(m.vars)),
		predicted: make([]float64, m.composer.Len()),
		params: response.Params{
			Channels: make([]response.ChannelParams, len(m.specs)),
			Linear:   make([]float64, m.numLinear),
		},
		rs: m.composer.NewScratch(),
	}
}

// Dim returns the number of sampled coordinates.
func (m *Model) Dim() int { return len(m.vars) }

// ParameterNames returns the constrained-space name of every coordinate in
// sampler order.
func (m *Model) ParameterNames() []string {
	out := make([]string, len(m.vars))
	for i, v := range m.vars {
		out[i] = v.name
	}
	return out
}

// InitVector returns the unconstrained starting point.
func (m *Model) InitVector() []float64 {
	out := make([]float64, len(m.vars))
	for i, v := range m.vars {
		out[i] = v.init
	}
	return out
}

// Scale returns the standardization applied to the dataset.
func (m *Model) Scale() domain.ScaleInfo { return m.scale }

// Constrain maps an unconstrained draw to constrained standardized values.
func (m *Model) Constrain(dst, z []float64) []float64 {
	for i, v := range m.vars {
		dst[i] = v.bij.forward(z[i])
	}
	return dst
}

func (m *Model) sigmaIndex() int { return len(m.vars) - 1 }

func (m *Model) channelBase(k int) int { return m.numLinear + channelVars*k }

// LogDensity evaluates the unnormalized log posterior at an unconstrained
// point: priors plus transform Jacobians plus the Gaussian likelihood of
// the standardized target.
func (m *Model) LogDensity(z []float64) float64 {
	s := m.pool.Get().(*evalScratch)
	defer m.pool.Put(s)

	var lp float64
	for i, v := range m.vars {
		value := v.bij.forward(z[i])
		prior := v.logPrior(value)
		if math.IsInf(prior, -1) {
			return math.Inf(-1)
		}
		lp += prior + v.bij.logDetJacobian(z[i])
		s.values[i] = value
	}

	copy(s.params.Linear, s.values[:m.numLinear])
	for k := range s.params.Channels {
		base := m.channelBase(k)
		s.params.Channels[k] = response.ChannelParams{
			Beta:  s.values[base+offBeta],
			Decay: s.values[base+offDecay],
			Kappa: s.values[base+offKappa],
			Shape: s.values[base+offShape],
		}
	}
	sigma := s.values[m.sigmaIndex()]

	m.composer.PredictInto(s.predicted, s.params, s.rs)

	var sse float64
	for t, y := range m.std.Target {
		d := y - s.predicted[t]
		sse += d * d
	}
	n := float64(len(m.std.Target))
	lp += -0.5*sse/(sigma*sigma) - n*math.Log(sigma) - 0.5*n*math.Log(2*math.Pi)
	return lp
}
