// Package response assembles the additive sales equation shared by fitting,
// prediction and decomposition:
//
//	predicted[t] = intercept + trend + seasonality + sum_k beta_k*saturate(adstock(spend_k))[t] + sum_j gamma_j*control_j[t]
//
// The composer is built once per dataset and evaluated many times with
// different parameter vectors. The baseline columns (intercept, trend,
// Fourier seasonality, controls) are precomputed into a design matrix;
// the media block is recomputed per evaluation because carryover and
// saturation parameters are themselves sampled.
package response

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/transform"
)

// ChannelParams is one channel's slice of a parameter vector.
type ChannelParams struct {
	Decay float64
	Kappa float64
	Shape float64
	Beta  float64
}

// Params is a full parameter vector for one evaluation. Linear is aligned
// with Composer.LinearNames.
type Params struct {
	Channels []ChannelParams
	Linear   []float64
}

// Structure selects the baseline columns of the additive equation.
type Structure struct {
	Trend        bool
	Harmonics    int
	SeasonPeriod float64
}

// StructureFrom extracts the composer structure from a fit configuration.
func StructureFrom(cfg domain.FitConfig) Structure {
	return Structure{Trend: cfg.Trend, Harmonics: cfg.Harmonics, SeasonPeriod: cfg.SeasonPeriod}
}

// Composer evaluates the additive equation against one dataset. It is
// read-only after construction; concurrent evaluations each need their own
// Scratch.
type Composer struct {
	n         int
	structure Structure
	specs     []domain.ChannelSpec
	spend     [][]float64

	controlNames []string
	controls     [][]float64

	linear      *mat.Dense
	linearNames []string

	trendCol     int // -1 when absent
	seasonStart  int // -1 when absent
	controlStart int // -1 when absent
}

// NewComposer validates the dataset against the channel specs and control
// names and precomputes the baseline design matrix.
func NewComposer(data *domain.TimeSeries, specs []domain.ChannelSpec, controls []string, structure Structure) (*Composer, error) {
	// 1. Validate the dataset and resolve every referenced column.
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if structure.Harmonics < 0 {
		return nil, fmt.Errorf("harmonics must be non-negative, got %d", structure.Harmonics)
	}
	if structure.Harmonics > 0 && structure.SeasonPeriod <= 0 {
		return nil, fmt.Errorf("season period must be positive with %d harmonics, got %v", structure.Harmonics, structure.SeasonPeriod)
	}

	n := data.Len()
	c := &Composer{
		n:            n,
		structure:    structure,
		specs:        make([]domain.ChannelSpec, len(specs)),
		spend:        make([][]float64, len(specs)),
		controlNames: make([]string, len(controls)),
		controls:     make([][]float64, len(controls)),
		trendCol:     -1,
		seasonStart:  -1,
		controlStart: -1,
	}

	seen := make(map[string]bool, len(specs))
	for k, spec := range specs {
		if spec.Name == "" {
			return nil, &domain.SchemaError{Column: "channel", Reason: "has an empty name"}
		}
		if seen[spec.Name] {
			return nil, &domain.SchemaError{Column: spec.Name, Reason: "appears more than once"}
		}
		seen[spec.Name] = true
		col, err := data.SpendColumn(spec.Name)
		if err != nil {
			return nil, err
		}
		c.specs[k] = spec
		c.spend[k] = col
	}
	for j, name := range controls {
		col, err := data.ControlColumn(name)
		if err != nil {
			return nil, err
		}
		c.controlNames[j] = name
		c.controls[j] = col
	}

	// 2. Lay out the baseline columns: intercept, optional trend, Fourier
	// pairs, controls. Names are recorded in the same order so parameter
	// vectors and summaries stay aligned.
	cols := 1
	if structure.Trend {
		c.trendCol = cols
		cols++
	}
	if structure.Harmonics > 0 {
		c.seasonStart = cols
		cols += 2 * structure.Harmonics
	}
	if len(controls) > 0 {
		c.controlStart = cols
		cols += len(controls)
	}

	c.linear = mat.NewDense(n, cols, nil)
	c.linearNames = make([]string, 0, cols)
	c.linearNames = append(c.linearNames, domain.ParamIntercept)
	if structure.Trend {
		c.linearNames = append(c.linearNames, domain.ParamTrend)
	}
	for h := 1; h <= structure.Harmonics; h++ {
		c.linearNames = append(c.linearNames, domain.SeasonSinParam(h), domain.SeasonCosParam(h))
	}
	for _, name := range c.controlNames {
		c.linearNames = append(c.linearNames, domain.ControlParam(name))
	}

	// 3. Fill the matrix. The trend regressor is normalized to [0,1] so its
	// coefficient reads as total lift over the observed window.
	for t := 0; t < n; t++ {
		c.linear.Set(t, 0, 1)
		if c.trendCol >= 0 {
			u := 0.0
			if n > 1 {
				u = float64(t) / float64(n-1)
			}
			c.linear.Set(t, c.trendCol, u)
		}
		for h := 1; h <= structure.Harmonics; h++ {
			phase := 2 * math.Pi * float64(h) * float64(t) / structure.SeasonPeriod
			c.linear.Set(t, c.seasonStart+2*(h-1), math.Sin(phase))
			c.linear.Set(t, c.seasonStart+2*(h-1)+1, math.Cos(phase))
		}
		for j := range c.controls {
			c.linear.Set(t, c.controlStart+j, c.controls[j][t])
		}
	}
	return c, nil
}

// Len returns the number of time periods.
func (c *Composer) Len() int { return c.n }

// NumChannels returns the number of media channels.
func (c *Composer) NumChannels() int { return len(c.specs) }

// NumLinear returns the number of baseline coefficients.
func (c *Composer) NumLinear() int { return len(c.linearNames) }

// LinearNames returns the baseline coefficient names in vector order.
func (c *Composer) LinearNames() []string {
	out := make([]string, len(c.linearNames))
	copy(out, c.linearNames)
	return out
}

// ChannelNames returns the media channel names in vector order.
func (c *Composer) ChannelNames() []string {
	out := make([]string, len(c.specs))
	for k, spec := range c.specs {
		out[k] = spec.Name
	}
	return out
}

// CheckParams verifies a parameter vector matches the composer layout.
func (c *Composer) CheckParams(p Params) error {
	if len(p.Channels) != len(c.specs) {
		return fmt.Errorf("params carry %d channels, composer has %d", len(p.Channels), len(c.specs))
	}
	if len(p.Linear) != len(c.linearNames) {
		return fmt.Errorf("params carry %d baseline coefficients, composer has %d", len(p.Linear), len(c.linearNames))
	}
	return nil
}

// Scratch holds the per-evaluation buffers. Sampler chains run in parallel,
// so each goroutine must own its Scratch.
type Scratch struct {
	exposure []float64
	sat      []float64
	media    []float64
	carry    []*transform.Carryover
}

// NewScratch allocates evaluation buffers for this composer.
func (c *Composer) NewScratch() *Scratch {
	s := &Scratch{
		exposure: make([]float64, c.n),
		sat:      make([]float64, c.n),
		media:    make([]float64, c.n),
		carry:    make([]*transform.Carryover, len(c.specs)),
	}
	for k, spec := range c.specs {
		s.carry[k] = transform.NewCarryover(spec)
	}
	return s
}

// PredictInto evaluates the additive equation into dst, which must have
// length Len. The parameter vector is not revalidated here; callers run
// CheckParams once up front.
func (c *Composer) PredictInto(dst []float64, p Params, s *Scratch) []float64 {
	// Baseline block in one dense multiply, then the media block accumulated
	// channel by channel.
	out := mat.NewVecDense(c.n, dst)
	out.MulVec(c.linear, mat.NewVecDense(len(p.Linear), p.Linear))
	for k := range c.specs {
		c.ChannelContributionInto(s.media, k, p.Channels[k], s)
		floats.Add(dst, s.media)
	}
	return dst
}

// Predict is the allocating form of PredictInto.
func (c *Composer) Predict(p Params) ([]float64, error) {
	if err := c.CheckParams(p); err != nil {
		return nil, err
	}
	return c.PredictInto(make([]float64, c.n), p, c.NewScratch()), nil
}

// ChannelContributionInto writes one channel's contribution series
// beta*saturate(adstock(spend)) into dst.
func (c *Composer) ChannelContributionInto(dst []float64, k int, p ChannelParams, s *Scratch) []float64 {
	exposure := s.carry[k].ApplyInto(s.exposure, c.spend[k], p.Decay)
	c.saturateInto(s.sat, exposure, c.specs[k].Saturation, p)
	for t := range dst {
		dst[t] = p.Beta * s.sat[t]
	}
	return dst
}

// MeanExposureAt returns the mean adstocked exposure of channel k at a fixed
// decay, used to center the half-saturation prior on the data's scale.
func (c *Composer) MeanExposureAt(k int, decay float64) float64 {
	s := c.NewScratch()
	exposure := s.carry[k].ApplyInto(s.exposure, c.spend[k], decay)
	var total float64
	for _, e := range exposure {
		total += e
	}
	return total / float64(c.n)
}

// MeanSpend returns the mean per-period spend of channel k.
func (c *Composer) MeanSpend(k int) float64 {
	var total float64
	for _, v := range c.spend[k] {
		total += v
	}
	return total / float64(c.n)
}

func (c *Composer) saturateInto(dst, exposure []float64, kind domain.SaturationKind, p ChannelParams) {
	switch kind {
	case domain.SaturationHill:
		transform.HillValueInto(dst, exposure, p.Kappa, p.Shape)
	case domain.SaturationLogistic:
		curve := transform.Logistic{Midpoint: p.Kappa, Steepness: p.Shape, Ceiling: 1}
		for i, x := range exposure {
			dst[i] = curve.At(x)
		}
	default:
		// None and linear families pass exposure through; the channel
		// coefficient carries the slope.
		copy(dst, exposure)
	}
}
