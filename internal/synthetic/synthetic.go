// Package synthetic generates weekly media-mix datasets from known ground
// truth. The validation suite, the end-to-end recovery tests and the demo
// binaries all consume its labeled series.
package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/transform"
)

// Config shapes one generated window.
type Config struct {
	Periods int       // weekly observations; 0 means 156 (three years)
	Start   time.Time // first period; zero means 2022-01-03
	Seed    uint64
}

func (cfg Config) withDefaults() Config {
	if cfg.Periods <= 0 {
		cfg.Periods = 156
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	}
	return cfg
}

// ChannelTruth is the generating process of one media channel.
type ChannelTruth struct {
	Name      string  `json:"name"`
	Decay     float64 `json:"decay"`
	Kappa     float64 `json:"kappa"`
	Shape     float64 `json:"shape"`
	Beta      float64 `json:"beta"`       // contribution at full saturation, target units
	MeanSpend float64 `json:"mean_spend"` // spend level before seasonality and jitter
	DarkShare float64 `json:"dark_share"` // fraction of periods with the channel switched off
}

// ControlTruth is the generating process of one exogenous control column.
// Indicator controls are 0/1 with activation probability Amp; continuous
// ones fluctuate around Base with amplitude Amp.
type ControlTruth struct {
	Name      string  `json:"name"`
	Gamma     float64 `json:"gamma"` // target-unit effect per unit above Base
	Base      float64 `json:"base"`
	Amp       float64 `json:"amp"`
	Indicator bool    `json:"indicator,omitempty"`
}

// GroundTruth is the full generating process: baseline structure, channels,
// controls and observation noise.
type GroundTruth struct {
	Intercept    float64 `json:"intercept"`
	TrendTotal   float64 `json:"trend_total"` // total baseline lift across the window
	SeasonAmp    float64 `json:"season_amp"`
	SeasonPeriod float64 `json:"season_period"`
	Sigma        float64 `json:"sigma"` // gaussian observation noise, target units

	Channels []ChannelTruth `json:"channels"`
	Controls []ControlTruth `json:"controls,omitempty"`
}

// DefaultGroundTruth mirrors the four-channel demo scenario: TV with long
// carryover down to social with almost none, a price control pushing the
// target down and a promotion flag lifting it.
func DefaultGroundTruth() GroundTruth {
	return GroundTruth{
		Intercept:    50000,
		TrendTotal:   8000,
		SeasonAmp:    4000,
		SeasonPeriod: 52,
		Sigma:        2500,
		Channels: []ChannelTruth{
			{Name: "tv", Decay: 0.7, Kappa: 50000, Shape: 2.0, Beta: 30000, MeanSpend: 40000, DarkShare: 0.10},
			{Name: "radio", Decay: 0.5, Kappa: 20000, Shape: 1.8, Beta: 12000, MeanSpend: 15000, DarkShare: 0.15},
			{Name: "digital", Decay: 0.3, Kappa: 30000, Shape: 1.5, Beta: 18000, MeanSpend: 25000, DarkShare: 0.05},
			{Name: "social", Decay: 0.2, Kappa: 10000, Shape: 2.2, Beta: 8000, MeanSpend: 8000, DarkShare: 0.20},
		},
		Controls: []ControlTruth{
			{Name: "price", Gamma: -500, Base: 100, Amp: 5},
			{Name: "promotion", Gamma: 8000, Amp: 0.15, Indicator: true},
		},
	}
}

// SingleChannelTruth is the canonical noise-free recovery scenario: one
// geometric Hill channel with decay 0.7, kappa 50000 and beta 2.
func SingleChannelTruth() GroundTruth {
	return GroundTruth{
		Intercept:    10,
		SeasonPeriod: 52,
		Channels: []ChannelTruth{
			{Name: "tv", Decay: 0.7, Kappa: 50000, Shape: 2, Beta: 2, MeanSpend: 50000, DarkShare: 0.15},
		},
	}
}

// Specs returns the channel specs a fit of this truth should use.
func (g GroundTruth) Specs() []domain.ChannelSpec {
	specs := make([]domain.ChannelSpec, len(g.Channels))
	for i, c := range g.Channels {
		specs[i] = domain.ChannelSpec{
			Name:       c.Name,
			Adstock:    domain.AdstockGeometric,
			Saturation: domain.SaturationHill,
		}
	}
	return specs
}

// ControlNames returns the control column names in declaration order.
func (g GroundTruth) ControlNames() []string {
	names := make([]string, len(g.Controls))
	for i, c := range g.Controls {
		names[i] = c.Name
	}
	return names
}

// Channel looks up one channel's truth by name.
func (g GroundTruth) Channel(name string) (ChannelTruth, bool) {
	for _, c := range g.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return ChannelTruth{}, false
}

// FittedIntercept returns the intercept a raw-units fit should recover.
// The generator applies control effects relative to their base level while
// the model regresses on raw control values, so the base effects fold into
// the fitted intercept.
func (g GroundTruth) FittedIntercept() float64 {
	v := g.Intercept
	for _, c := range g.Controls {
		v -= c.Gamma * c.Base
	}
	return v
}

func (g GroundTruth) validate() error {
	if len(g.Channels) == 0 {
		return fmt.Errorf("ground truth needs at least one channel")
	}
	if g.SeasonAmp != 0 && g.SeasonPeriod <= 0 {
		return fmt.Errorf("season amplitude %v needs a positive season period", g.SeasonAmp)
	}
	if g.Sigma < 0 {
		return fmt.Errorf("noise sigma must be non-negative, got %v", g.Sigma)
	}
	seen := make(map[string]bool, len(g.Channels)+len(g.Controls))
	for _, c := range g.Channels {
		switch {
		case c.Name == "":
			return fmt.Errorf("channel with empty name")
		case seen[c.Name]:
			return fmt.Errorf("column name %q used twice", c.Name)
		case c.Decay < 0 || c.Decay >= 1:
			return fmt.Errorf("channel %q: decay %v outside [0,1)", c.Name, c.Decay)
		case c.Kappa <= 0 || c.Shape <= 0:
			return fmt.Errorf("channel %q: kappa and shape must be positive, got %v and %v", c.Name, c.Kappa, c.Shape)
		case c.MeanSpend <= 0:
			return fmt.Errorf("channel %q: mean spend must be positive, got %v", c.Name, c.MeanSpend)
		case c.DarkShare < 0 || c.DarkShare >= 1:
			return fmt.Errorf("channel %q: dark share %v outside [0,1)", c.Name, c.DarkShare)
		}
		seen[c.Name] = true
	}
	for _, c := range g.Controls {
		switch {
		case c.Name == "":
			return fmt.Errorf("control with empty name")
		case seen[c.Name]:
			return fmt.Errorf("column name %q used twice", c.Name)
		case c.Indicator && (c.Amp < 0 || c.Amp > 1):
			return fmt.Errorf("control %q: indicator probability %v outside [0,1]", c.Name, c.Amp)
		}
		seen[c.Name] = true
	}
	return nil
}

// Generate builds the labeled series: seasonal jittered spend with dark
// periods per channel, carryover and saturation applied exactly as the
// response model applies them, baseline structure, control effects and
// gaussian noise on top.
func Generate(cfg Config, truth GroundTruth) (*domain.TimeSeries, error) {
	cfg = cfg.withDefaults()
	if err := truth.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	n := cfg.Periods

	data := &domain.TimeSeries{
		Timestamps: make([]time.Time, n),
		Target:     make([]float64, n),
		Spend:      make(map[string][]float64, len(truth.Channels)),
	}
	for t := 0; t < n; t++ {
		data.Timestamps[t] = cfg.Start.AddDate(0, 0, 7*t)
	}

	// 1. Baseline: intercept, linear trend normalized to total lift over the
	// window, one annual sine.
	for t := 0; t < n; t++ {
		u := 0.0
		if n > 1 {
			u = float64(t) / float64(n-1)
		}
		data.Target[t] = truth.Intercept + truth.TrendTotal*u
		if truth.SeasonAmp != 0 {
			data.Target[t] += truth.SeasonAmp * math.Sin(2*math.Pi*float64(t)/truth.SeasonPeriod)
		}
	}

	// 2. Channels: spend pattern, then the same carryover and saturation the
	// fit uses.
	spendPeriod := truth.SeasonPeriod
	if spendPeriod <= 0 {
		spendPeriod = 52
	}
	exposure := make([]float64, n)
	sat := make([]float64, n)
	for k, ch := range truth.Channels {
		spend := make([]float64, n)
		phase := float64(k) * spendPeriod / 4
		for t := 0; t < n; t++ {
			if rng.Float64() < ch.DarkShare {
				continue
			}
			seasonal := 1 + 0.3*math.Sin(2*math.Pi*(float64(t)+phase)/spendPeriod)
			jitter := math.Exp(0.35 * rng.NormFloat64())
			spend[t] = ch.MeanSpend * seasonal * jitter
		}
		data.Spend[ch.Name] = spend

		transform.GeometricAdstockInto(exposure, spend, ch.Decay)
		transform.HillValueInto(sat, exposure, ch.Kappa, ch.Shape)
		for t := 0; t < n; t++ {
			data.Target[t] += ch.Beta * sat[t]
		}
	}

	// 3. Controls, applied relative to their base level.
	if len(truth.Controls) > 0 {
		data.Controls = make(map[string][]float64, len(truth.Controls))
	}
	for _, ctrl := range truth.Controls {
		values := make([]float64, n)
		for t := 0; t < n; t++ {
			if ctrl.Indicator {
				if rng.Float64() < ctrl.Amp {
					values[t] = 1
				}
			} else {
				values[t] = ctrl.Base + ctrl.Amp*math.Sin(2*math.Pi*float64(t)/(spendPeriod/2)) + 0.5*ctrl.Amp*rng.NormFloat64()
			}
			data.Target[t] += ctrl.Gamma * (values[t] - ctrl.Base)
		}
		data.Controls[ctrl.Name] = values
	}

	// 4. Observation noise.
	if truth.Sigma > 0 {
		for t := 0; t < n; t++ {
			data.Target[t] += truth.Sigma * rng.NormFloat64()
		}
	}
	return data, nil
}
