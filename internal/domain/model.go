package domain

import (
	"fmt"
	"sort"
	"time"
)

// ParameterSummary reduces one parameter's posterior to point estimates,
// an empirical 95% credible interval and its convergence diagnostics.
type ParameterSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	SD     float64 `json:"sd"`
	Q025   float64 `json:"q025"`
	Q975   float64 `json:"q975"`
	RHat   float64 `json:"r_hat"`
	ESS    float64 `json:"ess"`
}

// Interval is an empirical credible interval around a mean.
type Interval struct {
	Mean  float64 `json:"mean"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Diagnostics judges a completed fit. A failed threshold does not abort the
// fit; it is recorded here for the caller to act on.
type Diagnostics struct {
	Converged   bool     `json:"converged"`    // all thresholds met at the acceptable level
	Strict      bool     `json:"strict"`       // R-hat also under the strict threshold
	MaxRHat     float64  `json:"max_r_hat"`
	MinESS      float64  `json:"min_ess"`
	Divergences int      `json:"divergences"`  // divergent transitions after warm-up, all chains
	Warnings    []string `json:"warnings,omitempty"`
}

// ScaleInfo records the standardization applied before sampling, kept so a
// fit can be reproduced and model-space values audited. All values stored on
// FittedModel are already mapped back to data units.
type ScaleInfo struct {
	TargetMean   float64            `json:"target_mean"`
	TargetScale  float64            `json:"target_scale"`
	SpendScale   map[string]float64 `json:"spend_scale"`
	ControlMean  map[string]float64 `json:"control_mean,omitempty"`
	ControlScale map[string]float64 `json:"control_scale,omitempty"`
}

// ChannelStats are per-channel facts about the fitted window needed by the
// optimizer after the dataset is gone: spend level and the steady-state
// carryover multiplier at the posterior-mean decay.
type ChannelStats struct {
	MeanSpend  float64 `json:"mean_spend"`
	TotalSpend float64 `json:"total_spend"`
	Carryover  float64 `json:"carryover"`
}

// FittedModel is the immutable snapshot produced by one fit call. It is
// created by the inference engine, read concurrently by the ROI calculator,
// the optimizer and the stores, and never mutated after construction.
type FittedModel struct {
	ModelID       string                      `json:"model_id"`
	RunID         string                      `json:"run_id"`
	CreatedAt     time.Time                   `json:"created_at"`
	Channels      []ChannelSpec               `json:"channels"`
	Controls      []string                    `json:"controls,omitempty"`
	Config        FitConfig                   `json:"config"`
	Summary       map[string]ParameterSummary `json:"summary"`
	Samples       map[string][]float64        `json:"samples"` // merged across chains, chain-major order
	NumChains     int                         `json:"num_chains"`
	DrawsPerChain int                         `json:"draws_per_chain"`
	Diagnostics   Diagnostics                 `json:"diagnostics"`
	Scale         ScaleInfo                   `json:"scale"`
	ChannelStats  map[string]ChannelStats     `json:"channel_stats"`
}

// NumDraws returns the total retained draw count across chains.
func (m *FittedModel) NumDraws() int {
	return m.NumChains * m.DrawsPerChain
}

// MeanOf returns the posterior mean for a named parameter.
func (m *FittedModel) MeanOf(name string) (float64, bool) {
	s, ok := m.Summary[name]
	if !ok {
		return 0, false
	}
	return s.Mean, true
}

// SamplesOf returns the merged posterior draws for a named parameter.
// The returned slice is shared; callers must not mutate it.
func (m *FittedModel) SamplesOf(name string) ([]float64, bool) {
	s, ok := m.Samples[name]
	return s, ok
}

// ChannelParameters assembles the posterior-mean parameters for one channel.
// Parameters not fitted for the channel (adstock or saturation disabled)
// are returned as zero values.
func (m *FittedModel) ChannelParameters(name string) (ChannelParameters, error) {
	spec, ok := m.channelSpec(name)
	if !ok {
		return ChannelParameters{}, fmt.Errorf("model %s has no channel %q", m.ModelID, name)
	}

	var p ChannelParameters
	if beta, ok := m.MeanOf(BetaParam(name)); ok {
		p.Beta = beta
	}
	if spec.Adstock != AdstockNone {
		if decay, ok := m.MeanOf(DecayParam(name)); ok {
			p.Decay = decay
		}
	}
	if spec.Saturation == SaturationHill {
		if kappa, ok := m.MeanOf(KappaParam(name)); ok {
			p.Kappa = kappa
		}
		if shape, ok := m.MeanOf(ShapeParam(name)); ok {
			p.Shape = shape
		}
	}
	return p, nil
}

func (m *FittedModel) channelSpec(name string) (ChannelSpec, bool) {
	for _, c := range m.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return ChannelSpec{}, false
}

// ChannelNames returns channel names in configuration order.
func (m *FittedModel) ChannelNames() []string {
	names := make([]string, len(m.Channels))
	for i, c := range m.Channels {
		names[i] = c.Name
	}
	return names
}

// ParameterNames returns all summarized parameter names, sorted.
func (m *FittedModel) ParameterNames() []string {
	names := make([]string, 0, len(m.Summary))
	for name := range m.Summary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy. Stores use it to keep handed-out models
// independent from their internal state.
func (m *FittedModel) Clone() *FittedModel {
	out := *m
	out.Channels = append([]ChannelSpec(nil), m.Channels...)
	out.Controls = append([]string(nil), m.Controls...)
	out.Diagnostics.Warnings = append([]string(nil), m.Diagnostics.Warnings...)

	out.Summary = make(map[string]ParameterSummary, len(m.Summary))
	for k, v := range m.Summary {
		out.Summary[k] = v
	}
	out.Samples = make(map[string][]float64, len(m.Samples))
	for k, v := range m.Samples {
		out.Samples[k] = append([]float64(nil), v...)
	}
	out.ChannelStats = make(map[string]ChannelStats, len(m.ChannelStats))
	for k, v := range m.ChannelStats {
		out.ChannelStats[k] = v
	}

	out.Scale.SpendScale = copyFloatMap(m.Scale.SpendScale)
	out.Scale.ControlMean = copyFloatMap(m.Scale.ControlMean)
	out.Scale.ControlScale = copyFloatMap(m.Scale.ControlScale)
	return &out
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// PosteriorDraw is one flat posterior sample row, the unit persisted by the
// sample store.
type PosteriorDraw struct {
	ModelID   string  `json:"model_id"`
	Parameter string  `json:"parameter"`
	Chain     int     `json:"chain"`
	Draw      int     `json:"draw"`
	Value     float64 `json:"value"`
}

// PosteriorDraws explodes the merged sample arrays into flat rows with
// chain/draw indices recovered from the chain-major layout.
func (m *FittedModel) PosteriorDraws() []*PosteriorDraw {
	if m.DrawsPerChain == 0 {
		return nil
	}
	rows := make([]*PosteriorDraw, 0, len(m.Samples)*m.NumDraws())
	for _, name := range m.ParameterNames() {
		for i, v := range m.Samples[name] {
			rows = append(rows, &PosteriorDraw{
				ModelID:   m.ModelID,
				Parameter: name,
				Chain:     i / m.DrawsPerChain,
				Draw:      i % m.DrawsPerChain,
				Value:     v,
			})
		}
	}
	return rows
}

// SamplesFromDraws rebuilds merged per-parameter sample arrays from flat rows,
// restoring the chain-major order. The inverse of PosteriorDraws for a model
// with the given draws-per-chain count.
func SamplesFromDraws(rows []*PosteriorDraw, drawsPerChain int) map[string][]float64 {
	if drawsPerChain <= 0 {
		return nil
	}
	byParam := make(map[string][]*PosteriorDraw)
	for _, r := range rows {
		byParam[r.Parameter] = append(byParam[r.Parameter], r)
	}
	out := make(map[string][]float64, len(byParam))
	for name, rs := range byParam {
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].Chain != rs[j].Chain {
				return rs[i].Chain < rs[j].Chain
			}
			return rs[i].Draw < rs[j].Draw
		})
		vals := make([]float64, len(rs))
		for i, r := range rs {
			vals[i] = r.Value
		}
		out[name] = vals
	}
	return out
}
