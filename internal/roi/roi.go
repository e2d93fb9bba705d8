// Package roi attributes outcomes to channels: posterior contribution
// totals, return on spend and mix shares, with empirical credible intervals
// taken over the full set of draws rather than plug-in point estimates.
package roi

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"mediamix-lab/internal/bayes"
	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/response"
)

// DefaultInstabilityThreshold is the excluded-draw fraction above which a
// result is flagged unstable.
const DefaultInstabilityThreshold = 0.01

// ChannelROI is the attribution for one channel.
type ChannelROI struct {
	Channel      string          `json:"channel"`
	TotalSpend   float64         `json:"total_spend"`
	Contribution domain.Interval `json:"contribution"` // target units over the dataset
	ROI          domain.Interval `json:"roi"`          // contribution per unit of spend
	Share        float64         `json:"share"`        // of total media contribution, at posterior means
}

// Result is the full attribution for one model over one dataset.
type Result struct {
	ModelID          string       `json:"model_id"`
	Channels         []ChannelROI `json:"channels"`
	ExcludedFraction float64      `json:"excluded_fraction"`
	Unstable         bool         `json:"unstable"`
	Warnings         []string     `json:"warnings,omitempty"`
}

// Compute evaluates per-draw channel contributions in original units over
// the dataset. Draws with non-finite contributions are excluded and
// counted; when more than DefaultInstabilityThreshold of draws drop out the
// result is flagged unstable instead of silently narrowing its intervals.
func Compute(model *domain.FittedModel, data *domain.TimeSeries) (*Result, error) {
	composer, err := response.NewComposer(data, model.Channels, model.Controls, response.StructureFrom(model.Config))
	if err != nil {
		return nil, err
	}

	numChannels := len(model.Channels)
	draws := model.NumDraws()
	if draws == 0 {
		return nil, fmt.Errorf("model %s carries no posterior draws", model.ModelID)
	}

	// 1. Per-draw totals, excluding numerically unstable draws.
	contributions := make([][]float64, numChannels)
	for k := range contributions {
		contributions[k] = make([]float64, 0, draws)
	}
	scratch := composer.NewScratch()
	buf := make([]float64, composer.Len())
	totals := make([]float64, numChannels)
	excluded := 0
	for d := 0; d < draws; d++ {
		p, err := bayes.DrawParams(model, composer, d)
		if err != nil {
			return nil, err
		}
		if err := drawTotals(totals, composer, p, scratch, buf, d, model.Channels); err != nil {
			var instability *domain.NumericInstabilityError
			if errors.As(err, &instability) {
				excluded++
				continue
			}
			return nil, err
		}
		for k, total := range totals {
			contributions[k] = append(contributions[k], total)
		}
	}
	if excluded == draws {
		return nil, fmt.Errorf("model %s: every posterior draw was numerically unstable", model.ModelID)
	}

	out := &Result{
		ModelID:          model.ModelID,
		Channels:         make([]ChannelROI, numChannels),
		ExcludedFraction: float64(excluded) / float64(draws),
	}
	if out.ExcludedFraction > DefaultInstabilityThreshold {
		out.Unstable = true
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%.1f%% of posterior draws were numerically unstable and excluded; intervals may be unreliable", 100*out.ExcludedFraction))
	}

	// 2. Reduce to intervals and shares.
	var shareTotal float64
	for k, spec := range model.Channels {
		spend := data.TotalSpend(spec.Name)
		ch := ChannelROI{
			Channel:      spec.Name,
			TotalSpend:   spend,
			Contribution: intervalOf(contributions[k]),
		}
		if spend > 0 {
			ratios := make([]float64, len(contributions[k]))
			for i, c := range contributions[k] {
				ratios[i] = c / spend
			}
			ch.ROI = intervalOf(ratios)
		} else {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("channel %q has zero spend over the dataset; ROI is undefined", spec.Name))
		}
		shareTotal += ch.Contribution.Mean
		out.Channels[k] = ch
	}
	if shareTotal > 0 {
		for k := range out.Channels {
			out.Channels[k].Share = out.Channels[k].Contribution.Mean / shareTotal
		}
	}
	return out, nil
}

func drawTotals(dst []float64, c *response.Composer, p response.Params, s *response.Scratch, buf []float64, draw int, specs []domain.ChannelSpec) error {
	for k := range specs {
		c.ChannelContributionInto(buf, k, p.Channels[k], s)
		var total float64
		for _, v := range buf {
			total += v
		}
		if math.IsNaN(total) || math.IsInf(total, 0) {
			return &domain.NumericInstabilityError{Draw: draw, Channel: specs[k].Name, Value: total}
		}
		dst[k] = total
	}
	return nil
}

func intervalOf(xs []float64) domain.Interval {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return domain.Interval{
		Mean:  stat.Mean(xs, nil),
		Lower: stat.Quantile(0.025, stat.Empirical, sorted, nil),
		Upper: stat.Quantile(0.975, stat.Empirical, sorted, nil),
	}
}
