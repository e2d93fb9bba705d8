package validation

import (
	"fmt"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/roi"
	"mediamix-lab/internal/synthetic"
	"mediamix-lab/internal/transform"
)

// AttributionCriteria judges the attribution output against the generating
// truth: the computation must stay numerically stable, and each channel's
// posterior mean ROI must land within ROIRel of the ROI implied by the true
// parameters. Beta and kappa errors tend to cancel in the contribution
// product, so this bound holds even when the individual parameters sit near
// their own tolerances.
func AttributionCriteria(model *domain.FittedModel, data *domain.TimeSeries, truth synthetic.GroundTruth, tol Tolerances) ([]CriterionResult, error) {
	tol = tol.withDefaults()
	res, err := roi.Compute(model, data)
	if err != nil {
		return nil, fmt.Errorf("computing attribution: %w", err)
	}
	byName := make(map[string]roi.ChannelROI, len(res.Channels))
	for _, ch := range res.Channels {
		byName[ch.Channel] = ch
	}

	rows := make([]CriterionResult, 0, len(truth.Channels)+1)
	rows = append(rows, CriterionResult{
		Name:      "Attribution stable",
		Threshold: fmt.Sprintf("excluded <= %.0f%%", 100*roi.DefaultInstabilityThreshold),
		Actual:    fmt.Sprintf("%.2f%% excluded", 100*res.ExcludedFraction),
		Pass:      !res.Unstable,
	})
	for _, ch := range truth.Channels {
		got, ok := byName[ch.Name]
		if !ok {
			return nil, fmt.Errorf("attribution carries no channel %q", ch.Name)
		}
		want, err := impliedROI(data, ch)
		if err != nil {
			return nil, err
		}
		rows = append(rows, relCriterion(fmt.Sprintf("ROI recovery [%s]", ch.Name), got.ROI.Mean, want, tol.ROIRel))
	}
	return rows, nil
}

// impliedROI pushes the observed spend through the generating transforms and
// returns the true contribution per unit of spend.
func impliedROI(data *domain.TimeSeries, ch synthetic.ChannelTruth) (float64, error) {
	spend, err := data.SpendColumn(ch.Name)
	if err != nil {
		return 0, err
	}
	exposure := transform.GeometricAdstockInto(make([]float64, len(spend)), spend, ch.Decay)
	sat := transform.HillValueInto(make([]float64, len(spend)), exposure, ch.Kappa, ch.Shape)

	var contribution, total float64
	for t, s := range sat {
		contribution += ch.Beta * s
		total += spend[t]
	}
	if total <= 0 {
		return 0, fmt.Errorf("channel %q has no spend in the generated window", ch.Name)
	}
	return contribution / total, nil
}
