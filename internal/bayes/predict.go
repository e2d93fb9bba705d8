package bayes

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/response"
)

// Prediction is a fitted model evaluated over a dataset, in original units.
type Prediction struct {
	Predicted  []float64 // posterior-mean prediction per period
	Lower      []float64 // 2.5% bound of the mean prediction
	Upper      []float64 // 97.5% bound of the mean prediction
	Components *response.Components
}

// Predict evaluates the fitted equation over a dataset. The dataset may be
// the training data or new periods with the same columns. The band covers
// parameter uncertainty only; add observation noise draws for a full
// predictive interval.
func Predict(model *domain.FittedModel, data *domain.TimeSeries) (*Prediction, error) {
	c, err := response.NewComposer(data, model.Channels, model.Controls, response.StructureFrom(model.Config))
	if err != nil {
		return nil, err
	}
	mean, err := MeanParams(model, c)
	if err != nil {
		return nil, err
	}
	comps, err := c.Decompose(mean)
	if err != nil {
		return nil, err
	}

	n := c.Len()
	out := &Prediction{
		Predicted:  comps.Total,
		Lower:      make([]float64, n),
		Upper:      make([]float64, n),
		Components: comps,
	}
	draws := model.NumDraws()
	if draws == 0 {
		// A summary-only model carries no draws; the band collapses onto
		// the mean prediction.
		copy(out.Lower, comps.Total)
		copy(out.Upper, comps.Total)
		return out, nil
	}

	perPeriod := make([][]float64, n)
	for t := range perPeriod {
		perPeriod[t] = make([]float64, 0, draws)
	}

	s := c.NewScratch()
	buf := make([]float64, n)
	for d := 0; d < draws; d++ {
		p, err := DrawParams(model, c, d)
		if err != nil {
			return nil, err
		}
		c.PredictInto(buf, p, s)
		for t, v := range buf {
			perPeriod[t] = append(perPeriod[t], v)
		}
	}

	for t := range perPeriod {
		sort.Float64s(perPeriod[t])
		out.Lower[t] = stat.Quantile(0.025, stat.Empirical, perPeriod[t], nil)
		out.Upper[t] = stat.Quantile(0.975, stat.Empirical, perPeriod[t], nil)
	}
	return out, nil
}
