package response

// Components splits a prediction into the additive pieces stakeholders see
// in reports: what sales would have been without media, what trend and
// seasonality explain, and what each channel and control added.
type Components struct {
	Baseline    []float64
	Trend       []float64
	Seasonality []float64
	Media       map[string][]float64
	Controls    map[string][]float64
	Total       []float64
}

// Decompose evaluates every additive piece separately. Unlike PredictInto
// this allocates; it runs once per report, not inside the sampler.
func (c *Composer) Decompose(p Params) (*Components, error) {
	if err := c.CheckParams(p); err != nil {
		return nil, err
	}

	out := &Components{
		Baseline:    make([]float64, c.n),
		Trend:       make([]float64, c.n),
		Seasonality: make([]float64, c.n),
		Media:       make(map[string][]float64, len(c.specs)),
		Controls:    make(map[string][]float64, len(c.controlNames)),
		Total:       make([]float64, c.n),
	}

	for t := 0; t < c.n; t++ {
		out.Baseline[t] = p.Linear[0]
		if c.trendCol >= 0 {
			out.Trend[t] = p.Linear[c.trendCol] * c.linear.At(t, c.trendCol)
		}
		if c.seasonStart >= 0 {
			var seas float64
			for j := c.seasonStart; j < c.seasonStart+2*c.structure.Harmonics; j++ {
				seas += p.Linear[j] * c.linear.At(t, j)
			}
			out.Seasonality[t] = seas
		}
		out.Total[t] = out.Baseline[t] + out.Trend[t] + out.Seasonality[t]
	}

	for j, name := range c.controlNames {
		series := make([]float64, c.n)
		w := p.Linear[c.controlStart+j]
		for t := 0; t < c.n; t++ {
			series[t] = w * c.controls[j][t]
			out.Total[t] += series[t]
		}
		out.Controls[name] = series
	}

	s := c.NewScratch()
	for k, spec := range c.specs {
		series := make([]float64, c.n)
		c.ChannelContributionInto(series, k, p.Channels[k], s)
		for t := 0; t < c.n; t++ {
			out.Total[t] += series[t]
		}
		out.Media[spec.Name] = series
	}
	return out, nil
}
