package bayes

import (
	"gonum.org/v1/gonum/stat"

	"mediamix-lab/internal/domain"
)

// standardize returns a rescaled copy of the dataset for sampling: the
// target centered and scaled to unit spread, spend divided by its
// per-channel mean, controls z-scored. Columns without spread keep scale 1
// so every transform stays invertible; the original dataset is never
// modified.
func standardize(data *domain.TimeSeries, specs []domain.ChannelSpec, controls []string) (*domain.TimeSeries, domain.ScaleInfo, error) {
	std := data.Clone()
	info := domain.ScaleInfo{
		SpendScale:   make(map[string]float64, len(specs)),
		ControlMean:  make(map[string]float64, len(controls)),
		ControlScale: make(map[string]float64, len(controls)),
	}

	mean, sd := stat.Mean(std.Target, nil), stat.StdDev(std.Target, nil)
	if !(sd > 0) {
		sd = 1
	}
	info.TargetMean, info.TargetScale = mean, sd
	for t := range std.Target {
		std.Target[t] = (std.Target[t] - mean) / sd
	}

	for _, spec := range specs {
		col, err := std.SpendColumn(spec.Name)
		if err != nil {
			return nil, domain.ScaleInfo{}, err
		}
		scale := stat.Mean(col, nil)
		if !(scale > 0) {
			scale = 1
		}
		info.SpendScale[spec.Name] = scale
		for t := range col {
			col[t] /= scale
		}
	}

	for _, name := range controls {
		col, err := std.ControlColumn(name)
		if err != nil {
			return nil, domain.ScaleInfo{}, err
		}
		cm, cs := stat.Mean(col, nil), stat.StdDev(col, nil)
		if !(cs > 0) {
			cs = 1
		}
		info.ControlMean[name], info.ControlScale[name] = cm, cs
		for t := range col {
			col[t] = (col[t] - cm) / cs
		}
	}
	return std, info, nil
}
