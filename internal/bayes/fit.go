package bayes

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/stat"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/idhash"
	"mediamix-lab/internal/mcmc"
	"mediamix-lab/internal/transform"
)

// Fit runs the full Bayesian workflow on a dataset: standardization, NUTS
// sampling, convergence diagnostics and conversion of every draw back to
// original units. The returned model is self-contained; downstream analysis
// needs no access to the training data beyond what it stores.
func Fit(ctx context.Context, data *domain.TimeSeries, specs []domain.ChannelSpec, controls []string, cfg domain.FitConfig) (*domain.FittedModel, error) {
	return FitWithLogger(ctx, data, specs, controls, cfg, nil)
}

// FitWithLogger is Fit with sampler events logged to the given logger.
func FitWithLogger(ctx context.Context, data *domain.TimeSeries, specs []domain.ChannelSpec, controls []string, cfg domain.FitConfig, logger *slog.Logger) (*domain.FittedModel, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg = withBudgetDefaults(cfg)

	model, err := BuildModel(data, specs, controls, cfg)
	if err != nil {
		return nil, err
	}

	mcfg := mcmc.Config{
		Chains:       cfg.Chains,
		Warmup:       cfg.Warmup,
		Draws:        cfg.Draws,
		TargetAccept: cfg.TargetAccept,
		MaxTreeDepth: cfg.MaxTreeDepth,
		Seed:         cfg.Seed,
		Init:         model.InitVector(),
		Logger:       logger,
	}
	if cfg.Progress {
		bar := progressbar.Default(int64(cfg.Chains*(cfg.Warmup+cfg.Draws)), "sampling")
		mcfg.Progress = func() { _ = bar.Add(1) }
	}

	logger.Info("sampling posterior",
		"channels", len(specs),
		"controls", len(controls),
		"parameters", model.Dim(),
		"chains", cfg.Chains,
		"draws", cfg.Draws)
	started := time.Now()
	res, err := mcmc.Run(ctx, mcmc.Target{Dim: model.Dim(), LogDensity: model.LogDensity}, mcfg)
	if err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}
	logger.Info("sampling finished",
		"elapsed", time.Since(started).Round(time.Millisecond),
		"divergences", res.Divergences())

	return assembleModel(model, res, data, cfg)
}

// withBudgetDefaults fills unset operational knobs from the production
// defaults. Structural choices (trend, harmonics) are taken as given, since
// zero is a meaningful setting for them.
func withBudgetDefaults(cfg domain.FitConfig) domain.FitConfig {
	def := domain.DefaultFitConfig()
	if cfg.Draws <= 0 {
		cfg.Draws = def.Draws
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = def.Warmup
	}
	if cfg.Chains <= 0 {
		cfg.Chains = def.Chains
	}
	if cfg.TargetAccept <= 0 || cfg.TargetAccept >= 1 {
		cfg.TargetAccept = def.TargetAccept
	}
	if cfg.MaxTreeDepth <= 0 {
		cfg.MaxTreeDepth = def.MaxTreeDepth
	}
	if cfg.Harmonics > 0 && cfg.SeasonPeriod <= 0 {
		cfg.SeasonPeriod = def.SeasonPeriod
	}
	if cfg.BetaScale <= 0 {
		cfg.BetaScale = def.BetaScale
	}
	if cfg.SigmaFloor <= 0 {
		cfg.SigmaFloor = def.SigmaFloor
	}
	if cfg.RHatStrict <= 0 {
		cfg.RHatStrict = def.RHatStrict
	}
	if cfg.RHatMax <= 0 {
		cfg.RHatMax = def.RHatMax
	}
	if cfg.MinESS <= 0 {
		cfg.MinESS = def.MinESS
	}
	return cfg
}

// toOriginalUnits rewrites one constrained standardized draw into original
// data units. The intercept absorbs both the target centering and the
// control centering so predictions on raw data line up exactly with
// predictions on standardized data.
func (m *Model) toOriginalUnits(dst, std []float64) {
	ts, tm := m.scale.TargetScale, m.scale.TargetMean
	ctrlBase := m.numLinear - len(m.controls)

	var centering float64
	for j, name := range m.controls {
		centering += ts * std[ctrlBase+j] * m.scale.ControlMean[name] / m.scale.ControlScale[name]
	}
	dst[0] = tm + ts*std[0] - centering
	for i := 1; i < m.numLinear; i++ {
		if i >= ctrlBase {
			dst[i] = ts * std[i] / m.scale.ControlScale[m.controls[i-ctrlBase]]
		} else {
			dst[i] = ts * std[i]
		}
	}
	for k, spec := range m.specs {
		base := m.channelBase(k)
		dst[base+offBeta] = ts * std[base+offBeta]
		dst[base+offDecay] = std[base+offDecay]
		dst[base+offKappa] = m.scale.SpendScale[spec.Name] * std[base+offKappa]
		dst[base+offShape] = std[base+offShape]
	}
	dst[m.sigmaIndex()] = ts * std[m.sigmaIndex()]
}

func assembleModel(model *Model, res *mcmc.Result, raw *domain.TimeSeries, cfg domain.FitConfig) (*domain.FittedModel, error) {
	names := model.ParameterNames()
	dim := model.Dim()

	// 1. Constrain and convert every draw, kept per chain for diagnostics.
	converted := make([][][]float64, len(res.Chains))
	scratch := make([]float64, dim)
	for c, chain := range res.Chains {
		converted[c] = make([][]float64, len(chain.Draws))
		for d, z := range chain.Draws {
			model.Constrain(scratch, z)
			row := make([]float64, dim)
			model.toOriginalUnits(row, scratch)
			converted[c][d] = row
		}
	}

	// 2. Per-parameter summaries and convergence diagnostics on the
	// original-unit draws.
	samples := make(map[string][]float64, dim)
	summary := make(map[string]domain.ParameterSummary, dim)
	maxRHat, minESS := 0.0, math.Inf(1)
	for j, name := range names {
		chains := make([][]float64, len(converted))
		merged := make([]float64, 0, res.NumDraws())
		for c := range converted {
			series := make([]float64, len(converted[c]))
			for d := range converted[c] {
				series[d] = converted[c][d][j]
			}
			chains[c] = series
			merged = append(merged, series...)
		}

		sorted := append([]float64(nil), merged...)
		sort.Float64s(sorted)
		rhat := mcmc.SplitRHat(chains)
		ess := mcmc.ESS(chains)
		summary[name] = domain.ParameterSummary{
			Mean:   stat.Mean(merged, nil),
			Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
			SD:     stat.StdDev(merged, nil),
			Q025:   stat.Quantile(0.025, stat.Empirical, sorted, nil),
			Q975:   stat.Quantile(0.975, stat.Empirical, sorted, nil),
			RHat:   rhat,
			ESS:    ess,
		}
		samples[name] = merged

		if !math.IsNaN(rhat) && rhat > maxRHat {
			maxRHat = rhat
		}
		if ess < minESS {
			minESS = ess
		}
	}

	// 3. Aggregate verdict and warnings.
	diag := domain.Diagnostics{
		MaxRHat:     maxRHat,
		MinESS:      minESS,
		Divergences: res.Divergences(),
	}
	diag.Converged = maxRHat <= cfg.RHatMax && minESS >= cfg.MinESS
	diag.Strict = maxRHat <= cfg.RHatStrict && minESS >= cfg.MinESS && diag.Divergences == 0
	switch {
	case maxRHat > cfg.RHatMax:
		diag.Warnings = append(diag.Warnings,
			fmt.Sprintf("sampler did not converge: max R-hat %.3f above %.2f; do not use this fit", maxRHat, cfg.RHatMax))
	case maxRHat > cfg.RHatStrict:
		diag.Warnings = append(diag.Warnings,
			fmt.Sprintf("max R-hat %.3f between %.2f and %.2f; intervals may be slightly off", maxRHat, cfg.RHatStrict, cfg.RHatMax))
	}
	if minESS < cfg.MinESS {
		diag.Warnings = append(diag.Warnings,
			fmt.Sprintf("min effective sample size %.0f below %.0f; consider more draws", minESS, cfg.MinESS))
	}
	if diag.Divergences > 0 {
		diag.Warnings = append(diag.Warnings,
			fmt.Sprintf("%d divergent transitions after warmup; the posterior may be underexplored", diag.Divergences))
	}

	// 4. Channel spend statistics from the raw data, with carryover at the
	// posterior mean decay. The optimizer depends on these instead of the
	// training data.
	channelStats := make(map[string]domain.ChannelStats, len(model.specs))
	for _, spec := range model.specs {
		col, err := raw.SpendColumn(spec.Name)
		if err != nil {
			return nil, err
		}
		meanDecay := summary[domain.DecayParam(spec.Name)].Mean
		channelStats[spec.Name] = domain.ChannelStats{
			MeanSpend:  stat.Mean(col, nil),
			TotalSpend: raw.TotalSpend(spec.Name),
			Carryover:  transform.SteadyStateMultiplier(col, meanDecay, spec.MaxLag),
		}
	}

	return &domain.FittedModel{
		ModelID:       idhash.ComputeModelID(idhash.DatasetDigest(raw), model.specs, model.controls, cfg),
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Channels:      append([]domain.ChannelSpec(nil), model.specs...),
		Controls:      append([]string(nil), model.controls...),
		Config:        cfg,
		Summary:       summary,
		Samples:       samples,
		NumChains:     len(res.Chains),
		DrawsPerChain: cfg.Draws,
		Diagnostics:   diag,
		Scale:         model.scale,
		ChannelStats:  channelStats,
	}, nil
}
