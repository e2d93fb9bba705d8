package bayes

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/stat"

	"mediamix-lab/internal/domain"
)

func weeklySeries(n int, seed uint64) *domain.TimeSeries {
	rng := rand.New(rand.NewPCG(seed, 0))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	ts := &domain.TimeSeries{
		Timestamps: make([]time.Time, n),
		Target:     make([]float64, n),
		Spend: map[string][]float64{
			"tv":    make([]float64, n),
			"radio": make([]float64, n),
		},
		Controls: map[string][]float64{
			"price": make([]float64, n),
		},
	}
	for t := 0; t < n; t++ {
		ts.Timestamps[t] = start.AddDate(0, 0, 7*t)
		ts.Spend["tv"][t] = 50000 * rng.Float64()
		ts.Spend["radio"][t] = 20000 * rng.Float64()
		ts.Controls["price"][t] = 95 + 10*rng.Float64()
		ts.Target[t] = 40000 + 5000*rng.NormFloat64()
	}
	return ts
}

func TestBuildModel_ParameterLayout(t *testing.T) {
	cfg := domain.DefaultFitConfig()
	m, err := BuildModel(weeklySeries(104, 1), []domain.ChannelSpec{
		domain.NewChannelSpec("tv"),
		domain.NewChannelSpec("radio"),
	}, []string{"price"}, cfg)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}

	// 7 baseline (intercept, trend, 2 Fourier pairs, price), 4 per channel,
	// 1 noise scale.
	if got := m.Dim(); got != 16 {
		t.Fatalf("Dim = %d, want 16", got)
	}
	names := m.ParameterNames()
	if names[0] != "intercept" || names[1] != "trend" {
		t.Errorf("baseline head = %v, want intercept then trend", names[:2])
	}
	if names[7] != "beta[tv]" || names[8] != "decay[tv]" || names[9] != "kappa[tv]" || names[10] != "shape[tv]" {
		t.Errorf("first channel block = %v", names[7:11])
	}
	if names[len(names)-1] != "sigma" {
		t.Errorf("last parameter = %q, want sigma", names[len(names)-1])
	}
}

func TestBuildModel_LogDensityFiniteAtInit(t *testing.T) {
	cfg := domain.DefaultFitConfig()
	cfg.PreEstimate = true
	m, err := BuildModel(weeklySeries(80, 2), []domain.ChannelSpec{
		domain.NewChannelSpec("tv"),
	}, []string{"price"}, cfg)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	lp := m.LogDensity(m.InitVector())
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		t.Errorf("LogDensity at init = %v, want finite", lp)
	}
}

func TestBuildModel_RejectsUnsupportedKinds(t *testing.T) {
	data := weeklySeries(60, 3)
	cfg := domain.DefaultFitConfig()

	weibull := domain.NewChannelSpec("tv")
	weibull.Adstock = domain.AdstockWeibull
	if _, err := BuildModel(data, []domain.ChannelSpec{weibull}, nil, cfg); err == nil {
		t.Error("weibull adstock: expected error, got nil")
	}

	linear := domain.NewChannelSpec("tv")
	linear.Saturation = domain.SaturationLinear
	if _, err := BuildModel(data, []domain.ChannelSpec{linear}, nil, cfg); err == nil {
		t.Error("linear saturation: expected error, got nil")
	}

	if _, err := BuildModel(data, nil, nil, cfg); err == nil {
		t.Error("no channels: expected error, got nil")
	}
	var schemaErr *domain.SchemaError
	_, err := BuildModel(data, []domain.ChannelSpec{domain.NewChannelSpec("TV_spend")}, nil, cfg)
	if !errors.As(err, &schemaErr) || schemaErr.Column != "TV_spend" {
		t.Errorf("missing column: got %v, want SchemaError naming TV_spend", err)
	}
}

func TestStandardize_ScalesAndPreservesOriginal(t *testing.T) {
	data := weeklySeries(120, 4)
	originalTarget := append([]float64(nil), data.Target...)
	specs := []domain.ChannelSpec{domain.NewChannelSpec("tv")}

	std, info, err := standardize(data, specs, []string{"price"})
	if err != nil {
		t.Fatalf("standardize: %v", err)
	}

	if m := stat.Mean(std.Target, nil); math.Abs(m) > 1e-9 {
		t.Errorf("standardized target mean = %v, want 0", m)
	}
	if sd := stat.StdDev(std.Target, nil); math.Abs(sd-1) > 1e-9 {
		t.Errorf("standardized target sd = %v, want 1", sd)
	}
	if m := stat.Mean(std.Spend["tv"], nil); math.Abs(m-1) > 1e-9 {
		t.Errorf("standardized spend mean = %v, want 1", m)
	}
	if m := stat.Mean(std.Controls["price"], nil); math.Abs(m) > 1e-9 {
		t.Errorf("standardized control mean = %v, want 0", m)
	}

	for i := range originalTarget {
		if data.Target[i] != originalTarget[i] {
			t.Fatal("standardize modified the input dataset")
		}
		back := std.Target[i]*info.TargetScale + info.TargetMean
		if math.Abs(back-originalTarget[i]) > 1e-6 {
			t.Fatalf("scale info does not invert: %v vs %v", back, originalTarget[i])
		}
	}
}

func TestLogDensity_ConcurrentCallsAgree(t *testing.T) {
	cfg := domain.DefaultFitConfig()
	m, err := BuildModel(weeklySeries(60, 5), []domain.ChannelSpec{
		domain.NewChannelSpec("tv"),
		domain.NewChannelSpec("radio"),
	}, nil, cfg)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}

	z := m.InitVector()
	want := m.LogDensity(z)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if got := m.LogDensity(z); got != want {
					t.Errorf("concurrent LogDensity = %v, want %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}
