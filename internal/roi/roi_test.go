package roi

import (
	"math"
	"strings"
	"testing"
	"time"

	"mediamix-lab/internal/domain"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func repeat(v float64, n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = v
	}
	return xs
}

// attributionFixture builds a model with hand-written posterior draws over a
// flat-spend dataset. Spend is pinned to each channel's kappa, so the Hill
// curve evaluates to exactly one half and contributions reduce to
// 0.5 * beta * periods.
func attributionFixture(periods int, betaTV, betaRadio []float64) (*domain.FittedModel, *domain.TimeSeries) {
	const (
		tvSpend    = 50000.0
		radioSpend = 10000.0
	)
	draws := len(betaTV)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := &domain.TimeSeries{
		Timestamps: make([]time.Time, periods),
		Target:     make([]float64, periods),
		Spend: map[string][]float64{
			"tv":    repeat(tvSpend, periods),
			"radio": repeat(radioSpend, periods),
		},
	}
	for t := 0; t < periods; t++ {
		data.Timestamps[t] = start.AddDate(0, 0, 7*t)
		data.Target[t] = 100
	}

	model := &domain.FittedModel{
		ModelID: "mmx1roifixture",
		RunID:   "run-roi",
		Channels: []domain.ChannelSpec{
			{Name: "tv", Adstock: domain.AdstockNone, Saturation: domain.SaturationHill},
			{Name: "radio", Adstock: domain.AdstockNone, Saturation: domain.SaturationHill},
		},
		NumChains:     1,
		DrawsPerChain: draws,
		Samples: map[string][]float64{
			domain.ParamIntercept:      repeat(0, draws),
			domain.BetaParam("tv"):     betaTV,
			domain.DecayParam("tv"):    repeat(0, draws),
			domain.KappaParam("tv"):    repeat(tvSpend, draws),
			domain.ShapeParam("tv"):    repeat(2, draws),
			domain.BetaParam("radio"):  betaRadio,
			domain.DecayParam("radio"): repeat(0, draws),
			domain.KappaParam("radio"): repeat(radioSpend, draws),
			domain.ShapeParam("radio"): repeat(2, draws),
		},
	}
	return model, data
}

func TestCompute_ExactArithmetic(t *testing.T) {
	const periods = 8
	model, data := attributionFixture(periods, []float64{2, 4, 6}, []float64{1, 1, 1})

	res, err := Compute(model, data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.ModelID != model.ModelID {
		t.Errorf("ModelID = %q, want %q", res.ModelID, model.ModelID)
	}
	if res.ExcludedFraction != 0 || res.Unstable {
		t.Errorf("ExcludedFraction = %v, Unstable = %v, want 0 and false", res.ExcludedFraction, res.Unstable)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
	if len(res.Channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(res.Channels))
	}

	// Contribution draws for tv are 0.5*beta*periods = {8, 16, 24}.
	tv := res.Channels[0]
	if tv.Channel != "tv" {
		t.Fatalf("channel order changed: got %q first", tv.Channel)
	}
	if !almostEqual(tv.Contribution.Mean, 16, 1e-9) {
		t.Errorf("tv contribution mean = %v, want 16", tv.Contribution.Mean)
	}
	if !almostEqual(tv.Contribution.Lower, 8, 1e-9) || !almostEqual(tv.Contribution.Upper, 24, 1e-9) {
		t.Errorf("tv contribution interval = [%v, %v], want [8, 24]", tv.Contribution.Lower, tv.Contribution.Upper)
	}
	if !almostEqual(tv.TotalSpend, 8*50000, 1e-6) {
		t.Errorf("tv total spend = %v, want 400000", tv.TotalSpend)
	}
	if !almostEqual(tv.ROI.Mean, 16.0/400000, 1e-12) {
		t.Errorf("tv roi mean = %v, want %v", tv.ROI.Mean, 16.0/400000)
	}
	if !almostEqual(tv.ROI.Lower, 8.0/400000, 1e-12) || !almostEqual(tv.ROI.Upper, 24.0/400000, 1e-12) {
		t.Errorf("tv roi interval = [%v, %v]", tv.ROI.Lower, tv.ROI.Upper)
	}

	// Radio contributes 0.5*1*8 = 4 in every draw, so shares are 16/20 and 4/20.
	radio := res.Channels[1]
	if !almostEqual(radio.Contribution.Mean, 4, 1e-9) {
		t.Errorf("radio contribution mean = %v, want 4", radio.Contribution.Mean)
	}
	if !almostEqual(tv.Share, 0.8, 1e-9) || !almostEqual(radio.Share, 0.2, 1e-9) {
		t.Errorf("shares = %v, %v, want 0.8, 0.2", tv.Share, radio.Share)
	}
}

func TestCompute_IntervalOrdering(t *testing.T) {
	draws := 40
	betaTV := make([]float64, draws)
	for i := range betaTV {
		betaTV[i] = 1 + 0.05*float64(i)
	}
	model, data := attributionFixture(12, betaTV, repeat(1, draws))

	res, err := Compute(model, data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, ch := range res.Channels {
		for name, iv := range map[string]domain.Interval{"contribution": ch.Contribution, "roi": ch.ROI} {
			if iv.Lower > iv.Mean || iv.Mean > iv.Upper {
				t.Errorf("channel %s %s interval not ordered: [%v, %v, %v]", ch.Channel, name, iv.Lower, iv.Mean, iv.Upper)
			}
		}
	}
}

func TestCompute_ExcludesUnstableDraws(t *testing.T) {
	betaTV := []float64{2, 2, math.Inf(1), 2, 2, 2}
	model, data := attributionFixture(8, betaTV, repeat(1, 6))

	res, err := Compute(model, data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !almostEqual(res.ExcludedFraction, 1.0/6, 1e-12) {
		t.Errorf("ExcludedFraction = %v, want 1/6", res.ExcludedFraction)
	}
	if !res.Unstable {
		t.Error("result not flagged unstable at 16.7% exclusion")
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "excluded") {
			found = true
		}
	}
	if !found {
		t.Errorf("no exclusion warning in %v", res.Warnings)
	}

	// The surviving draws are all beta=2, so the interval collapses to 8.
	tv := res.Channels[0]
	if !almostEqual(tv.Contribution.Mean, 8, 1e-9) {
		t.Errorf("tv contribution mean = %v, want 8 from surviving draws", tv.Contribution.Mean)
	}
}

func TestCompute_SmallExclusionStaysStable(t *testing.T) {
	draws := 400
	betaTV := repeat(2, draws)
	betaTV[13] = math.NaN()
	betaTV[200] = math.Inf(-1)
	model, data := attributionFixture(8, betaTV, repeat(1, draws))

	res, err := Compute(model, data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !almostEqual(res.ExcludedFraction, 0.005, 1e-12) {
		t.Errorf("ExcludedFraction = %v, want 0.005", res.ExcludedFraction)
	}
	if res.Unstable {
		t.Error("flagged unstable below the threshold")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestCompute_ZeroSpendChannel(t *testing.T) {
	model, data := attributionFixture(8, []float64{2, 2, 2}, repeat(1, 3))
	data.Spend["radio"] = repeat(0, 8)

	res, err := Compute(model, data)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	radio := res.Channels[1]
	if radio.Contribution.Mean != 0 {
		t.Errorf("radio contribution = %v, want 0 with no spend", radio.Contribution.Mean)
	}
	if radio.ROI != (domain.Interval{}) {
		t.Errorf("radio roi = %+v, want zero interval", radio.ROI)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "radio") && strings.Contains(w, "zero spend") {
			found = true
		}
	}
	if !found {
		t.Errorf("no zero-spend warning in %v", res.Warnings)
	}
	if !almostEqual(res.Channels[0].Share, 1, 1e-9) {
		t.Errorf("tv share = %v, want 1 when it is the only contributor", res.Channels[0].Share)
	}
}

func TestCompute_AllDrawsUnstable(t *testing.T) {
	model, data := attributionFixture(8, repeat(math.Inf(1), 3), repeat(1, 3))

	if _, err := Compute(model, data); err == nil {
		t.Fatal("no error when every draw is unstable")
	} else if !strings.Contains(err.Error(), "unstable") {
		t.Errorf("error %q does not mention instability", err)
	}
}

func TestCompute_BadInputs(t *testing.T) {
	model, data := attributionFixture(8, []float64{2}, []float64{1})

	t.Run("missing channel column", func(t *testing.T) {
		broken := model.Clone()
		broken.Channels = append(broken.Channels, domain.ChannelSpec{
			Name: "digital", Adstock: domain.AdstockNone, Saturation: domain.SaturationHill,
		})
		if _, err := Compute(broken, data); err == nil {
			t.Fatal("no error for channel without a spend column")
		}
	})

	t.Run("no draws", func(t *testing.T) {
		empty := model.Clone()
		empty.NumChains = 0
		if _, err := Compute(empty, data); err == nil {
			t.Fatal("no error for a model without draws")
		}
	})
}
