package validation

import (
	"math"
	"strings"
	"testing"
	"time"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/synthetic"
)

// pinnedTruth is a single decay-free channel whose spend sits exactly at the
// half-saturation point, so the true ROI reduces to beta/(2*spend).
func pinnedTruth() synthetic.GroundTruth {
	return synthetic.GroundTruth{
		Channels: []synthetic.ChannelTruth{
			{Name: "tv", Decay: 0, Kappa: 50000, Shape: 2, Beta: 2, MeanSpend: 50000},
		},
	}
}

// pinnedFixture builds the matching flat-spend dataset and a model whose
// posterior draws carry the given betas around the true transforms.
func pinnedFixture(periods int, betas []float64) (*domain.FittedModel, *domain.TimeSeries) {
	const spendLevel = 50000.0
	draws := len(betas)
	flat := func(v float64) []float64 {
		xs := make([]float64, draws)
		for i := range xs {
			xs[i] = v
		}
		return xs
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := &domain.TimeSeries{
		Timestamps: make([]time.Time, periods),
		Target:     make([]float64, periods),
		Spend:      map[string][]float64{"tv": make([]float64, periods)},
	}
	for t := 0; t < periods; t++ {
		data.Timestamps[t] = start.AddDate(0, 0, 7*t)
		data.Target[t] = 100
		data.Spend["tv"][t] = spendLevel
	}

	model := &domain.FittedModel{
		ModelID:       "mmx1attributionstub",
		Channels:      pinnedTruth().Specs(),
		NumChains:     1,
		DrawsPerChain: draws,
		Samples: map[string][]float64{
			domain.ParamIntercept:   flat(0),
			domain.BetaParam("tv"):  betas,
			domain.DecayParam("tv"): flat(0),
			domain.KappaParam("tv"): flat(spendLevel),
			domain.ShapeParam("tv"): flat(2),
		},
	}
	return model, data
}

func TestAttributionCriteria_ExactRecoveryPasses(t *testing.T) {
	// Beta draws averaging the true value give back the true ROI exactly.
	model, data := pinnedFixture(8, []float64{1.8, 2.0, 2.2})

	rows, err := AttributionCriteria(model, data, pinnedTruth(), Tolerances{})
	if err != nil {
		t.Fatalf("AttributionCriteria: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Name != "Attribution stable" || rows[1].Name != "ROI recovery [tv]" {
		t.Errorf("row names = %q, %q", rows[0].Name, rows[1].Name)
	}
	if !AllPass(rows) {
		t.Errorf("expected every row to pass: %+v", rows)
	}
}

func TestAttributionCriteria_FlagsBiasedAttribution(t *testing.T) {
	// Fitted betas 50% above the truth push the ROI outside the tolerance.
	model, data := pinnedFixture(8, []float64{3, 3, 3})

	rows, err := AttributionCriteria(model, data, pinnedTruth(), Tolerances{})
	if err != nil {
		t.Fatalf("AttributionCriteria: %v", err)
	}
	if !rows[0].Pass {
		t.Errorf("stability row failed on finite draws: %+v", rows[0])
	}
	if rows[1].Pass {
		t.Errorf("ROI row passed at 50%% error: %+v", rows[1])
	}
	if VerdictOf(rows) != VerdictFail {
		t.Error("biased attribution should produce a FAIL verdict")
	}
}

func TestAttributionCriteria_FlagsInstability(t *testing.T) {
	model, data := pinnedFixture(8, []float64{2, math.Inf(1), 2, 2, 2, 2})

	rows, err := AttributionCriteria(model, data, pinnedTruth(), Tolerances{})
	if err != nil {
		t.Fatalf("AttributionCriteria: %v", err)
	}
	if rows[0].Pass {
		t.Errorf("stability row passed with a sixth of the draws excluded: %+v", rows[0])
	}
	// The surviving draws still sit on the truth.
	if !rows[1].Pass {
		t.Errorf("ROI row failed on the surviving draws: %+v", rows[1])
	}
}

func TestAttributionCriteria_UnknownChannel(t *testing.T) {
	model, data := pinnedFixture(8, []float64{2})
	truth := pinnedTruth()
	truth.Channels = append(truth.Channels, synthetic.ChannelTruth{
		Name: "radio", Decay: 0.5, Kappa: 10000, Shape: 2, Beta: 1, MeanSpend: 10000,
	})

	_, err := AttributionCriteria(model, data, truth, Tolerances{})
	if err == nil || !strings.Contains(err.Error(), "no channel") {
		t.Fatalf("err = %v, want unknown-channel failure", err)
	}
}

func TestImpliedROI(t *testing.T) {
	_, data := pinnedFixture(8, []float64{2})
	ch := pinnedTruth().Channels[0]

	got, err := impliedROI(data, ch)
	if err != nil {
		t.Fatalf("impliedROI: %v", err)
	}
	// Half saturation at every period: 0.5*2*8 / (8*50000).
	if want := 2.0 / (2 * 50000); math.Abs(got-want) > 1e-15 {
		t.Errorf("impliedROI = %v, want %v", got, want)
	}

	// Carryover raises exposure on constant spend, so the implied ROI can
	// only grow.
	ch.Decay = 0.5
	withCarryover, err := impliedROI(data, ch)
	if err != nil {
		t.Fatalf("impliedROI with carryover: %v", err)
	}
	if withCarryover <= got {
		t.Errorf("ROI with carryover = %v, want above the decay-free %v", withCarryover, got)
	}
}

func TestImpliedROI_NoSpend(t *testing.T) {
	_, data := pinnedFixture(4, []float64{2})
	for i := range data.Spend["tv"] {
		data.Spend["tv"][i] = 0
	}

	if _, err := impliedROI(data, pinnedTruth().Channels[0]); err == nil {
		t.Fatal("no error for a channel without spend")
	}
}

func TestImpliedROI_MissingColumn(t *testing.T) {
	_, data := pinnedFixture(4, []float64{2})
	ch := pinnedTruth().Channels[0]
	ch.Name = "radio"

	if _, err := impliedROI(data, ch); err == nil {
		t.Fatal("no error for a channel the dataset does not carry")
	}
}
