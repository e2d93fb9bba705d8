package validation

import "testing"

func TestVerdictOf(t *testing.T) {
	pass := CriterionResult{Name: "ok", Pass: true}
	fail := CriterionResult{Name: "bad"}

	if v := VerdictOf([]CriterionResult{pass, pass}); v != VerdictPass {
		t.Errorf("all-pass groups = %s, want %s", v, VerdictPass)
	}
	if v := VerdictOf([]CriterionResult{pass}, []CriterionResult{pass, fail}); v != VerdictFail {
		t.Errorf("one failing row = %s, want %s", v, VerdictFail)
	}
	if v := VerdictOf(); v != VerdictPass {
		t.Errorf("no groups = %s, want %s", v, VerdictPass)
	}
	if v := VerdictOf(nil); v != VerdictPass {
		t.Errorf("nil group = %s, want %s", v, VerdictPass)
	}
}

func TestAllPass(t *testing.T) {
	if !AllPass(nil) {
		t.Error("empty list should pass")
	}
	rows := []CriterionResult{{Pass: true}, {Pass: false}}
	if AllPass(rows) {
		t.Error("list with a failing row should not pass")
	}
}

func TestTolerances_Defaults(t *testing.T) {
	if got, want := (Tolerances{}).withDefaults(), DefaultTolerances(); got != want {
		t.Errorf("zero tolerances = %+v, want defaults %+v", got, want)
	}

	custom := Tolerances{DecayAbs: 0.02, MaxDivergences: 3}.withDefaults()
	if custom.DecayAbs != 0.02 {
		t.Errorf("DecayAbs = %v, want the explicit 0.02", custom.DecayAbs)
	}
	if custom.MaxDivergences != 3 {
		t.Errorf("MaxDivergences = %d, want 3", custom.MaxDivergences)
	}
	if custom.BetaRel != DefaultTolerances().BetaRel {
		t.Errorf("BetaRel = %v, want the default", custom.BetaRel)
	}
}
