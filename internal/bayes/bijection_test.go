package bayes

import (
	"math"
	"testing"
)

func TestBijection_Roundtrip(t *testing.T) {
	cases := []struct {
		name   string
		bij    bijection
		values []float64
	}{
		{"identity", identityBijection{}, []float64{-3, 0, 7.5}},
		{"log", logBijection{}, []float64{0.001, 1, 42000}},
		{"logit", logitBijection{}, []float64{0.01, 0.5, 0.97}},
		{"shiftedLog", shiftedLogBijection{floor: 0.01}, []float64{0.011, 0.5, 12}},
	}
	for _, tc := range cases {
		for _, v := range tc.values {
			got := tc.bij.forward(tc.bij.inverse(v))
			if math.Abs(got-v) > 1e-9*math.Max(1, math.Abs(v)) {
				t.Errorf("%s: forward(inverse(%v)) = %v", tc.name, v, got)
			}
		}
	}
}

func TestBijection_JacobianMatchesDerivative(t *testing.T) {
	cases := []struct {
		name string
		bij  bijection
		zs   []float64
	}{
		{"identity", identityBijection{}, []float64{-2, 0, 3}},
		{"log", logBijection{}, []float64{-4, 0, 2}},
		{"logit", logitBijection{}, []float64{-3, 0, 1.5}},
		{"shiftedLog", shiftedLogBijection{floor: 0.01}, []float64{-3, 0, 1}},
	}
	const step = 1e-6
	for _, tc := range cases {
		for _, z := range tc.zs {
			numeric := math.Log(math.Abs(tc.bij.forward(z+step)-tc.bij.forward(z-step)) / (2 * step))
			got := tc.bij.logDetJacobian(z)
			if math.Abs(got-numeric) > 1e-4 {
				t.Errorf("%s: logDetJacobian(%v) = %v, numeric %v", tc.name, z, got, numeric)
			}
		}
	}
}

func TestLogitBijection_TailsStayFinite(t *testing.T) {
	bij := logitBijection{}
	for _, z := range []float64{-50, 50} {
		if ldj := bij.logDetJacobian(z); math.IsInf(ldj, 0) || math.IsNaN(ldj) {
			t.Errorf("logDetJacobian(%v) = %v, want finite", z, ldj)
		}
	}
	if v := bij.forward(40); v >= 1 {
		// Saturating to exactly 1 is fine for the transform itself; the
		// Jacobian above is what keeps the density well defined out here.
		if v > 1 {
			t.Errorf("forward(40) = %v, want at most 1", v)
		}
	}
}

func TestShiftedLog_RespectsFloor(t *testing.T) {
	bij := shiftedLogBijection{floor: 0.05}
	for _, z := range []float64{-100, -10, 0, 5} {
		if v := bij.forward(z); v < 0.05 {
			t.Errorf("forward(%v) = %v, want at least the floor 0.05", z, v)
		}
	}
}
