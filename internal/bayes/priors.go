package bayes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// halfNormal is a Normal(0, sigma) folded onto the non-negative half line.
type halfNormal struct {
	norm distuv.Normal
}

func newHalfNormal(sigma float64) halfNormal {
	return halfNormal{norm: distuv.Normal{Mu: 0, Sigma: sigma}}
}

func (h halfNormal) LogProb(v float64) float64 {
	if v < 0 {
		return math.Inf(-1)
	}
	return math.Ln2 + h.norm.LogProb(v)
}

// priorSet carries the prior density of every parameter family on the
// standardized scale. Channel effect and half-saturation priors are
// half-normal, so their mass sits at plausible magnitudes without hard
// upper bounds; decay gets a Beta(2,2) that discourages the extremes of no
// carryover and near-permanent carryover.
type priorSet struct {
	beta      halfNormal
	decay     distuv.Beta
	shape     distuv.Gamma
	intercept distuv.Normal
	linear    distuv.Normal
	sigma     halfNormal
}

func newPriorSet(betaScale float64) priorSet {
	return priorSet{
		beta:      newHalfNormal(betaScale),
		decay:     distuv.Beta{Alpha: 2, Beta: 2},
		shape:     distuv.Gamma{Alpha: 2, Beta: 1},
		intercept: distuv.Normal{Mu: 0, Sigma: 2},
		linear:    distuv.Normal{Mu: 0, Sigma: 1},
		sigma:     newHalfNormal(1),
	}
}

// kappaPrior is per channel: a half-normal centered on the scale of that
// channel's adstocked exposure, so the half-saturation point starts in the
// region the data can actually inform.
func kappaPrior(meanExposure float64) halfNormal {
	if meanExposure <= 0 {
		meanExposure = 1
	}
	return newHalfNormal(meanExposure)
}
