package mcmc

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SplitRHat computes the split potential-scale-reduction factor for one
// parameter. Each chain is halved so within-chain drift shows up as
// between-sequence variance; values near 1 indicate the chains agree.
// Constant chains return exactly 1.
func SplitRHat(chains [][]float64) float64 {
	var seqs [][]float64
	for _, chain := range chains {
		half := len(chain) / 2
		if half < 2 {
			continue
		}
		seqs = append(seqs, chain[:half], chain[len(chain)-half:])
	}
	if len(seqs) < 2 {
		return math.NaN()
	}

	n := len(seqs[0])
	means := make([]float64, len(seqs))
	var within float64
	for i, seq := range seqs {
		m, v := stat.MeanVariance(seq, nil)
		means[i] = m
		within += v
	}
	within /= float64(len(seqs))
	if within == 0 {
		return 1
	}

	between := float64(n) * stat.Variance(means, nil)

	varPlus := float64(n-1)/float64(n)*within + between/float64(n)
	return math.Sqrt(varPlus / within)
}

// ESS computes the effective sample size for one parameter using Geyer's
// initial monotone sequence over the chain-averaged autocovariances. The
// estimate is capped at the nominal draw count.
func ESS(chains [][]float64) float64 {
	m := len(chains)
	if m == 0 {
		return 0
	}
	n := len(chains[0])
	for _, chain := range chains {
		if len(chain) < n {
			n = len(chain)
		}
	}
	total := float64(m * n)
	if n < 4 {
		return total
	}

	// Chain-averaged biased autocovariances and the pooled variance from
	// the same pieces R-hat uses.
	acov := make([]float64, n)
	var within float64
	means := make([]float64, m)
	for i, chain := range chains {
		mean, variance := stat.MeanVariance(chain[:n], nil)
		means[i] = mean
		within += variance
		for t := 0; t < n; t++ {
			var c float64
			for s := 0; s+t < n; s++ {
				c += (chain[s] - mean) * (chain[s+t] - mean)
			}
			acov[t] += c / float64(n)
		}
	}
	within /= float64(m)
	for t := range acov {
		acov[t] /= float64(m)
	}

	varPlus := float64(n-1) / float64(n) * within
	if m > 1 {
		varPlus += stat.Variance(means, nil)
	}
	if varPlus == 0 {
		return total
	}

	// Sum paired autocorrelations while they stay positive, then enforce
	// monotone decrease.
	rho := func(t int) float64 {
		return 1 - (within-acov[t])/varPlus
	}
	var tau float64
	prev := math.Inf(1)
	for k := 0; 2*k+1 < n; k++ {
		pair := rho(2*k) + rho(2*k+1)
		if pair <= 0 {
			break
		}
		if pair > prev {
			pair = prev
		}
		tau += pair
		prev = pair
	}
	tau = -1 + 2*tau
	if tau <= 0 {
		return total
	}

	ess := total / tau
	if ess > total {
		return total
	}
	return ess
}
