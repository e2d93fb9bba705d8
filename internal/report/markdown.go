package report

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Media Mix Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Model: %s | Run: %s\n\n", r.ModelID, r.RunID))

	// Fit Summary
	sb.WriteString("## Fit Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Fitted At | %s |\n", r.Fit.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Chains | %d |\n", r.Fit.Chains))
	sb.WriteString(fmt.Sprintf("| Draws / Chain | %d |\n", r.Fit.DrawsPerChain))
	sb.WriteString(fmt.Sprintf("| Warmup / Chain | %d |\n", r.Fit.Warmup))
	sb.WriteString(fmt.Sprintf("| Channels | %d |\n", r.Fit.Channels))
	sb.WriteString(fmt.Sprintf("| Controls | %d |\n", r.Fit.Controls))
	sb.WriteString(fmt.Sprintf("| Max R-hat | %.3f |\n", r.Fit.MaxRHat))
	sb.WriteString(fmt.Sprintf("| Min ESS | %.0f |\n", r.Fit.MinESS))
	sb.WriteString(fmt.Sprintf("| Divergences | %d |\n", r.Fit.Divergences))
	sb.WriteString(fmt.Sprintf("| Converged | %s |\n", convergenceLabel(r.Fit)))
	sb.WriteString("\n")

	if len(r.Fit.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, w := range r.Fit.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	// Posterior Parameters
	sb.WriteString("## Posterior Parameters\n\n")
	if len(r.Parameters) > 0 {
		sb.WriteString("| Parameter | Mean | SD | 2.5% | 97.5% | R-hat | ESS | Flags |\n")
		sb.WriteString("|-----------|------|----|------|-------|-------|-----|-------|\n")
		for _, p := range r.Parameters {
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f | %.4f | %.3f | %.0f | %s |\n",
				p.Name, p.Mean, p.SD, p.Q025, p.Q975, p.RHat, p.ESS, parameterFlags(p)))
		}
	} else {
		sb.WriteString("No parameter summaries available.\n")
	}
	sb.WriteString("\n")

	// Channel ROI
	sb.WriteString("## Channel ROI\n\n")
	if len(r.ROI.Rows) > 0 {
		sb.WriteString("| Channel | Spend | Contribution | 2.5% | 97.5% | ROI | 2.5% | 97.5% | Share |\n")
		sb.WriteString("|---------|-------|--------------|------|-------|-----|------|-------|-------|\n")
		for _, c := range r.ROI.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f | %.2f | %.2f | %.4f | %.4f | %.4f | %.4f |\n",
				c.Channel, c.TotalSpend,
				c.ContribMean, c.ContribLower, c.ContribUpper,
				c.ROIMean, c.ROILower, c.ROIUpper, c.Share))
		}
		sb.WriteString("\n")
		if r.ROI.Unstable {
			sb.WriteString(fmt.Sprintf("**Unstable result:** %.1f%% of posterior draws were excluded as non-finite.\n\n",
				r.ROI.ExcludedFraction*100))
		}
		for _, w := range r.ROI.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		if len(r.ROI.Warnings) > 0 {
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No ROI results available.\n\n")
	}

	// Budget Allocation
	sb.WriteString("## Budget Allocation\n\n")
	if len(r.Allocation.Rows) > 0 {
		sb.WriteString(fmt.Sprintf("Optimization: %s | Budget: %.2f\n\n",
			r.Allocation.OptimizationID, r.Allocation.TotalBudget))
		sb.WriteString(fmt.Sprintf("Expected response: %.2f [%.2f, %.2f]",
			r.Allocation.ExpectedMean, r.Allocation.ExpectedLower, r.Allocation.ExpectedUpper))
		if r.Allocation.Converged {
			sb.WriteString(fmt.Sprintf(" | Converged in %d iterations\n\n", r.Allocation.Iterations))
		} else {
			sb.WriteString(" | **Did not converge**\n\n")
		}
		sb.WriteString("| Channel | Current | Optimized | Delta | Marginal | Bound |\n")
		sb.WriteString("|---------|---------|-----------|-------|----------|-------|\n")
		for _, a := range r.Allocation.Rows {
			bound := a.Bound
			if bound == "" {
				bound = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f | %+.2f | %.6f | %s |\n",
				a.Channel, a.Current, a.Optimized, a.Delta, a.Marginal, bound))
		}
	} else {
		sb.WriteString("No optimization results available.\n")
	}
	sb.WriteString("\n")

	// Validation
	sb.WriteString("## Validation\n\n")
	if len(r.Validation.Criteria) > 0 {
		sb.WriteString(fmt.Sprintf("Verdict: **%s**\n\n", r.Validation.Verdict))
		sb.WriteString("| Criterion | Threshold | Actual | Status |\n")
		sb.WriteString("|-----------|-----------|--------|--------|\n")
		for _, c := range r.Validation.Criteria {
			status := "FAIL"
			if c.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				c.Name, c.Threshold, c.Actual, status))
		}
	} else {
		sb.WriteString("No validation run.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// convergenceLabel folds the two-level convergence outcome into one cell.
func convergenceLabel(f FitSection) string {
	switch {
	case f.Strict:
		return "yes (strict)"
	case f.Converged:
		return "yes"
	default:
		return "NO"
	}
}

// parameterFlags names the thresholds a parameter breached, or "-".
func parameterFlags(p ParameterRow) string {
	var flags []string
	if !p.RHatOK {
		flags = append(flags, "r-hat")
	}
	if !p.ESSOK {
		flags = append(flags, "ess")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ", ")
}
