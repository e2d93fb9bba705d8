package report

import (
	"fmt"
	"strings"
)

// RenderROICSV renders the channel attribution table as CSV string.
func RenderROICSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("channel,total_spend,contribution_mean,contribution_q025,contribution_q975,")
	sb.WriteString("roi_mean,roi_q025,roi_q975,share\n")

	// Rows
	for _, c := range r.ROI.Rows {
		sb.WriteString(fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,%.6f,%.6f,%.6f,%.6f\n",
			c.Channel,
			c.TotalSpend,
			c.ContribMean,
			c.ContribLower,
			c.ContribUpper,
			c.ROIMean,
			c.ROILower,
			c.ROIUpper,
			c.Share,
		))
	}

	return sb.String()
}

// RenderAllocationCSV renders the budget allocation table as CSV string.
func RenderAllocationCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("channel,current,optimized,delta,marginal,bound\n")

	// Rows
	for _, a := range r.Allocation.Rows {
		sb.WriteString(fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.6f,%s\n",
			a.Channel,
			a.Current,
			a.Optimized,
			a.Delta,
			a.Marginal,
			a.Bound,
		))
	}

	return sb.String()
}
