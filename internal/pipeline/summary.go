package pipeline

import (
	"fmt"
	"strings"

	"procura/internal/correlation"
	"procura/internal/scoring"
)

// settlementSummary composes the final message handed back to the
// caller once a request settles. Assumes Ranked and Outcome are set.
func settlementSummary(e correlation.Entry) string {
	top := e.Ranked[0]
	out := e.Outcome

	var b strings.Builder
	if out.Accepted {
		fmt.Fprintf(&b, "Procurement complete: %d x %s (%s) from %s.\n",
			e.Requirement.Quantity, top.Candidate.Model, top.Candidate.Brand, top.Candidate.Supplier)
		fmt.Fprintf(&b, "Unit price $%.2f after %g%% bulk discount (list $%.2f).\n",
			out.FinalUnitPrice, out.DiscountPct, out.OriginalPrice)
		fmt.Fprintf(&b, "Total $%.2f, savings $%.2f.\n", out.TotalCost, out.Savings)
	} else {
		fmt.Fprintf(&b, "Procurement concluded without a deal for %d x %s.\n",
			e.Requirement.Quantity, top.Candidate.Model)
		fmt.Fprintf(&b, "%s\n", out.Note)
	}
	fmt.Fprintf(&b, "%s\n", scoring.Summary(e.Ranked))
	fmt.Fprintf(&b, "Selection rationale: %s", top.Rationale)
	return b.String()
}

// failureSummary composes the final message for a failed request.
func failureSummary(note string) string {
	return "Procurement failed: " + note
}
