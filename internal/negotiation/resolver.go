// Package negotiation selects a bulk-discount outcome for the top-ranked
// candidate. Pure computation: no external calls, no state.
package negotiation

import (
	"fmt"
	"sort"

	"procura/internal/types"
)

// Request carries everything the resolver needs for one decision.
type Request struct {
	Candidate       types.Candidate
	Quantity        int
	TargetUnitPrice float64 // 0 means no target constraint
}

// Resolve picks the highest-threshold bulk tier the quantity qualifies
// for and decides accept/reject against the optional target unit price.
// A rejection is a failed-to-meet-budget result, not an error.
func Resolve(req Request) types.NegotiationOutcome {
	price := req.Candidate.Price

	tiers := append([]types.BulkTier(nil), req.Candidate.BulkPricing...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinQty > tiers[j].MinQty
	})

	discount := 0.0
	for _, tier := range tiers {
		if req.Quantity >= tier.MinQty {
			discount = tier.DiscountPct
			break
		}
	}

	finalUnit := price * (1 - discount/100)
	total := finalUnit * float64(req.Quantity)
	savings := (price - finalUnit) * float64(req.Quantity)

	accepted := true
	note := fmt.Sprintf("Applied %g%% bulk discount for %d units", discount, req.Quantity)
	if req.TargetUnitPrice > 0 && finalUnit > req.TargetUnitPrice {
		accepted = false
		note = fmt.Sprintf("Final price $%.2f exceeds target $%.2f", finalUnit, req.TargetUnitPrice)
	}

	return types.NegotiationOutcome{
		Accepted:       accepted,
		OriginalPrice:  price,
		FinalUnitPrice: finalUnit,
		TotalCost:      total,
		DiscountPct:    discount,
		Savings:        savings,
		Note:           note,
	}
}
