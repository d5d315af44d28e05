// Package scoring implements the hybrid scoring engine: it blends
// symbolic, compute, and value signals into a deterministic ranking.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"procura/internal/types"
)

// Blend weights for the three score components.
const (
	WeightSymbolic = 0.50
	WeightCompute  = 0.35
	WeightValue    = 0.15
)

// Weights for the compute sub-components.
const (
	computeWeightProcessor = 0.50
	computeWeightWarranty  = 0.30
	computeWeightShipping  = 0.20
)

// neutralComputeScore substitutes for candidates the compute stage never
// scored.
const neutralComputeScore = 0.5

// Input is one candidate plus whatever compute scores exist for it.
type Input struct {
	Candidate types.Candidate
	Compute   *types.ComputeScore // nil when the compute stage had no result
}

// Rank blends the three components for every input and returns the
// ranking: stable sort descending by final score, ties preserving input
// order. symbolicScores maps candidate id to an engine-derived score;
// candidates absent from the map use the fallback heuristic.
func Rank(inputs []Input, symbolicScores map[string]float64, budget float64) []types.RankedCandidate {
	ranked := make([]types.RankedCandidate, 0, len(inputs))

	for _, in := range inputs {
		symbolic, source := symbolicScore(in.Candidate, symbolicScores)
		compute := computeBlend(in.Compute)
		value := ValueScore(in.Candidate.Price, budget)

		final := WeightSymbolic*symbolic + WeightCompute*compute + WeightValue*value

		ranked = append(ranked, types.RankedCandidate{
			Candidate:     in.Candidate,
			FinalScore:    final,
			SymbolicScore: symbolic,
			ComputeScore:  compute,
			ValueScore:    value,
			Source:        source,
			Rationale: fmt.Sprintf("hybrid: symbolic=%.3f, compute=%.3f, value=%.3f (%s)",
				symbolic, compute, value, source),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

func symbolicScore(c types.Candidate, engineScores map[string]float64) (float64, types.SymbolicSource) {
	if s, ok := engineScores[c.ID]; ok {
		return s, types.SymbolicSourceEngine
	}
	return FallbackSymbolic(c), types.SymbolicSourceFallback
}

// FallbackSymbolic is the deterministic heuristic used when the symbolic
// engine yields no score for a candidate.
func FallbackSymbolic(c types.Candidate) float64 {
	perf := perfScore(c.Specs)
	rev := reviewSignal(c.Rating, c.ReviewCount)
	return 0.7*perf + 0.3*rev
}

// Two-level tier heuristics keyed on substring match.
func perfScore(s types.Specs) float64 {
	cpu := 0.65
	if strings.Contains(s.Processor, "i7") || strings.Contains(s.Processor, "Ryzen 7") {
		cpu = 0.85
	}
	gpu := 0.30
	if strings.Contains(s.GPU, "RTX") {
		gpu = 0.75
	}
	ram := float64(s.RAMGB) / 64.0
	return 0.4*cpu + 0.3*ram + 0.3*gpu
}

func reviewSignal(rating float64, reviews int) float64 {
	return (rating / 5.0) * math.Min(1.0, math.Max(0.0, float64(reviews)/500.0))
}

func computeBlend(cs *types.ComputeScore) float64 {
	proc, warr, ship := neutralComputeScore, neutralComputeScore, neutralComputeScore
	if cs != nil {
		proc, warr, ship = cs.ProcessorScore, cs.WarrantyScore, cs.ShippingScore
	}
	return computeWeightProcessor*proc + computeWeightWarranty*warr + computeWeightShipping*ship
}

// ValueScore rewards margin under budget and penalizes overruns at a
// reduced slope. The denominator is guarded against zero budgets.
func ValueScore(price, budget float64) float64 {
	denom := math.Max(budget, 1e-9)
	if price <= budget {
		return (budget - price) / denom
	}
	return -0.3 * (price - budget) / denom
}

// TopN returns the first n ranked entries, used purely for
// human-readable summaries.
func TopN(ranked []types.RankedCandidate, n int) []types.RankedCandidate {
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Summary formats a one-line top-3 digest of a ranking.
func Summary(ranked []types.RankedCandidate) string {
	if len(ranked) == 0 {
		return "No candidates scored."
	}
	parts := make([]string, 0, 3)
	for i, r := range TopN(ranked, 3) {
		parts = append(parts, fmt.Sprintf("%d. %s (%.2f)", i+1, r.Candidate.Model, r.FinalScore))
	}
	return "Top 3: " + strings.Join(parts, " | ")
}
