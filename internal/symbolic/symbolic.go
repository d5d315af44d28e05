// Package symbolic provides the pluggable symbolic scoring capability
// used by the hybrid scoring engine. Two implementations exist: a
// Datalog engine backed by Google Mangle, and a no-op that forces the
// deterministic fallback heuristic. The implementation is selected once
// at startup via configuration, never by runtime feature probing.
package symbolic

import (
	"context"

	"procura/internal/types"
)

// Scorer produces per-candidate symbolic suitability scores in [0,1].
// A candidate absent from the returned map means "no score: use the
// fallback heuristic for it". An error means the whole engine failed and
// every candidate falls back.
type Scorer interface {
	Name() string
	Score(ctx context.Context, candidates []types.Candidate, req types.Requirement) (map[string]float64, error)
}

// Heuristic is the degraded capability: it never yields scores, so the
// scoring engine's fallback path handles every candidate.
type Heuristic struct{}

// Name implements Scorer.
func (Heuristic) Name() string { return "heuristic" }

// Score implements Scorer. It always returns an empty score map.
func (Heuristic) Score(context.Context, []types.Candidate, types.Requirement) (map[string]float64, error) {
	return map[string]float64{}, nil
}
