package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"procura/internal/correlation"
	"procura/internal/negotiation"
	"procura/internal/scoring"
	"procura/internal/types"
)

// handleDiscovery runs the catalog stage. An empty candidate set fails
// the pipeline without touching any downstream collaborator.
func (d *Driver) handleDiscovery(ctx context.Context, id string) bool {
	if err := d.advance(id, types.StateReceived, types.StateDiscovering, nil); err != nil {
		d.fail(id, "Could not start discovery.", err)
		return false
	}
	d.notifier.Publish(id, "Scouting suppliers for matching laptops", false, false)

	entry, err := d.store.Get(id)
	if err != nil {
		d.fail(id, "Request state unavailable.", err)
		return false
	}

	sctx, cancel := d.stageCtx(ctx)
	candidates, err := d.discoverer.Discover(sctx, entry.Requirement)
	cancel()
	if err != nil {
		d.fail(id, "Catalog discovery failed.", fmt.Errorf("%w: %v", ErrCollaborator, err))
		return false
	}
	if len(candidates) == 0 {
		d.fail(id, "No laptops matched the requirements.", ErrEmptyStage)
		return false
	}

	err = d.store.Update(id, func(e *correlation.Entry) error {
		if e.Terminal {
			return errAlreadyTerminal
		}
		e.Candidates = candidates
		return nil
	})
	if err != nil {
		d.fail(id, "Could not record discovery results.", err)
		return false
	}

	d.notifier.Publish(id, fmt.Sprintf("Found %d candidate laptops", len(candidates)), false, false)
	return true
}

// handleComputeScoring submits the discovered candidates to the compute
// collaborator. A scoring failure fails the pipeline; the hybrid engine
// only substitutes neutral scores for candidates the collaborator
// individually skipped, never for a wholesale stage failure.
func (d *Driver) handleComputeScoring(ctx context.Context, id string) bool {
	if err := d.advance(id, types.StateDiscovering, types.StateComputeScoring, nil); err != nil {
		d.fail(id, "Could not start compute scoring.", err)
		return false
	}

	entry, err := d.store.Get(id)
	if err != nil {
		d.fail(id, "Request state unavailable.", err)
		return false
	}
	d.notifier.Publish(id, fmt.Sprintf("Submitting %d candidates for compute scoring", len(entry.Candidates)), false, false)

	sctx, cancel := d.stageCtx(ctx)
	scored, err := d.compute.Score(sctx, entry.Candidates)
	cancel()
	if err != nil {
		d.fail(id, "Compute scoring failed.", fmt.Errorf("%w: %v", ErrCollaborator, err))
		return false
	}
	if len(scored) == 0 {
		d.fail(id, "Compute scoring returned no results.", ErrEmptyStage)
		return false
	}

	err = d.store.Update(id, func(e *correlation.Entry) error {
		if e.Terminal {
			return errAlreadyTerminal
		}
		e.Scored = scored
		return nil
	})
	if err != nil {
		d.fail(id, "Could not record compute scores.", err)
		return false
	}

	d.notifier.Publish(id, fmt.Sprintf("Compute scoring complete (job %s on %s)",
		scored[0].Meta.JobID, scored[0].Meta.Network), false, false)
	return true
}

// handleEvaluation runs the symbolic engine and blends the ranking. A
// symbolic failure degrades to the fallback heuristic instead of
// failing the request.
func (d *Driver) handleEvaluation(ctx context.Context, id string) bool {
	if err := d.advance(id, types.StateComputeScoring, types.StateEvaluating, nil); err != nil {
		d.fail(id, "Could not start evaluation.", err)
		return false
	}

	entry, err := d.store.Get(id)
	if err != nil {
		d.fail(id, "Request state unavailable.", err)
		return false
	}
	d.notifier.Publish(id, fmt.Sprintf("Evaluating candidates (symbolic engine: %s)", d.symbolic.Name()), false, false)

	sctx, cancel := d.stageCtx(ctx)
	engineScores, err := d.symbolic.Score(sctx, entry.Candidates, entry.Requirement)
	cancel()
	if err != nil {
		d.logger.Warn("symbolic engine failed, degrading to fallback",
			zap.String("request_id", id),
			zap.String("engine", d.symbolic.Name()),
			zap.Error(err))
		d.notifier.Publish(id, "Symbolic engine unavailable, using fallback heuristic", false, false)
		engineScores = nil
	}

	inputs := make([]scoring.Input, 0, len(entry.Candidates))
	byID := make(map[string]*types.ComputeScore, len(entry.Scored))
	for i := range entry.Scored {
		byID[entry.Scored[i].Candidate.ID] = &entry.Scored[i].Scores
	}
	for _, c := range entry.Candidates {
		inputs = append(inputs, scoring.Input{Candidate: c, Compute: byID[c.ID]})
	}

	ranked := scoring.Rank(inputs, engineScores, entry.Requirement.MaxBudgetPerUnit)
	if len(ranked) == 0 {
		d.fail(id, "Evaluation produced no ranking.", ErrEmptyStage)
		return false
	}

	err = d.store.Update(id, func(e *correlation.Entry) error {
		if e.Terminal {
			return errAlreadyTerminal
		}
		e.Ranked = ranked
		return nil
	})
	if err != nil {
		d.fail(id, "Could not record the ranking.", err)
		return false
	}

	d.notifier.Publish(id, scoring.Summary(ranked), false, false)
	return true
}

// handleNegotiation resolves bulk pricing for the top-ranked candidate
// and settles the request. Rejected outcomes settle too.
func (d *Driver) handleNegotiation(ctx context.Context, id string) {
	if err := d.advance(id, types.StateEvaluating, types.StateNegotiating, nil); err != nil {
		d.fail(id, "Could not start negotiation.", err)
		return
	}

	entry, err := d.store.Get(id)
	if err != nil {
		d.fail(id, "Request state unavailable.", err)
		return
	}
	top := entry.Ranked[0]
	d.notifier.Publish(id, fmt.Sprintf("Negotiating bulk pricing for %s (%d units)",
		top.Candidate.Model, entry.Requirement.Quantity), false, false)

	outcome := negotiation.Resolve(negotiation.Request{
		Candidate:       top.Candidate,
		Quantity:        entry.Requirement.Quantity,
		TargetUnitPrice: entry.Requirement.MaxBudgetPerUnit,
	})
	d.settle(id, outcome)
}
