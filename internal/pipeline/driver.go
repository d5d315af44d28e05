// Package pipeline implements the orchestration core: the per-request
// state machine that sequences stage transitions, dispatches work to
// collaborators, and guarantees exactly one terminal signal per request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procura/internal/correlation"
	"procura/internal/notify"
	"procura/internal/symbolic"
	"procura/internal/types"
)

// Discoverer is the catalog collaborator boundary.
type Discoverer interface {
	Discover(ctx context.Context, req types.Requirement) ([]types.Candidate, error)
}

// ComputeScorer is the compute-cluster collaborator boundary.
type ComputeScorer interface {
	Score(ctx context.Context, candidates []types.Candidate) ([]types.ScoredCandidate, error)
}

// FinalSink receives the composed terminal message for a caller handle.
// Delivery failures are the sink's problem; the pipeline never blocks or
// fails on them.
type FinalSink interface {
	Deliver(caller, requestID, message string)
}

// noopSink drops final messages; callers that only watch the event
// stream do not need out-of-band delivery.
type noopSink struct{}

func (noopSink) Deliver(string, string, string) {}

// Deps wires the driver's collaborators and infrastructure.
type Deps struct {
	Store      *correlation.Store
	Notifier   *notify.Notifier
	Discoverer Discoverer
	Compute    ComputeScorer
	Symbolic   symbolic.Scorer
	Final      FinalSink // optional
	Logger     *zap.Logger
}

// Driver sequences the procurement pipeline for each submitted request.
type Driver struct {
	store        *correlation.Store
	notifier     *notify.Notifier
	discoverer   Discoverer
	compute      ComputeScorer
	symbolic     symbolic.Scorer
	final        FinalSink
	stageTimeout time.Duration
	logger       *zap.Logger
}

// NewDriver creates a driver. stageTimeout bounds every collaborator
// call; a collaborator that exceeds it fails that request's pipeline
// instead of hanging it.
func NewDriver(deps Deps, stageTimeout time.Duration) *Driver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	final := deps.Final
	if final == nil {
		final = noopSink{}
	}
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Second
	}
	return &Driver{
		store:        deps.Store,
		notifier:     deps.Notifier,
		discoverer:   deps.Discoverer,
		compute:      deps.Compute,
		symbolic:     deps.Symbolic,
		final:        final,
		stageTimeout: stageTimeout,
		logger:       logger.Named("pipeline"),
	}
}

// Submit validates the requirement, registers the request, and drives
// the pipeline asynchronously. The request id returns immediately; the
// outcome is observed via the event stream and the FinalSink.
func (d *Driver) Submit(ctx context.Context, req types.Requirement, caller string) (string, error) {
	if req.Quantity < 1 {
		return "", fmt.Errorf("quantity must be at least 1, got %d", req.Quantity)
	}
	if req.MaxBudgetPerUnit <= 0 {
		return "", fmt.Errorf("max budget per unit must be positive, got %g", req.MaxBudgetPerUnit)
	}

	id := uuid.NewString()
	if err := d.store.Create(id, caller, req); err != nil {
		return "", err
	}

	d.notifier.Publish(id, "Request accepted", false, false)
	d.notifier.Publish(id, fmt.Sprintf("use_case=%s qty=%d budget=$%g",
		req.UseCase, req.Quantity, req.MaxBudgetPerUnit), false, false)

	d.logger.Info("request submitted",
		zap.String("request_id", id),
		zap.String("use_case", string(req.UseCase)),
		zap.Int("quantity", req.Quantity))

	// The pipeline outlives the submitting call (an HTTP handler,
	// typically); stage timeouts bound each hop.
	go d.run(context.WithoutCancel(ctx), id)
	return id, nil
}

// run sequences the stages for one request. Each handler reads its
// input from the correlation entry's latest recorded fields, never from
// values captured at an earlier stage.
func (d *Driver) run(ctx context.Context, id string) {
	if !d.handleDiscovery(ctx, id) {
		return
	}
	if !d.handleComputeScoring(ctx, id) {
		return
	}
	if !d.handleEvaluation(ctx, id) {
		return
	}
	d.handleNegotiation(ctx, id)
}

// stageCtx bounds a single collaborator call.
func (d *Driver) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.stageTimeout)
}

// advance moves the entry from one state to the next, applying mutate
// to record the stage output. Fails with ErrStateConflict if the entry
// is not in the expected state, which catches duplicate or stale stage
// responses.
func (d *Driver) advance(id string, from, to types.State, mutate func(*correlation.Entry)) error {
	return d.store.Update(id, func(e *correlation.Entry) error {
		if e.Terminal {
			return errAlreadyTerminal
		}
		if e.State != from {
			return fmt.Errorf("%w: %s is %s, expected %s", ErrStateConflict, id, e.State, from)
		}
		if mutate != nil {
			mutate(e)
		}
		e.State = to
		return nil
	})
}

// fail settles the request as FAILED with a user-visible note and an
// error-flagged terminal event. Safe to call from any stage; if the
// request is already terminal it does nothing, preserving the
// exactly-one-terminal-signal guarantee.
func (d *Driver) fail(id, note string, cause error) {
	err := d.store.Update(id, func(e *correlation.Entry) error {
		if e.Terminal {
			return errAlreadyTerminal
		}
		e.State = types.StateFailed
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyTerminal):
		return
	case errors.Is(err, correlation.ErrNotFound):
		// Contract violation: a stage response for an id we never saw.
		d.logger.Error("terminal failure for unknown request",
			zap.String("request_id", id), zap.NamedError("cause", cause))
		return
	case err != nil:
		d.logger.Error("failed to record terminal state",
			zap.String("request_id", id), zap.Error(err))
	}

	if cause != nil {
		d.logger.Warn("pipeline failed",
			zap.String("request_id", id),
			zap.String("note", note),
			zap.Error(cause))
	} else {
		d.logger.Info("pipeline failed",
			zap.String("request_id", id),
			zap.String("note", note))
	}

	d.notifier.Publish(id, note, false, true)
	if entry, err := d.store.Get(id); err == nil {
		d.final.Deliver(entry.Caller, id, failureSummary(note))
	}
}

// settle records the negotiation outcome and emits the single done
// terminal event. Rejected negotiations settle too: rejection is a
// failed-to-meet-budget result, not an error.
func (d *Driver) settle(id string, outcome types.NegotiationOutcome) {
	err := d.advance(id, types.StateNegotiating, types.StateSettled, func(e *correlation.Entry) {
		o := outcome
		e.Outcome = &o
	})
	switch {
	case errors.Is(err, errAlreadyTerminal):
		return
	case err != nil:
		d.fail(id, "Failed to record negotiation outcome.", err)
		return
	}

	entry, err := d.store.Get(id)
	if err != nil {
		d.logger.Error("settled entry vanished", zap.String("request_id", id), zap.Error(err))
		return
	}

	if outcome.Accepted {
		d.notifier.Publish(id, fmt.Sprintf(
			"Deal secured: %s at $%.2f/unit (discount %g%%), total $%.2f",
			entry.Ranked[0].Candidate.Model, outcome.FinalUnitPrice,
			outcome.DiscountPct, outcome.TotalCost), true, false)
	} else {
		d.notifier.Publish(id, "Negotiation rejected: "+outcome.Note, true, false)
	}

	d.logger.Info("request settled",
		zap.String("request_id", id),
		zap.Bool("accepted", outcome.Accepted),
		zap.Float64("final_unit_price", outcome.FinalUnitPrice))

	d.final.Deliver(entry.Caller, id, settlementSummary(entry))
}
