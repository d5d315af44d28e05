package pipeline

import "errors"

var (
	// ErrEmptyStage means a stage returned zero usable items. This is a
	// first-class terminal outcome, not an exception: the pipeline
	// recovers it into FAILED with a human-readable note.
	ErrEmptyStage = errors.New("pipeline: stage returned no usable items")

	// ErrCollaborator wraps a timeout, malformed response, or error
	// from an external collaborator call.
	ErrCollaborator = errors.New("pipeline: collaborator failure")

	// ErrStateConflict means a stage response arrived for an entry that
	// is not in the expected state, e.g. a duplicate or stale message.
	// Contract violation: logged loudly and the request marked FAILED.
	ErrStateConflict = errors.New("pipeline: state conflict")

	// errAlreadyTerminal short-circuits terminal handling when another
	// path already settled the request. Internal only: it guarantees at
	// most one terminal signal per request id.
	errAlreadyTerminal = errors.New("pipeline: request already terminal")
)
