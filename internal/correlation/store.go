// Package correlation implements the per-request state store that threads
// pipeline state across asynchronous stage hops. Entries are keyed by
// request id; each id is owned by a single pipeline at a time, but the
// store itself tolerates concurrent access from many pipelines.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"procura/internal/types"
)

var (
	// ErrNotFound means the request id has no entry. This is a
	// programming-contract violation, not a recoverable condition.
	ErrNotFound = errors.New("correlation: request id not found")

	// ErrConflict means an entry already exists for the request id.
	ErrConflict = errors.New("correlation: request id already exists")
)

// Entry is the evolving per-request context. Stage handlers mutate it
// exactly once per stage via Store.Update; everyone else sees snapshots.
type Entry struct {
	RequestID   string
	Caller      string
	Requirement types.Requirement
	State       types.State

	Candidates []types.Candidate
	Scored     []types.ScoredCandidate
	Ranked     []types.RankedCandidate
	Outcome    *types.NegotiationOutcome

	Terminal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// clone returns a snapshot with its own slice headers so callers cannot
// mutate stored state through a returned Entry.
func (e *Entry) clone() Entry {
	out := *e
	if e.Candidates != nil {
		out.Candidates = append([]types.Candidate(nil), e.Candidates...)
	}
	if e.Scored != nil {
		out.Scored = append([]types.ScoredCandidate(nil), e.Scored...)
	}
	if e.Ranked != nil {
		out.Ranked = append([]types.RankedCandidate(nil), e.Ranked...)
	}
	if e.Outcome != nil {
		o := *e.Outcome
		out.Outcome = &o
	}
	return out
}

type slot struct {
	mu        sync.Mutex // serializes updates to this id
	entry     Entry
	expiresAt time.Time // zero until the entry goes terminal
}

// Store is an in-memory correlation store with completion-triggered
// eviction: terminal entries are retained for a grace TTL, then reaped.
type Store struct {
	mu     sync.RWMutex
	slots  map[string]*slot
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a store. Terminal entries live for ttl before the
// reaper removes them; non-terminal entries are never evicted.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		slots:  make(map[string]*slot),
		ttl:    ttl,
		logger: logger.Named("correlation"),
	}
}

// Create registers a new entry for id. Fails with ErrConflict if the id
// is already known.
func (s *Store) Create(id, caller string, req types.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[id]; ok {
		return fmt.Errorf("%w: %s", ErrConflict, id)
	}

	now := time.Now()
	s.slots[id] = &slot{entry: Entry{
		RequestID:   id,
		Caller:      caller,
		Requirement: req,
		State:       types.StateReceived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	return nil
}

// Update applies fn to the entry for id under the per-id critical
// section. Updates to different ids do not block each other. Fails with
// ErrNotFound if the id is unknown; fn errors abort the update.
func (s *Store) Update(id string, fn func(*Entry) error) error {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if err := fn(&sl.entry); err != nil {
		return err
	}
	sl.entry.UpdatedAt = time.Now()
	if sl.entry.State.Terminal() {
		sl.entry.Terminal = true
		if sl.expiresAt.IsZero() {
			sl.expiresAt = time.Now().Add(s.ttl)
		}
	}
	return nil
}

// Get returns the current snapshot for id, or ErrNotFound.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.entry.clone(), nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Reap removes terminal entries whose grace TTL has expired. Returns the
// number of entries removed.
func (s *Store) Reap(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sl := range s.slots {
		if !sl.expiresAt.IsZero() && now.After(sl.expiresAt) {
			delete(s.slots, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("reaped terminal entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(s.slots)))
	}
	return removed
}

// RunReaper sweeps expired entries on the given interval until ctx is
// cancelled. Intended to run as a background task for the lifetime of
// the process.
func (s *Store) RunReaper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Reap(now)
		}
	}
}
