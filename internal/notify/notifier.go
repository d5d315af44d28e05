// Package notify implements the per-request event stream consumed by the
// requester-facing layer. Streams have queue semantics, not log
// semantics: events are retained until consumed, and a subscriber that
// attaches late only sees events not yet delivered to anyone.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"procura/internal/types"
)

type stream struct {
	mu       sync.Mutex
	ch       chan types.Event
	sealed   bool // a done/error event has been published and the channel closed
	closedAt time.Time
}

// Notifier fans per-request events out to subscribers. Publishing never
// blocks the pipeline: when a stream's buffer is full the event is
// dropped and counted, never retried.
type Notifier struct {
	mu      sync.RWMutex
	streams map[string]*stream

	bufSize   int
	retention time.Duration
	dropped   atomic.Int64
	logger    *zap.Logger
}

// NewNotifier creates a notifier with the given per-stream buffer size.
// Sealed streams are retained for the retention window so late
// subscribers can still drain buffered events, then swept.
func NewNotifier(bufSize int, retention time.Duration, logger *zap.Logger) *Notifier {
	if bufSize <= 0 {
		bufSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		streams:   make(map[string]*stream),
		bufSize:   bufSize,
		retention: retention,
		logger:    logger.Named("notify"),
	}
}

func (n *Notifier) get(id string) *stream {
	n.mu.RLock()
	st, ok := n.streams[id]
	n.mu.RUnlock()
	if ok {
		return st
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if st, ok = n.streams[id]; ok {
		return st
	}
	st = &stream{ch: make(chan types.Event, n.bufSize)}
	n.streams[id] = st
	return st
}

// Publish appends an event to the id's stream, creating the stream
// lazily. An event flagged done or error seals the stream: the channel
// is closed after the event is delivered, and later publishes for the
// id are dropped.
func (n *Notifier) Publish(id, message string, done, isErr bool) {
	st := n.get(id)
	ev := types.Event{
		RequestID: id,
		Message:   message,
		Done:      done,
		Error:     isErr,
		At:        time.Now().UTC(),
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.sealed {
		n.dropped.Add(1)
		n.logger.Debug("dropped event for sealed stream", zap.String("request_id", id))
		return
	}

	select {
	case st.ch <- ev:
	default:
		n.dropped.Add(1)
		n.logger.Warn("event buffer full, dropping event",
			zap.String("request_id", id),
			zap.String("message", message))
	}

	// A terminal event seals the stream even when its payload was
	// dropped: subscribers rely on the closed channel as the close
	// marker, so the seal must not depend on buffer capacity.
	if done || isErr {
		st.sealed = true
		st.closedAt = time.Now()
		close(st.ch)
	}
}

// Subscribe returns the id's event channel, creating the stream lazily.
// The channel delivers events in publish order and is closed after a
// done- or error-flagged event; a closed channel is the close marker.
// Buffered events published before subscription are still delivered.
func (n *Notifier) Subscribe(id string) <-chan types.Event {
	return n.get(id).ch
}

// Dropped returns the number of events discarded due to full buffers or
// sealed streams.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Streams returns the number of live streams.
func (n *Notifier) Streams() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.streams)
}

// Sweep removes sealed streams past the retention window. Returns the
// number of streams removed.
func (n *Notifier) Sweep(now time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	removed := 0
	for id, st := range n.streams {
		st.mu.Lock()
		expired := st.sealed && now.Sub(st.closedAt) > n.retention
		st.mu.Unlock()
		if expired {
			delete(n.streams, id)
			removed++
		}
	}
	if removed > 0 {
		n.logger.Debug("swept closed streams", zap.Int("removed", removed))
	}
	return removed
}

// RunJanitor sweeps sealed streams on the given interval until ctx is
// cancelled.
func (n *Notifier) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			n.Sweep(now)
		}
	}
}
