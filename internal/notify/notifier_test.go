package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"procura/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(t *testing.T, ch <-chan types.Event) []types.Event {
	t.Helper()
	var out []types.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestNotifier_PublishOrder(t *testing.T) {
	n := NewNotifier(16, time.Minute, nil)

	n.Publish("req-1", "one", false, false)
	n.Publish("req-1", "two", false, false)
	n.Publish("req-1", "done", true, false)

	events := drain(t, n.Subscribe("req-1"))
	require.Len(t, events, 3)
	assert.Equal(t, "one", events[0].Message)
	assert.Equal(t, "two", events[1].Message)
	assert.Equal(t, "done", events[2].Message)
	assert.True(t, events[2].Done)
}

func TestNotifier_LateSubscriberSeesBufferedEvents(t *testing.T) {
	n := NewNotifier(16, time.Minute, nil)

	n.Publish("req-1", "before subscribe", false, false)
	n.Publish("req-1", "terminal", true, false)

	events := drain(t, n.Subscribe("req-1"))
	require.Len(t, events, 2)
	assert.Equal(t, "before subscribe", events[0].Message)
}

func TestNotifier_SealedStreamDropsLatePublishes(t *testing.T) {
	n := NewNotifier(16, time.Minute, nil)

	n.Publish("req-1", "terminal", false, true)
	n.Publish("req-1", "after close", false, false)

	events := drain(t, n.Subscribe("req-1"))
	require.Len(t, events, 1)
	assert.True(t, events[0].Error)
	assert.Equal(t, int64(1), n.Dropped())
}

func TestNotifier_FullBufferDropsNotBlocks(t *testing.T) {
	n := NewNotifier(2, time.Minute, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			n.Publish("req-1", fmt.Sprintf("event %d", i), false, false)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	assert.Equal(t, int64(8), n.Dropped())
}

func TestNotifier_TerminalEventSealsFullBuffer(t *testing.T) {
	n := NewNotifier(2, time.Minute, nil)

	n.Publish("req-1", "filler 1", false, false)
	n.Publish("req-1", "filler 2", false, false)
	n.Publish("req-1", "terminal", true, false)

	// The terminal payload was dropped, but the channel still closes
	// so subscribers see the close marker.
	events := drain(t, n.Subscribe("req-1"))
	require.Len(t, events, 2)
	assert.Equal(t, "filler 1", events[0].Message)
	assert.Equal(t, "filler 2", events[1].Message)
	assert.Equal(t, int64(1), n.Dropped())

	n.Publish("req-1", "after close", false, false)
	assert.Equal(t, int64(2), n.Dropped())
}

func TestNotifier_StreamsAreIndependent(t *testing.T) {
	n := NewNotifier(16, time.Minute, nil)

	n.Publish("req-a", "a1", true, false)
	n.Publish("req-b", "b1", false, false)
	n.Publish("req-b", "b2", true, false)

	a := drain(t, n.Subscribe("req-a"))
	b := drain(t, n.Subscribe("req-b"))
	require.Len(t, a, 1)
	require.Len(t, b, 2)
	assert.Equal(t, "req-a", a[0].RequestID)
	assert.Equal(t, "req-b", b[0].RequestID)
}

func TestNotifier_Sweep(t *testing.T) {
	n := NewNotifier(16, 50*time.Millisecond, nil)

	n.Publish("sealed", "done", true, false)
	n.Publish("open", "in progress", false, false)
	require.Equal(t, 2, n.Streams())

	t.Run("retains sealed streams inside the window", func(t *testing.T) {
		assert.Equal(t, 0, n.Sweep(time.Now()))
	})

	t.Run("removes sealed streams past the window", func(t *testing.T) {
		assert.Equal(t, 1, n.Sweep(time.Now().Add(time.Second)))
		assert.Equal(t, 1, n.Streams())
	})

	t.Run("never removes open streams", func(t *testing.T) {
		assert.Equal(t, 0, n.Sweep(time.Now().Add(time.Hour)))
		assert.Equal(t, 1, n.Streams())
	})
}
