package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func onMessage(id string) func(ReactionEvent) bool {
	return func(ev ReactionEvent) bool { return ev.MessageID == id }
}

func waitPending(t *testing.T, w *Waiter[ReactionEvent], n int) {
	t.Helper()
	require.Eventually(t, func() bool { return w.Pending() == n }, time.Second, time.Millisecond)
}

func TestWaiter_NextMatches(t *testing.T) {
	w := NewWaiter[ReactionEvent]()

	got := make(chan ReactionEvent, 1)
	go func() {
		ev, err := w.Next(context.Background(), onMessage("m1"), time.Minute)
		assert.NoError(t, err)
		got <- ev
	}()
	waitPending(t, w, 1)

	assert.Equal(t, 0, w.Publish(ReactionEvent{MessageID: "other", Emoji: "▶"}))
	assert.Equal(t, 1, w.Publish(ReactionEvent{MessageID: "m1", Emoji: "▶"}))

	ev := <-got
	assert.Equal(t, "▶", ev.Emoji)
	assert.Equal(t, 0, w.Pending())
}

func TestWaiter_SingleFire(t *testing.T) {
	w := NewWaiter[ReactionEvent]()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.Next(context.Background(), onMessage("m1"), time.Minute)
	}()
	waitPending(t, w, 1)

	assert.Equal(t, 1, w.Publish(ReactionEvent{MessageID: "m1"}))
	assert.Equal(t, 0, w.Publish(ReactionEvent{MessageID: "m1"}))
	<-done
}

func TestWaiter_Timeout(t *testing.T) {
	w := NewWaiter[ReactionEvent]()

	start := time.Now()
	_, err := w.Next(context.Background(), onMessage("m1"), 20*time.Millisecond)
	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 0, w.Pending())

	// Nothing is listening any more.
	assert.Equal(t, 0, w.Publish(ReactionEvent{MessageID: "m1"}))
}

func TestWaiter_ContextCanceled(t *testing.T) {
	w := NewWaiter[ReactionEvent]()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := w.Next(ctx, onMessage("m1"), 0)
		errCh <- err
	}()
	waitPending(t, w, 1)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, w.Pending())
}

func TestWaiter_RaceWithDeadline(t *testing.T) {
	// A registration must yield exactly one outcome even when an event and
	// the deadline arrive together.
	for i := 0; i < 50; i++ {
		w := NewWaiter[ReactionEvent]()
		var matched, timedOut atomic.Int32
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Next(context.Background(), onMessage("m1"), time.Millisecond)
			if err == nil {
				matched.Add(1)
			} else if errors.Is(err, ErrWaitTimeout) {
				timedOut.Add(1)
			}
		}()
		time.Sleep(time.Millisecond)
		fired := w.Publish(ReactionEvent{MessageID: "m1"})
		wg.Wait()

		assert.Equal(t, int32(1), matched.Load()+timedOut.Load())
		assert.Equal(t, int32(fired), matched.Load())
	}
}

func TestWaiter_WaitForEvent(t *testing.T) {
	w := NewWaiter[ReactionEvent]()

	matched := make(chan ReactionEvent, 1)
	w.WaitForEvent(context.Background(), onMessage("m1"), func(ev ReactionEvent) { matched <- ev }, time.Minute, func() {
		t.Error("unexpected timeout")
	})
	waitPending(t, w, 1)
	w.Publish(ReactionEvent{MessageID: "m1", UserID: "u1"})
	assert.Equal(t, "u1", (<-matched).UserID)

	timedOut := make(chan struct{})
	w.WaitForEvent(context.Background(), onMessage("m2"), func(ReactionEvent) {
		t.Error("unexpected match")
	}, 10*time.Millisecond, func() { close(timedOut) })
	<-timedOut
}
