package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrWaitTimeout = errors.New("wait timed out")

// Waiter delivers published events to single-fire conditional registrations.
// Each registration receives at most one event, and a registration that times
// out or is canceled never receives one.
type Waiter[E any] struct {
	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*registration[E]
}

type registration[E any] struct {
	match func(E) bool
	ch    chan E
}

func NewWaiter[E any]() *Waiter[E] {
	return &Waiter[E]{pending: make(map[uint64]*registration[E])}
}

// Publish offers ev to every pending registration and returns how many fired.
// Predicates run without the lock held, so they may block on network calls.
func (w *Waiter[E]) Publish(ev E) int {
	w.mu.Lock()
	ids := make([]uint64, 0, len(w.pending))
	regs := make([]*registration[E], 0, len(w.pending))
	for id, reg := range w.pending {
		ids = append(ids, id)
		regs = append(regs, reg)
	}
	w.mu.Unlock()

	fired := 0
	for i, reg := range regs {
		if !reg.match(ev) {
			continue
		}
		if w.fire(ids[i], reg, ev) {
			fired++
		}
	}
	return fired
}

func (w *Waiter[E]) fire(id uint64, reg *registration[E], ev E) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[id]; !ok {
		return false
	}
	delete(w.pending, id)
	reg.ch <- ev // buffered, never blocks
	return true
}

func (w *Waiter[E]) register(match func(E) bool) (uint64, *registration[E]) {
	reg := &registration[E]{match: match, ch: make(chan E, 1)}
	w.mu.Lock()
	w.seq++
	id := w.seq
	w.pending[id] = reg
	w.mu.Unlock()
	return id, reg
}

// cancel reports whether the registration was removed before it fired.
func (w *Waiter[E]) cancel(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[id]; !ok {
		return false
	}
	delete(w.pending, id)
	return true
}

// Next blocks until an event satisfying match is published, the timeout
// elapses (ErrWaitTimeout) or ctx is done. A timeout <= 0 disables the deadline.
func (w *Waiter[E]) Next(ctx context.Context, match func(E) bool, timeout time.Duration) (E, error) {
	var zero E
	id, reg := w.register(match)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case ev := <-reg.ch:
		return ev, nil
	case <-deadline:
		if w.cancel(id) {
			return zero, ErrWaitTimeout
		}
		return <-reg.ch, nil
	case <-ctx.Done():
		if w.cancel(id) {
			return zero, ctx.Err()
		}
		return <-reg.ch, nil
	}
}

// WaitForEvent is the callback form of Next. Exactly one of onMatch and
// onTimeout runs, on a new goroutine; neither runs if ctx is canceled first.
func (w *Waiter[E]) WaitForEvent(ctx context.Context, match func(E) bool, onMatch func(E), timeout time.Duration, onTimeout func()) {
	go func() {
		ev, err := w.Next(ctx, match, timeout)
		switch {
		case err == nil:
			onMatch(ev)
		case errors.Is(err, ErrWaitTimeout):
			if onTimeout != nil {
				onTimeout()
			}
		}
	}()
}

func (w *Waiter[E]) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
