package taskflow

import (
	"context"
	"sync"
	"time"
)

// futureState is the untyped promise backing a Future[T]; Topology
// and the async bridge only ever see this, so they don't need to be
// generic themselves.
type futureState struct {
	mu       sync.Mutex
	done     chan struct{}
	val      any
	err      error
	finished bool
	topology *Topology
}

func newFutureState(topo *Topology) *futureState {
	return &futureState{done: make(chan struct{}), topology: topo}
}

func (f *futureState) complete(val any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return
	}
	f.val, f.err = val, err
	f.finished = true
	close(f.done)
}

func (f *futureState) wait() { <-f.done }

func (f *futureState) waitFor(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *futureState) get() (any, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

func (f *futureState) cancel() bool {
	if f.topology == nil {
		return false
	}
	return f.topology.cancel()
}

// Future is a single-shot awaitable extended with cancellation:
// Get/Wait block until the topology's completion callback
// fires (or the cancelled topology drains); Cancel flags the
// associated topology and returns whether it was still live.
type Future[T any] struct {
	state *futureState
}

// Valid reports whether the future is bound to a running or completed
// submission (as opposed to the zero Future[T]{}).
func (f Future[T]) Valid() bool { return f.state != nil }

// Get blocks until completion and returns the produced value (or the
// zero value if the topology carried none) and any captured error.
func (f Future[T]) Get() (T, error) {
	var zero T
	if f.state == nil {
		return zero, ErrEmptyHandle
	}
	v, err := f.state.get()
	if v == nil {
		return zero, err
	}
	return v.(T), err
}

// Wait blocks until completion, discarding the result.
func (f Future[T]) Wait() {
	if f.state == nil {
		return
	}
	f.state.wait()
}

// WaitFor blocks until completion or the timeout elapses, whichever
// comes first.
func (f Future[T]) WaitFor(d time.Duration) error {
	if f.state == nil {
		return ErrEmptyHandle
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return f.state.waitFor(ctx)
}

// Cancel requests cancellation of the underlying topology. It returns
// true if the topology was found and flagged, false if it had already
// completed.
func (f Future[T]) Cancel() bool {
	if f.state == nil {
		return false
	}
	return f.state.cancel()
}
