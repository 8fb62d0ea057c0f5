package taskflow

import (
	"fmt"
	"runtime/debug"
	"time"
)

// invokeTracked wraps invoke with the active-worker gauge used by the
// prometheus collector; only the top-level scheduling loop's direct
// dispatch goes through here, so a worker parked in a nested
// Subflow/Runtime/Module scheduling loop still counts as active.
func (e *Executor) invokeTracked(w *worker, n *innerNode, parent *span) {
	e.metrics.activeWorkers.Add(1)
	defer e.metrics.activeWorkers.Add(-1)
	e.invoke(w, n, parent)
}

// invoke dispatches a ready node to its variant-specific handler,
// first honoring any semaphore acquire list . A node
// that fails to acquire is parked on the blocking semaphore's waiter
// list and is not re-invoked here; a later release reschedules it.
//
// A node already dequeued for a topology that was cancelled before it
// got here never runs its work function; it drops straight to the
// successor-scheduling epilogue (which itself schedules nothing
// further, since finishNode also checks Cancelled()), completing its
// future with ErrFutureCancelled if one was attached.
func (e *Executor) invoke(w *worker, n *innerNode, parent *span) {
	if n.topo != nil && n.topo.Cancelled() {
		if n.future != nil {
			n.future.complete(nil, ErrFutureCancelled)
		}
		e.finishNode(w, n, nil)
		return
	}

	if len(n.acquireList) > 0 && !e.tryAcquireAll(n) {
		return
	}

	e.metrics.tasksExecuted.Add(1)

	switch work := n.work.(type) {
	case *staticWork:
		e.invokeStatic(w, n, parent, work)
	case *placeholderWork:
		e.invokePlaceholder(w, n, parent)
	case *conditionWork:
		e.invokeCondition(w, n, parent, work)
	case *multiConditionWork:
		e.invokeMultiCondition(w, n, parent, work)
	case *dynamicWork:
		e.invokeDynamic(w, n, parent, work)
	case *moduleWork:
		e.invokeModule(w, n, parent, work)
	case *runtimeWork:
		e.invokeRuntime(w, n, parent, work)
	case *asyncWork:
		e.invokeAsync(w, n, parent, work)
	default:
		panic(fmt.Sprintf("taskflow: unsupported node work %T", n.work))
	}
}

func (e *Executor) tryAcquireAll(n *innerNode) bool {
	for i, sem := range n.acquireList {
		if sem.tryAcquire() {
			continue
		}
		for j := 0; j < i; j++ {
			if woken := n.acquireList[j].release(); woken != nil {
				e.schedule([]*innerNode{woken}, nil)
			}
		}
		sem.enqueueWaiter(n)
		return false
	}
	return true
}

func (e *Executor) releaseAll(w *worker, n *innerNode) {
	for _, sem := range n.releaseList {
		if woken := sem.release(); woken != nil {
			e.schedule([]*innerNode{woken}, w)
		}
	}
}

// handlePanic records a recovered task panic and cancels the owning
// topology: one failed node aborts the whole run rather than leaving
// dependents to execute against a broken invariant.
func (e *Executor) handlePanic(n *innerNode, err *TaskPanicError) {
	n.state.Store(kNodeStateFailed)
	e.logger.Error("taskflow: task panicked", "task", n.name, "type", n.typ, "panic", err.Value)
	if n.topo != nil {
		n.topo.canceled.Store(true)
	}
}

// finishNode runs the common epilogue shared by every variant:
// release semaphores, compute which successors become ready, bump the
// topology's in-flight count for them before scheduling, then settle
// this node's own count and fire completion if it drains to zero.
//
// chosen overrides the default strong-edge drop() result; Condition
// and MultiCondition pass their explicitly selected successors here
// since they are always weak predecessors (drop() is a no-op for
// them).
func (e *Executor) finishNode(w *worker, n *innerNode, chosen []*innerNode) {
	e.releaseAll(w, n)

	topo := n.topo
	var ready []*innerNode
	if topo == nil || !topo.Cancelled() {
		if chosen != nil {
			ready = chosen
		} else {
			ready = n.drop()
		}
	}

	if len(ready) > 0 {
		if topo != nil {
			topo.remaining.Add(int64(len(ready)))
		}
		e.schedule(ready, w)
	}

	if topo != nil {
		if topo.remaining.Decrease() == 0 {
			e.topologyDone(topo, w)
		}
	}
}

func (e *Executor) invokeStatic(w *worker, n *innerNode, parent *span, sw *staticWork) {
	s := &span{extra: attr{typ: TypeStatic, name: n.name}, begin: time.Now(), parent: parent}
	var perr *TaskPanicError
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		sw.fn()
	}()
	s.cost = time.Since(s.begin)
	if perr != nil {
		e.handlePanic(n, perr)
	} else {
		e.profiler.AddSpan(s)
		n.state.Store(kNodeStateFinished)
	}
	e.finishNode(w, n, nil)
}

func (e *Executor) invokePlaceholder(w *worker, n *innerNode, parent *span) {
	s := &span{extra: attr{typ: TypePlaceholder, name: n.name}, begin: time.Now(), parent: parent}
	n.state.Store(kNodeStateFinished)
	s.cost = time.Since(s.begin)
	e.profiler.AddSpan(s)
	e.finishNode(w, n, nil)
}

func (e *Executor) invokeCondition(w *worker, n *innerNode, parent *span, cw *conditionWork) {
	s := &span{extra: attr{typ: TypeCondition, name: n.name}, begin: time.Now(), parent: parent}
	var perr *TaskPanicError
	var idx int
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		idx = cw.fn()
	}()
	s.cost = time.Since(s.begin)

	var chosen []*innerNode
	if perr != nil {
		e.handlePanic(n, perr)
	} else {
		e.profiler.AddSpan(s)
		n.state.Store(kNodeStateFinished)
		if idx >= 0 && idx < len(n.successors) {
			chosen = []*innerNode{n.successors[idx]}
		} else {
			chosen = []*innerNode{}
		}
	}
	e.finishNode(w, n, chosen)
}

func (e *Executor) invokeMultiCondition(w *worker, n *innerNode, parent *span, mw *multiConditionWork) {
	s := &span{extra: attr{typ: TypeMultiCondition, name: n.name}, begin: time.Now(), parent: parent}
	var perr *TaskPanicError
	var idxs []int
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		idxs = mw.fn()
	}()
	s.cost = time.Since(s.begin)

	chosen := []*innerNode{}
	if perr != nil {
		e.handlePanic(n, perr)
	} else {
		e.profiler.AddSpan(s)
		n.state.Store(kNodeStateFinished)
		for _, idx := range idxs {
			if idx >= 0 && idx < len(n.successors) {
				chosen = append(chosen, n.successors[idx])
			}
		}
	}
	e.finishNode(w, n, chosen)
}

func (e *Executor) invokeDynamic(w *worker, n *innerNode, parent *span, dw *dynamicWork) {
	s := &span{extra: attr{typ: TypeDynamic, name: n.name}, begin: time.Now(), parent: parent}
	sf := newSubflow(n, e, w, s)
	var perr *TaskPanicError
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		dw.fn(sf)
	}()
	if perr == nil && sf.Joinable() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
				}
			}()
			sf.Join()
		}()
	}
	s.cost = time.Since(s.begin)
	if perr != nil {
		e.handlePanic(n, perr)
	} else {
		e.profiler.AddSpan(s)
		n.state.Store(kNodeStateFinished)
	}
	e.finishNode(w, n, nil)
}

func (e *Executor) invokeModule(w *worker, n *innerNode, parent *span, mw *moduleWork) {
	s := &span{extra: attr{typ: TypeModule, name: n.name}, begin: time.Now(), parent: parent}
	var perr *TaskPanicError
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		mw.g.refCount.Add(1)
		defer mw.g.refCount.Add(-1)
		topo := newTopology(mw.g, nil, nil)
		e.activateTopology(topo, w)
		e.schedulingLoop(w, topo.isDone, s)
	}()
	s.cost = time.Since(s.begin)
	if perr != nil {
		e.handlePanic(n, perr)
	} else {
		e.profiler.AddSpan(s)
		n.state.Store(kNodeStateFinished)
	}
	e.finishNode(w, n, nil)
}

func (e *Executor) invokeRuntime(w *worker, n *innerNode, parent *span, rw *runtimeWork) {
	s := &span{extra: attr{typ: TypeRuntime, name: n.name}, begin: time.Now(), parent: parent}
	rt := &Runtime{executor: e, worker: w, node: n, parentSpan: s}
	var perr *TaskPanicError
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		rw.fn(rt)
	}()
	s.cost = time.Since(s.begin)
	if perr != nil {
		e.handlePanic(n, perr)
	} else {
		e.profiler.AddSpan(s)
		n.state.Store(kNodeStateFinished)
	}
	e.finishNode(w, n, nil)
}

func (e *Executor) invokeAsync(w *worker, n *innerNode, parent *span, aw *asyncWork) {
	s := &span{extra: attr{typ: TypeAsync, name: n.name}, begin: time.Now(), parent: parent}
	var val any
	var ferr error
	var perr *TaskPanicError
	func() {
		defer func() {
			if r := recover(); r != nil {
				perr = &TaskPanicError{NodeName: n.name, Value: r, Stack: debug.Stack()}
			}
		}()
		n.state.Store(kNodeStateRunning)
		val, ferr = aw.fn()
	}()
	s.cost = time.Since(s.begin)

	if perr != nil {
		e.handlePanic(n, perr)
		ferr = perr
	} else if ferr != nil {
		n.state.Store(kNodeStateFailed)
		e.profiler.AddSpan(s)
	} else {
		n.state.Store(kNodeStateFinished)
		e.profiler.AddSpan(s)
	}

	if n.future != nil {
		n.future.complete(val, ferr)
	}
	e.finishNode(w, n, nil)
}
