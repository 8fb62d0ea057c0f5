package taskflow

// NamedAsync schedules fn as a single-node, ad-hoc topology outside
// any Workflow/Graph and returns a Future for its result.
// Submission origin is routed the same way as any other node: if
// called from within a worker goroutine, it lands on that worker's
// own deque; otherwise it lands on the shared queue.
func (e *Executor) NamedAsync(name string, fn func() (any, error)) Future[any] {
	g := NewGraph(name)
	n := newNode(name, TypeAsync, &asyncWork{fn: fn})
	g.push(n)

	topo := newTopology(g, nil, nil)
	fs := newFutureState(topo)
	topo.future = fs
	n.future = fs

	e.activateTopology(topo, currentWorker(e))
	return Future[any]{state: fs}
}

// Async is NamedAsync with an anonymous diagnostic name.
func (e *Executor) Async(fn func() (any, error)) Future[any] {
	return e.NamedAsync("async", fn)
}

// NamedSilentAsync is NamedAsync for callables with no result.
func (e *Executor) NamedSilentAsync(name string, fn func()) {
	e.NamedAsync(name, func() (any, error) { fn(); return nil, nil })
}

// SilentAsync is Async for callables with no result.
func (e *Executor) SilentAsync(fn func()) {
	e.NamedSilentAsync("silent-async", fn)
}
