package taskflow

// Runtime is the handle passed to a Runtime task's body:
// direct access to the owning Executor plus RunAndWait, which drives
// a graph to completion on the calling worker without spawning a new
// goroutine (mirrors Subflow.Join but over a caller-supplied, already
// built Graph rather than a freshly constructed scratch one).
type Runtime struct {
	executor   *Executor
	worker     *worker
	node       *innerNode
	parentSpan *span
}

// Executor returns the owning executor, e.g. to submit further work.
func (r *Runtime) Executor() *Executor { return r.executor }

// RunAndWait runs g as a nested topology and blocks until it
// finishes. g must not be referenced by another live topology
// concurrently.
func (r *Runtime) RunAndWait(g *Graph) {
	g.refCount.Add(1)
	defer g.refCount.Add(-1)
	topo := newTopology(g, nil, nil)
	r.executor.activateTopology(topo, r.worker)
	r.executor.schedulingLoop(r.worker, topo.isDone, r.parentSpan)
}
