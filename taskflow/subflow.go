package taskflow

// Subflow is the builder handle passed to a Dynamic task's body:
// a fresh scratch Graph rebuilt every round, plus Join/
// Detach controlling whether the calling worker waits for it inline
// or lets it run as an independent sibling topology.
type Subflow struct {
	g          *Graph
	executor   *Executor
	worker     *worker
	parent     *innerNode
	parentSpan *span

	joined   bool
	detached bool
}

func newSubflow(parent *innerNode, e *Executor, w *worker, parentSpan *span) *Subflow {
	return &Subflow{
		g:          NewGraph(parent.name + ":subflow"),
		executor:   e,
		worker:     w,
		parent:     parent,
		parentSpan: parentSpan,
	}
}

// Emplace appends a node to the subflow's scratch graph.
func (sf *Subflow) Emplace(name string, fn any) Task { return sf.g.Emplace(name, fn) }

// Placeholder appends a work-less node to the scratch graph.
func (sf *Subflow) Placeholder(name string) Task { return sf.g.Placeholder(name) }

// ComposedOf appends a Module node referencing sub to the scratch
// graph.
func (sf *Subflow) ComposedOf(name string, sub *Graph) Task { return sf.g.ComposedOf(name, sub) }

// Linearize chains tasks in the scratch graph.
func (sf *Subflow) Linearize(tasks ...Task) { sf.g.Linearize(tasks...) }

// Async adds a node to the scratch graph itself, so Join naturally
// waits for it alongside every other node in the subflow.
func (sf *Subflow) Async(fn func() (any, error)) Task {
	n := newNode(sf.parent.name+":async", TypeAsync, &asyncWork{fn: fn})
	sf.g.push(n)
	return Task{n}
}

// SilentAsync is Async without a result.
func (sf *Subflow) SilentAsync(fn func()) Task {
	return sf.Async(func() (any, error) { fn(); return nil, nil })
}

// Joinable reports whether Join or Detach has not yet been called.
func (sf *Subflow) Joinable() bool { return !sf.joined && !sf.detached }

// Join runs the scratch graph as a nested topology and blocks the
// calling worker (via its nested scheduling loop) until it finishes.
// A subflow may be joined at most once.
func (sf *Subflow) Join() {
	if !sf.Joinable() {
		panic("taskflow: subflow already joined or detached")
	}
	sf.joined = true
	topo := newTopology(sf.g, nil, nil)
	sf.executor.activateTopology(topo, sf.worker)
	sf.executor.schedulingLoop(sf.worker, topo.isDone, sf.parentSpan)
}

// Detach runs the scratch graph as an independent topology the
// executor tracks to completion without blocking the calling worker.
// A subflow may be detached at most once, and never both joined and
// detached.
func (sf *Subflow) Detach() {
	if !sf.Joinable() {
		panic("taskflow: subflow already joined or detached")
	}
	sf.detached = true
	topo := newTopology(sf.g, nil, nil)
	sf.executor.activateTopology(topo, sf.worker)
}
