package taskflow

import "sync"

// Workflow is the user-facing handle bundling a Graph and a FIFO of
// pending Topologies: pending topologies for the same
// Workflow execute strictly in submission order, while topologies on
// different Workflows run concurrently.
type Workflow struct {
	name  string
	graph *Graph

	mu      sync.Mutex
	pending []*Topology
	active  *Topology
}

// NewWorkflow returns a Workflow owning a fresh, empty Graph.
func NewWorkflow(name string) *Workflow {
	return &Workflow{name: name, graph: NewGraph(name)}
}

// Graph returns the Workflow's owned graph, for builder calls.
func (w *Workflow) Graph() *Graph { return w.graph }

// Name returns the workflow's diagnostic label.
func (w *Workflow) Name() string { return w.name }

// ComposedOf creates a Module node in w's graph pointing at sub's
// graph. The caller is responsible for sub's lifetime.
func (w *Workflow) ComposedOf(name string, sub *Workflow) Task {
	return w.graph.ComposedOf(name, sub.graph)
}

// enqueue appends topo to the pending FIFO and reports whether it
// should be activated immediately (no prior topology for this
// workflow is still live).
func (w *Workflow) enqueue(topo *Topology) (activateNow bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	topo.workflow = w
	w.pending = append(w.pending, topo)
	if w.active == nil {
		w.active = topo
		return true
	}
	return false
}

// completed pops the finished topology (which must be the current
// head) and reports the next topology to activate, if any.
func (w *Workflow) completed(topo *Topology) (next *Topology) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 && w.pending[0] == topo {
		w.pending = w.pending[1:]
	}
	w.active = nil
	if len(w.pending) > 0 {
		w.active = w.pending[0]
		return w.active
	}
	return nil
}
