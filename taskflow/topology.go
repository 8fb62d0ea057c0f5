package taskflow

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/corvalis/taskgraph/internal/rc"
)

// Topology is the per-run execution state of a Workflow:
// a join counter over remaining tasks, a cancellation flag, an
// optional stop predicate deciding whether to re-run, and the promise
// backing the returned Future.
type Topology struct {
	id    uuid.UUID
	graph *Graph

	remaining *rc.RC
	canceled  atomic.Bool

	round    int
	stopPred func(round int) bool // nil => single round (Run)
	onDone   func()

	executor *Executor
	workflow *Workflow

	future *futureState

	mu       sync.Mutex
	finished bool
}

func newTopology(g *Graph, stopPred func(round int) bool, onDone func()) *Topology {
	return &Topology{
		id:        uuid.New(),
		graph:     g,
		remaining: rc.New(),
		stopPred:  stopPred,
		onDone:    onDone,
	}
}

// Remaining reports the current in-flight task count for this round.
func (t *Topology) Remaining() int64 { return t.remaining.Value() }

// Cancelled reports whether cancellation has been requested.
func (t *Topology) Cancelled() bool { return t.canceled.Load() }

// cancel sets the cancellation flag if the topology hasn't completed
// yet. Idempotent; returns false once Future.Get() would already
// return.
func (t *Topology) cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	t.canceled.Store(true)
	return true
}

func (t *Topology) markFinished() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()
}

// isDone reports whether this round (and any repeats) has finished.
// Used by nested scheduling loops (Subflow.Join, Runtime.RunAndWait,
// Module dispatch) as their stop predicate.
func (t *Topology) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// start walks the graph, seeding join counters ,
// and returns the source nodes to schedule.
func (t *Topology) start() []*innerNode {
	nodes := t.graph.snapshotNodes()
	for _, n := range nodes {
		n.setup(t)
	}
	entries := t.graph.entries()
	t.remaining.Add(int64(len(entries)))
	return entries
}

// shouldRepeat asks the stop predicate (if any) whether another round
// should run, bumping the round counter either way.
func (t *Topology) shouldRepeat() bool {
	round := t.round
	t.round++
	if t.stopPred == nil {
		return false
	}
	return !t.stopPred(round)
}
