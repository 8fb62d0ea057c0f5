package taskflow

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/corvalis/taskgraph/internal/rc"
)

const (
	kNodeStateIdle     = int32(0)
	kNodeStateWaiting  = int32(1)
	kNodeStateRunning  = int32(2)
	kNodeStateFinished = int32(3)
	kNodeStateFailed   = int32(4)
)

// TaskType is the variant tag reported by Task.Type.
type TaskType string

const (
	TypePlaceholder    TaskType = "PLACEHOLDER"
	TypeStatic         TaskType = "STATIC"
	TypeDynamic        TaskType = "DYNAMIC"
	TypeCondition      TaskType = "CONDITION"
	TypeMultiCondition TaskType = "MULTI_CONDITION"
	TypeModule         TaskType = "MODULE"
	TypeAsync          TaskType = "ASYNC"
	TypeRuntime        TaskType = "RUNTIME"
)

// innerNode is the tagged-variant task descriptor: successors,
// dependents, a join counter and a priority, generalized to every
// variant and to strong/weak dependent bookkeeping.
type innerNode struct {
	id         uuid.UUID
	name       string
	typ        TaskType
	successors []*innerNode
	dependents []*innerNode

	// numStrongDependents + numWeakDependents == len(dependents).
	numStrongDependents int
	numWeakDependents   int

	work any // one of *staticWork, *dynamicWork, *conditionWork, ...

	state       atomic.Int32
	joinCounter *rc.RC

	priority TaskPriority

	acquireList []*Semaphore
	releaseList []*Semaphore

	mu sync.RWMutex
	g  *Graph

	// topo is the topology currently driving this node's run. Nodes
	// are not safe to execute under two topologies concurrently (a
	// Module's referenced Graph must not be entered by two live
	// topologies at once).
	topo *Topology

	// deferrals is only populated for pipeline-internal cell nodes,
	// see pipeline.go.
	deferrals []deferralRecord

	// future is set only for ad-hoc async submissions (Executor.Async
	// and its Subflow/Runtime-scoped equivalents), letting invokeAsync
	// hand the task's return value back to its caller.
	future *futureState
}

type deferralRecord struct {
	token uint64
	state int
}

func newNode(name string, typ TaskType, work any) *innerNode {
	return &innerNode{
		id:          uuid.New(),
		name:        name,
		typ:         typ,
		work:        work,
		successors:  make([]*innerNode, 0),
		dependents:  make([]*innerNode, 0),
		priority:    HIGH,
		joinCounter: rc.New(),
	}
}

// JoinCounter reports the node's current join counter value.
func (n *innerNode) JoinCounter() int64 {
	return n.joinCounter.Value()
}

// setup resets per-round scratch state and seeds the join counter to
// the number of strong incoming edges.
func (n *innerNode) setup(topo *Topology) {
	n.state.Store(kNodeStateIdle)
	n.joinCounter.Set(int64(n.numStrongDependents))
	n.topo = topo
}

// drop decrements every strong successor's join counter and returns
// the ones that reached zero; weak (conditional) successors are
// handled explicitly by Condition/MultiCondition dispatch instead.
func (n *innerNode) drop() []*innerNode {
	ready := make([]*innerNode, 0, len(n.successors))
	if n.isWeakPredecessor() {
		return ready
	}
	for _, s := range n.successors {
		if s.joinCounter.Decrease() == 0 {
			ready = append(ready, s)
		}
	}
	return ready
}

// precede records a strong edge n -> v: v depends on n.
func (n *innerNode) precede(v *innerNode) {
	n.successors = append(n.successors, v)
	v.dependents = append(v.dependents, n)
	v.numStrongDependents++
}

// precedeWeak records a conditional edge n -> v for Condition /
// MultiCondition predecessors: this edge never increments v's join
// counter.
func (n *innerNode) precedeWeak(v *innerNode) {
	n.successors = append(n.successors, v)
	v.dependents = append(v.dependents, n)
	v.numWeakDependents++
}

func (n *innerNode) isWeakPredecessor() bool {
	return n.typ == TypeCondition || n.typ == TypeMultiCondition
}
