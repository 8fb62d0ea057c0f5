package taskflow

import "fmt"

// staticWork backs TypeStatic nodes: a callable
// with no arguments and no return.
type staticWork struct {
	fn func()
}

// conditionWork backs TypeCondition: its return value selects a
// single successor by index, or schedules nothing for -1 / any
// out-of-range index.
type conditionWork struct {
	fn func() int
}

// multiConditionWork backs TypeMultiCondition: its return value is a
// bag of successor indices, every one of which is scheduled.
type multiConditionWork struct {
	fn func() []int
}

// dynamicWork backs TypeDynamic: the callable receives a mutable
// Subflow handle bound to a fresh scratch graph each round.
type dynamicWork struct {
	fn func(*Subflow)
}

// moduleWork backs TypeModule: executing it runs the referenced graph
// inside the current topology: the Module node never owns it.
type moduleWork struct {
	g *Graph
}

// runtimeWork backs TypeRuntime: the callable receives a Runtime
// handle exposing the executor and RunAndWait.
type runtimeWork struct {
	fn func(*Runtime)
}

// asyncWork backs TypeAsync / the ad-hoc single-node topologies
// created by Executor.Async and Executor.SilentAsync.
type asyncWork struct {
	fn func() (any, error)
}

type placeholderWork struct{}

func wrapWork(fn any) (any, TaskType) {
	switch f := fn.(type) {
	case func():
		return &staticWork{fn: f}, TypeStatic
	case func() int:
		return &conditionWork{fn: f}, TypeCondition
	case func() []int:
		return &multiConditionWork{fn: f}, TypeMultiCondition
	case func(*Subflow):
		return &dynamicWork{fn: f}, TypeDynamic
	case func(*Runtime):
		return &runtimeWork{fn: f}, TypeRuntime
	default:
		panic(fmt.Sprintf("taskflow: unsupported task body type %T", fn))
	}
}

// Task is a stable, copyable handle onto a node owned by some Graph.
// The zero value is the "empty" handle.
type Task struct {
	node *innerNode
}

// Empty reports whether the handle references no node.
func (t Task) Empty() bool { return t.node == nil }

func (t Task) mustNode() *innerNode {
	if t.node == nil {
		panic(ErrEmptyHandle)
	}
	return t.node
}

// Name returns the task's diagnostic label.
func (t Task) Name() string { return t.mustNode().name }

// Type reports the task's variant.
func (t Task) Type() TaskType { return t.mustNode().typ }

// HasWork reports whether the task carries a callable (false only for
// Placeholder nodes).
func (t Task) HasWork() bool { return t.mustNode().typ != TypePlaceholder }

// Precede adds a strong edge from t to every task in successors,
// unless t is a Condition/MultiCondition, in which case the edges are
// weak.
func (t Task) Precede(successors ...Task) Task {
	n := t.mustNode()
	for _, s := range successors {
		sn := s.mustNode()
		if n.isWeakPredecessor() {
			n.precedeWeak(sn)
		} else {
			n.precede(sn)
		}
	}
	return t
}

// Succeed adds a strong (or weak, if a predecessor is a condition
// task) edge from every task in predecessors to t.
func (t Task) Succeed(predecessors ...Task) Task {
	for _, p := range predecessors {
		p.Precede(t)
	}
	return t
}

// Priority sets the task's scheduling priority and returns t for
// chaining.
func (t Task) Priority(p TaskPriority) Task {
	t.mustNode().priority = p
	return t
}

// GetPriority returns the task's current priority.
func (t Task) GetPriority() TaskPriority { return t.mustNode().priority }

// Acquire registers semaphores that must be acquired, in order,
// before the task runs.
func (t Task) Acquire(sems ...*Semaphore) Task {
	n := t.mustNode()
	n.acquireList = append(n.acquireList, sems...)
	return t
}

// Release registers semaphores that are released, in order, after
// the task runs.
func (t Task) Release(sems ...*Semaphore) Task {
	n := t.mustNode()
	n.releaseList = append(n.releaseList, sems...)
	return t
}

// Work rebinds the task's callable. The new callable must match the
// task's existing variant shape.
func (t Task) Work(fn any) Task {
	n := t.mustNode()
	work, typ := wrapWork(fn)
	if typ != n.typ {
		panic(fmt.Sprintf("taskflow: cannot rebind %s task with %s body", n.typ, typ))
	}
	n.work = work
	return t
}

// NumDependents returns the number of incoming edges.
func (t Task) NumDependents() int { return len(t.mustNode().dependents) }

// NumSuccessors returns the number of outgoing edges.
func (t Task) NumSuccessors() int { return len(t.mustNode().successors) }

// NumStrongDependents returns the number of non-conditional incoming
// edges.
func (t Task) NumStrongDependents() int { return t.mustNode().numStrongDependents }

// NumWeakDependents returns the number of conditional incoming edges.
func (t Task) NumWeakDependents() int { return t.mustNode().numWeakDependents }

// ForEachSuccessor visits every outgoing edge target.
func (t Task) ForEachSuccessor(fn func(Task)) {
	for _, s := range t.mustNode().successors {
		fn(Task{s})
	}
}

// ID returns a stable diagnostic identifier for the task.
func (t Task) ID() string { return t.mustNode().id.String() }
