package taskflow

import (
	"math/rand"

	"github.com/corvalis/taskgraph/internal/deque"
)

// WorkerInterface pairs prologue/epilogue hooks invoked at the start
// and exit of every worker goroutine.
type WorkerInterface interface {
	SchedulerPrologue(workerID int)
	SchedulerEpilogue(workerID int, err error)
}

// noopWorkerInterface is used when the caller supplies none.
type noopWorkerInterface struct{}

func (noopWorkerInterface) SchedulerPrologue(int)      {}
func (noopWorkerInterface) SchedulerEpilogue(int, error) {}

// worker is one scheduling thread with a private set of per-priority
// deques : HIGH is drained before NORMAL before LOW, both
// for local pops and for steal attempts.
type worker struct {
	id       int
	executor *Executor
	deques   [numPriorities]*deque.Deque[*innerNode]
	rng      *rand.Rand
}

func newWorker(id int, e *Executor) *worker {
	w := &worker{
		id:       id,
		executor: e,
		rng:      rand.New(rand.NewSource(int64(id)*2654435761 + 1)),
	}
	for i := range w.deques {
		w.deques[i] = deque.New[*innerNode](64)
	}
	return w
}

func (w *worker) push(n *innerNode) {
	w.deques[priorityIndex(n.priority)].Push(n)
}

func priorityIndex(p TaskPriority) int {
	if int(p) < 0 || int(p) >= numPriorities {
		return int(NORMAL)
	}
	return int(p)
}

// popOwn drains this worker's own deques, HIGH first.
func (w *worker) popOwn() (*innerNode, bool) {
	for i := 0; i < numPriorities; i++ {
		if n, ok := w.deques[i].Pop(); ok {
			return n, true
		}
	}
	return nil, false
}

// hasAnyWork is a cheap non-authoritative check used in the quiesce
// fast path.
func (w *worker) hasAnyWork() bool {
	for i := 0; i < numPriorities; i++ {
		if !w.deques[i].Empty() {
			return true
		}
	}
	return false
}

// steal samples up to len(workers) victims at random, HIGH priority
// first across all victims before trying NORMAL, then LOW.
func (w *worker) steal() (*innerNode, bool) {
	workers := w.executor.workers
	n := len(workers)
	if n <= 1 {
		return nil, false
	}
	for prio := 0; prio < numPriorities; prio++ {
		start := w.rng.Intn(n)
		for i := 0; i < n; i++ {
			victim := workers[(start+i)%n]
			if victim.id == w.id {
				continue
			}
			for {
				node, res := victim.deques[prio].Steal()
				switch res {
				case deque.Success:
					return node, true
				case deque.Abort:
					continue
				default: // Empty
				}
				break
			}
		}
	}
	return nil, false
}
