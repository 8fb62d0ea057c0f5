package taskflow

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/corvalis/taskgraph/internal/gls"
	"github.com/corvalis/taskgraph/internal/notifier"
)

// sharedQueue is where nodes submitted from outside any worker land,
// with the same HIGH/NORMAL/LOW lanes a worker's own deques keep.
type sharedQueue struct {
	mu    sync.Mutex
	lanes [numPriorities][]*innerNode
}

func (q *sharedQueue) push(n *innerNode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := priorityIndex(n.priority)
	q.lanes[idx] = append(q.lanes[idx], n)
}

func (q *sharedQueue) pop() (*innerNode, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < numPriorities; i++ {
		if len(q.lanes[i]) > 0 {
			n := q.lanes[i][0]
			q.lanes[i] = q.lanes[i][1:]
			return n, true
		}
	}
	return nil, false
}

func (q *sharedQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < numPriorities; i++ {
		if len(q.lanes[i]) > 0 {
			return false
		}
	}
	return true
}

// Executor is the thread pool and scheduling runtime: a fixed vector
// of workers with per-priority work-stealing deques, a shared queue
// for external submissions, and a notifier for park/unpark
// coordination. Adapted from innerExecutorImpl's wq/pool pair,
// generalized to the priority-laned, steal-capable design this
// scheduler needs.
type Executor struct {
	workers    []*worker
	numWorkers int
	shared     *sharedQueue
	notifier   *notifier.Notifier

	iface    WorkerInterface
	profiler *profiler
	metrics  *metricsCollector
	logger   *slog.Logger

	closing atomic.Bool
	stopWG  sync.WaitGroup

	topoMu sync.Mutex
	live   map[uuid.UUID]*Topology
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithWorkerInterface installs prologue/epilogue hooks run at the
// start/exit of every worker goroutine.
func WithWorkerInterface(wi WorkerInterface) Option {
	return func(e *Executor) { e.iface = wi }
}

// WithProfiler toggles flame-graph span collection (on by default).
func WithProfiler(enabled bool) Option {
	return func(e *Executor) { e.profiler.enabled = enabled }
}

// WithLogger overrides the executor's structured logger (default:
// slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor returns an Executor with a fixed pool of n worker
// goroutines. n must be positive.
func NewExecutor(n int, opts ...Option) *Executor {
	if n <= 0 {
		panic("taskflow: executor concurrency cannot be zero")
	}
	e := &Executor{
		numWorkers: n,
		shared:     &sharedQueue{},
		notifier:   notifier.New(),
		iface:      noopWorkerInterface{},
		profiler:   newProfiler(true),
		logger:     slog.Default(),
		live:       make(map[uuid.UUID]*Topology),
	}
	e.metrics = newMetricsCollector(n)
	for _, opt := range opts {
		opt(e)
	}

	e.workers = make([]*worker, n)
	for i := 0; i < n; i++ {
		e.workers[i] = newWorker(i, e)
	}
	e.stopWG.Add(n)
	for i := 0; i < n; i++ {
		go e.workerLoop(e.workers[i])
	}
	return e
}

// NumWorkers reports the fixed worker pool size.
func (e *Executor) NumWorkers() int { return e.numWorkers }

// Collector exposes executor counters as a prometheus.Collector.
func (e *Executor) Collector() *metricsCollector { return e.metrics }

// Profile writes the accumulated flame-graph text into w.
func (e *Executor) Profile(w io.Writer) error {
	return e.profiler.draw(w)
}

// ThisWorkerID returns the id of the worker executing the calling
// goroutine, if any. Best-effort diagnostic only: nothing on the
// scheduling-correctness path depends on it.
func (e *Executor) ThisWorkerID() (int, bool) {
	id, ok := gls.Lookup()
	if !ok || id < 0 || id >= len(e.workers) {
		return 0, false
	}
	return id, true
}

func (e *Executor) workerLoop(w *worker) {
	gls.Bind(w.id)
	e.iface.SchedulerPrologue(w.id)
	e.logger.Debug("taskflow: worker started", "worker", w.id)
	var failure error
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("worker %d panicked: %v", w.id, r)
			e.logger.Error("taskflow: worker panic", "worker", w.id, "panic", r)
		}
		e.iface.SchedulerEpilogue(w.id, failure)
		gls.Unbind()
		e.logger.Debug("taskflow: worker stopped", "worker", w.id)
		e.stopWG.Done()
	}()
	e.schedulingLoop(w, nil, nil)
}

// schedulingLoop implements the exploit/explore/quiesce protocol.
// When stopWhen is non-nil this is a nested loop (a Dynamic task's
// Subflow.Join, a Runtime's RunAndWait, or a Module dispatch): it
// never parks, so a single worker (W=1) keeps draining its own deque
// while "blocked" on the nested topology. parent, when non-nil, is the
// span of the node that opened this nested loop, so every node it
// drives renders nested under it in the flame graph.
func (e *Executor) schedulingLoop(w *worker, stopWhen func() bool, parent *span) {
	dispatch := e.invokeTracked
	if stopWhen != nil {
		dispatch = e.invoke
	}
	for {
		if stopWhen != nil && stopWhen() {
			return
		}
		if n, ok := w.popOwn(); ok {
			dispatch(w, n, parent)
			continue
		}
		if n, ok := e.shared.pop(); ok {
			dispatch(w, n, parent)
			continue
		}
		if n, ok := w.steal(); ok {
			e.metrics.stealsSucceeded.Add(1)
			dispatch(w, n, parent)
			continue
		}

		if stopWhen != nil {
			if e.closing.Load() {
				return
			}
			runtime.Gosched()
			continue
		}

		e.logger.Debug("taskflow: steal attempts went cold, parking", "worker", w.id)
		epoch := e.notifier.PrepareWait()
		if w.hasAnyWork() || !e.shared.empty() {
			e.notifier.CancelWait(epoch)
			continue
		}
		if e.closing.Load() {
			e.notifier.CancelWait(epoch)
			return
		}
		e.notifier.CommitWait(epoch)
	}
}

// schedule pushes nodes for execution, routing by submission origin:
// w non-nil means "from within a worker" (push to its own deque); w
// nil means "from outside" (shared queue + notify).
func (e *Executor) schedule(nodes []*innerNode, w *worker) {
	if len(nodes) == 0 {
		return
	}
	for _, n := range nodes {
		n.state.Store(kNodeStateWaiting)
		if w != nil {
			w.push(n)
		} else {
			e.shared.push(n)
		}
	}
	wake := len(nodes)
	if wake > e.numWorkers {
		wake = e.numWorkers
	}
	for i := 0; i < wake; i++ {
		e.notifier.NotifyOne()
	}
}

func (e *Executor) registerTopology(t *Topology) {
	t.executor = e
	e.topoMu.Lock()
	_, already := e.live[t.id]
	e.live[t.id] = t
	e.topoMu.Unlock()
	if !already {
		t.graph.refCount.Add(1)
		e.metrics.topologiesRunning.Add(1)
	}
}

func (e *Executor) unregisterTopology(t *Topology) {
	e.topoMu.Lock()
	delete(e.live, t.id)
	e.topoMu.Unlock()
	t.graph.refCount.Add(-1)
	e.metrics.topologiesRunning.Add(-1)
}

// activateTopology seeds join counters and schedules the source
// nodes. w is the calling worker, or nil if called from outside a
// worker goroutine.
func (e *Executor) activateTopology(t *Topology, w *worker) {
	e.registerTopology(t)
	if t.graph.Size() == 0 {
		e.topologyDone(t, w)
		return
	}
	entries := t.start()
	if len(entries) == 0 {
		e.topologyDone(t, w)
		return
	}
	e.schedule(entries, w)
}

// topologyDone fires when a round's join counter has drained to zero.
// It either re-activates the same topology (RunN/RunUntil) or
// finishes it: completes the Future, runs the onDone callback,
// unregisters it, and advances its Workflow's FIFO.
func (e *Executor) topologyDone(t *Topology, w *worker) {
	if !t.Cancelled() && t.shouldRepeat() {
		e.activateTopology(t, w)
		return
	}
	t.markFinished()
	e.unregisterTopology(t)
	e.logger.Debug("taskflow: topology completed", "topology", t.id, "graph", t.graph.Name(), "cancelled", t.Cancelled())
	if t.onDone != nil {
		t.onDone()
	}
	if t.future != nil {
		t.future.complete(struct{}{}, nil)
	}
	if t.workflow != nil {
		if next := t.workflow.completed(t); next != nil {
			e.activateTopology(next, w)
		}
	}
}

func firstCallback(cb []func()) func() {
	if len(cb) == 0 {
		return nil
	}
	return cb[0]
}

// currentWorker resolves the calling goroutine's worker, if any, via
// the diagnostic gls registry, so a top-level Run/Async call made
// from within a WorkerInterface hook still routes as an in-worker
// submission.
func currentWorker(e *Executor) *worker {
	id, ok := gls.Lookup()
	if !ok || id < 0 || id >= len(e.workers) {
		return nil
	}
	return e.workers[id]
}

// submit enqueues topo onto its Workflow's FIFO and activates it if no
// prior topology for that Workflow is still live: a Workflow runs its
// topologies strictly in submission order.
func (e *Executor) submit(wf *Workflow, topo *Topology, w *worker) *Future[struct{}] {
	topo.workflow = wf
	topo.future = newFutureState(topo)
	if wf.enqueue(topo) {
		e.activateTopology(topo, w)
	}
	return &Future[struct{}]{state: topo.future}
}

// Run executes wf's graph once. cb, if supplied, fires after the
// round completes.
func (e *Executor) Run(wf *Workflow, cb ...func()) Future[struct{}] {
	topo := newTopology(wf.graph, nil, firstCallback(cb))
	return *e.submit(wf, topo, currentWorker(e))
}

// RunN executes wf's graph n times back to back. n <= 0 completes
// synchronously with no work done.
func (e *Executor) RunN(wf *Workflow, n int, cb ...func()) Future[struct{}] {
	if n <= 0 {
		if fn := firstCallback(cb); fn != nil {
			fn()
		}
		fs := newFutureState(nil)
		fs.complete(struct{}{}, nil)
		return Future[struct{}]{state: fs}
	}
	count := 0
	stop := func(int) bool {
		count++
		return count >= n
	}
	topo := newTopology(wf.graph, stop, firstCallback(cb))
	return *e.submit(wf, topo, currentWorker(e))
}

// RunUntil repeats wf's graph while pred returns false.
func (e *Executor) RunUntil(wf *Workflow, pred func() bool, cb ...func()) Future[struct{}] {
	stop := func(int) bool { return pred() }
	topo := newTopology(wf.graph, stop, firstCallback(cb))
	return *e.submit(wf, topo, currentWorker(e))
}

// WaitForAll blocks until every topology currently live on this
// executor (across every Workflow submitted to it) has completed.
func (e *Executor) WaitForAll() {
	for {
		e.topoMu.Lock()
		n := len(e.live)
		e.topoMu.Unlock()
		if n == 0 {
			return
		}
		runtime.Gosched()
	}
}

// Close stops the park/unpark loop and waits for every worker
// goroutine to exit. It does not cancel live topologies; callers
// should WaitForAll (or cancel) first.
func (e *Executor) Close() {
	e.closing.Store(true)
	e.notifier.NotifyAll()
	e.stopWG.Wait()
}
