package taskflow

import (
	"container/heap"
	"sync"
)

// PipeType classifies how a Pipe admits concurrent tokens.
type PipeType int

const (
	// SERIAL pipes process tokens in strictly increasing order; at
	// most one token is ever inside a SERIAL pipe at a time.
	SERIAL PipeType = iota
	// PARALLEL pipes let tokens overlap freely.
	PARALLEL
)

func (t PipeType) String() string {
	if t == SERIAL {
		return "SERIAL"
	}
	return "PARALLEL"
}

// Pipe is one stage of a Pipeline: a concurrency discipline plus the
// callable every token runs through at this stage.
type Pipe struct {
	typ PipeType
	fn  func(*Pipeflow)
}

// NewPipe returns a Pipe running fn under the given discipline.
func NewPipe(typ PipeType, fn func(*Pipeflow)) Pipe {
	return Pipe{typ: typ, fn: fn}
}

// Pipeflow is the per-invocation context passed to a Pipe's callable:
// which token, which line, which pipe, how many times this token has
// already been deferred here, and the stop/defer controls.
type Pipeflow struct {
	token   uint64
	line    int
	pipe    int
	numDefer int

	stopped     bool
	deferred    bool
	deferTarget uint64
}

// Token returns the monotonically increasing token this invocation is
// processing.
func (pf *Pipeflow) Token() uint64 { return pf.token }

// Line returns the line (0..NumLines-1) this token is assigned to:
// always token % NumLines.
func (pf *Pipeflow) Line() int { return pf.line }

// Pipe returns the index of the pipe currently running.
func (pf *Pipeflow) Pipe() int { return pf.pipe }

// NumDeferrals reports how many times this token has already been
// deferred at this pipe, before the current invocation.
func (pf *Pipeflow) NumDeferrals() int { return pf.numDefer }

// Stop requests the pipeline halt after the current token; it has no
// effect when called from any pipe other than the first, since only
// the first pipe decides whether a token is generated at all.
func (pf *Pipeflow) Stop() {
	if pf.pipe != 0 {
		return
	}
	pf.stopped = true
}

// Defer blocks this token at the current pipe until other has passed
// through the same pipe. The callable should return immediately after
// calling Defer; the pipe re-invokes the callable once other clears,
// with NumDeferrals incremented.
func (pf *Pipeflow) Defer(other uint64) {
	pf.deferred = true
	pf.deferTarget = other
}

// deferWaiter is one parked re-entry, ordered by its own token so a
// pipe wakes deferred entries in increasing-token order.
type deferWaiter struct {
	token uint64
	ch    chan struct{}
}

type deferHeap []*deferWaiter

func (h deferHeap) Len() int            { return len(h) }
func (h deferHeap) Less(i, j int) bool  { return h[i].token < h[j].token }
func (h deferHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deferHeap) Push(x any)         { *h = append(*h, x.(*deferWaiter)) }
func (h *deferHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// pipeRuntime is one pipe's per-run coordination state: a serial gate
// for SERIAL pipes (and pipe 0, always gated for token generation),
// plus defer bookkeeping shared by every pipe type.
type pipeRuntime struct {
	typ PipeType

	mu         sync.Mutex
	cond       *sync.Cond
	nextSerial uint64

	completed    map[uint64]bool
	deferredOn   map[uint64]*deferHeap
	numDeferrals map[uint64]int
}

func newPipeRuntime(typ PipeType) *pipeRuntime {
	pr := &pipeRuntime{
		typ:          typ,
		completed:    make(map[uint64]bool),
		deferredOn:   make(map[uint64]*deferHeap),
		numDeferrals: make(map[uint64]int),
	}
	pr.cond = sync.NewCond(&pr.mu)
	return pr
}

func (pr *pipeRuntime) reset() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.nextSerial = 0
	pr.completed = make(map[uint64]bool)
	pr.deferredOn = make(map[uint64]*deferHeap)
	pr.numDeferrals = make(map[uint64]int)
}

// waitTurn blocks until token is next in this pipe's strict order.
func (pr *pipeRuntime) waitTurn(token uint64) {
	pr.mu.Lock()
	for pr.nextSerial != token {
		pr.cond.Wait()
	}
	pr.mu.Unlock()
}

// advanceTurn releases the gate for the next token in sequence. Called
// exactly once per token, after it has fully finished this pipe
// (including any self-defer retries), so a deferred-but-not-yet-woken
// token never blocks tokens behind it in the SERIAL order.
func (pr *pipeRuntime) advanceTurn() {
	pr.mu.Lock()
	pr.nextSerial++
	pr.cond.Broadcast()
	pr.mu.Unlock()
}

func (pr *pipeRuntime) deferCount(token uint64) int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.numDeferrals[token]
}

// deferOn registers token as waiting on other at this pipe and returns
// a channel closed once other completes. If other has already
// completed, the channel is returned already closed.
func (pr *pipeRuntime) deferOn(token, other uint64) <-chan struct{} {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.numDeferrals[token]++
	ch := make(chan struct{})
	if pr.completed[other] {
		close(ch)
		return ch
	}
	h := pr.deferredOn[other]
	if h == nil {
		h = &deferHeap{}
		heap.Init(h)
		pr.deferredOn[other] = h
	}
	heap.Push(h, &deferWaiter{token: token, ch: ch})
	return ch
}

// markComplete records token as done and wakes every entry deferred on
// it, smallest deferring token first.
func (pr *pipeRuntime) markComplete(token uint64) {
	pr.mu.Lock()
	pr.completed[token] = true
	h := pr.deferredOn[token]
	delete(pr.deferredOn, token)
	pr.mu.Unlock()
	if h == nil {
		return
	}
	for h.Len() > 0 {
		w := heap.Pop(h).(*deferWaiter)
		close(w.ch)
	}
}

// Pipeline is a staged, line-concurrent executor: L lines each carry
// at most one token at a time through pipes 0..P-1 in order. The
// literal composed-of-Workflow task-mesh lowering is one valid
// realization; this one runs each line as its own goroutine
// coordinating through the pipes' gates and defer heaps, which
// expresses the SERIAL/defer invariants directly instead of needing a
// second scheduling layer stacked on the core's join-counter
// propagation. The observable contract - token-to-line assignment by
// modulus, per-pipe ordering, defer re-entry counting - is identical
// either way.
type Pipeline struct {
	lines int
	pipes []Pipe
	rt    []*pipeRuntime

	mu        sync.Mutex
	stopped   bool
	generated uint64
}

// NewPipeline returns a Pipeline with the given line count and pipe
// sequence. The first pipe is always gated as if SERIAL, regardless of
// its declared type, since it alone assigns tokens.
func NewPipeline(lines int, pipes ...Pipe) *Pipeline {
	if lines <= 0 {
		panic("taskflow: pipeline needs at least one line")
	}
	if len(pipes) == 0 {
		panic("taskflow: pipeline needs at least one pipe")
	}
	p := &Pipeline{lines: lines, pipes: pipes}
	p.rt = make([]*pipeRuntime, len(pipes))
	for i, pipe := range pipes {
		p.rt[i] = newPipeRuntime(pipe.typ)
	}
	return p
}

// NumLines reports the configured line count.
func (p *Pipeline) NumLines() int { return p.lines }

// NumPipes reports the configured pipe count.
func (p *Pipeline) NumPipes() int { return len(p.pipes) }

// NumTokens reports how many tokens the first pipe generated before
// the most recent (or current) run stopped. Zero before any run.
func (p *Pipeline) NumTokens() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generated
}

// Reset clears all per-pipe gate and defer state, so the pipeline can
// be Run again from token 0.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.stopped = false
	p.generated = 0
	p.mu.Unlock()
	for _, rt := range p.rt {
		rt.reset()
	}
}

// Run drives every line to completion and blocks until the first
// pipe's callable calls Pipeflow.Stop and every in-flight token has
// drained. Each line's goroutine genuinely suspends (on a pipe's gate
// or a defer wait) while parked - unlike the core executor's nodes,
// which never suspend cooperatively, a pipeline's lines are plain
// goroutines layered atop the executor, not nodes subject to its
// no-suspend contract, so the Go runtime's own scheduler carries them.
func (p *Pipeline) Run() {
	var wg sync.WaitGroup
	wg.Add(p.lines)
	for l := 0; l < p.lines; l++ {
		line := l
		go func() {
			defer wg.Done()
			p.runLine(line)
		}()
	}
	wg.Wait()
}

func (p *Pipeline) runLine(line int) {
	token := uint64(line)
	for {
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			return
		}
		if !p.runToken(token) {
			return
		}
		token += uint64(p.lines)
	}
}

// runToken drives one token through every pipe in order, returning
// false once the first pipe has signalled stop.
func (p *Pipeline) runToken(token uint64) bool {
	line := int(token % uint64(p.lines))
	for i, pipe := range p.pipes {
		rt := p.rt[i]
		gated := i == 0 || pipe.typ == SERIAL
		if gated {
			rt.waitTurn(token)
		}
		if i == 0 {
			p.mu.Lock()
			stopped := p.stopped
			p.mu.Unlock()
			if stopped {
				rt.advanceTurn()
				return false
			}
		}

		pf := &Pipeflow{token: token, line: line, pipe: i}
		for {
			pf.numDefer = rt.deferCount(token)
			pf.stopped = false
			pf.deferred = false
			pipe.fn(pf)

			if i == 0 && pf.stopped {
				p.mu.Lock()
				p.stopped = true
				p.generated = token
				p.mu.Unlock()
				rt.markComplete(token)
				if gated {
					rt.advanceTurn()
				}
				return false
			}
			if !pf.deferred {
				break
			}
			<-rt.deferOn(token, pf.deferTarget)
		}

		rt.markComplete(token)
		if gated {
			rt.advanceTurn()
		}
	}
	return true
}
