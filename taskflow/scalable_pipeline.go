package taskflow

import "sync"

// ScalablePipeline is a Pipeline whose active pipe range can be
// reseated between runs without rebuilding the graph it's composed
// into: the backing pipe slice is fixed at construction, but which
// contiguous [begin, end) slice of it is live, and how many lines
// serve it, can change via Reset.
type ScalablePipeline struct {
	mu    sync.Mutex
	pipes []Pipe

	lines      int
	begin, end int
	active     *Pipeline
}

// NewScalablePipeline returns a ScalablePipeline initially running the
// full pipe sequence over lines lines.
func NewScalablePipeline(lines int, pipes ...Pipe) *ScalablePipeline {
	if len(pipes) == 0 {
		panic("taskflow: scalable pipeline needs at least one pipe")
	}
	sp := &ScalablePipeline{pipes: pipes}
	sp.Reset(lines, 0, len(pipes))
	return sp
}

// Reset reseats the pipeline onto a new line count and a new [begin,
// end) slice of the backing pipe sequence, discarding all gate/defer
// state and restarting token generation from zero.
func (sp *ScalablePipeline) Reset(lines, begin, end int) {
	if lines <= 0 {
		panic("taskflow: scalable pipeline needs at least one line")
	}
	if begin < 0 || end > len(sp.pipes) || begin >= end {
		panic("taskflow: invalid scalable pipeline range")
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.lines = lines
	sp.begin = begin
	sp.end = end
	sp.active = NewPipeline(lines, sp.pipes[begin:end]...)
}

// ResetTokens rewinds the currently active range back to token zero
// without changing the line count or pipe range.
func (sp *ScalablePipeline) ResetTokens() {
	sp.mu.Lock()
	active := sp.active
	sp.mu.Unlock()
	active.Reset()
}

// Run drives the currently active pipe range to completion.
func (sp *ScalablePipeline) Run() {
	sp.mu.Lock()
	active := sp.active
	sp.mu.Unlock()
	active.Run()
}

// NumLines reports the currently configured line count.
func (sp *ScalablePipeline) NumLines() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.lines
}

// NumPipes reports the size of the currently active pipe range.
func (sp *ScalablePipeline) NumPipes() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.end - sp.begin
}

// NumTokens reports how many tokens the active range has generated.
func (sp *ScalablePipeline) NumTokens() uint64 {
	sp.mu.Lock()
	active := sp.active
	sp.mu.Unlock()
	return active.NumTokens()
}
