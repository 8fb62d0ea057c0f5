package taskflow

// DataPipe is one stage of a DataPipeline: stage 0 produces a value
// from just the Pipeflow; every later stage consumes the previous
// stage's value (boxed as any) alongside the Pipeflow and produces its
// own. The last stage's return value, if any, is simply never read.
type DataPipe struct {
	typ PipeType
	fn  func(prev any, pf *Pipeflow) any
}

// NewDataPipe returns a DataPipe running fn under the given
// discipline. prev is nil for the first stage.
func NewDataPipe(typ PipeType, fn func(prev any, pf *Pipeflow) any) DataPipe {
	return DataPipe{typ: typ, fn: fn}
}

// TypedSourceDataPipe adapts a typed, argument-less producer into a
// DataPipe suitable as stage 0.
func TypedSourceDataPipe[Out any](typ PipeType, fn func(*Pipeflow) Out) DataPipe {
	return DataPipe{typ: typ, fn: func(_ any, pf *Pipeflow) any {
		return fn(pf)
	}}
}

// TypedDataPipe adapts a typed transform into a DataPipe suitable as
// an interior stage.
func TypedDataPipe[In, Out any](typ PipeType, fn func(In, *Pipeflow) Out) DataPipe {
	return DataPipe{typ: typ, fn: func(prev any, pf *Pipeflow) any {
		var in In
		if prev != nil {
			in = prev.(In)
		}
		return fn(in, pf)
	}}
}

// TypedSinkDataPipe adapts a typed consumer with no output into a
// DataPipe suitable as the final stage.
func TypedSinkDataPipe[In any](typ PipeType, fn func(In, *Pipeflow)) DataPipe {
	return DataPipe{typ: typ, fn: func(prev any, pf *Pipeflow) any {
		var in In
		if prev != nil {
			in = prev.(In)
		}
		fn(in, pf)
		return nil
	}}
}

// DataPipeline generalizes Pipeline with a typed value threaded
// through stages instead of side effects alone. Each line owns a
// slot array of length NumPipes+1 (one slot per inter-stage boundary),
// allocated once and reused every token, so steady-state running
// allocates only the boxed value itself, never the slot holder.
type DataPipeline struct {
	slots [][]any // [line][stage boundary]
	p     *Pipeline
}

// NewDataPipeline returns a DataPipeline with lines concurrent lines
// running the given stage sequence.
func NewDataPipeline(lines int, stages ...DataPipe) *DataPipeline {
	if len(stages) == 0 {
		panic("taskflow: data pipeline needs at least one stage")
	}
	dp := &DataPipeline{}
	dp.slots = make([][]any, lines)
	for l := range dp.slots {
		dp.slots[l] = make([]any, len(stages)+1)
	}
	pipes := make([]Pipe, len(stages))
	for i, stage := range stages {
		pipes[i] = dp.wrap(i, stage)
	}
	dp.p = NewPipeline(lines, pipes...)
	return dp
}

func (dp *DataPipeline) wrap(i int, stage DataPipe) Pipe {
	return Pipe{typ: stage.typ, fn: func(pf *Pipeflow) {
		var prev any
		if i > 0 {
			prev = dp.slots[pf.Line()][i]
		}
		out := stage.fn(prev, pf)
		if i+1 < len(dp.slots[pf.Line()]) {
			dp.slots[pf.Line()][i+1] = out
		}
	}}
}

// NumLines reports the configured line count.
func (dp *DataPipeline) NumLines() int { return dp.p.NumLines() }

// NumPipes reports the configured stage count.
func (dp *DataPipeline) NumPipes() int { return dp.p.NumPipes() }

// NumTokens reports how many tokens the source stage generated before
// the run stopped.
func (dp *DataPipeline) NumTokens() uint64 { return dp.p.NumTokens() }

// Reset clears gate/defer state and every slot, ready to run again
// from token zero.
func (dp *DataPipeline) Reset() {
	dp.p.Reset()
	for _, s := range dp.slots {
		for i := range s {
			s[i] = nil
		}
	}
}

// Run drives the pipeline to completion.
func (dp *DataPipeline) Run() { dp.p.Run() }
