package taskflow

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipelineTokenLineAssignment checks that every generated token is
// visited by every pipe exactly once and lands on line == token % L.
func TestPipelineTokenLineAssignment(t *testing.T) {
	const lines = 4
	const tokenLimit = 97

	var mu sync.Mutex
	seenAtStage := make([][]uint64, 3)

	record := func(stage int) func(*Pipeflow) {
		return func(pf *Pipeflow) {
			mu.Lock()
			seenAtStage[stage] = append(seenAtStage[stage], pf.Token())
			mu.Unlock()
			assert.Equal(t, int(pf.Token()%uint64(lines)), pf.Line())
		}
	}

	source := NewPipe(SERIAL, func(pf *Pipeflow) {
		if pf.Token() >= tokenLimit {
			pf.Stop()
			return
		}
		record(0)(pf)
	})
	middle := NewPipe(PARALLEL, record(1))
	sink := NewPipe(SERIAL, record(2))

	p := NewPipeline(lines, source, middle, sink)
	p.Run()

	require.EqualValues(t, tokenLimit, p.NumTokens())
	for _, stage := range seenAtStage {
		sort.Slice(stage, func(i, j int) bool { return stage[i] < stage[j] })
		require.Len(t, stage, tokenLimit)
		for i, tok := range stage {
			assert.EqualValues(t, i, tok)
		}
	}
}

// TestSerialPipeObservesStrictTokenOrder checks the ordering guarantee
// a SERIAL pipe must provide even though multiple lines feed it.
func TestSerialPipeObservesStrictTokenOrder(t *testing.T) {
	const lines = 3
	const tokenLimit = 60

	var mu sync.Mutex
	var order []uint64

	source := NewPipe(SERIAL, func(pf *Pipeflow) {
		if pf.Token() >= tokenLimit {
			pf.Stop()
		}
	})
	sink := NewPipe(SERIAL, func(pf *Pipeflow) {
		mu.Lock()
		order = append(order, pf.Token())
		mu.Unlock()
	})

	p := NewPipeline(lines, source, sink)
	p.Run()

	require.Len(t, order, tokenLimit)
	for i, tok := range order {
		assert.EqualValues(t, i, tok)
	}
}

// TestDeferBlocksUntilTargetTokenCompletesPipe exercises a PARALLEL
// pipe where every odd token defers onto the preceding even token; the
// deferred token must observe NumDeferrals()==1 on its second entry
// and must not finish before the token it deferred on.
func TestDeferBlocksUntilTargetTokenCompletesPipe(t *testing.T) {
	const lines = 4
	const tokenLimit = 40

	var mu sync.Mutex
	finished := make(map[uint64]bool)
	var violations int

	source := NewPipe(SERIAL, func(pf *Pipeflow) {
		if pf.Token() >= tokenLimit {
			pf.Stop()
		}
	})
	middle := NewPipe(PARALLEL, func(pf *Pipeflow) {
		if pf.Token()%2 == 1 && pf.NumDeferrals() == 0 {
			pf.Defer(pf.Token() - 1)
			return
		}
		mu.Lock()
		if pf.Token()%2 == 1 && !finished[pf.Token()-1] {
			violations++
		}
		finished[pf.Token()] = true
		mu.Unlock()
	})

	p := NewPipeline(lines, source, middle)
	p.Run()

	assert.Equal(t, 0, violations)
	assert.EqualValues(t, tokenLimit, p.NumTokens())
}

// TestStopOutsideFirstPipeIsNoOp checks that calling Stop from a pipe
// other than the first neither panics nor halts the pipeline early.
func TestStopOutsideFirstPipeIsNoOp(t *testing.T) {
	const lines = 2
	const tokenLimit = 12
	var mu sync.Mutex
	var seen int

	source := NewPipe(SERIAL, func(pf *Pipeflow) {
		if pf.Token() >= tokenLimit {
			pf.Stop()
		}
	})
	middle := NewPipe(PARALLEL, func(pf *Pipeflow) {
		assert.NotPanics(t, func() { pf.Stop() })
		mu.Lock()
		seen++
		mu.Unlock()
	})

	p := NewPipeline(lines, source, middle)
	p.Run()

	assert.EqualValues(t, tokenLimit, p.NumTokens())
	assert.Equal(t, tokenLimit, seen)
}

func TestScalablePipelineResetChangesRange(t *testing.T) {
	var calls []int
	pipes := []Pipe{
		NewPipe(SERIAL, func(pf *Pipeflow) {
			if pf.Token() >= 5 {
				pf.Stop()
			}
		}),
		NewPipe(PARALLEL, func(pf *Pipeflow) { calls = append(calls, 1) }),
		NewPipe(PARALLEL, func(pf *Pipeflow) { calls = append(calls, 2) }),
	}

	sp := NewScalablePipeline(2, pipes...)
	require.Equal(t, 3, sp.NumPipes())
	sp.Run()
	firstRunCalls := len(calls)
	assert.Positive(t, firstRunCalls)

	sp.Reset(2, 0, 1) // only the source pipe
	calls = nil
	sp.Run()
	assert.Empty(t, calls)
	assert.Equal(t, 1, sp.NumPipes())
}

func TestDataPipelineThreadsTypedValues(t *testing.T) {
	const lines = 2
	const tokenLimit = 10
	var mu sync.Mutex
	var sums []int

	source := TypedSourceDataPipe(SERIAL, func(pf *Pipeflow) int {
		if pf.Token() >= tokenLimit {
			pf.Stop()
			return 0
		}
		return int(pf.Token())
	})
	double := TypedDataPipe(PARALLEL, func(in int, _ *Pipeflow) int {
		return in * 2
	})
	sink := TypedSinkDataPipe(SERIAL, func(in int, _ *Pipeflow) {
		mu.Lock()
		sums = append(sums, in)
		mu.Unlock()
	})

	dp := NewDataPipeline(lines, source, double, sink)
	dp.Run()

	require.Len(t, sums, tokenLimit)
	sort.Ints(sums)
	for i, v := range sums {
		assert.Equal(t, i*2, v)
	}
}
