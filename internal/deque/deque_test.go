package deque

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopIsLIFO(t *testing.T) {
	d := New[int](4)
	for i := 0; i < 5; i++ {
		d.Push(i)
	}
	require.Equal(t, 5, d.Len())
	for i := 4; i >= 0; i-- {
		v, ok := d.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := d.Pop()
	assert.False(t, ok)
}

func TestStealIsFIFO(t *testing.T) {
	d := New[int](4)
	for i := 0; i < 5; i++ {
		d.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, res := d.Steal()
		require.Equal(t, Success, res)
		assert.Equal(t, i, v)
	}
	_, res := d.Steal()
	assert.Equal(t, Empty, res)
}

func TestGrowPreservesOrder(t *testing.T) {
	d := New[int](0) // clamps to minCapacity
	n := minCapacity * 3
	for i := 0; i < n; i++ {
		d.Push(i)
	}
	require.Equal(t, n, d.Len())
	for i := n - 1; i >= 0; i-- {
		v, ok := d.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestConcurrentStealDrainsExactlyOnce(t *testing.T) {
	d := New[int](4)
	const n = 2000
	for i := 0; i < n; i++ {
		d.Push(i)
	}

	var mu sync.Mutex
	seen := make(map[int]bool, n)
	var wg sync.WaitGroup
	for t := 0; t < 8; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, res := d.Steal()
				if res == Empty {
					return
				}
				if res == Abort {
					continue
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
