// Package condexpr backs Condition and MultiCondition task bodies with
// expr-lang expressions evaluated against a map[string]any data bag,
// instead of hand-written Go closures, so branch logic can be
// reconfigured as data (a config file, a user-authored rule) rather
// than recompiled Go code.
package condexpr

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// programCache is a bounded LRU cache of compiled expr-lang programs
// keyed by source text, so a Condition/MultiCondition body re-run on
// every round only re-parses its expression once.
type programCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key     string
	program *vm.Program
}

func newProgramCache(capacity int) *programCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &programCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *programCache) get(src string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[src]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).program, true
	}
	return nil, false
}

func (c *programCache) put(src string, p *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[src]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).program = p
		return
	}
	el := c.order.PushFront(&cacheEntry{key: src, program: p})
	c.entries[src] = el
	if c.order.Len() > c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Evaluator compiles and caches expr-lang programs. The zero value is
// not usable; construct with NewEvaluator.
type Evaluator struct {
	cache *programCache
}

// NewEvaluator returns an Evaluator caching up to capacity compiled
// programs; capacity <= 0 uses a default of 256.
func NewEvaluator(capacity int) *Evaluator {
	return &Evaluator{cache: newProgramCache(capacity)}
}

func (e *Evaluator) compile(src string, env any, opts ...expr.Option) (*vm.Program, error) {
	if p, ok := e.cache.get(src); ok {
		return p, nil
	}
	p, err := expr.Compile(src, append([]expr.Option{expr.Env(env)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("condexpr: compiling %q: %w", src, err)
	}
	e.cache.put(src, p)
	return p, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Condition returns a taskflow Condition body (func() int) that
// evaluates src against data and returns the resulting branch index.
// data is read fresh on every call, so the same closure can back a
// Condition task across repeated rounds of its topology. Evaluation or
// type errors resolve to -1, which taskflow's dispatcher treats as
// "schedule nothing" rather than panicking.
func (e *Evaluator) Condition(src string, data map[string]any) func() int {
	return func() int {
		program, err := e.compile(src, data, expr.AsInt())
		if err != nil {
			return -1
		}
		out, err := expr.Run(program, data)
		if err != nil {
			return -1
		}
		idx, ok := toInt(out)
		if !ok {
			return -1
		}
		return idx
	}
}

// MultiCondition returns a taskflow MultiCondition body (func() []int)
// evaluating one boolean expression per candidate successor against
// data, returning the indices of the ones that evaluated true.
func (e *Evaluator) MultiCondition(srcs []string, data map[string]any) func() []int {
	return func() []int {
		var chosen []int
		for i, src := range srcs {
			program, err := e.compile(src, data, expr.AsBool())
			if err != nil {
				continue
			}
			out, err := expr.Run(program, data)
			if err != nil {
				continue
			}
			if ok, _ := out.(bool); ok {
				chosen = append(chosen, i)
			}
		}
		return chosen
	}
}
