package taskflow

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// attr is the static, dumpable description of a span (grounded on the
// teacher executor.go's attr{typ, name} literal).
type attr struct {
	typ  TaskType
	name string
}

// span is one executed node's timing record, chained to its parent so
// Dynamic/Module/Runtime nesting renders as an indented flame graph.
type span struct {
	extra  attr
	begin  time.Time
	cost   time.Duration
	parent *span
}

func (s *span) depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// profiler accumulates spans for later rendering as flame-graph text.
type profiler struct {
	mu      sync.Mutex
	spans   []*span
	enabled bool
}

func newProfiler(enabled bool) *profiler {
	return &profiler{enabled: enabled}
}

// AddSpan records a finished span unless profiling is disabled.
func (p *profiler) AddSpan(s *span) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = append(p.spans, s)
}

// draw renders every recorded span as one indented line:
// "  name [TYPE] 1.2ms".
func (p *profiler) draw(w io.Writer) error {
	p.mu.Lock()
	spans := append([]*span(nil), p.spans...)
	p.mu.Unlock()

	for _, s := range spans {
		indent := strings.Repeat("  ", s.depth())
		if _, err := fmt.Fprintf(w, "%s%s [%s] %s\n", indent, s.extra.name, s.extra.typ, s.cost); err != nil {
			return err
		}
	}
	return nil
}

// reset clears accumulated spans, e.g. between demo runs.
func (p *profiler) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = p.spans[:0]
}
