// Package rc provides a small atomic reference/join counter used to
// track in-flight dependents and remaining-task counts.
package rc

import "sync/atomic"

// RC is an atomic non-negative counter. Nodes use it as a join
// counter; graphs and topologies use it as a remaining-tasks counter.
type RC struct {
	v atomic.Int64
}

// New returns a zeroed counter.
func New() *RC {
	return &RC{}
}

// Increase bumps the counter by one and returns the new value.
func (r *RC) Increase() int64 {
	return r.v.Add(1)
}

// Add bumps the counter by delta and returns the new value.
func (r *RC) Add(delta int64) int64 {
	return r.v.Add(delta)
}

// Decrease drops the counter by one and returns the new value.
func (r *RC) Decrease() int64 {
	return r.v.Add(-1)
}

// Value returns the current count.
func (r *RC) Value() int64 {
	return r.v.Load()
}

// Set forces the counter to an absolute value.
func (r *RC) Set(v int64) {
	r.v.Store(v)
}
