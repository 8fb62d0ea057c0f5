package taskflow

import (
	"sync"

	xsemaphore "golang.org/x/sync/semaphore"
)

// Semaphore is a counted permit store bound to a node's acquire /
// release edges. Permits are tracked with
// golang.org/x/sync/semaphore.Weighted's TryAcquire so a failed
// acquire never blocks the calling worker: instead the node is
// enqueued on waiters and re-scheduled by whichever release frees a
// permit for it.
type Semaphore struct {
	w   *xsemaphore.Weighted
	max int64

	mu      sync.Mutex
	held    int64
	waiters []*innerNode
}

// NewSemaphore returns a semaphore with n permits.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{w: xsemaphore.NewWeighted(n), max: n}
}

// Count reports the number of permits currently available.
func (s *Semaphore) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max - s.held
}

// tryAcquire attempts to take one permit without blocking.
func (s *Semaphore) tryAcquire() bool {
	if !s.w.TryAcquire(1) {
		return false
	}
	s.mu.Lock()
	s.held++
	s.mu.Unlock()
	return true
}

// enqueueWaiter registers n to be retried the next time a permit
// frees up.
func (s *Semaphore) enqueueWaiter(n *innerNode) {
	s.mu.Lock()
	s.waiters = append(s.waiters, n)
	s.mu.Unlock()
}

// release returns one permit and, if a waiter is queued, dequeues and
// returns it so the caller can reschedule it.
func (s *Semaphore) release() (woken *innerNode) {
	s.mu.Lock()
	s.held--
	if len(s.waiters) > 0 {
		woken = s.waiters[0]
		s.waiters = s.waiters[1:]
	}
	s.mu.Unlock()
	s.w.Release(1)
	return woken
}

// CriticalSection is a convenience wrapper over a size-K semaphore
// that binds acquire/release to every task added via Add.
type CriticalSection struct {
	sem *Semaphore
}

// NewCriticalSection returns a critical section admitting at most n
// concurrent tasks.
func NewCriticalSection(n int64) *CriticalSection {
	return &CriticalSection{sem: NewSemaphore(n)}
}

// Add binds this critical section's semaphore to every task's
// acquire/release lists and returns the critical section for
// chaining.
func (c *CriticalSection) Add(tasks ...Task) *CriticalSection {
	for _, t := range tasks {
		t.Acquire(c.sem)
		t.Release(c.sem)
	}
	return c
}

// Semaphore exposes the backing semaphore, e.g. to inspect Count.
func (c *CriticalSection) Semaphore() *Semaphore { return c.sem }
