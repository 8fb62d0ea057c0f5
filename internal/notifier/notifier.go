// Package notifier coordinates park/unpark of a fixed set of worker
// goroutines without lost wake-ups: if a notify happens after a
// worker has reserved its intent to sleep (PrepareWait) but before it
// actually parks (CommitWait), the worker observes the notification
// instead of sleeping through it.
//
// This is the standard "eventcount" construction: an epoch counter
// bumped under the same mutex as the condition variable. A waiter
// captures the epoch before re-checking its work sources; if the
// epoch has already moved by the time it commits to waiting, it never
// blocks.
package notifier

import "sync"

// Notifier coordinates N waiters via an epoch counter.
type Notifier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	epoch uint64
}

// New returns a ready-to-use Notifier.
func New() *Notifier {
	n := &Notifier{}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// PrepareWait reserves an intent to sleep and returns the epoch to
// pass to CommitWait/CancelWait.
func (n *Notifier) PrepareWait() (epoch uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.epoch
}

// CommitWait blocks until a notification arrives whose epoch is past
// the one returned by PrepareWait, i.e. published after the intent to
// sleep was recorded.
func (n *Notifier) CommitWait(epoch uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for n.epoch == epoch {
		n.cond.Wait()
	}
}

// CancelWait aborts a reservation; the caller found work on its own
// and will not park. PrepareWait only snapshots the epoch, so there
// is no reservation state to unwind.
func (n *Notifier) CancelWait(epoch uint64) {}

// NotifyOne wakes at least one parked (or about-to-park) waiter.
func (n *Notifier) NotifyOne() {
	n.mu.Lock()
	n.epoch++
	n.mu.Unlock()
	n.cond.Signal()
}

// NotifyAll wakes every parked (or about-to-park) waiter.
func (n *Notifier) NotifyAll() {
	n.mu.Lock()
	n.epoch++
	n.mu.Unlock()
	n.cond.Broadcast()
}
