package notifier

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNoLostWakeup races PrepareWait/CommitWait against NotifyOne many
// times; every notify sent after a waiter has prepared must eventually
// be observed, never lost to the gap between checking for work and
// committing to sleep.
func TestNoLostWakeup(t *testing.T) {
	n := New()
	const rounds = 2000

	var woken atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			epoch := n.PrepareWait()
			n.CommitWait(epoch)
			woken.Add(1)
		}
	}()

	for i := 0; i < rounds; i++ {
		n.NotifyOne()
		time.Sleep(time.Microsecond)
	}
	wg.Wait()
	assert.Equal(t, int64(rounds), woken.Load())
}

func TestCancelWaitDoesNotBlockLaterNotifyAll(t *testing.T) {
	n := New()
	epoch := n.PrepareWait()
	n.CancelWait(epoch)

	done := make(chan struct{})
	go func() {
		n.NotifyAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyAll blocked")
	}
}
