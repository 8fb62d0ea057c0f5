// Package gls is a narrow goroutine-local slot used only for the
// diagnostic Executor.ThisWorkerID surface . Nothing on the
// scheduling-correctness path depends on it: the scheduler always
// threads the owning *worker explicitly through its call chain.
package gls

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var (
	mu   sync.RWMutex
	ids  = map[uint64]int{}
)

// goroutineID parses the numeric id out of runtime.Stack's header
// line ("goroutine 123 [running]:"). It is a best-effort diagnostic
// helper, not a correctness primitive.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Bind associates the calling goroutine with workerID.
func Bind(workerID int) {
	gid := goroutineID()
	if gid == 0 {
		return
	}
	mu.Lock()
	ids[gid] = workerID
	mu.Unlock()
}

// Unbind removes the calling goroutine's association.
func Unbind() {
	gid := goroutineID()
	if gid == 0 {
		return
	}
	mu.Lock()
	delete(ids, gid)
	mu.Unlock()
}

// Lookup returns the worker id bound to the calling goroutine, if any.
func Lookup() (int, bool) {
	gid := goroutineID()
	if gid == 0 {
		return 0, false
	}
	mu.RLock()
	id, ok := ids[gid]
	mu.RUnlock()
	return id, ok
}
