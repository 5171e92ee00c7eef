package orm

import (
	"sync/atomic"
	"time"
)

// QueryTracker counts in-flight queries so shutdown can drain them before the
// connection pool is closed.
type QueryTracker struct {
	activeQueries int32
}

func (qt *QueryTracker) BeforeQuery() {
	atomic.AddInt32(&qt.activeQueries, 1)
}

func (qt *QueryTracker) AfterQuery() {
	atomic.AddInt32(&qt.activeQueries, -1)
}

func (qt *QueryTracker) Active() int {
	return int(atomic.LoadInt32(&qt.activeQueries))
}

// WaitForAllQueries blocks until no query is in flight or timeout elapses.
// It reports whether the tracker drained.
func (qt *QueryTracker) WaitForAllQueries(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for atomic.LoadInt32(&qt.activeQueries) > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}
