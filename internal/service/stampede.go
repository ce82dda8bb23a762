package service

import (
	"sync"
)

// stampedeTracker counts refreshes in progress per key. Concurrent refreshes
// of one key are allowed; the tracker only makes them visible in metrics.
type stampedeTracker struct {
	mu     sync.Mutex
	active map[int64]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		active: make(map[int64]int),
	}
}

// Begin records a refresh for key and returns the number now in progress.
// Callers defer End(key).
func (st *stampedeTracker) Begin(key int64) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active[key]++
	return st.active[key]
}

// End records completion of a refresh for key.
func (st *stampedeTracker) End(key int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if count, ok := st.active[key]; ok && count > 0 {
		st.active[key]--
		if st.active[key] == 0 {
			delete(st.active, key)
		}
	}
}
