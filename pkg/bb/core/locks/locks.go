// Package locks provides the host-level coarse lock domain shared between the
// burst-buffer engine and the embedding scheduler. The host lock covers broader
// scheduler-visible job state and must always be acquired before the registry's
// internal mutex and released after it, so that registry housekeeping stays
// consistent with host-visible job state without lock-ordering deadlock.
package locks

import "sync"

// Mode selects how a lock domain is acquired.
type Mode int

const (
	// NoLock leaves the domain untouched.
	NoLock Mode = iota
	// ReadLock acquires the domain shared.
	ReadLock
	// WriteLock acquires the domain exclusive.
	WriteLock
)

// HostLock is the coarse read/write lock of the embedding host. The engine
// acquires it in write mode around registry housekeeping; the host's own
// request-handling goroutines acquire it around scheduler state access.
type HostLock struct {
	mu sync.RWMutex
}

// NewHostLock creates a new HostLock.
func NewHostLock() *HostLock {
	return &HostLock{}
}

// Acquire locks the domain in the given mode. NoLock is a no-op.
func (l *HostLock) Acquire(mode Mode) {
	switch mode {
	case ReadLock:
		l.mu.RLock()
	case WriteLock:
		l.mu.Lock()
	}
}

// Release unlocks the domain for the given mode. NoLock is a no-op.
// The mode must match the one passed to Acquire.
func (l *HostLock) Release(mode Mode) {
	switch mode {
	case ReadLock:
		l.mu.RUnlock()
	case WriteLock:
		l.mu.Unlock()
	}
}
