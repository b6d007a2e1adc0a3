package syncx

import (
	"sync"
	"sync/atomic"
)

// HostLock is the host runtime's global execution lock. The engine releases it
// while native work runs and reacquires it before touching host-owned objects.
type HostLock interface {
	Lock()
	Unlock()
}

// Released is a scoped release of a HostLock. It is created by Release and
// ended by Restore, which is safe to defer and to call more than once.
type Released struct {
	lock    HostLock
	restore sync.Once
	done    atomic.Bool
	mu      sync.Mutex // serializes Hold callers from concurrent tasks
}

// Release unlocks lock and returns the guard that restores it. A nil lock
// yields a no-op guard.
func Release(lock HostLock) *Released {
	if lock != nil {
		lock.Unlock()
	}
	return &Released{lock: lock}
}

// Restore reacquires the lock. Only the first call has an effect.
func (r *Released) Restore() {
	r.restore.Do(func() {
		if r.lock != nil {
			r.lock.Lock()
		}
		r.done.Store(true)
	})
}

// Hold reacquires the lock for the duration of fn and releases it again on
// every exit path, panics included. After Restore the lock is already held
// and fn runs directly.
func (r *Released) Hold(fn func()) {
	if r.lock == nil || r.done.Load() {
		fn()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lock.Lock()
	defer r.lock.Unlock()
	fn()
}
