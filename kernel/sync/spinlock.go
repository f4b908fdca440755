// Package sync provides synchronization primitives that work without the Go
// scheduler or heap: spinlocks and a run-once guard.
package sync

import "sync/atomic"

// spinsBeforeYield is the number of failed acquire attempts after which
// Acquire invokes yieldFn (if one is installed).
const spinsBeforeYield = 64

var (
	// yieldFn is invoked periodically while spinning. It stays nil until
	// the kernel is able to context-switch.
	yieldFn func()
)

// SetYieldFn installs the function that spinning tasks call periodically to
// give up the CPU. Passing nil restores pure busy-waiting.
func SetYieldFn(fn func()) {
	yieldFn = fn
}

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. The zero value is an unlocked Spinlock and
// a Spinlock holds no pointers, so it may be embedded in structures that live
// outside the Go heap.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for spins := 0; !l.TryToAcquire(); spins++ {
		if spins == spinsBeforeYield {
			spins = 0
			if yieldFn != nil {
				yieldFn()
			}
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Reset forces the lock into the released state. It must only be used when
// (re)initializing the memory that holds the lock.
func (l *Spinlock) Reset() {
	atomic.StoreUint32(&l.state, 0)
}

// IsHeld reports whether the lock is currently acquired.
func (l *Spinlock) IsHeld() bool {
	return atomic.LoadUint32(&l.state) != 0
}
