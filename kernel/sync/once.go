package sync

import "sync/atomic"

// Once runs an action exactly once. Unlike the standard library version it is
// built on a Spinlock and can therefore be used before the scheduler is up.
type Once struct {
	lock Spinlock
	done uint32
}

// Do calls fn if and only if Do is being called for the first time for this
// instance. Concurrent callers spin until the first call returns. Do reports
// whether fn was invoked by this call.
func (o *Once) Do(fn func()) bool {
	if atomic.LoadUint32(&o.done) != 0 {
		return false
	}

	o.lock.Acquire()
	defer o.lock.Release()

	if o.done != 0 {
		return false
	}

	defer atomic.StoreUint32(&o.done, 1)
	fn()
	return true
}

// Done reports whether the action has completed.
func (o *Once) Done() bool {
	return atomic.LoadUint32(&o.done) != 0
}
