package ksync

import (
	"runtime"
	"sync/atomic"
)

// Yield is called by Spinlock.Lock on every failed test-and-set attempt. It
// defaults to runtime.Gosched, a plain scheduling yield. spec.md section 4.4
// says a spinlock "spins with sleep_thread backoff under contention" but
// sleep_thread lives in package sched, one layer above ksync (scheduler
// depends on waitqueues, not the reverse) — wiring the real backoff would
// invert that dependency. Nothing in this tree overrides Yield, so a
// contended Lock yields the goroutine and retries; it never sleeps on a
// waitqueue.
var Yield func() = runtime.Gosched

// Spinlock is a test-and-set lock for short critical sections that must not
// cross a blocking call, per spec.md section 4.4.
type Spinlock struct {
	state int32
}

// Lock spins until the lock is acquired.
func (s *Spinlock) Lock() {
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		Yield()
	}
}

// Unlock releases the lock. Unlock by a non-holder is undefined, per
// spec.md.
func (s *Spinlock) Unlock() {
	atomic.StoreInt32(&s.state, 0)
}

// TryLock attempts to acquire without spinning, returning whether it
// succeeded.
func (s *Spinlock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&s.state, 0, 1)
}
