package ksync

import (
	"sync/atomic"

	"github.com/dionysus-os/kernel/internal/common"
)

// Mutex is a single 0/1 atomic word plus a waitqueue, per spec.md section
// 4.4: acquire spins on test-and-set, sleeping interruptibly on the queue;
// release clears and wakes the queue. Only the holder may release; a
// double-unlock or unlock-by-non-owner is undefined, as in the teacher.
type Mutex struct {
	word int32
	wq   *Waitqueue
}

// NewMutex returns a mutex, initially locked if locked is true, matching
// create_mutex(locked) from the teacher's structures/mutex.c.
func NewMutex(locked bool) *Mutex {
	m := &Mutex{wq: NewWaitqueue()}
	if locked {
		m.word = 1
	}
	return m
}

// Acquire blocks until the mutex is held. It returns common.EINTR if woken
// by an interrupt before acquiring (spec.md section 7's "interrupted sleep"
// error kind); callers that don't care about interruption should ignore a
// non-nil-but-zero return or use AcquireUninterruptible.
func (m *Mutex) Acquire() common.Errno {
	for !atomic.CompareAndSwapInt32(&m.word, 0, 1) {
		if Sleep(m.wq, true) {
			return common.EINTR
		}
	}
	return 0
}

// AcquireUninterruptible blocks until the mutex is held, ignoring
// interrupts.
func (m *Mutex) AcquireUninterruptible() {
	for !atomic.CompareAndSwapInt32(&m.word, 0, 1) {
		Sleep(m.wq, false)
	}
}

// Release clears the lock and wakes every waiter.
func (m *Mutex) Release() {
	atomic.StoreInt32(&m.word, 0)
	m.wq.WakeAll()
}

// Semaphore is a counting semaphore with a fixed capacity, per spec.md
// section 4.4: acquire increments; if the result exceeds max, it decrements
// back and sleeps; release decrements and wakes.
type Semaphore struct {
	count int32
	max   int32
	wq    *Waitqueue
}

// NewSemaphore returns a semaphore with the given capacity. max must be
// positive, mirroring the teacher's ASSERT(max > 0).
func NewSemaphore(max int) *Semaphore {
	if max <= 0 {
		common.Panic("semaphore max must be positive, got %d", max)
	}
	return &Semaphore{max: int32(max), wq: NewWaitqueue()}
}

// Acquire takes one slot, blocking (interruptibly) while the semaphore is
// at capacity.
func (s *Semaphore) Acquire() common.Errno {
	for {
		if atomic.AddInt32(&s.count, 1) <= s.max {
			return 0
		}
		atomic.AddInt32(&s.count, -1)
		if Sleep(s.wq, true) {
			return common.EINTR
		}
	}
}

// Release frees one slot and wakes waiters.
func (s *Semaphore) Release() {
	atomic.AddInt32(&s.count, -1)
	s.wq.WakeAll()
}

// RWSemaphore composes a write mutex and a counting semaphore of capacity N,
// per spec.md section 4.4: readers take one semaphore slot; a writer takes
// the mutex then drains all N slots, barring new readers.
type RWSemaphore struct {
	write *Mutex
	sem   *Semaphore
	cap   int
}

// NewRWSemaphore returns a read/write semaphore supporting up to max
// concurrent readers.
func NewRWSemaphore(max int) *RWSemaphore {
	return &RWSemaphore{write: NewMutex(false), sem: NewSemaphore(max), cap: max}
}

// RLock acquires one reader slot.
func (r *RWSemaphore) RLock() common.Errno { return r.sem.Acquire() }

// RUnlock releases one reader slot.
func (r *RWSemaphore) RUnlock() { r.sem.Release() }

// Lock acquires the write mutex, then drains every reader slot, barring new
// readers until Unlock.
func (r *RWSemaphore) Lock() {
	r.write.AcquireUninterruptible()
	for i := 0; i < r.cap; i++ {
		r.sem.Acquire()
	}
	r.write.Release()
}

// Unlock reverses Lock: restores all reader slots and wakes waiters.
func (r *RWSemaphore) Unlock() {
	atomic.AddInt32(&r.sem.count, -int32(r.cap))
	r.sem.wq.WakeAll()
}
