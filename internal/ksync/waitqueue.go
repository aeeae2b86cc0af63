// Package ksync implements the blocking primitives of spec.md section 4.4:
// waitqueues, mutexes, counting semaphores, read/write semaphores, and
// spinlocks. A waitqueue's "sleep on insert, drain in bulk on wake"
// semantics are modeled with one buffered channel per waiter instead of the
// teacher's inline-asm sleep_thread/switch_task pair: blocking a goroutine
// on a channel receive is the natural, idiomatic Go analogue of "this task
// is not runnable until someone sends it a wakeup."
package ksync

import (
	"sync"
	"sync/atomic"
)

// Waiter is one task's membership token in a Waitqueue. A task appears in
// at most one waitqueue at a time, matching spec.md's invariant.
type Waiter struct {
	ready         chan struct{}
	interruptible bool
	interrupted   int32
}

// NewWaiter allocates a waiter. interruptible records whether an external
// Interrupt() call (e.g. a pre-armed timeout) may wake this waiter early,
// per spec.md's SLEEP_INTERRUPTED hint.
func NewWaiter(interruptible bool) *Waiter {
	return &Waiter{ready: make(chan struct{}, 1), interruptible: interruptible}
}

// Interrupted reports whether this waiter was woken via Interrupt rather
// than a normal WakeAll drain.
func (w *Waiter) Interrupted() bool { return atomic.LoadInt32(&w.interrupted) != 0 }

// Waitqueue is an ordered (FIFO by insertion) list of waiting tasks, woken
// in bulk, per spec.md section 4.4.
type Waitqueue struct {
	mu   sync.Mutex
	list []*Waiter
}

// NewWaitqueue returns an empty waitqueue.
func NewWaitqueue() *Waitqueue {
	return &Waitqueue{}
}

// enqueue appends w to the tail of the FIFO.
func (wq *Waitqueue) enqueue(w *Waiter) {
	wq.mu.Lock()
	wq.list = append(wq.list, w)
	wq.mu.Unlock()
}

// Len reports the current number of waiters, for tests and introspection.
func (wq *Waitqueue) Len() int {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return len(wq.list)
}

// WakeAll moves every waiter to the run queue atomically (interrupts
// disabled, per spec.md), implemented here as a single lock-held drain of
// the waiter list followed by a non-blocking send to each waiter's channel.
func (wq *Waitqueue) WakeAll() {
	wq.mu.Lock()
	waiters := wq.list
	wq.list = nil
	wq.mu.Unlock()
	for _, w := range waiters {
		select {
		case w.ready <- struct{}{}:
		default:
		}
	}
}

// Interrupt wakes a single waiter out of band (e.g. a timer the caller
// pre-armed) and records that the wake was an interruption, mirroring
// spec.md's cancellation model in section 5. It is a no-op if the waiter
// is not marked interruptible.
func Interrupt(w *Waiter) bool {
	if !w.interruptible {
		return false
	}
	atomic.StoreInt32(&w.interrupted, 1)
	select {
	case w.ready <- struct{}{}:
	default:
	}
	return true
}

// Sleep blocks the calling goroutine until wq wakes it (via WakeAll or, if
// interruptible, Interrupt), mirroring sleep_thread(wq, flags) followed by
// switch_task(0) from spec.md section 4.3: the caller is removed from
// whatever run-queue bookkeeping it was in by the caller of Sleep (see
// sched.Kernel.SleepOn, which does the same through SleepWaiter with state
// tracking) before control ever reaches here.
func Sleep(wq *Waitqueue, interruptible bool) (interrupted bool) {
	w := NewWaiter(interruptible)
	wq.enqueue(w)
	<-w.ready
	return w.Interrupted()
}

// SleepWaiter is like Sleep but lets the caller retain the Waiter handle
// before blocking, so an external actor can race an Interrupt() against the
// enqueue (used by block-layer IRQ-timeout waits, spec.md section 5).
func SleepWaiter(wq *Waitqueue, interruptible bool) *Waiter {
	w := NewWaiter(interruptible)
	wq.enqueue(w)
	return w
}

// Wait blocks until w is woken.
func (w *Waiter) Wait() (interrupted bool) {
	<-w.ready
	return w.Interrupted()
}
