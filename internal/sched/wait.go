package sched

import "github.com/dionysus-os/kernel/internal/ksync"

// SleepOn blocks the current goroutine's task on wq, per spec.md's
// sleep_thread(queue, interruptible). The tri-state invariant (run-queue XOR
// waitqueue XOR current) is maintained here: the task is pulled off the run
// queue before blocking and, once woken, is pushed back on before SleepOn
// returns.
func (k *Kernel) SleepOn(t *Task, wq *ksync.Waitqueue, interruptible bool) (interrupted bool) {
	k.mu.Lock()
	k.dequeueRun(t)
	t.state = StateSleeping
	t.wq = wq
	w := ksync.SleepWaiter(wq, interruptible)
	t.waiter = w
	k.mu.Unlock()

	interrupted = w.Wait()

	k.mu.Lock()
	t.wq = nil
	t.waiter = nil
	k.enqueueRun(t)
	k.mu.Unlock()

	return interrupted
}

// WakeQueue wakes every task blocked on wq, per spec.md's wake_queue(queue):
// "all sleepers on a queue are woken (no single-wake primitive is named)."
func (k *Kernel) WakeQueue(wq *ksync.Waitqueue) {
	wq.WakeAll()
}

// Interrupt delivers SLEEP_INTERRUPTED to a single task sleeping
// interruptibly, per spec.md section 3's signal Non-goal carve-out (the one
// signal-like mechanism that is in scope).
func (k *Kernel) Interrupt(t *Task) bool {
	k.mu.Lock()
	w := t.waiter
	k.mu.Unlock()
	if w == nil {
		return false
	}
	return ksync.Interrupt(w)
}
