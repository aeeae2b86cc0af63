package sched

import "github.com/dionysus-os/kernel/internal/perf"

// ArmQuantum resets t's remaining tick budget to Quantum(t.Nice), per
// spec.md section 4.3, called whenever the scheduler dispatches t.
func (k *Kernel) ArmQuantum(t *Task) {
	t.ticksLeft = Quantum(t.Nice)
}

// ConsumeTick accounts for one hal.PIT tick against the currently running
// task, recording the event on k.Perf and reporting whether the task's
// quantum has been exhausted (the scheduler should preempt).
func (k *Kernel) ConsumeTick(t *Task) (exhausted bool) {
	k.Perf.Record(perf.EventTick)
	t.ticksLeft--
	return t.ticksLeft <= 0
}

// TicksLeft reports a task's remaining quantum, for tests.
func (t *Task) TicksLeft() int32 { return t.ticksLeft }
