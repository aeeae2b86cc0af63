// Package sched implements the scheduler of spec.md section 4.3: the
// process table, run queue, process tree, fork, tasklets, sleep/wake, and
// the POSIX process-group/session/credential rules.
//
// This is a hosted simulation: there is no ring-0/ring-3 transition or
// inline-asm context switch to perform, so "switch_task"'s read_eip
// sentinel trick (spec.md section 9's design note) is not reproduced.
// Instead, a task's "execution context" is a Go goroutine, and blocking
// (sleep_thread) is a real channel receive via package ksync. What this
// package owns is exactly the bookkeeping spec.md's testable properties
// are about: run-queue membership, waitqueue membership, the process tree,
// and the tri-state invariant that a task is in the run queue XOR in
// exactly one waitqueue XOR is current.
package sched

import (
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/ksync"
	"github.com/dionysus-os/kernel/internal/vmm"
)

// Pid is a process id. -1 is reserved for the idle task, per spec.md.
type Pid int32

const (
	// IdlePid is the distinguished pid of the idle task.
	IdlePid Pid = -1
	// MaxPid bounds assignable pids, per spec.md's pid in [1, MAX_PID].
	MaxPid Pid = 32768
	// MaxOF is the size of a task's file-descriptor table.
	MaxOF = 64
)

// State is a task's scheduling state, per the tagged-state design note in
// spec.md section 9: {Running, Ready, Sleeping, Zombie}.
type State int

const (
	StateReady State = iota
	StateRunning
	StateSleeping
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Fd is one entry in a task's file-descriptor table: a reference to an
// open VFS node handle plus a per-fd seek offset, per spec.md section 3.
// The Node field is declared as an opaque interface{} here and type-asserted
// to *vfs.Node by callers, to avoid sched importing vfs (vfs's node close
// path is exercised by fork/exit, but the concrete type lives one layer up
// in the dependency graph so that vfs never needs to import sched).
type Fd struct {
	Node   interface{}
	Offset int64
	Flags  int32
}

// Task is the scheduler's central structure, per spec.md section 3.
type Task struct {
	Pid Pid
	Gid Pid
	Sid Pid

	Nice int32

	Ruid, Euid, Suid int32
	Rgid, Egid, Sgid int32

	Cwd  string
	Name string
	Fds  [MaxOF]*Fd

	PageDir     *vmm.PageDirectory
	Brk         uint32
	BrkActual   uint32
	Start       uint32

	state State
	wq    *ksync.Waitqueue
	waiter *ksync.Waiter
	interruptible bool

	Parent   *Task
	Children []*Task

	ticksLeft int32
}

// State reports the task's current scheduling state.
func (t *Task) State() State { return t.state }

// Quantum computes the timer-tick slice a task of the given niceness
// receives, per spec.md section 4.3: 10*(20-nice). Higher-nice (politer)
// tasks receive shorter slices.
func Quantum(nice int32) int32 {
	return 10 * (20 - nice)
}

// SetNice adjusts niceness by inc, clamped to [-20, 19], storing the new
// value in t.Nice. Only a privileged (euid 0) task may lower its niceness
// (raise priority); otherwise it returns EPERM and leaves t.Nice unchanged,
// matching the teacher's task.c:nice().
func (t *Task) SetNice(inc int32) common.Errno {
	if inc < 0 && t.Euid != 0 {
		return common.EPERM
	}
	n := t.Nice + inc
	if n > 19 {
		n = 19
	} else if n < -20 {
		n = -20
	}
	t.Nice = n
	return 0
}
