package common

import "fmt"

// Panicker is satisfied by the kernel's logger so that common.Panic can log
// the fatal condition before halting, without common importing klog. klog
// imports nothing from common today; routing through this interface keeps
// the leaf package common free of a logging dependency.
type Panicker interface {
	Fatalf(format string, args ...interface{})
}

// panicker is installed once at boot by cmd/kernel; defaults to nil, in
// which case Panic falls back to the stdlib panic directly.
var panicker Panicker

// InstallPanicker lets cmd/kernel wire klog in before any subsystem runs.
func InstallPanicker(p Panicker) { panicker = p }

// Panic implements the "immediate fatal, no recovery" error kind from
// spec.md section 7: PANIC(line, file, msg) disables interrupts and halts.
// In this hosted simulation that is modeled as logging at fatal severity
// (which itself terminates the process) with no path back into the
// dispatch loop.
func Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if panicker != nil {
		panicker.Fatalf("PANIC: %s", msg)
	}
	panic("PANIC: " + msg)
}
