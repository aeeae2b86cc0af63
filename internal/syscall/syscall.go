// Package syscall implements the dispatch table of spec.md section 6: 32
// numbered system calls (0..31), taking up to six register-width arguments
// and returning a single negated common.Errno plus, for a handful of calls,
// a 64-bit or pointer-shaped result. Grounded on original_source/syscall.c's
// `syscalls[]` table and DEFN_SYSCALLn macros, adapted from "array of
// function pointers invoked through inline asm" to a Go method table, since
// there is no ring transition to cross in this hosted simulation.
package syscall

import (
	"github.com/dionysus-os/kernel/internal/block"
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/devreg"
	"github.com/dionysus-os/kernel/internal/hal"
	"github.com/dionysus-os/kernel/internal/klog"
	"github.com/dionysus-os/kernel/internal/sched"
	"github.com/dionysus-os/kernel/internal/vfs"
)

// Number is a syscall number, 0..31, in the exact order spec.md section 6
// lists them.
type Number int32

const (
	SysFork Number = iota
	SysExit
	SysGetpid
	SysSetpgid
	SysGetpgid
	SysSetsid
	SysGetsid
	SysNice
	SysSetresuid
	SysGetresuid
	SysSetresgid
	SysGetresgid
	SysLseek
	SysPread
	SysRead
	SysPwrite
	SysWrite
	SysOpen
	SysClose
	SysReaddir
	SysStat
	SysChmod
	SysChown
	SysIoctl
	SysLink
	SysUnlink
	SysMknod
	SysMount
	SysUmount
	SysSbrk
	SysExecve
	SysChdir

	NumSyscalls
)

// Args is the register-width argument bundle a syscall receives, mirroring
// EBX, ECX, EDX, ESI, EDI, EBP in spec.md section 6. Each handler
// interprets only the fields it needs; string/buffer arguments are passed
// as Go values directly since there is no user/kernel address space split
// to cross with a copy_from_user.
type Args struct {
	A0, A1, A2, A3, A4, A5 int64
	Str0, Str1, Str2       string
	Buf                    []byte
	Mode                   common.Mode
	Dev                    common.DevT
	Argv, Envp             []string
}

// Result is a syscall's return value: Val is the primary (often 64-bit)
// result, Errno is zero on success.
type Result struct {
	Val   int64
	Errno common.Errno
	Stat  *Stat // populated only by SysStat
}

// Stat is the subset of file metadata spec.md section 3 names as part of a
// Node, returned by the stat syscall.
type Stat struct {
	Ino   uint32
	Mode  common.Mode
	Uid   int32
	Gid   int32
	Size  int64
	Dev   common.DevT
}

// Dispatcher holds every subsystem singleton a syscall handler needs to
// reach, per spec.md's "no lazy init" design note: cmd/kernel constructs
// one Dispatcher at boot and calls Dispatch as a plain Go method in place
// of an int 0x80 handler; no trap path leads to it.
type Dispatcher struct {
	Kernel *sched.Kernel
	VFS    *vfs.VFS
	Blocks *block.Registry
	Chars  *devreg.CharRegistry
	Log    *klog.Logger
	ELF    hal.ELFLoader
}

// New builds a Dispatcher over the given subsystem singletons.
func New(k *sched.Kernel, v *vfs.VFS, blocks *block.Registry, chars *devreg.CharRegistry, log *klog.Logger, elf hal.ELFLoader) *Dispatcher {
	if log == nil {
		log = klog.Nop()
	}
	if elf == nil {
		elf = hal.NewSimELFLoader()
	}
	return &Dispatcher{Kernel: k, VFS: v, Blocks: blocks, Chars: chars, Log: log, ELF: elf}
}

// Dispatch routes num to its handler for the calling task t, per
// original_source's syscall_handler: "if (regs->eax < num_syscalls)
// ...else -ENOSYS." Unlike the original, which trusts the table blindly,
// here an out-of-range number returns ENOSYS rather than dereferencing
// past the table — there is no unchecked function-pointer array to index
// into.
func (d *Dispatcher) Dispatch(t *sched.Task, num Number, a Args) Result {
	if num < 0 || num >= NumSyscalls {
		return Result{Errno: common.ENOSYS}
	}
	h := handlers[num]
	if h == nil {
		return Result{Errno: common.ENOSYS}
	}
	return h(d, t, a)
}

type handlerFunc func(d *Dispatcher, t *sched.Task, a Args) Result

var handlers [NumSyscalls]handlerFunc

func init() {
	handlers[SysFork] = sysFork
	handlers[SysExit] = sysExit
	handlers[SysGetpid] = sysGetpid
	handlers[SysSetpgid] = sysSetpgid
	handlers[SysGetpgid] = sysGetpgid
	handlers[SysSetsid] = sysSetsid
	handlers[SysGetsid] = sysGetsid
	handlers[SysNice] = sysNice
	handlers[SysSetresuid] = sysSetresuid
	handlers[SysGetresuid] = sysGetresuid
	handlers[SysSetresgid] = sysSetresgid
	handlers[SysGetresgid] = sysGetresgid
	handlers[SysLseek] = sysLseek
	handlers[SysPread] = sysPread
	handlers[SysRead] = sysRead
	handlers[SysPwrite] = sysPwrite
	handlers[SysWrite] = sysWrite
	handlers[SysOpen] = sysOpen
	handlers[SysClose] = sysClose
	handlers[SysReaddir] = sysReaddir
	handlers[SysStat] = sysStat
	handlers[SysChmod] = sysChmod
	handlers[SysChown] = sysChown
	handlers[SysIoctl] = sysIoctl
	handlers[SysLink] = sysLink
	handlers[SysUnlink] = sysUnlink
	handlers[SysMknod] = sysMknod
	handlers[SysMount] = sysMount
	handlers[SysUmount] = sysUmount
	handlers[SysSbrk] = sysSbrk
	handlers[SysExecve] = sysExecve
	handlers[SysChdir] = sysChdir
}
