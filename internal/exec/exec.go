// Package exec implements execve, per spec.md section 6 and the
// supplemented ELF-loading feature of SPEC_FULL.md section 11: load an
// ELF32 image via hal.ELFLoader, replace the calling task's address-space
// bookkeeping, and lay out argv/envp strings above the loaded image.
// Grounded on original_source/elf.c's execve.
package exec

import (
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/hal"
	"github.com/dionysus-os/kernel/internal/sched"
	"github.com/dionysus-os/kernel/internal/vfs"
)

// Image is the laid-out result of an execve: the new entry point and a
// flat byte arena holding argv[]/envp[] C-string tables back to back, the
// way original_source's execve builds them just above the loaded ELF
// image's heap pointer.
type Image struct {
	Entry      uint32
	Heap       []byte
	ArgvOffset []uint32 // offset into Heap of each argv string, NUL-terminated
	EnvpOffset []uint32 // offset into Heap of each envp string
}

// Execve implements spec.md's execve(filename, argv, envp): looks up
// filename via v, reads it whole, validates/loads it with loader, resets
// the calling task's break to the freshly loaded image's end, and lays out
// argv/envp into a returned Image. The caller (the syscall layer) is
// responsible for actually copying Image.Heap into the task's address
// space — there is no user/kernel split to cross in this hosted model.
func Execve(v *vfs.VFS, loader hal.ELFLoader, t *sched.Task, filename string, argv, envp []string) (*Image, common.Errno) {
	n, errno := v.Kopen(t.Cwd, filename, common.ORdonly)
	if errno.IsErr() {
		return nil, errno
	}
	defer vfs.Close(n)

	buf := make([]byte, n.Len)
	if n.Len > 0 {
		if _, errno := vfs.Read(n, buf, 0); errno.IsErr() {
			return nil, errno
		}
	}

	entry, segments, err := loader.Load(buf)
	if err != nil {
		return nil, common.ENOEXEC
	}

	// Deallocate the old process image (not the stack, per original_source's
	// comment "we reuse it"): reset the bookkeeping fields. There is no
	// frame allocator call here because this hosted model does not back
	// task images with the vmm.FrameAllocator the way the original backs
	// current_task->start..brk_actual with real physical frames; the
	// replacement happens entirely at the Task bookkeeping level.
	var start uint32 = 0xFFFFFFFF
	var size uint32
	for _, seg := range segments {
		if seg.VAddr < start {
			start = seg.VAddr
		}
		size += seg.MemLen
	}
	if len(segments) == 0 {
		start = 0
	}
	t.Start = start

	heap, argvOff, envpOff := layoutArgvEnvp(argv, envp)
	t.Brk = start + size
	t.BrkActual = t.Brk + uint32(len(heap))

	return &Image{Entry: entry, Heap: heap, ArgvOffset: argvOff, EnvpOffset: envpOff}, 0
}

// layoutArgvEnvp packs argv then envp strings into one flat buffer, each
// NUL-terminated, mirroring original_source's argv_/envp_ heap layout.
//
// It deliberately reproduces that original's envp-copy loop advances the
// heap cursor by strlen(argv[i])+1 instead of strlen(envp[i])+1 — a
// copy-paste bug from the argv loop just above it. When an envp string is
// longer than the argv string at the same index, this causes the next
// envp entry to start mid-string, overlapping the tail of the previous
// one. Spec.md section 9 flags this as an open question to reproduce, not
// fix, so EnvpOffset below walks the same miscomputed stride.
func layoutArgvEnvp(argv, envp []string) (heap []byte, argvOff, envpOff []uint32) {
	var buf []byte
	argvOff = make([]uint32, len(argv))
	for i, s := range argv {
		argvOff[i] = uint32(len(buf))
		buf = append(buf, s...)
		buf = append(buf, 0)
	}

	envpOff = make([]uint32, len(envp))
	cursor := uint32(len(buf))
	for i, s := range envp {
		envpOff[i] = cursor
		buf = append(buf, s...)
		buf = append(buf, 0)

		argvLen := 0
		if i < len(argv) {
			argvLen = len(argv[i])
		}
		cursor += uint32(argvLen) + 1
	}

	return buf, argvOff, envpOff
}
