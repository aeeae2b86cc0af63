// Package hal names the hardware/bare-metal collaborators spec.md section 1
// places out of scope: paging leaf operations, the interrupt controller,
// the console, wall-clock/tick sources, ELF loading, the FAT32 on-disk
// codec, IDE register access, low-level formatted output, and 64-bit
// arithmetic on a 32-bit word size. Each is a small interface so the
// in-scope subsystems (sched, vmm, vfs, block, exec) depend on a contract
// rather than assembly or a real device; a bare-metal build would supply
// its own implementations of these same interfaces without touching the
// rest of the tree.
package hal

import "github.com/dionysus-os/kernel/internal/common"

// PagingBackend is the CR2/CR3/page-fault seam a bare-metal backend would
// implement with MOV-to-control-register instructions and an IDT entry.
type PagingBackend interface {
	ReadCR2() uintptr
	LoadCR3(phys uintptr)
	InstallPageFaultHandler(fn func(cr2 uintptr, code uint32))
}

// InterruptController is the PIC/APIC seam: masking, unmasking, EOI, and
// vector installation.
type InterruptController interface {
	Mask(irq int)
	Unmask(irq int)
	EOI(irq int)
	Install(vector int, fn func())
}

// Console is the VGA-text/keyboard/serial boundary the /dev/tty char
// driver (internal/chardev) dispatches through.
type Console interface {
	Write(p []byte) (int, error)
	ReadByte() (byte, bool)
}

// RTC reads the wall-clock time a bare-metal boot would get from CMOS.
type RTC interface {
	Now() (year, month, day, hour, min, sec int)
}

// PIT is the programmable interval timer's tick source; Ticks delivers one
// value per timer interrupt, consumed by the scheduler's quantum
// accounting (10*(20-nice) ticks, spec.md section 4.3).
type PIT interface {
	Ticks() <-chan struct{}
	Frequency() uint32
}

// ELFLoader parses a minimal ELF32 header/program-header set and reports
// the segments a loader should map, the seam internal/exec's execve uses
// in place of reading raw disk sectors and walking e_phoff by hand.
type ELFLoader interface {
	Load(image []byte) (entry uint32, segments []ELFSegment, err error)
}

// ELFSegment is one PT_LOAD program header's load target.
type ELFSegment struct {
	VAddr  uint32
	Data   []byte
	MemLen uint32
	Write  bool
}

// FAT32Codec decodes/encodes FAT32 on-disk structures (boot sector, FAT
// entries, directory entries including the VFAT long-name chain), the
// out-of-scope "FAT32 filesystem" collaborator of spec.md section 1. Named
// so a FAT32 mount driver could be wired to internal/vfs.FSType without
// this module implementing the codec itself.
type FAT32Codec interface {
	ReadBootSector(sector []byte) (bytesPerSector, sectorsPerCluster uint16, rootCluster uint32, err error)
	DecodeDirEntry(raw []byte) (name string, isDir bool, firstCluster uint32, size uint32, ok bool)
}

// IDERegisters is the ATA/ATAPI port-I/O seam internal/blockdrv/ide's
// request-queue-facing half sits above; the register-level dance itself
// (command/status port sequencing, busy-wait polling) stays out of scope
// per spec.md section 1.
type IDERegisters interface {
	SelectDrive(bus int, drive int) error
	ReadSectors(lba uint32, count int, buf []byte) error
	WriteSectors(lba uint32, count int, buf []byte) error
}

// Printf is the raw formatted-output seam a bare-metal kernel would back
// with direct VGA-buffer writes before any logging library exists.
// internal/klog writes through zap directly and does not use this seam.
type Printf interface {
	Printf(format string, args ...interface{})
}

// Arith64 performs 64-bit arithmetic the spec's target 32-bit word size
// cannot do natively, per spec.md section 1's "64-bit helpers (__udivdi3
// and friends)." Go's int64/uint64 make this trivial to implement, but the
// seam is kept so callers (e.g. lseek/pread/pwrite's 64-bit byte counts)
// read as depending on an explicit collaborator rather than assuming
// native 64-bit math the target architecture doesn't have.
type Arith64 interface {
	Udiv64(a, b uint64) (quotient, remainder uint64, err common.Errno)
	Mul64(a, b uint64) uint64
}
