package hal

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/dionysus-os/kernel/internal/common"
)

// SimPagingBackend satisfies PagingBackend in-process: CR2/CR3 are plain
// fields, and the page-fault handler is invoked directly by Fault
// rather than through a real trap gate.
type SimPagingBackend struct {
	mu      sync.Mutex
	cr2     uintptr
	cr3     uintptr
	onFault func(cr2 uintptr, code uint32)
}

func NewSimPagingBackend() *SimPagingBackend { return &SimPagingBackend{} }

func (s *SimPagingBackend) ReadCR2() uintptr { s.mu.Lock(); defer s.mu.Unlock(); return s.cr2 }
func (s *SimPagingBackend) LoadCR3(phys uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cr3 = phys
}
func (s *SimPagingBackend) InstallPageFaultHandler(fn func(cr2 uintptr, code uint32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFault = fn
}

// Fault lets a test or vmm code simulate a page fault being delivered.
func (s *SimPagingBackend) Fault(addr uintptr, code uint32) {
	s.mu.Lock()
	s.cr2 = addr
	fn := s.onFault
	s.mu.Unlock()
	if fn != nil {
		fn(addr, code)
	}
}

// SimInterruptController is a channel-based stand-in for a PIC: Install
// registers a handler per vector, Mask/Unmask/EOI just track state for
// inspection in tests.
type SimInterruptController struct {
	mu       sync.Mutex
	masked   map[int]bool
	handlers map[int]func()
}

func NewSimInterruptController() *SimInterruptController {
	return &SimInterruptController{masked: make(map[int]bool), handlers: make(map[int]func())}
}

func (s *SimInterruptController) Mask(irq int)   { s.mu.Lock(); s.masked[irq] = true; s.mu.Unlock() }
func (s *SimInterruptController) Unmask(irq int) { s.mu.Lock(); s.masked[irq] = false; s.mu.Unlock() }
func (s *SimInterruptController) EOI(irq int)    {}
func (s *SimInterruptController) Install(vector int, fn func()) {
	s.mu.Lock()
	s.handlers[vector] = fn
	s.mu.Unlock()
}

// Fire invokes the handler installed at vector, if any and not masked.
func (s *SimInterruptController) Fire(vector int) {
	s.mu.Lock()
	fn, masked := s.handlers[vector], s.masked[vector]
	s.mu.Unlock()
	if fn != nil && !masked {
		fn()
	}
}

// SimConsole backs /dev/tty with an in-memory buffer
// instead of the VGA text buffer and PS/2 keyboard, per spec.md's
// end-to-end scenario 1 (three opens of /dev/tty returning fds 0/1/2).
type SimConsole struct {
	mu  sync.Mutex
	out bytes.Buffer
	in  []byte
}

func NewSimConsole() *SimConsole { return &SimConsole{} }

func (c *SimConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *SimConsole) ReadByte() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.in) == 0 {
		return 0, false
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, true
}

// Feed queues bytes for ReadByte to return, simulating keyboard input.
func (c *SimConsole) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in = append(c.in, p...)
}

// Output returns everything written so far, for test assertions.
func (c *SimConsole) Output() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.out.Bytes()...)
}

// SimRTC returns a fixed wall-clock time, since CMOS reading is out of
// scope and a hosted test has no real RTC to query.
type SimRTC struct {
	Year, Month, Day, Hour, Min, Sec int
}

func NewSimRTC() *SimRTC {
	return &SimRTC{Year: 2026, Month: 1, Day: 1, Hour: 0, Min: 0, Sec: 0}
}

func (r *SimRTC) Now() (year, month, day, hour, min, sec int) {
	return r.Year, r.Month, r.Day, r.Hour, r.Min, r.Sec
}

// SimPIT drives a tick channel off a real time.Ticker, standing in for the
// 8254 programmable interval timer.
type SimPIT struct {
	freq   uint32
	ticker *time.Ticker
	ch     chan struct{}
	stop   chan struct{}
}

// NewSimPIT starts ticking at freqHz, matching original_source's
// configurable PIT divisor.
func NewSimPIT(freqHz uint32) *SimPIT {
	p := &SimPIT{freq: freqHz, ch: make(chan struct{}, 64), stop: make(chan struct{})}
	p.ticker = time.NewTicker(time.Second / time.Duration(freqHz))
	go func() {
		for {
			select {
			case <-p.stop:
				return
			case <-p.ticker.C:
				select {
				case p.ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return p
}

func (p *SimPIT) Ticks() <-chan struct{} { return p.ch }
func (p *SimPIT) Frequency() uint32      { return p.freq }
func (p *SimPIT) Stop()                  { close(p.stop); p.ticker.Stop() }

// SimELFLoader parses the ELF32 header/program-header fields execve needs
// to map segments, without linking a full ELF library — spec.md section 1
// places ELF loading out of scope, so this reads only what internal/exec
// requires (entry point, PT_LOAD segments).
type SimELFLoader struct{}

func NewSimELFLoader() *SimELFLoader { return &SimELFLoader{} }

func (SimELFLoader) Load(image []byte) (uint32, []ELFSegment, error) {
	if len(image) < 52 || string(image[:4]) != "\x7fELF" {
		return 0, nil, fmt.Errorf("not an ELF32 image")
	}
	entry := le32(image[24:28])
	phoff := le32(image[28:32])
	phentsize := le16(image[42:44])
	phnum := le16(image[44:46])

	var segs []ELFSegment
	for i := uint16(0); i < phnum; i++ {
		off := int(phoff) + int(i)*int(phentsize)
		if off+32 > len(image) {
			break
		}
		ph := image[off : off+32]
		ptype := le32(ph[0:4])
		const ptLoad = 1
		if ptype != ptLoad {
			continue
		}
		fileOff := le32(ph[4:8])
		vaddr := le32(ph[8:12])
		filesz := le32(ph[16:20])
		memsz := le32(ph[20:24])
		flags := le32(ph[24:28])
		const pfW = 2
		if int(fileOff+filesz) > len(image) {
			return 0, nil, fmt.Errorf("segment %d exceeds image bounds", i)
		}
		segs = append(segs, ELFSegment{
			VAddr:  vaddr,
			Data:   image[fileOff : fileOff+filesz],
			MemLen: memsz,
			Write:  flags&pfW != 0,
		})
	}
	return entry, segs, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// SimFAT32Codec implements just enough of the FAT32 on-disk format to
// decode a boot sector and directory entries; nothing in this tree
// mounts a FAT32 volume through it. A bare-metal backend would parse the
// real BPB/FAT/directory structures in full.
type SimFAT32Codec struct{}

func NewSimFAT32Codec() *SimFAT32Codec { return &SimFAT32Codec{} }

func (SimFAT32Codec) ReadBootSector(sector []byte) (uint16, uint16, uint32, error) {
	if len(sector) < 90 {
		return 0, 0, 0, fmt.Errorf("boot sector too short")
	}
	bytesPerSector := le16(sector[11:13])
	sectorsPerCluster := uint16(sector[13])
	rootCluster := le32(sector[44:48])
	return bytesPerSector, sectorsPerCluster, rootCluster, nil
}

func (SimFAT32Codec) DecodeDirEntry(raw []byte) (string, bool, uint32, uint32, bool) {
	if len(raw) < 32 || raw[0] == 0x00 || raw[0] == 0xe5 {
		return "", false, 0, 0, false
	}
	attr := raw[11]
	const attrDirectory = 0x10
	name := string(bytes.TrimRight(raw[0:8], " "))
	ext := string(bytes.TrimRight(raw[8:11], " "))
	if ext != "" {
		name = name + "." + ext
	}
	clusterHi := le16(raw[20:22])
	clusterLo := le16(raw[26:28])
	firstCluster := uint32(clusterHi)<<16 | uint32(clusterLo)
	size := le32(raw[28:32])
	return name, attr&attrDirectory != 0, firstCluster, size, true
}

// SimIDERegisters backs internal/blockdrv/ide in tests with an in-memory
// disk image instead of port I/O, since the register-level dance is out
// of scope per spec.md section 1.
type SimIDERegisters struct {
	mu       sync.Mutex
	selected int
	image    []byte // flat LBA-addressed backing store, 512 bytes/sector
}

func NewSimIDERegisters(image []byte) *SimIDERegisters {
	return &SimIDERegisters{image: image}
}

func (s *SimIDERegisters) SelectDrive(bus, drive int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = bus*2 + drive
	return nil
}

func (s *SimIDERegisters) ReadSectors(lba uint32, count int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := int(lba) * 512
	n := count * 512
	if off+n > len(s.image) {
		return fmt.Errorf("read past end of disk image")
	}
	copy(buf, s.image[off:off+n])
	return nil
}

func (s *SimIDERegisters) WriteSectors(lba uint32, count int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := int(lba) * 512
	n := count * 512
	if off+n > len(s.image) {
		return fmt.Errorf("write past end of disk image")
	}
	copy(s.image[off:off+n], buf)
	return nil
}

// PrintfFunc adapts a plain function (e.g. klog.Logger.Infof) to Printf.
type PrintfFunc func(format string, args ...interface{})

func (f PrintfFunc) Printf(format string, args ...interface{}) { f(format, args...) }

// StdArith64 implements Arith64 with Go's native 64-bit integer ops; the
// interface exists so callers name the out-of-scope collaborator
// explicitly rather than assuming it away, per spec.md section 1.
type StdArith64 struct{}

func (StdArith64) Udiv64(a, b uint64) (uint64, uint64, common.Errno) {
	if b == 0 {
		return 0, 0, common.EINVAL
	}
	return a / b, a % b, 0
}

func (StdArith64) Mul64(a, b uint64) uint64 { return a * b }
