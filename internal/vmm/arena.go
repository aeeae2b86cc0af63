// Package vmm implements the frame allocator and two-level page-table
// manager of spec.md section 4.1: a bitmap-tracked physical frame pool and
// page directories that can be cloned with the teacher's "alias shared
// kernel tables, copy everything else" rule.
//
// Physical memory is modeled as one contiguous []byte arena (no MMU to
// program), the way a hosted simulation of a bare-metal allocator has to:
// "physical address" here means a byte offset into Arena.bytes, and a
// "frame" is a FrameSize-aligned span of it. This keeps alloc_frame,
// free_frame, and the physical-copy helper clone_directory needs
// observable and testable without real page-table hardware.
package vmm

import "github.com/dionysus-os/kernel/internal/common"

// FrameSize is the physical frame / virtual page size: 4 KiB, per spec.md.
const FrameSize = 4096

// Arena is the kernel's simulated physical memory: a byte slice sized to
// the reported memory end address (spec.md section 4.1), sliced into
// FrameSize-aligned frames.
type Arena struct {
	bytes  []byte
	nframe uint32
}

// NewArena allocates an arena holding nframes physical frames.
func NewArena(nframes uint32) *Arena {
	return &Arena{bytes: make([]byte, uint64(nframes)*FrameSize), nframe: nframes}
}

// NFrames returns the total frame count backing this arena.
func (a *Arena) NFrames() uint32 { return a.nframe }

// Frame returns the byte slice for physical frame n. Panics (as a
// programming-invariant violation, per spec.md section 7) if n is out of
// range.
func (a *Arena) Frame(n uint32) []byte {
	if n >= a.nframe {
		common.Panic("frame index %d out of range (max %d)", n, a.nframe)
	}
	off := uint64(n) * FrameSize
	return a.bytes[off : off+FrameSize]
}

// CopyFrame copies the entire contents of frame src into frame dst. This is
// the "physical-copy helper that temporarily maps the two frames" spec.md
// section 4.1 describes clone_directory as using; in this arena model no
// temporary mapping is needed since every frame is already addressable.
func (a *Arena) CopyFrame(dst, src uint32) {
	copy(a.Frame(dst), a.Frame(src))
}
