package vmm

import "github.com/dionysus-os/kernel/internal/common"

// FrameBitmap tracks one bit per physical frame: bit set means the frame is
// owned by some page, per spec.md section 3. No invariant beyond that.
type FrameBitmap struct {
	words []uint32
	nbits uint32
}

// NewFrameBitmap allocates a bitmap covering nframes frames, all initially
// clear (free).
func NewFrameBitmap(nframes uint32) *FrameBitmap {
	nwords := (nframes + 31) / 32
	return &FrameBitmap{words: make([]uint32, nwords), nbits: nframes}
}

func (b *FrameBitmap) test(bit uint32) bool {
	return b.words[bit/32]&(1<<(bit%32)) != 0
}

func (b *FrameBitmap) set(bit uint32) {
	b.words[bit/32] |= 1 << (bit % 32)
}

func (b *FrameBitmap) clear(bit uint32) {
	b.words[bit/32] &^= 1 << (bit % 32)
}

// FirstFree finds the first clear bit, sets it, and returns its index. This
// is the "find first clear bit, set it, return frame index" operation of
// spec.md section 3. Returns (0, false) if the pool is exhausted.
func (b *FrameBitmap) FirstFree() (uint32, bool) {
	for w := range b.words {
		if b.words[w] == 0xffffffff {
			continue
		}
		for bit := uint32(0); bit < 32; bit++ {
			idx := uint32(w)*32 + bit
			if idx >= b.nbits {
				return 0, false
			}
			if !b.test(idx) {
				b.set(idx)
				return idx, true
			}
		}
	}
	return 0, false
}

// Set marks frame idx owned. Panics if idx is already set, since double
// allocation of the same frame is a programming invariant violation.
func (b *FrameBitmap) Set(idx uint32) {
	if idx >= b.nbits {
		common.Panic("bitmap index %d out of range", idx)
	}
	if b.test(idx) {
		common.Panic("frame %d already allocated", idx)
	}
	b.set(idx)
}

// Clear marks frame idx free. Matches free_frame's "clears both bit and
// PTE" half of the contract.
func (b *FrameBitmap) Clear(idx uint32) {
	if idx >= b.nbits {
		common.Panic("bitmap index %d out of range", idx)
	}
	b.clear(idx)
}

// Test reports whether frame idx is currently allocated.
func (b *FrameBitmap) Test(idx uint32) bool {
	if idx >= b.nbits {
		return false
	}
	return b.test(idx)
}

// NFree counts currently-free frames, for tests and diagnostics.
func (b *FrameBitmap) NFree() uint32 {
	var free uint32
	for i := uint32(0); i < b.nbits; i++ {
		if !b.test(i) {
			free++
		}
	}
	return free
}
