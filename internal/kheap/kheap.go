// Package kheap implements the kernel heap of spec.md section 4.2: a
// first-fit-with-coalescing allocator (by "smallest hole" selection) over a
// fixed virtual window, with boundary-tag header/footer blocks and a
// parallel ordered array indexing free holes by size.
package kheap

import (
	"encoding/binary"
	"sort"

	"github.com/dionysus-os/kernel/internal/common"
)

const (
	headerMagic uint32 = 0x600dcafe
	footerMagic uint32 = 0xcafe600d
	headerSize         = 9 // magic(4) + hole(1) + size(4)
	footerSize         = 8 // magic(4) + headerOff(4)
)

// Heap is a single heap instance occupying [0, len(mem)) of a backing byte
// window, expandable up to maxSize. In the real kernel this window sits at
// a fixed virtual address (KHEAP_START); here it is simply the backing
// slice's own addressing, since there is no separate virtual/physical
// split to model once frames are committed.
type Heap struct {
	mem         []byte
	end         uint32 // current committed end (exclusive)
	minEnd      uint32 // initial committed size; contraction never goes below it
	maxSize     uint32
	commitPage  func(from, to uint32) // commits fresh frames for [from,to)
	uncommit    func(from, to uint32) // releases frames for [from,to)
	holes       []uint32              // offsets of blocks with hole=true, kept sorted by size
	supervisor  bool
	readonly    bool
}

// New creates a heap with a single hole spanning the initial committed
// size, per spec.md's "after create_heap, a single hole of size end -
// adjusted_start exists in the index." commitPage/uncommit let the caller
// (the vmm frame allocator) back growth with real physical frames; pass
// nils to operate purely on an in-memory slice (as tests do).
func New(initialSize, maxSize uint32, commitPage, uncommit func(from, to uint32)) *Heap {
	if initialSize < headerSize+footerSize {
		common.Panic("heap initial size too small")
	}
	h := &Heap{
		mem:      make([]byte, maxSize),
		end:      initialSize,
		minEnd:   initialSize,
		maxSize:  maxSize,
		commitPage: commitPage,
		uncommit: uncommit,
	}
	h.writeHeader(0, initialSize, true)
	h.writeFooter(0, initialSize)
	h.holes = []uint32{0}
	return h
}

func (h *Heap) writeHeader(off, size uint32, hole bool) {
	binary.LittleEndian.PutUint32(h.mem[off:], headerMagic)
	if hole {
		h.mem[off+4] = 1
	} else {
		h.mem[off+4] = 0
	}
	binary.LittleEndian.PutUint32(h.mem[off+5:], size)
}

func (h *Heap) readHeader(off uint32) (size uint32, hole bool, magic uint32) {
	magic = binary.LittleEndian.Uint32(h.mem[off:])
	hole = h.mem[off+4] != 0
	size = binary.LittleEndian.Uint32(h.mem[off+5:])
	return
}

func (h *Heap) writeFooter(off, size uint32) {
	fOff := off + size - footerSize
	binary.LittleEndian.PutUint32(h.mem[fOff:], footerMagic)
	binary.LittleEndian.PutUint32(h.mem[fOff+4:], off)
}

func (h *Heap) readFooter(fOff uint32) (headerOff, magic uint32) {
	magic = binary.LittleEndian.Uint32(h.mem[fOff:])
	headerOff = binary.LittleEndian.Uint32(h.mem[fOff+4:])
	return
}

func (h *Heap) holeSize(off uint32) uint32 {
	size, _, _ := h.readHeader(off)
	return size
}

// insertHole keeps h.holes sorted by block size ascending, for the
// "smallest hole that fits" selection rule.
func (h *Heap) insertHole(off uint32) {
	sz := h.holeSize(off)
	i := sort.Search(len(h.holes), func(i int) bool { return h.holeSize(h.holes[i]) >= sz })
	h.holes = append(h.holes, 0)
	copy(h.holes[i+1:], h.holes[i:])
	h.holes[i] = off
}

func (h *Heap) removeHole(off uint32) {
	for i, o := range h.holes {
		if o == off {
			h.holes = append(h.holes[:i], h.holes[i+1:]...)
			return
		}
	}
}

// smallestFit finds the smallest indexed hole whose block size is at least
// need, returning its offset and whether one was found.
func (h *Heap) smallestFit(need uint32) (uint32, bool) {
	i := sort.Search(len(h.holes), func(i int) bool { return h.holeSize(h.holes[i]) >= need })
	if i == len(h.holes) {
		return 0, false
	}
	return h.holes[i], true
}

// expand commits fresh frames and grows the heap's end boundary by at
// least need bytes, merging with an existing trailing hole if the
// previous block touching the old end was one.
func (h *Heap) expand(need uint32) bool {
	newEnd := h.end + need
	if newEnd > h.maxSize {
		return false
	}
	if h.commitPage != nil {
		h.commitPage(h.end, newEnd)
	}
	// Is the last block before the old end a hole? If so, grow it in
	// place instead of creating a new trailing block.
	if off, ok := h.lastBlockOffset(); ok {
		size, hole, _ := h.readHeader(off)
		if hole {
			h.removeHole(off)
			newSize := size + (newEnd - h.end)
			h.writeHeader(off, newSize, true)
			h.writeFooter(off, newSize)
			h.insertHole(off)
			h.end = newEnd
			return true
		}
	}
	grown := newEnd - h.end
	h.writeHeader(h.end, grown, true)
	h.writeFooter(h.end, grown)
	h.insertHole(h.end)
	h.end = newEnd
	return true
}

// lastBlockOffset walks from the start to find the final block's offset.
// Heaps are small in this hosted simulation, so a linear walk is
// acceptable; a bare-metal allocator would cache this.
func (h *Heap) lastBlockOffset() (uint32, bool) {
	var off uint32
	if h.end == 0 {
		return 0, false
	}
	for off < h.end {
		size, _, _ := h.readHeader(off)
		if size == 0 {
			return 0, false
		}
		next := off + size
		if next >= h.end {
			return off, true
		}
		off = next
	}
	return 0, false
}

// Alloc finds the smallest hole that fits size (optionally page-aligned),
// expanding the heap and retrying if none fits, per spec.md's
// alloc(size, align, heap). Returns the offset of the usable region
// (immediately after the header) and true, or (0, false) if the heap
// cannot grow enough.
func (h *Heap) Alloc(size uint32, pageAlign bool) (uint32, bool) {
	const pageSize = 4096
	total := size + headerSize + footerSize
	for {
		off, ok := h.smallestFit(total)
		if !ok {
			if !h.expand(total) {
				return 0, false
			}
			continue
		}
		blockSize, _, _ := h.readHeader(off)

		if pageAlign {
			usableStart := off + headerSize
			aligned := (usableStart + pageSize - 1) &^ (pageSize - 1)
			pad := aligned - usableStart
			if pad != 0 && pad < headerSize+footerSize {
				pad += pageSize
			}
			if pad != 0 {
				if blockSize < pad+total {
					if !h.expand(pad + total) {
						return 0, false
					}
					continue
				}
				h.removeHole(off)
				h.writeHeader(off, pad, true)
				h.writeFooter(off, pad)
				h.insertHole(off)
				newOff := off + pad
				h.writeHeader(newOff, blockSize-pad, true)
				h.writeFooter(newOff, blockSize-pad)
				off = newOff
				blockSize -= pad
			}
		}

		h.removeHole(off)
		remain := blockSize - total
		// Never split into a fragment smaller than header+footer size.
		if remain >= headerSize+footerSize {
			h.writeHeader(off, total, false)
			h.writeFooter(off, total)
			newOff := off + total
			h.writeHeader(newOff, remain, true)
			h.writeFooter(newOff, remain)
			h.insertHole(newOff)
		} else {
			h.writeHeader(off, blockSize, false)
			h.writeFooter(off, blockSize)
		}
		return off + headerSize, true
	}
}

// Free reconstructs the block from a usable-region offset, asserts both
// magics, coalesces with immediate neighbours, reindexes, and contracts
// the heap if the freed hole touches the end, per spec.md's
// free(ptr, heap).
func (h *Heap) Free(usableOff uint32) {
	off := usableOff - headerSize
	size, hole, magic := h.readHeader(off)
	if magic != headerMagic || hole {
		common.Panic("heap corruption: bad header magic at free")
	}
	fOff := off + size - footerSize
	fHeaderOff, fMagic := h.readFooter(fOff)
	if fMagic != footerMagic || fHeaderOff != off {
		common.Panic("heap corruption: bad footer magic at free")
	}

	// Coalesce left: read the footer immediately preceding this block.
	if off >= footerSize {
		leftFooterOff := off - footerSize
		leftHeaderOff, leftMagic := h.readFooter(leftFooterOff)
		if leftMagic == footerMagic {
			leftSize, leftHole, leftHdrMagic := h.readHeader(leftHeaderOff)
			if leftHdrMagic == headerMagic && leftHole {
				h.removeHole(leftHeaderOff)
				size += leftSize
				off = leftHeaderOff
			}
		}
	}

	// Coalesce right: read the header immediately following this block.
	rightOff := off + size
	if rightOff < h.end {
		rightSize, rightHole, rightMagic := h.readHeader(rightOff)
		if rightMagic == headerMagic && rightHole {
			h.removeHole(rightOff)
			size += rightSize
		}
	}

	h.writeHeader(off, size, true)
	h.writeFooter(off, size)
	h.insertHole(off)

	// Contract if this hole now touches the committed end.
	if off+size >= h.end {
		h.contract(off, size)
	}
}

// contract shrinks the heap when the freed hole at [off, off+size) reaches
// the end address, releasing frames back to the allocator. The heap never
// shrinks below its initial committed size.
func (h *Heap) contract(off, size uint32) {
	const minLeft = headerSize + footerSize
	newEnd := off + minLeft
	if newEnd < h.minEnd {
		newEnd = h.minEnd
	}
	if newEnd >= h.end {
		return
	}
	if h.uncommit != nil {
		h.uncommit(newEnd, h.end)
	}
	h.removeHole(off)
	newSize := newEnd - off
	h.writeHeader(off, newSize, true)
	h.writeFooter(off, newSize)
	h.insertHole(off)
	h.end = newEnd
}

// NumHoles reports the number of free holes currently indexed, for tests.
func (h *Heap) NumHoles() int { return len(h.holes) }

// End reports the current committed end address.
func (h *Heap) End() uint32 { return h.end }
