package vmm

import "github.com/dionysus-os/kernel/internal/common"

// PTE is a raw x86 page-table-entry-shaped word: frame number in the high
// bits, flags in the low bits, mirroring the hardware layout spec.md
// section 4.1 describes (present/rw/user/global).
type PTE uint32

const (
	PTEPresent PTE = 1 << 0
	PTERW      PTE = 1 << 1
	PTEUser    PTE = 1 << 2
	PTEGlobal  PTE = 1 << 8

	pteFrameShift = 12
)

func (p PTE) Present() bool { return p&PTEPresent != 0 }
func (p PTE) Frame() uint32 { return uint32(p) >> pteFrameShift }

func mkPTE(frame uint32, kernel, rw, global bool) PTE {
	p := PTE(frame<<pteFrameShift) | PTEPresent
	if !kernel {
		p |= PTEUser
	}
	if rw {
		p |= PTERW
	}
	if global {
		p |= PTEGlobal
	}
	return p
}

// PageTable is one of the 1024 second-level tables a PageDirectory entry
// may point at.
type PageTable struct {
	Entries [1024]PTE
}

// PageDirectory is the two-parallel-array structure of spec.md section 3:
// raw 32-bit PDEs for "hardware", sibling *PageTable pointers for the
// manager's own bookkeeping, plus the directory's own physical address
// (here, an opaque handle rather than a true CR3 value).
type PageDirectory struct {
	PDEs     [1024]PTE
	Tables   [1024]*PageTable
	PhysAddr uint32
}

// NewPageDirectory returns an empty directory, with a physAddr handle the
// caller assigns (in this simulation, directories don't occupy arena
// frames themselves — only leaf page tables' data pages do — since no real
// MMU walks them).
func NewPageDirectory(physAddr uint32) *PageDirectory {
	return &PageDirectory{PhysAddr: physAddr}
}

// FrameAllocator owns the bitmap-tracked physical frame pool and the arena
// backing it, per spec.md section 4.1.
type FrameAllocator struct {
	bitmap *FrameBitmap
	arena  *Arena
}

// NewFrameAllocator builds a frame allocator over a freshly created arena
// of nframes frames.
func NewFrameAllocator(nframes uint32) *FrameAllocator {
	return &FrameAllocator{bitmap: NewFrameBitmap(nframes), arena: NewArena(nframes)}
}

// Arena exposes the backing physical memory, e.g. for a driver DMA'ing into
// a frame it owns.
func (f *FrameAllocator) Arena() *Arena { return f.arena }

// GetPage returns a pointer to the PTE for virtual page number pageIdx
// within d, allocating a new page table through alloc if mk is set and the
// directory has no table at that index yet, per spec.md's
// get_page(addr, make, dir). As in x86 two-level paging, the low 10 bits of
// pageIdx select the entry within a page table and the next 10 bits select
// the directory slot.
func (d *PageDirectory) GetPage(pageIdx uint32, mk bool, alloc func() (*PageTable, uint32, bool)) *PTE {
	tblIdx := (pageIdx / 1024) % 1024
	entIdx := pageIdx % 1024
	if d.Tables[tblIdx] == nil {
		if !mk {
			return nil
		}
		tbl, physAddr, ok := alloc()
		if !ok {
			common.Panic("no free frames")
		}
		d.Tables[tblIdx] = tbl
		d.PDEs[tblIdx] = mkPTE(physAddr, false, true, false)
	}
	return &d.Tables[tblIdx].Entries[entIdx]
}

// AllocFrame assigns the first free frame to pte and sets its present/rw/
// user/global bits, per spec.md's alloc_frame(page, kernel, rw, global).
// Panics with "No free frames" on exhaustion, matching the teacher's fatal
// failure mode for this critical-path allocation.
func (f *FrameAllocator) AllocFrame(pte *PTE, kernel, rw, global bool) {
	if pte.Present() {
		return
	}
	idx, ok := f.bitmap.FirstFree()
	if !ok {
		common.Panic("No free frames")
	}
	*pte = mkPTE(idx, kernel, rw, global)
}

// FreeFrame clears both the bitmap bit and the PTE, per spec.md.
func (f *FrameAllocator) FreeFrame(pte *PTE) {
	if !pte.Present() {
		return
	}
	f.bitmap.Clear(pte.Frame())
	*pte = 0
}

// newTable is the alloc callback GetPage uses to grow a directory: it
// grabs a frame to back the new PageTable's bookkeeping slot and zeroes it.
// The PageTable struct itself lives in Go's heap (bookkeeping only); the
// frame it "occupies" from the bitmap's perspective models the real
// kernel's cost of a page table consuming one physical frame.
func (f *FrameAllocator) newTable() (*PageTable, uint32, bool) {
	idx, ok := f.bitmap.FirstFree()
	if !ok {
		return nil, 0, false
	}
	return &PageTable{}, idx, true
}

// GetPage is the FrameAllocator-bound convenience wrapper callers use
// instead of threading the alloc callback through by hand.
func (f *FrameAllocator) GetPage(dir *PageDirectory, pageIdx uint32, mk bool) *PTE {
	return dir.GetPage(pageIdx, mk, f.newTable)
}

// CloneDirectory performs clone_directory's per-entry copy, per spec.md
// section 4.1: page tables shared with kernelDir are linked by pointer;
// all others are copied page-by-page via Arena.CopyFrame. The contract:
// after CloneDirectory, the new directory "aliases kernel tables; owns
// private copies of user tables."
func (f *FrameAllocator) CloneDirectory(src, kernelDir *PageDirectory, newPhysAddr uint32) *PageDirectory {
	dst := NewPageDirectory(newPhysAddr)
	for i := 0; i < 1024; i++ {
		srcTbl := src.Tables[i]
		if srcTbl == nil {
			continue
		}
		if srcTbl == kernelDir.Tables[i] {
			// Shared with the kernel directory: alias by pointer, keep the
			// same PDE (same underlying physical table).
			dst.Tables[i] = srcTbl
			dst.PDEs[i] = src.PDEs[i]
			continue
		}
		// Private table: copy page-by-page.
		newTbl, physAddr, ok := f.newTable()
		if !ok {
			common.Panic("No free frames")
		}
		for j := 0; j < 1024; j++ {
			srcPTE := srcTbl.Entries[j]
			if !srcPTE.Present() {
				continue
			}
			dstIdx, ok := f.bitmap.FirstFree()
			if !ok {
				common.Panic("No free frames")
			}
			f.arena.CopyFrame(dstIdx, srcPTE.Frame())
			newTbl.Entries[j] = mkPTE(dstIdx, srcPTE&PTEUser == 0, srcPTE&PTERW != 0, srcPTE&PTEGlobal != 0)
		}
		dst.Tables[i] = newTbl
		dst.PDEs[i] = mkPTE(physAddr, false, true, false)
	}
	return dst
}

// FreeDirectory releases every frame privately owned by dir (tables and
// pages not shared with kernelDir), the free_dir counterpart used by
// exit_task.
func (f *FrameAllocator) FreeDirectory(dir, kernelDir *PageDirectory) {
	for i := 0; i < 1024; i++ {
		tbl := dir.Tables[i]
		if tbl == nil || tbl == kernelDir.Tables[i] {
			continue
		}
		for j := 0; j < 1024; j++ {
			if tbl.Entries[j].Present() {
				f.bitmap.Clear(tbl.Entries[j].Frame())
			}
		}
		f.bitmap.Clear(dir.PDEs[i].Frame())
	}
}

// PageFault decodes the faulting address and error code and panics, since
// this kernel is not demand-paged, per spec.md section 4.1.
func PageFault(faultAddr uintptr, errCode uint32) {
	common.Panic("page fault at %#x, code %#x", faultAddr, errCode)
}
