package kheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHeapHasSingleHoleSpanningInitialSize(t *testing.T) {
	h := New(4096, 1<<16, nil, nil)
	assert.Equal(t, 1, h.NumHoles())
	assert.EqualValues(t, 4096, h.End())
}

func TestAllocReturnsUsableOffsetPastHeader(t *testing.T) {
	h := New(4096, 1<<16, nil, nil)
	off, ok := h.Alloc(64, false)
	require.True(t, ok)
	assert.Greater(t, off, uint32(0))
}

func TestAllocSplitsHoleWhenRemainderIsLargeEnough(t *testing.T) {
	h := New(4096, 1<<16, nil, nil)
	before := h.NumHoles()
	_, ok := h.Alloc(64, false)
	require.True(t, ok)
	// the original single hole should have been replaced by a smaller
	// trailing hole, not removed outright
	assert.Equal(t, before, h.NumHoles())
}

func TestAllocPageAlignsUsableRegionWhenRequested(t *testing.T) {
	h := New(1<<15, 1<<16, nil, nil)
	off, ok := h.Alloc(128, true)
	require.True(t, ok)
	assert.Zero(t, off%4096)
}

func TestAllocExpandsHeapWhenNoHoleFits(t *testing.T) {
	h := New(64, 1<<16, nil, nil)
	endBefore := h.End()
	off, ok := h.Alloc(4096, false)
	require.True(t, ok)
	assert.Greater(t, off, uint32(0))
	assert.Greater(t, h.End(), endBefore)
}

func TestAllocFailsPastMaxSize(t *testing.T) {
	h := New(64, 128, nil, nil)
	_, ok := h.Alloc(1<<20, false)
	assert.False(t, ok)
}

func TestExpandCommitsFreshFramesThroughCallback(t *testing.T) {
	var committed [][2]uint32
	h := New(64, 1<<16, func(from, to uint32) {
		committed = append(committed, [2]uint32{from, to})
	}, nil)
	_, ok := h.Alloc(4096, false)
	require.True(t, ok)
	require.NotEmpty(t, committed)
}

func TestFreeCoalescesWithBothNeighbors(t *testing.T) {
	h := New(4096, 1<<16, nil, nil)
	a, ok := h.Alloc(64, false)
	require.True(t, ok)
	b, ok := h.Alloc(64, false)
	require.True(t, ok)
	c, ok := h.Alloc(64, false)
	require.True(t, ok)

	holesBefore := h.NumHoles()
	h.Free(a)
	h.Free(c)
	h.Free(b)

	// three freed neighboring blocks plus the original trailing hole
	// should have coalesced back down, not accumulated as separate holes
	assert.Less(t, h.NumHoles(), holesBefore+3)
}

func TestFreeThenAllocReusesCoalescedHole(t *testing.T) {
	h := New(4096, 1<<16, nil, nil)
	a, ok := h.Alloc(64, false)
	require.True(t, ok)
	h.Free(a)

	endBefore := h.End()
	_, ok = h.Alloc(64, false)
	require.True(t, ok)
	assert.Equal(t, endBefore, h.End())
}

func TestFreePanicsOnCorruptedHeaderMagic(t *testing.T) {
	h := New(4096, 1<<16, nil, nil)
	off, ok := h.Alloc(64, false)
	require.True(t, ok)
	h.mem[off-headerSize] ^= 0xff
	assert.Panics(t, func() { h.Free(off) })
}

func TestContractReleasesFramesThroughCallback(t *testing.T) {
	var uncommitted [][2]uint32
	h := New(64, 1<<16, nil, func(from, to uint32) {
		uncommitted = append(uncommitted, [2]uint32{from, to})
	})
	off, ok := h.Alloc(4096, false)
	require.True(t, ok)
	h.Free(off)
	assert.NotEmpty(t, uncommitted)
}
