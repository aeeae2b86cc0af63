package vmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeDirectoryReturnsPrivateTableFramesToBitmap(t *testing.T) {
	f := NewFrameAllocator(256)
	kernelDir := NewPageDirectory(0)

	userDir := NewPageDirectory(1)
	pte := f.GetPage(userDir, 0, true)
	require.NotNil(t, pte)
	f.AllocFrame(pte, false, true, false)

	before := f.bitmap.NFree()
	f.FreeDirectory(userDir, kernelDir)
	after := f.bitmap.NFree()

	// one frame for the leaf page, one for the private table itself
	assert.Equal(t, before+2, after)
}

func TestFreeDirectoryLeavesSharedKernelTableFramesAlone(t *testing.T) {
	f := NewFrameAllocator(256)
	kernelDir := NewPageDirectory(0)
	kpte := f.GetPage(kernelDir, 0, true)
	require.NotNil(t, kpte)
	f.AllocFrame(kpte, true, true, false)

	userDir := f.CloneDirectory(kernelDir, kernelDir, 1)
	before := f.bitmap.NFree()
	f.FreeDirectory(userDir, kernelDir)
	after := f.bitmap.NFree()

	assert.Equal(t, before, after)
}

func TestRepeatedCloneAndFreeDoesNotExhaustFramePool(t *testing.T) {
	f := NewFrameAllocator(64)
	kernelDir := NewPageDirectory(0)
	kpte := f.GetPage(kernelDir, 0, true)
	require.NotNil(t, kpte)
	f.AllocFrame(kpte, true, true, false)

	for i := 0; i < 32; i++ {
		dir := f.CloneDirectory(kernelDir, kernelDir, uint32(i+1))
		pte := f.GetPage(dir, 1024, true)
		require.NotNil(t, pte)
		f.AllocFrame(pte, false, true, false)
		f.FreeDirectory(dir, kernelDir)
	}
}
