package devfs

import (
	"testing"

	"github.com/dionysus-os/kernel/internal/block"
	"github.com/dionysus-os/kernel/internal/chardev"
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/devreg"
	"github.com/dionysus-os/kernel/internal/hal"
	"github.com/dionysus-os/kernel/internal/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlockBackend struct{ data []byte }

func (f *fakeBlockBackend) TransferSectors(firstSector uint64, buf []byte, write bool) common.Errno {
	off := firstSector * 512
	if write {
		copy(f.data[off:], buf)
	} else {
		copy(buf, f.data[off:off+uint64(len(buf))])
	}
	return 0
}

func TestMknodAndReadBlockDevice(t *testing.T) {
	chars := devreg.NewCharRegistry()
	blocks := block.NewRegistry()
	major, errno := blocks.Register(1, "hd")
	require.Zero(t, errno)

	backing := &fakeBlockBackend{data: make([]byte, 512*64)}
	for i := 0; i < 512; i++ {
		backing.data[i] = byte(i)
	}
	dev := block.NewDevice(major, 0, 1, 512, 64, backing)
	dev.Partitions = []block.Partition{{Minor: 0, Offset: 0, Size: 64}}
	require.Zero(t, blocks.AddDevice(dev))
	dev.StartTasklet()
	t.Cleanup(dev.StopTasklet)

	fs := New(chars, blocks)
	v := vfs.New()
	v.RegisterFS(fs.FSType())
	require.Zero(t, v.Mount("/", "/dev", "devfs", nil, 0))

	devNode, errno := v.Kopen("/", "/dev", common.ORdonly)
	require.Zero(t, errno)
	_, errno = vfs.Create(devNode, "hda", 0, 0, common.SIFBLK|0600, common.MkDev(1, 0))
	require.Zero(t, errno)

	hda, errno := v.Kopen("/", "/dev/hda", common.ORdonly)
	require.Zero(t, errno)

	buf := make([]byte, 512)
	n, errno := vfs.Read(hda, buf, 0)
	require.Zero(t, errno)
	assert.Equal(t, 512, n)
	assert.Equal(t, backing.data[:512], buf)
}

func TestOpenTtyThreeTimesSucceeds(t *testing.T) {
	chars := devreg.NewCharRegistry()
	_, errno := chars.Register(5, "tty", chardev.NewTTY(hal.NewSimConsole(), 0))
	require.Zero(t, errno)
	blocks := block.NewRegistry()
	fs := New(chars, blocks)
	v := vfs.New()
	v.RegisterFS(fs.FSType())
	require.Zero(t, v.Mount("/", "/dev", "devfs", nil, 0))

	devNode, errno := v.Kopen("/", "/dev", common.ORdonly)
	require.Zero(t, errno)
	_, errno = vfs.Create(devNode, "tty", 0, 0, common.SIFCHR|0600, common.MkDev(5, 0))
	require.Zero(t, errno)

	for i := 0; i < 3; i++ {
		n, errno := v.Kopen("/", "/dev/tty", common.ORdwr)
		require.Zero(t, errno)
		assert.NotNil(t, n)
	}
}
