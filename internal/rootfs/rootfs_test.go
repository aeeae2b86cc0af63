package rootfs

import (
	"testing"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindsFixedRealAndDevSubdirs(t *testing.T) {
	fs := New()
	real, errno := fs.Finddir(fs.Root(), "real")
	require.Zero(t, errno)
	assert.Equal(t, "real", real.Name)

	dev, errno := fs.Finddir(fs.Root(), "dev")
	require.Zero(t, errno)
	assert.Equal(t, "dev", dev.Name)
}

func TestFinddirUnknownNameReturnsENOENT(t *testing.T) {
	fs := New()
	_, errno := fs.Finddir(fs.Root(), "nope")
	assert.Equal(t, common.ENOENT, errno)
}

func TestReaddirEnumeratesFixedOrder(t *testing.T) {
	fs := New()
	d0, errno := fs.Readdir(fs.Root(), 0)
	require.Zero(t, errno)
	assert.Equal(t, "real", d0.Name)

	d1, errno := fs.Readdir(fs.Root(), 1)
	require.Zero(t, errno)
	assert.Equal(t, "dev", d1.Name)

	_, errno = fs.Readdir(fs.Root(), 2)
	assert.Equal(t, common.EINVAL, errno)
}

func TestMountsAtSlashAndResolvesDevMountpoint(t *testing.T) {
	v := vfs.New()
	fs := New()
	v.RegisterFS(fs.FSType())
	require.Zero(t, v.Mount("/", "/", "rootfs", nil, 0))

	n, errno := v.Kopen("/", "/dev", common.ORdonly)
	require.Zero(t, errno)
	assert.Equal(t, "dev", n.Name)
}

func TestCreateOnRootfsIsRejected(t *testing.T) {
	fs := New()
	_, errno := fs.Create(fs.Root(), "x", 0, 0, common.SIFREG|0644, 0)
	assert.Equal(t, common.EACCES, errno)
}
