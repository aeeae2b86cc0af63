package vfs

import (
	"testing"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIsIdempotent(t *testing.T) {
	cases := []struct{ cwd, rel string }{
		{"/", "a/b/c"},
		{"/home/user", "../other/./x"},
		{"/a/b", "/c/d"},
		{"/", ".."},
		{"/a", "./././b"},
	}
	for _, c := range cases {
		once := Canonicalize(c.cwd, c.rel)
		twice := Canonicalize(once, once)
		assert.Equal(t, once, twice, "canonicalize(%q,%q) not idempotent", c.cwd, c.rel)
	}
}

func TestCanonicalizeRelativeAndDotDot(t *testing.T) {
	assert.Equal(t, "/a/c", Canonicalize("/a/b", "../c"))
	assert.Equal(t, "/a/b/c", Canonicalize("/a", "b/c"))
	assert.Equal(t, "/", Canonicalize("/a/b", "../.."))
	assert.Equal(t, "/", Canonicalize("/", ".."))
	assert.Equal(t, "/x/y", Canonicalize("/anything", "/x/y"))
}

type memOps struct{ children map[string]*Node }

func (o *memOps) Read(n *Node, buf []byte, off int64) (int, common.Errno)  { return 0, 0 }
func (o *memOps) Write(n *Node, buf []byte, off int64) (int, common.Errno) { return 0, 0 }
func (o *memOps) Open(n *Node, flags int32) common.Errno                  { return 0 }
func (o *memOps) Close(n *Node) common.Errno                              { return 0 }
func (o *memOps) Readdir(n *Node, index uint32) (Dirent, common.Errno)     { return Dirent{}, common.EINVAL }
func (o *memOps) Finddir(n *Node, name string) (*Node, common.Errno) {
	if c, ok := o.children[name]; ok {
		return c, 0
	}
	return nil, common.ENOENT
}
func (o *memOps) Create(n *Node, name string, uid, gid int32, mode common.Mode, dev common.DevT) (*Node, common.Errno) {
	return nil, common.EACCES
}
func (o *memOps) Link(parent, child *Node, name string) common.Errno   { return common.EPERM }
func (o *memOps) Unlink(parent *Node, name string) common.Errno        { return common.EACCES }
func (o *memOps) Chmod(n *Node, mode common.Mode) common.Errno         { return 0 }
func (o *memOps) Chown(n *Node, uid, gid int32) common.Errno          { return 0 }
func (o *memOps) Ioctl(n *Node, req uint32, data interface{}) (int, common.Errno) {
	return 0, common.EINVAL
}

func mountMemFS(t *testing.T, v *VFS, path string) *Node {
	t.Helper()
	root := &Node{Name: "root", Mode: common.SIFDIR, Ops: &memOps{children: map[string]*Node{}}}
	fs := &FSType{
		Name:  "memfs",
		NoDev: true,
		GetSuper: func(dev *Node, flags uint32) (*Superblock, common.Errno) {
			return &Superblock{Root: root, Blocksize: 512}, 0
		},
	}
	v.RegisterFS(fs)
	errno := v.Mount("/", path, "memfs", nil, 0)
	require.Zero(t, errno)
	return root
}

func TestMountUmountRoundtrip(t *testing.T) {
	v := New()
	mountMemFS(t, v, "/")

	toks := tokenize("/")
	_, rest, errno := v.localRoot(toks)
	require.Zero(t, errno)
	assert.Empty(t, rest)

	errno = v.Umount("/", "/", 0)
	require.Zero(t, errno)

	_, _, errno = v.localRoot(toks)
	assert.Equal(t, common.ENOENT, errno)
}

func TestMountBusyOnDoubleMount(t *testing.T) {
	v := New()
	mountMemFS(t, v, "/mnt")

	errno := v.Mount("/", "/mnt", "memfs", nil, 0)
	assert.Equal(t, common.EBUSY, errno)
}

func TestOpenCloseRefcountSymmetry(t *testing.T) {
	n := &Node{Name: "f", Mode: common.SIFREG, Ops: &memOps{children: map[string]*Node{}}}

	require.Zero(t, Open(n, common.ORdonly))
	assert.EqualValues(t, 1, n.Refcount)

	require.Zero(t, Open(n, common.ORdonly))
	assert.EqualValues(t, 2, n.Refcount)

	require.Zero(t, Close(n))
	assert.EqualValues(t, 1, n.Refcount)

	require.Zero(t, Close(n))
	assert.EqualValues(t, 0, n.Refcount)
}

func TestUnmanagedNodeNeverRefcounts(t *testing.T) {
	n := &Node{Name: "root", Mode: common.SIFDIR, Refcount: refUnmanaged, Ops: &memOps{children: map[string]*Node{}}}
	require.Zero(t, Open(n, common.ORdonly))
	assert.EqualValues(t, refUnmanaged, n.Refcount)
	require.Zero(t, Close(n))
}

func TestKopenResolvesThroughMount(t *testing.T) {
	v := New()
	root := mountMemFS(t, v, "/")
	child := &Node{Name: "etc", Mode: common.SIFDIR, Ops: &memOps{children: map[string]*Node{}}}
	root.Ops.(*memOps).children["etc"] = child

	got, errno := v.Kopen("/", "/etc", common.ORdonly)
	require.Zero(t, errno)
	assert.Equal(t, child, got)
}

func TestCheckPermissionRootBypasses(t *testing.T) {
	n := &Node{Uid: 5, Gid: 5, Mode: common.SIFREG}
	assert.Zero(t, CheckPermission(n, 0, 0, common.ORdonly))
}

func TestCheckPermissionOtherBits(t *testing.T) {
	n := &Node{Uid: 5, Gid: 5, Mode: common.SIFREG | common.SIROTH}
	assert.Zero(t, CheckPermission(n, 99, 99, common.ORdonly))
	assert.Equal(t, common.EACCES, CheckPermission(n, 99, 99, common.OWronly))
}
