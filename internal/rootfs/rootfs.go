// Package rootfs is a quick-n-dirty filesystem for establishing the mount
// points a booted kernel needs before any real filesystem is attached,
// grounded directly on original_source/fs/rootfs.c: a single static root
// directory with two fixed subdirectories, "real" (where a FAT32-backed
// device would eventually mount, an external interface contract per
// spec.md section 1) and "dev" (where internal/devfs mounts). Unlike
// devfs, nothing here is dynamic: the original's init_rootfs populates
// subdirs[] once from a fixed names[] array and never adds another entry,
// so neither does this package.
package rootfs

import (
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/vfs"
)

const rootMode = common.SIFDIR | 0755

// FS is a rootfs instance: its root node and the two fixed children the
// original's names[] = {"real", "dev"} array describes.
type FS struct {
	root     *vfs.Node
	children []*vfs.Node
}

// New builds the root directory and its two static subdirectories.
func New() *FS {
	fs := &FS{}
	real := &vfs.Node{Name: "real", Mode: rootMode, Inode: 1, Refcount: -1}
	dev := &vfs.Node{Name: "dev", Mode: rootMode, Inode: 2, Refcount: -1}
	fs.children = []*vfs.Node{real, dev}
	fs.root = &vfs.Node{Name: "", Mode: rootMode, Inode: 0, Refcount: -1, Ops: fs}
	real.Ops = fs
	dev.Ops = fs
	return fs
}

// Root returns the filesystem's root node, for GetSuper.
func (fs *FS) Root() *vfs.Node { return fs.root }

// GetSuper implements vfs.FSType.GetSuper; rootfs never takes a backing
// device, mirroring original_source's return_sb ignoring both arguments.
func (fs *FS) GetSuper(dev *vfs.Node, flags uint32) (*vfs.Superblock, common.Errno) {
	return &vfs.Superblock{Root: fs.root, Blocksize: 512, CloseFS: func(*vfs.Superblock, bool) common.Errno { return 0 }}, 0
}

// FSType returns the registerable vfs.FSType for this instance.
func (fs *FS) FSType() *vfs.FSType {
	return &vfs.FSType{Name: "rootfs", NoDev: true, GetSuper: fs.GetSuper}
}

func (fs *FS) Readdir(n *vfs.Node, index uint32) (vfs.Dirent, common.Errno) {
	if n != fs.root {
		return vfs.Dirent{}, common.ENOTDIR
	}
	if int(index) >= len(fs.children) {
		return vfs.Dirent{}, common.EINVAL
	}
	c := fs.children[index]
	return vfs.Dirent{Ino: c.Inode, Name: c.Name}, 0
}

func (fs *FS) Finddir(n *vfs.Node, name string) (*vfs.Node, common.Errno) {
	if n != fs.root {
		return nil, common.ENOTDIR
	}
	for _, c := range fs.children {
		if c.Name == name {
			return c, 0
		}
	}
	return nil, common.ENOENT
}

// Everything below is a fixed, read-only directory structure: no file
// content, no mutation, matching the original's rootfs_ops leaving every
// other file_ops member zeroed (unimplemented).

func (fs *FS) Read(n *vfs.Node, buf []byte, off int64) (int, common.Errno)  { return 0, common.EISDIR }
func (fs *FS) Write(n *vfs.Node, buf []byte, off int64) (int, common.Errno) { return 0, common.EISDIR }
func (fs *FS) Open(n *vfs.Node, flags int32) common.Errno                   { return 0 }
func (fs *FS) Close(n *vfs.Node) common.Errno                               { return 0 }
func (fs *FS) Create(n *vfs.Node, name string, uid, gid int32, mode common.Mode, dev common.DevT) (*vfs.Node, common.Errno) {
	return nil, common.EACCES
}
func (fs *FS) Link(parent, child *vfs.Node, name string) common.Errno { return common.EACCES }
func (fs *FS) Unlink(parent *vfs.Node, name string) common.Errno      { return common.EACCES }
func (fs *FS) Chmod(n *vfs.Node, mode common.Mode) common.Errno       { return common.EACCES }
func (fs *FS) Chown(n *vfs.Node, uid, gid int32) common.Errno         { return common.EACCES }
func (fs *FS) Ioctl(n *vfs.Node, req uint32, data interface{}) (int, common.Errno) {
	return 0, common.EINVAL
}
