// Package vfs implements the virtual filesystem layer of spec.md section
// 4.5: path canonicalization, the mount tree, reference-counted file nodes,
// the per-filesystem operations vtable, and the FS-driver registry. It is
// grounded on the teacher's fs package shape (an Ops vtable dispatched
// through a common node struct) adapted to the Dionysus node/superblock
// model in original_source/kernel/vfs.c.
package vfs

import (
	"sync"

	"github.com/dionysus-os/kernel/internal/common"
)

// Dirent names one directory entry, per spec.md section 3.
type Dirent struct {
	Ino  uint32
	Name string
}

// Ops is a filesystem driver's vtable, one method per verb, mirroring
// original_source's file_ops struct (and shaped like the teacher's own
// Fops/fs driver interfaces): every FS driver Node carries its own Ops,
// so dispatch is a field load plus an interface call rather than a type
// switch.
type Ops interface {
	Read(n *Node, buf []byte, off int64) (int, common.Errno)
	Write(n *Node, buf []byte, off int64) (int, common.Errno)
	Open(n *Node, flags int32) common.Errno
	Close(n *Node) common.Errno
	Readdir(n *Node, index uint32) (Dirent, common.Errno)
	Finddir(n *Node, name string) (*Node, common.Errno)
	Create(n *Node, name string, uid, gid int32, mode common.Mode, dev common.DevT) (*Node, common.Errno)
	Link(parent, child *Node, name string) common.Errno
	Unlink(parent *Node, name string) common.Errno
	Chmod(n *Node, mode common.Mode) common.Errno
	Chown(n *Node, uid, gid int32) common.Errno
	Ioctl(n *Node, req uint32, data interface{}) (int, common.Errno)
}

// Superblock is one mounted filesystem instance, per spec.md section 3.
type Superblock struct {
	Dev       *Node // the block device node this fs was mounted on, if any
	Root      *Node
	Flags     uint32
	Blocksize uint32

	// CloseFS is invoked by Umount once the tree is confirmed detachable.
	// force reports whether MNT_FORCE was requested.
	CloseFS func(sb *Superblock, force bool) common.Errno

	Private interface{}
}

// Mount flag bits, per spec.md section 6.
const (
	MntRdonly uint32 = 1 << 0
	MntDetach uint32 = 1 << 1
	MntForce  uint32 = 1 << 2
)

// refUnmanaged is the sentinel refcount of a node that is never freed by
// Close — original_source's "-1 means don't refcount," used for the single
// canonical root node and for a superblock's own root that mount() installs
// once.
const refUnmanaged = -1

// Node is one open or resolvable file in some mounted filesystem, per
// spec.md section 3. A Node with Refcount == -1 is a long-lived singleton
// (the global root, or a superblock's canonical root) that Close never
// frees; every other Node is reference-counted and freed once its count
// drops to zero.
type Node struct {
	Name  string
	Mode  common.Mode
	Uid   int32
	Gid   int32
	Inode uint32
	Len   int64
	Dev   common.DevT // device this node itself names, for char/block nodes

	Flags int32 // open flags last passed to Open, per original_source

	Ops Ops
	Sb  *Superblock // the filesystem this node belongs to
	Mnt *Superblock // non-nil if this node is a mountpoint's local root

	Private interface{}

	mu       sync.Mutex
	Refcount int32
}

func (n *Node) lockedRefcount() int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Refcount
}

// Clone implements clone_file: bumps the refcount (or, for an unmanaged
// node, returns a shallow copy) so the caller holds its own independent
// handle, used by fork() to duplicate file descriptors.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Refcount == refUnmanaged {
		cpy := *n
		return &cpy
	}
	n.mu.Lock()
	if n.Refcount >= 0 {
		n.Refcount++
	}
	n.mu.Unlock()
	return n
}
