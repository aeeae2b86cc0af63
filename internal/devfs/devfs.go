// Package devfs implements the in-memory device filesystem of spec.md
// section 4.7: a VFS driver exposing char/block device nodes, mounted at
// /dev. Grounded on original_source/fs/dev.c and Include/fs/dev.h, adapted
// from that file's singly-linked dev_file list and ordered_array bookkeeping
// to per-directory Go maps keyed by child name.
package devfs

import (
	"sync"

	"github.com/dionysus-os/kernel/internal/block"
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/devreg"
	"github.com/dionysus-os/kernel/internal/vfs"
)

// entry is the devfs-private state attached to every vfs.Node this driver
// owns, via Node.Private. It is the "master node" spec.md section 4.7
// refers to: every open handle on the same path shares the same *entry
// because devfs never clones nodes on open.
type entry struct {
	mu       sync.Mutex
	inode    uint32
	name     string
	isDir    bool
	children map[string]*vfs.Node // nil unless isDir
	order    []string             // child names in creation order, for Readdir
	dev      common.DevT          // valid for char/block nodes
}

// FS is one devfs instance: its root directory and the shared char/block
// registries it dispatches device I/O through.
type FS struct {
	mu        sync.Mutex
	nextInode uint32
	chars     *devreg.CharRegistry
	blocks    *block.Registry
	root      *vfs.Node
}

// New builds a devfs instance and its root directory node (inode 0), per
// spec.md's "indexed by inode number (starting at 0 for the root
// directory)."
func New(chars *devreg.CharRegistry, blocks *block.Registry) *FS {
	fs := &FS{chars: chars, blocks: blocks, nextInode: 1}
	root := &entry{inode: 0, name: "/", isDir: true, children: make(map[string]*vfs.Node), order: nil}
	fs.root = &vfs.Node{
		Name:     "/",
		Mode:     common.SIFDIR | 0755,
		Refcount: -1,
		Ops:      fs,
		Inode:    0,
		Private:  root,
	}
	return fs
}

// Root returns the filesystem's root node, for GetSuper callbacks.
func (fs *FS) Root() *vfs.Node { return fs.root }

// GetSuper implements vfs.FSType.GetSuper for registration: devfs never
// takes a backing device, per spec.md scenario 3 (`mount(NULL, "/dev",
// "devfs", 0)`).
func (fs *FS) GetSuper(dev *vfs.Node, flags uint32) (*vfs.Superblock, common.Errno) {
	return &vfs.Superblock{Root: fs.root, Blocksize: block.SectorSizeDefault, CloseFS: func(*vfs.Superblock, bool) common.Errno { return 0 }}, 0
}

// FSType returns the registerable vfs.FSType for this instance.
func (fs *FS) FSType() *vfs.FSType {
	return &vfs.FSType{Name: "devfs", NoDev: true, GetSuper: fs.GetSuper}
}

func (fs *FS) allocInode() uint32 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino := fs.nextInode
	fs.nextInode++
	return ino
}
