package devfs

import (
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/vfs"
)

func asEntry(n *vfs.Node) *entry { return n.Private.(*entry) }

// Read dispatches a char node through the major-indexed char driver table,
// or a block node through the bounce-buffer path of internal/block, per
// spec.md section 4.7.
func (fs *FS) Read(n *vfs.Node, buf []byte, off int64) (int, common.Errno) {
	e := asEntry(n)
	switch {
	case n.Mode.IsChr():
		driver := fs.chars.Get(e.dev.Major())
		if driver == nil {
			return 0, common.ENODEV
		}
		return driver.Ops.Read(e.dev.Minor(), buf, off)
	case n.Mode.IsBlk():
		return fs.blocks.ReadAt(e.dev, buf, off)
	default:
		return 0, common.EINVAL
	}
}

// Write mirrors Read for the write direction.
func (fs *FS) Write(n *vfs.Node, buf []byte, off int64) (int, common.Errno) {
	e := asEntry(n)
	switch {
	case n.Mode.IsChr():
		driver := fs.chars.Get(e.dev.Major())
		if driver == nil {
			return 0, common.ENODEV
		}
		return driver.Ops.Write(e.dev.Minor(), buf, off)
	case n.Mode.IsBlk():
		return fs.blocks.WriteAt(e.dev, buf, off)
	default:
		return 0, common.EINVAL
	}
}

// Open forwards to the char driver's Open hook for char nodes; block and
// directory nodes have nothing further to do at open time.
func (fs *FS) Open(n *vfs.Node, flags int32) common.Errno {
	e := asEntry(n)
	if n.Mode.IsChr() {
		driver := fs.chars.Get(e.dev.Major())
		if driver == nil {
			return common.ENODEV
		}
		return driver.Ops.Open(e.dev.Minor(), flags)
	}
	return 0
}

// Close intentionally does NOT dispatch through a driver vtable for block
// device nodes, reproducing original_source's older fs/dev.c close path
// (spec.md section 9 flags this as a design question rather than
// something to silently fix). Char devices do forward to their driver.
func (fs *FS) Close(n *vfs.Node) common.Errno {
	e := asEntry(n)
	if n.Mode.IsChr() {
		driver := fs.chars.Get(e.dev.Major())
		if driver == nil {
			return common.ENODEV
		}
		return driver.Ops.Close(e.dev.Minor())
	}
	return 0
}

// Readdir returns the index'th child of a directory node, in the order
// added (map iteration order is non-deterministic in Go, so directory
// entries are additionally tracked in insertion order on entry).
func (fs *FS) Readdir(n *vfs.Node, index uint32) (vfs.Dirent, common.Errno) {
	e := asEntry(n)
	if !e.isDir {
		return vfs.Dirent{}, common.ENOTDIR
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if int(index) >= len(e.order) {
		return vfs.Dirent{}, common.EINVAL
	}
	name := e.order[index]
	child := e.children[name]
	return vfs.Dirent{Ino: asEntry(child).inode, Name: name}, 0
}

// Finddir looks up name as an immediate child of n.
func (fs *FS) Finddir(n *vfs.Node, name string) (*vfs.Node, common.Errno) {
	e := asEntry(n)
	if !e.isDir {
		return nil, common.ENOENT
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.children[name]
	if !ok {
		return nil, common.ENOENT
	}
	return child, 0
}

// Create adds a new child under a directory node, per spec.md section 4.7:
// only directory, char-device, or block-device modes are accepted.
func (fs *FS) Create(n *vfs.Node, name string, uid, gid int32, mode common.Mode, dev common.DevT) (*vfs.Node, common.Errno) {
	e := asEntry(n)
	if !e.isDir {
		return nil, common.ENOTDIR
	}
	if !(mode.IsDir() || mode.IsChr() || mode.IsBlk()) {
		return nil, common.EINVAL
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.children[name]; exists {
		return nil, common.EEXIST
	}

	child := &entry{inode: fs.allocInode(), name: name, dev: dev}
	node := &vfs.Node{
		Name: name, Mode: mode, Uid: uid, Gid: gid,
		Inode: child.inode, Dev: dev, Ops: fs, Private: child,
	}
	if mode.IsDir() {
		child.isDir = true
		child.children = make(map[string]*vfs.Node)
	}
	e.children[name] = node
	e.order = append(e.order, name)
	return node, 0
}

// Link attaches an existing node to a new name under parent, per
// original_source's link_vfs contract (same filesystem only, enforced by
// the vfs package before Link is ever called). The new name refers to the
// same master node as the old one; no copy is made.
func (fs *FS) Link(parent, child *vfs.Node, name string) common.Errno {
	e := asEntry(parent)
	if !e.isDir {
		return common.ENOTDIR
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.children[name]; exists {
		return common.EEXIST
	}
	e.children[name] = child
	e.order = append(e.order, name)
	return 0
}

// Unlink removes name from a directory node.
func (fs *FS) Unlink(n *vfs.Node, name string) common.Errno {
	e := asEntry(n)
	if !e.isDir {
		return common.ENOTDIR
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.children[name]; !ok {
		return common.ENOENT
	}
	delete(e.children, name)
	for i, nm := range e.order {
		if nm == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return 0
}

// Chmod and Chown operate on the master node directly, since devfs never
// clones nodes per open, per spec.md section 4.7.
func (fs *FS) Chmod(n *vfs.Node, mode common.Mode) common.Errno {
	n.Mode = (n.Mode & ^common.Mode(0xffff)) | mode.Perm() | n.Mode.Type()
	return 0
}

func (fs *FS) Chown(n *vfs.Node, uid, gid int32) common.Errno {
	n.Uid, n.Gid = uid, gid
	return 0
}

// Ioctl forwards to a char driver; block devices have no devfs-level ioctl
// support.
func (fs *FS) Ioctl(n *vfs.Node, req uint32, data interface{}) (int, common.Errno) {
	e := asEntry(n)
	if !n.Mode.IsChr() {
		return 0, common.ENOTTY
	}
	driver := fs.chars.Get(e.dev.Major())
	if driver == nil {
		return 0, common.ENODEV
	}
	return driver.Ops.Ioctl(e.dev.Minor(), req, data)
}
