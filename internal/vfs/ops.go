package vfs

import "github.com/dionysus-os/kernel/internal/common"

// Read dispatches to n.Ops.Read, rejecting directories, per
// original_source's read_vfs.
func Read(n *Node, buf []byte, off int64) (int, common.Errno) {
	if n == nil {
		return 0, common.EBADF
	}
	if n.Mode.IsDir() {
		return 0, common.EINVAL
	}
	if n.Ops == nil {
		return 0, common.EIO
	}
	return n.Ops.Read(n, buf, off)
}

// Write dispatches to n.Ops.Write, rejecting directories, per
// original_source's write_vfs.
func Write(n *Node, buf []byte, off int64) (int, common.Errno) {
	if n == nil {
		return 0, common.EBADF
	}
	if n.Mode.IsDir() {
		return 0, common.EINVAL
	}
	if n.Ops == nil {
		return 0, common.EIO
	}
	return n.Ops.Write(n, buf, off)
}

// Open validates the mount's read-only flag, stores flags on the node, and
// bumps its refcount through the driver's Open hook, per original_source's
// open_vfs. A node with Refcount == -1 (an unmanaged singleton, e.g. a
// freshly mounted root) is never refcounted.
func Open(n *Node, flags int32) common.Errno {
	if n == nil {
		return common.EBADF
	}
	if n.Sb != nil && n.Sb.Flags&MntRdonly != 0 && flags&common.OWronly != 0 {
		return common.EROFS
	}
	n.Flags = flags

	if n.Refcount == refUnmanaged {
		return 0
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var errno common.Errno
	if n.Ops != nil {
		errno = n.Ops.Open(n, flags)
	} else {
		errno = common.EACCES
	}
	if !errno.IsErr() && n.Refcount >= 0 {
		n.Refcount++
	}
	return errno
}

// Close decrements the node's refcount, invoking the driver's Close hook
// and releasing the node once the count reaches zero, per original_source's
// close_vfs. Nodes with Refcount == -1 are simply discarded.
func Close(n *Node) common.Errno {
	if n == nil {
		return common.EBADF
	}
	if n.Refcount == refUnmanaged {
		return 0
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.Refcount--
	if n.Refcount == 0 && n.Ops != nil {
		return n.Ops.Close(n)
	}
	return 0
}

// Readdir dispatches to n.Ops.Readdir, per original_source's readdir_vfs.
func Readdir(n *Node, index uint32) (Dirent, common.Errno) {
	if n == nil {
		return Dirent{}, common.EBADF
	}
	if !n.Mode.IsDir() {
		return Dirent{}, common.ENOTDIR
	}
	if n.Ops == nil {
		return Dirent{}, common.EIO
	}
	return n.Ops.Readdir(n, index)
}

// Finddir looks up name as an immediate child of n, per
// original_source's (static) finddir_vfs.
func Finddir(n *Node, name string) (*Node, common.Errno) {
	if n == nil {
		return nil, common.ENOENT
	}
	if !n.Mode.IsDir() {
		return nil, common.ENOENT
	}
	if n.Ops == nil {
		return nil, common.ENOENT
	}
	return n.Ops.Finddir(n, name)
}

// Chmod dispatches to n.Ops.Chmod, a no-op success if the driver doesn't
// implement it, per original_source's chmod_vfs.
func Chmod(n *Node, mode common.Mode) common.Errno {
	if n == nil {
		return common.EBADF
	}
	if n.Ops == nil {
		return 0
	}
	return n.Ops.Chmod(n, mode)
}

// Chown dispatches to n.Ops.Chown, per original_source's chown_vfs.
func Chown(n *Node, uid, gid int32) common.Errno {
	if n == nil {
		return common.EBADF
	}
	if n.Ops == nil {
		return 0
	}
	return n.Ops.Chown(n, uid, gid)
}

// Ioctl dispatches to n.Ops.Ioctl, restricted to char/block device nodes,
// per original_source's ioctl_vfs.
func Ioctl(n *Node, req uint32, data interface{}) (int, common.Errno) {
	if n == nil {
		return 0, common.EBADF
	}
	if !n.Mode.IsDev() {
		return 0, common.ENOTTY
	}
	if n.Ops == nil {
		return 0, common.EINVAL
	}
	return n.Ops.Ioctl(n, req, data)
}

// Create adds a new child named name under parent, per original_source's
// create_vfs: EEXIST if it already exists, ENOTDIR if parent isn't a
// directory.
func Create(parent *Node, name string, uid, gid int32, mode common.Mode, dev common.DevT) (*Node, common.Errno) {
	if parent == nil {
		return nil, common.EBADF
	}
	if !parent.Mode.IsDir() {
		return nil, common.ENOTDIR
	}
	if existing, _ := Finddir(parent, name); existing != nil {
		return nil, common.EEXIST
	}
	if parent.Ops == nil {
		return nil, common.EACCES
	}
	return parent.Ops.Create(parent, name, uid, gid, mode, dev)
}

// Link adds child to parent under name, per original_source's link_vfs:
// EXDEV across filesystems, EEXIST if name is taken.
func Link(parent, child *Node, name string) common.Errno {
	if parent == nil || child == nil {
		return common.EBADF
	}
	if !parent.Mode.IsDir() {
		return common.ENOTDIR
	}
	if parent.Sb != child.Sb {
		return common.EXDEV
	}
	if existing, _ := Finddir(parent, name); existing != nil {
		return common.EEXIST
	}
	if parent.Ops == nil {
		return common.EPERM
	}
	return parent.Ops.Link(parent, child, name)
}

// Unlink removes name from parent, per original_source's unlink_vfs.
func Unlink(parent *Node, name string) common.Errno {
	if parent == nil {
		return common.EBADF
	}
	if !parent.Mode.IsDir() {
		return common.ENOTDIR
	}
	if parent.Ops == nil {
		return common.EACCES
	}
	return parent.Ops.Unlink(parent, name)
}
