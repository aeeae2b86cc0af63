package vfs

import "github.com/dionysus-os/kernel/internal/common"

// Kopen resolves relpath against cwd, walks down from the deepest mounted
// filesystem root covering it, and opens the resulting node with flags, per
// original_source's kopen. Returns ENOENT if any path component is missing.
func (v *VFS) Kopen(cwd, relpath string, flags int32) (*Node, common.Errno) {
	path := Canonicalize(cwd, relpath)
	toks := tokenize(path)

	v.mu.Lock()
	root, rest, errno := v.localRoot(toks)
	v.mu.Unlock()

	if errno.IsErr() {
		return nil, errno
	}
	if root == nil {
		return nil, common.ENOENT
	}

	cur := root
	for _, tok := range rest {
		next, errno := Finddir(cur, tok)
		if errno.IsErr() || next == nil {
			return nil, common.ENOENT
		}
		cur = next
	}

	if errno := Open(cur, flags); errno.IsErr() {
		return nil, errno
	}
	return cur, 0
}

// Lseek computes a new file offset from whence, per spec.md section 6. It
// does not itself touch the node; callers (the syscall layer) persist the
// result onto the owning file descriptor.
func Lseek(n *Node, offset int64, whence int, curOffset int64) (int64, common.Errno) {
	if n == nil {
		return 0, common.EBADF
	}
	var base int64
	switch whence {
	case common.SeekSet:
		base = 0
	case common.SeekCur:
		base = curOffset
	case common.SeekEnd:
		base = n.Len
	default:
		return 0, common.EINVAL
	}
	newOff := base + offset
	if newOff < 0 {
		return 0, common.EINVAL
	}
	return newOff, 0
}
