package vfs

import (
	"sync"

	"github.com/dionysus-os/kernel/internal/common"
)

// FSType is a registered filesystem driver, per original_source's
// file_system_type: GetSuper builds a Superblock given a backing device
// node (nil if NoDev) and mount flags.
type FSType struct {
	Name  string
	NoDev bool
	GetSuper func(dev *Node, flags uint32) (*Superblock, common.Errno)
}

// mountNode is one entry in the mount tree: original_source's
// "struct mountpoint" plus tree_t linkage, expressed here as a plain Go
// tree with a map of named children instead of the teacher's intrusive
// linked list, since Go gives us a map for free.
type mountNode struct {
	name     string
	sb       *Superblock
	children map[string]*mountNode
}

func newMountNode(name string) *mountNode {
	return &mountNode{name: name, children: make(map[string]*mountNode)}
}

// prune deletes child from parent's children when child has no children of
// its own and no active mount. Only that one node is examined: ancestors
// left childless by the deletion are not removed.
func prune(parent, child *mountNode) {
	for parent != nil && child != nil {
		if len(child.children) > 0 || child.sb != nil {
			return
		}
		delete(parent.children, child.name)
		return
	}
}

// VFS is the single global virtual-filesystem instance: the mount tree, the
// registered filesystem-type table, and the locks guarding both, per
// spec.md section 5 ("VFS globals are guarded by one package-level lock").
type VFS struct {
	mu      sync.Mutex
	root    *mountNode
	fsTypes map[string]*FSType
}

// New returns an uninitialized VFS: no root mount yet, matching
// original_source's init_vfs (filesystem tree starts empty; the first
// Mount call lazily creates the tree root).
func New() *VFS {
	return &VFS{fsTypes: make(map[string]*FSType)}
}

// RegisterFS adds a filesystem driver to the registry, per register_fs.
// Registering the same name twice is a programming error the caller
// should avoid; it simply overwrites.
func (v *VFS) RegisterFS(fs *FSType) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fsTypes[fs.Name] = fs
}

// walkOrCreate descends the mount tree along toks, creating intermediate
// mountNodes as needed, and returns the final node plus its parent (for
// pruning on failure), matching the node-walk loop inside original_source's
// mount().
func (v *VFS) walkOrCreate(toks []string) (node, parent *mountNode) {
	if v.root == nil {
		v.root = newMountNode("[root]")
	}
	node = v.root
	for _, tok := range toks {
		parent = node
		child, ok := node.children[tok]
		if !ok {
			child = newMountNode(tok)
			node.children[tok] = child
		}
		node = child
	}
	return node, parent
}

// walk descends the mount tree along toks without creating anything,
// returning the final node or (nil, false) if any component is missing.
func (v *VFS) walk(toks []string) (*mountNode, bool) {
	node := v.root
	for _, tok := range toks {
		if node == nil {
			return nil, false
		}
		child, ok := node.children[tok]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, node != nil
}

// Mount attaches the filesystem named fsName at relpath (resolved against
// cwd), backing it with dev (nil for a NoDev filesystem), per
// original_source's mount(). Returns EBUSY if something is already mounted
// there, ENODEV if fsName is unregistered or requires a device and none was
// given, ENOTBLK if dev is not a block device node.
func (v *VFS) Mount(cwd, relpath, fsName string, dev *Node, flags uint32) common.Errno {
	v.mu.Lock()
	defer v.mu.Unlock()

	fs, ok := v.fsTypes[fsName]
	if !ok {
		return common.ENODEV
	}
	if dev == nil && !fs.NoDev {
		return common.ENODEV
	}
	if dev != nil && !dev.Mode.IsBlk() {
		return common.ENOTBLK
	}

	path := Canonicalize(cwd, relpath)
	toks := tokenize(path)
	node, parent := v.walkOrCreate(toks)

	if node.sb != nil {
		prune(parent, node)
		return common.EBUSY
	}

	sb, errno := fs.GetSuper(dev, flags)
	if errno.IsErr() {
		prune(parent, node)
		return errno
	}

	sb.Root.Refcount = refUnmanaged
	node.sb = sb
	return 0
}

// Umount detaches whatever is mounted at relpath, per original_source's
// umount(). Fails with EBUSY if the mountpoint has active children and
// MNT_DETACH was not requested, and propagates whatever error the driver's
// CloseFS reports.
func (v *VFS) Umount(cwd, relpath string, flags uint32) common.Errno {
	v.mu.Lock()
	defer v.mu.Unlock()

	path := Canonicalize(cwd, relpath)
	toks := tokenize(path)
	node, ok := v.walk(toks)
	if !ok {
		return common.ENOENT
	}
	if node.sb == nil {
		return common.EINVAL
	}
	if flags&MntDetach == 0 && len(node.children) > 0 {
		return common.EBUSY
	}
	if node.sb.CloseFS != nil {
		if errno := node.sb.CloseFS(node.sb, flags&MntForce != 0); errno.IsErr() {
			return errno
		}
	}
	node.sb = nil

	// Reconstruct the parent pointer to allow pruning, since walk() doesn't
	// track it. The tree root itself has no parent and is never pruned.
	if len(toks) > 0 {
		parent, _ := v.walk(toks[:len(toks)-1])
		prune(parent, node)
	}
	return 0
}

// localRoot walks the mount tree along toks as far as mountpoints carry it,
// returning the deepest mounted filesystem's root node plus the remaining
// path components below that mountpoint, matching original_source's
// get_local_root: each mountpoint crossed rebases both the local root and
// the token offset. The tree root need not be mounted itself; ENOENT is
// returned only when no mountpoint covers the path.
func (v *VFS) localRoot(toks []string) (*Node, []string, common.Errno) {
	if v.root == nil {
		return nil, nil, common.ENOENT
	}
	var root *Node
	if v.root.sb != nil {
		root = v.root.sb.Root
	}
	rest := toks
	node := v.root
	for i, tok := range toks {
		child, ok := node.children[tok]
		if !ok {
			break
		}
		node = child
		if node.sb != nil {
			root = node.sb.Root
			rest = toks[i+1:]
		}
	}
	if root == nil {
		return nil, nil, common.ENOENT
	}
	return root, rest, 0
}
