package vfs

import "github.com/dionysus-os/kernel/internal/common"

// CheckPermission implements spec.md's permission policy: root (euid 0)
// passes unconditionally; otherwise the requested O_RDONLY/O_WRONLY bits of
// flags are checked against the node's other-bits, upgraded to user-bits if
// euid owns the node or to group-bits if egid matches the node's group.
func CheckPermission(n *Node, euid, egid int32, flags int32) common.Errno {
	if euid == 0 {
		return 0
	}

	perm := n.Mode.Perm()
	var want common.Mode
	switch {
	case euid == n.Uid:
		if flags&common.OWronly != 0 {
			want = common.SIWUSR
		} else {
			want = common.SIRUSR
		}
	case egid == n.Gid:
		if flags&common.OWronly != 0 {
			want = common.SIWGRP
		} else {
			want = common.SIRGRP
		}
	default:
		if flags&common.OWronly != 0 {
			want = common.SIWOTH
		} else {
			want = common.SIROTH
		}
	}
	if flags&common.ORdwr == common.ORdwr {
		// Both read and write requested: require both corresponding bits
		// at whichever scope applies.
		var readBit, writeBit common.Mode
		switch {
		case euid == n.Uid:
			readBit, writeBit = common.SIRUSR, common.SIWUSR
		case egid == n.Gid:
			readBit, writeBit = common.SIRGRP, common.SIWGRP
		default:
			readBit, writeBit = common.SIROTH, common.SIWOTH
		}
		if perm&readBit == 0 || perm&writeBit == 0 {
			return common.EACCES
		}
		return 0
	}

	if perm&want == 0 {
		return common.EACCES
	}
	return 0
}
