package sched

import "github.com/dionysus-os/kernel/internal/common"

// findPid returns the task with the given pid, or nil.
func (k *Kernel) findPid(pid Pid) *Task {
	for _, p := range k.processes {
		if p.Pid == pid {
			return p
		}
	}
	return nil
}

// Setpgid implements setpgid(pid, pgid), per spec.md section 4.3/6: pid==0
// means the calling task; pgid==0 means "use pid's own pid as its group."
// A task may only join a group within its own session, and may not change
// the process group of a session leader.
func (k *Kernel) Setpgid(caller *Task, pid, pgid Pid) common.Errno {
	k.mu.Lock()
	defer k.mu.Unlock()

	target := caller
	if pid != 0 {
		target = k.findPid(pid)
		if target == nil {
			return common.ESRCH
		}
	}
	if target.Pid == target.Sid {
		return common.EPERM
	}
	if target != caller && target.Parent != caller {
		return common.EPERM
	}

	newGid := pgid
	if newGid == 0 {
		newGid = target.Pid
	}
	if newGid != target.Pid {
		// Joining an existing group: the target group must exist within the
		// same session.
		found := false
		for _, p := range k.processes {
			if p.Gid == newGid && p.Sid == target.Sid {
				found = true
				break
			}
		}
		if !found {
			return common.EPERM
		}
	}
	target.Gid = newGid
	return 0
}

// Getpgid implements getpgid(pid).
func (k *Kernel) Getpgid(caller *Task, pid Pid) (Pid, common.Errno) {
	k.mu.Lock()
	defer k.mu.Unlock()
	target := caller
	if pid != 0 {
		target = k.findPid(pid)
		if target == nil {
			return 0, common.ESRCH
		}
	}
	return target.Gid, 0
}

// Setsid implements setsid(): the calling task becomes the leader of a new
// session and a new process group, both equal to its own pid. Fails if the
// caller is already a process-group leader, per spec.md.
func (k *Kernel) Setsid(caller *Task) (Pid, common.Errno) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if caller.Pid == caller.Gid {
		return 0, common.EPERM
	}
	if caller.Parent != nil {
		for i, c := range caller.Parent.Children {
			if c == caller {
				caller.Parent.Children = append(caller.Parent.Children[:i], caller.Parent.Children[i+1:]...)
				break
			}
		}
	}
	if k.root != nil && caller != k.root {
		caller.Parent = k.root
		k.root.Children = append(k.root.Children, caller)
	}
	caller.Sid = caller.Pid
	caller.Gid = caller.Pid
	return caller.Pid, 0
}

// Getsid implements getsid(pid).
func (k *Kernel) Getsid(caller *Task, pid Pid) (Pid, common.Errno) {
	k.mu.Lock()
	defer k.mu.Unlock()
	target := caller
	if pid != 0 {
		target = k.findPid(pid)
		if target == nil {
			return 0, common.ESRCH
		}
	}
	return target.Sid, 0
}

// Setresuid implements setresuid(ruid, euid, suid), per spec.md's saved-id
// rule: an unprivileged caller (euid != 0) may only set each id to one of its current real/effective/saved values;
// a privileged caller (euid == 0) may set any value. -1 in any field means
// "leave unchanged," per the POSIX convention this syscall follows.
func (k *Kernel) Setresuid(caller *Task, ruid, euid, suid int32) common.Errno {
	priv := caller.Euid == 0
	allowed := func(v int32) bool {
		return priv || v == -1 || v == caller.Ruid || v == caller.Euid || v == caller.Suid
	}
	if !allowed(ruid) || !allowed(euid) || !allowed(suid) {
		return common.EPERM
	}
	if ruid != -1 {
		caller.Ruid = ruid
	}
	if euid != -1 {
		caller.Euid = euid
	}
	if suid != -1 {
		caller.Suid = suid
	}
	return 0
}

// Getresuid reports the calling task's real/effective/saved uids.
func (k *Kernel) Getresuid(caller *Task) (ruid, euid, suid int32) {
	return caller.Ruid, caller.Euid, caller.Suid
}

// Setresgid mirrors Setresuid for the gid triple.
func (k *Kernel) Setresgid(caller *Task, rgid, egid, sgid int32) common.Errno {
	priv := caller.Euid == 0
	allowed := func(v int32) bool {
		return priv || v == -1 || v == caller.Rgid || v == caller.Egid || v == caller.Sgid
	}
	if !allowed(rgid) || !allowed(egid) || !allowed(sgid) {
		return common.EPERM
	}
	if rgid != -1 {
		caller.Rgid = rgid
	}
	if egid != -1 {
		caller.Egid = egid
	}
	if sgid != -1 {
		caller.Sgid = sgid
	}
	return 0
}

// Getresgid reports the calling task's real/effective/saved gids.
func (k *Kernel) Getresgid(caller *Task) (rgid, egid, sgid int32) {
	return caller.Rgid, caller.Egid, caller.Sgid
}

// Chdir updates the task's working-directory string. Path resolution and
// existence checks are performed by internal/vfs before calling this; sched
// only owns the string field on Task.
func (k *Kernel) Chdir(caller *Task, resolved string) {
	caller.Cwd = resolved
}

// Sbrk implements sbrk(increment): adjusts a task's break by increment bytes
// and returns the previous break, per spec.md section 4.3. The grow
// callback, called for both growth and shrinkage, lets the caller
// (vmm-aware code) commit or release the backing pages; Sbrk itself only
// moves the bookkeeping pointer once the callback succeeds.
func (k *Kernel) Sbrk(caller *Task, increment int32, grow func(oldBrk, newBrk uint32) bool) (uint32, common.Errno) {
	old := caller.Brk
	var newBrk uint32
	if increment >= 0 {
		newBrk = old + uint32(increment)
	} else {
		dec := uint32(-increment)
		if dec > old {
			return 0, common.EINVAL
		}
		newBrk = old - dec
	}
	if grow != nil && !grow(old, newBrk) {
		return 0, common.ENOMEM
	}
	caller.Brk = newBrk
	return old, 0
}
