package sched

import "github.com/dionysus-os/kernel/internal/vmm"

// Exit tears a task down: frees its private page-directory frames, reparents
// its children to init (pid 1), removes it from the run queue and process
// list, and marks it a zombie, per spec.md section 4.3's exit_task. closeFd,
// if non-nil, is invoked once per open fd so the caller (vfs-aware code) can
// drop its node reference, mirroring Fork's cloneFd hook. frames/kdir may be
// passed explicitly; a nil frames or kdir falls back to the Kernel's own
// stored allocator/kernel directory, the ones Fork always clones against.
func (k *Kernel) Exit(t *Task, frames *vmm.FrameAllocator, kdir *vmm.PageDirectory, closeFd func(*Fd)) {
	for i := range t.Fds {
		if t.Fds[i] == nil {
			continue
		}
		if closeFd != nil {
			closeFd(t.Fds[i])
		}
		t.Fds[i] = nil
	}

	if frames == nil {
		frames = k.frames
	}
	if kdir == nil {
		kdir = k.kdir
	}
	frames.FreeDirectory(t.PageDir, kdir)

	k.mu.Lock()
	defer k.mu.Unlock()

	if t.Parent != nil {
		for i, c := range t.Parent.Children {
			if c == t {
				t.Parent.Children = append(t.Parent.Children[:i], t.Parent.Children[i+1:]...)
				break
			}
		}
	}
	if k.root != nil && t != k.root {
		for _, c := range t.Children {
			c.Parent = k.root
			k.root.Children = append(k.root.Children, c)
		}
	}
	t.Children = nil

	k.dequeueRun(t)
	k.removeFromProcesses(t)
	t.state = StateZombie
}
