// Package devreg implements the char-device driver registry of spec.md
// section 4.7's "major-indexed char driver table," grounded on
// original_source's register_chrdev/chrdev_driver (Include/dev.h). The
// block-device registry lives in internal/block since it owns the richer
// request-queue machinery spec.md section 4.6 describes; this package
// covers the simpler char side only.
package devreg

import (
	"sync"

	"github.com/dionysus-os/kernel/internal/common"
)

// CharOps is a character driver's dispatch table: read/write transfer
// bytes directly (no request queue, no bouncing — char devices are not
// sector-addressed), open/close/ioctl mirror the VFS-level vtable.
type CharOps interface {
	Read(minor uint32, buf []byte, off int64) (int, common.Errno)
	Write(minor uint32, buf []byte, off int64) (int, common.Errno)
	Open(minor uint32, flags int32) common.Errno
	Close(minor uint32) common.Errno
	Ioctl(minor uint32, req uint32, data interface{}) (int, common.Errno)
}

// CharDriver is one registered char driver, per original_source's
// chrdev_driver: a name and its ops table.
type CharDriver struct {
	Name string
	Ops  CharOps
}

// CharRegistry is the 256-slot major-indexed char driver table.
type CharRegistry struct {
	mu      sync.Mutex
	drivers [256]*CharDriver
}

// NewCharRegistry returns an empty registry.
func NewCharRegistry() *CharRegistry { return &CharRegistry{} }

// Register installs ops under major (or the first free major if major is
// zero), per original_source's register_chrdev.
func (r *CharRegistry) Register(major uint32, name string, ops CharOps) (uint32, common.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if major == 0 {
		found := false
		for m := uint32(1); m <= 256; m++ {
			if m == 256 {
				return 0, common.ENODEV
			}
			if r.drivers[m-1] == nil {
				major = m
				found = true
				break
			}
		}
		if !found {
			return 0, common.ENODEV
		}
	}
	if major == 0 || major > 256 {
		return 0, common.EINVAL
	}
	r.drivers[major-1] = &CharDriver{Name: name, Ops: ops}
	return major, 0
}

// Get returns the driver registered under major, or nil.
func (r *CharRegistry) Get(major uint32) *CharDriver {
	if major == 0 || major > 256 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drivers[major-1]
}
