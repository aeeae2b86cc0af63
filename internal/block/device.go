// Package block implements the block I/O pipeline of spec.md section 4.6:
// the major-indexed driver registry, per-device sorted request queues with
// coalescing, scatter-gather bios, and the bounce-buffered sector-aligned
// read/write path VFS-level block nodes use. Grounded on
// original_source/block.c.
package block

import (
	"sort"
	"sync"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/ksync"
)

// Backend performs the actual sector transfer for one device, the seam a
// concrete driver (ramdisk, qcow2-backed image, IDE) implements; the queue/
// coalescing/bio machinery above it is driver-agnostic, per spec.md's split
// between "request lifecycle" and "driver tasklet."
type Backend interface {
	TransferSectors(firstSector uint64, buf []byte, write bool) common.Errno
}

// Partition is one entry of a device's partition table, per spec.md
// section 3: {minor, offset-in-sectors, size-in-sectors}.
type Partition struct {
	Minor  uint32
	Offset uint64
	Size   uint64
}

// Device is a registered block device, per spec.md's "Block device"
// structure: major/minor, partitions, sector geometry, its own request
// queue and mutex, and driver-private state.
type Device struct {
	Major      uint32
	Minor      uint32 // first minor
	MaxPart    uint32
	Partitions []Partition
	SectorSize uint32
	NSectors   uint64

	Backend Backend
	done    chan struct{}      // closed to stop the driver tasklet goroutine
	wake    chan struct{}      // signaled when new work is queued

	mu      sync.Mutex
	queue   []*Request
	started bool

	Private interface{}
}

// Status is a Request's position in its lifecycle, from unscheduled through
// pending and running to finished or interrupted.
type Status int

const (
	StatusUnsched Status = iota
	StatusPending
	StatusRunning
	StatusFinished
	StatusIntr
)

// Request is one queued transfer, per spec.md section 3.
type Request struct {
	Flags       uint32
	FirstSector uint64
	NSectors    uint64
	Status      Status
	Retcode     common.Errno
	Dev         *Device
	Bios        []Bio
	Wq          *ksync.Waitqueue
}

const (
	DirRead  uint32 = 0
	DirWrite uint32 = 1
)

// SectorSizeDefault is the conventional sector size devices default to
// absent more specific geometry, matching original_source's
// KERNEL_BLOCKSIZE.
const SectorSizeDefault uint32 = 512

// Bio is a single scatter-gather descriptor, per spec.md section 3: buf is
// the physically-contiguous backing memory (a slice into the kernel's
// bounce buffer or directly into a VFS caller's buffer), Offset the byte
// offset into it where this bio's data begins, NSectors the sector count
// it covers.
type Bio struct {
	Buf      []byte
	Offset   uint32
	NSectors uint32
}

// Driver owns every Device registered under one major number, per
// original_source's blkdev_driver.
type Driver struct {
	Name    string
	Devices []*Device
}

// Registry is the 256-slot major-indexed block driver table, per spec.md's
// "Registry." Slot zero passed to Register means "assign next free major."
type Registry struct {
	mu      sync.Mutex
	drivers [256]*Driver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register installs a driver under major (or the first free major if major
// is zero), per original_source's register_blkdev. Returns the assigned
// major, or an error if the table is full or major is out of range.
func (r *Registry) Register(major uint32, name string) (uint32, common.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if major == 0 {
		for m := uint32(1); m <= 256; m++ {
			if m == 256 {
				return 0, common.ENODEV
			}
			if r.drivers[m-1] == nil {
				major = m
				break
			}
		}
	}
	if major == 0 || major > 256 {
		return 0, common.EINVAL
	}
	r.drivers[major-1] = &Driver{Name: name}
	return major, 0
}

// Get returns the driver registered under major, or nil.
func (r *Registry) Get(major uint32) *Driver {
	if major == 0 || major > 256 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drivers[major-1]
}

// AddDevice inserts dev into its major's driver, keeping Devices sorted by
// minor and rejecting overlapping minor ranges, per original_source's
// add_blkdev.
func (r *Registry) AddDevice(dev *Device) common.Errno {
	driver := r.Get(dev.Major)
	if driver == nil {
		return common.ESRCH
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range driver.Devices {
		if dev.Minor < d.Minor+d.MaxPart && d.Minor < dev.Minor+dev.MaxPart {
			return common.EEXIST
		}
	}

	i := sort.Search(len(driver.Devices), func(i int) bool { return driver.Devices[i].Minor >= dev.Minor })
	driver.Devices = append(driver.Devices, nil)
	copy(driver.Devices[i+1:], driver.Devices[i:])
	driver.Devices[i] = dev
	return 0
}

// GetDevice resolves a DevT to its owning Device, per original_source's
// get_blkdev: the minor must fall within some registered device's
// [minor, minor+maxpart) range AND name an actual partition.
func (r *Registry) GetDevice(dev common.DevT) (*Device, *Partition) {
	driver := r.Get(dev.Major())
	if driver == nil {
		return nil, nil
	}
	minor := dev.Minor()
	for _, d := range driver.Devices {
		if minor >= d.Minor && minor < d.Minor+d.MaxPart {
			for i := range d.Partitions {
				if d.Partitions[i].Minor == minor {
					return d, &d.Partitions[i]
				}
			}
			return nil, nil
		}
	}
	return nil, nil
}
