// Package ide adapts original_source/ide.c's drive-table-indexed driver
// (four slots: two channels, each with a master/slave) into the
// request-queue-facing half of a block.Backend. The register-level dance
// ide_read/ide_write/ide_polling perform directly over port I/O stays out
// of scope, behind hal.IDERegisters, per spec.md section 1; this package
// owns everything original_source layers on top of that: the
// drive table (ide_devices), LBA bounds checking (ide_read_sectors/
// ide_write_sectors's "lba+numsects > size" guard), and per-drive
// selection.
package ide

import (
	"sync"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/hal"
)

// Drive mirrors one entry of original_source's ide_devices[4]: which
// channel/position it sits at and its sector count, discovered out of
// band (a real boot probes IDENTIFY; this module's hal.IDERegisters seam
// has no IDENTIFY leaf, so callers supply NSectors directly, e.g. from an
// internal/diskimg.BackingStore's NSectors()).
type Drive struct {
	Bus      int // 0 = primary, 1 = secondary, matching original_source's "channel"
	Slot     int // 0 = master, 1 = slave, matching original_source's "drive"
	NSectors uint64
	Present  bool
}

// Controller is the four-drive table original_source keeps as package
// globals (channels[2], ide_devices[4]), given an owning value here so
// cmd/kernel can construct as many as it boots (normally one).
type Controller struct {
	mu     sync.Mutex
	regs   hal.IDERegisters
	drives [4]Drive
}

// New wraps regs (the out-of-scope register-level seam) with an initially
// empty drive table.
func New(regs hal.IDERegisters) *Controller {
	return &Controller{regs: regs}
}

func slotIndex(bus, slot int) int { return bus*2 + slot }

// Attach registers a drive at (bus, slot) with the given sector count,
// standing in for original_source's ide_initialize drive-detection loop
// (its IDENTIFY parse populates exactly this: reserved, channel, drive,
// size).
func (c *Controller) Attach(bus, slot int, nsectors uint64) common.Errno {
	if bus < 0 || bus > 1 || slot < 0 || slot > 1 {
		return common.EINVAL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drives[slotIndex(bus, slot)] = Drive{Bus: bus, Slot: slot, NSectors: nsectors, Present: true}
	return 0
}

// Drive reports the attached drive at (bus, slot), or Present == false.
func (c *Controller) Drive(bus, slot int) Drive {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drives[slotIndex(bus, slot)]
}

// Backend returns a block.Backend bound to one attached drive, suitable
// for block.NewDevice, matching "the driver tasklet" side of spec.md's
// split between request lifecycle and backend transfer.
func (c *Controller) Backend(bus, slot int) *Backend {
	return &Backend{ctrl: c, bus: bus, slot: slot}
}

// Backend is the block.Backend adapting one (bus, slot) drive onto
// hal.IDERegisters, grounded on ide_read_sectors/ide_write_sectors's
// bounds check and ide_ata_access's select-then-transfer sequence.
type Backend struct {
	ctrl *Controller
	bus  int
	slot int
}

const sectorSize = 512

// TransferSectors implements block.Backend: select the drive, bounds-check
// against its reported size (ide_read_sectors/ide_write_sectors's
// "lba+numsects > size" guard), and read or write through
// hal.IDERegisters.
func (b *Backend) TransferSectors(firstSector uint64, buf []byte, write bool) common.Errno {
	drive := b.ctrl.Drive(b.bus, b.slot)
	if !drive.Present {
		return common.ENODEV
	}
	count := len(buf) / sectorSize
	if len(buf)%sectorSize != 0 {
		return common.EINVAL
	}
	if firstSector+uint64(count) > drive.NSectors {
		return common.EFAULT
	}

	b.ctrl.mu.Lock()
	defer b.ctrl.mu.Unlock()

	if err := b.ctrl.regs.SelectDrive(b.bus, b.slot); err != nil {
		return common.EIO
	}
	if write {
		if err := b.ctrl.regs.WriteSectors(uint32(firstSector), count, buf); err != nil {
			return common.EIO
		}
		return 0
	}
	if err := b.ctrl.regs.ReadSectors(uint32(firstSector), count, buf); err != nil {
		return common.EIO
	}
	return 0
}
