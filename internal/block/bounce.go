package block

import "github.com/dionysus-os/kernel/internal/common"

// readSectors submits one read request for nsectors sectors starting at
// firstSector into buf and blocks until it completes.
func (r *Registry) readSectors(devNum common.DevT, firstSector uint64, buf []byte, sectorSize uint32) common.Errno {
	nsectors := uint32(len(buf)) / sectorSize
	req, errno := r.MakeRequest(devNum, firstSector, []Bio{{Buf: buf, Offset: 0, NSectors: nsectors}}, false)
	if errno.IsErr() {
		return errno
	}
	return WaitRequest(req)
}

// writeSectors submits one write request for nsectors sectors starting at
// firstSector from buf and blocks until it completes.
func (r *Registry) writeSectors(devNum common.DevT, firstSector uint64, buf []byte, sectorSize uint32) common.Errno {
	nsectors := uint32(len(buf)) / sectorSize
	req, errno := r.MakeRequest(devNum, firstSector, []Bio{{Buf: buf, Offset: 0, NSectors: nsectors}}, true)
	if errno.IsErr() {
		return errno
	}
	return WaitRequest(req)
}

// ReadAt performs a sector-aligned bounce-buffered read of count bytes at
// byte offset off on devNum, per spec.md section 4.6: off is rounded down
// to a sector boundary, a bounce buffer covering every whole sector the
// range touches is read in one request, and the requested slice is copied
// out of it.
func (r *Registry) ReadAt(devNum common.DevT, buf []byte, off int64) (int, common.Errno) {
	dev, _ := r.GetDevice(devNum)
	if dev == nil {
		return 0, common.EINVAL
	}
	sectorSize := dev.SectorSize
	count := uint32(len(buf))

	startSector := uint64(off) / uint64(sectorSize)
	delta := uint32(uint64(off) % uint64(sectorSize))
	nsectors := (delta + count + sectorSize - 1) / sectorSize

	bounce := make([]byte, uint64(nsectors)*uint64(sectorSize))
	if errno := r.readSectors(devNum, startSector, bounce, sectorSize); errno.IsErr() {
		return 0, errno
	}
	n := copy(buf, bounce[delta:delta+count])
	return n, 0
}

// WriteAt performs a sector-aligned bounce-buffered write of buf at byte
// offset off on devNum, per spec.md section 4.6: sectors that are fully
// covered by buf are written directly; a sector only partially covered by
// the write (the first and/or last sector, when off or off+len(buf) is not
// sector-aligned) is read, patched, and written back alone.
func (r *Registry) WriteAt(devNum common.DevT, buf []byte, off int64) (int, common.Errno) {
	dev, _ := r.GetDevice(devNum)
	if dev == nil {
		return 0, common.EINVAL
	}
	sectorSize := dev.SectorSize
	count := uint32(len(buf))
	if count == 0 {
		return 0, 0
	}

	startSector := uint64(off) / uint64(sectorSize)
	delta := uint32(uint64(off) % uint64(sectorSize))
	endOff := delta + count
	endSector := startSector + uint64((endOff+sectorSize-1)/sectorSize)

	firstAligned := delta == 0
	lastAligned := endOff%sectorSize == 0

	written := uint32(0)

	// Boundary sector containing the write's start, when unaligned.
	if !firstAligned {
		sector := make([]byte, sectorSize)
		if errno := r.readSectors(devNum, startSector, sector, sectorSize); errno.IsErr() {
			return 0, errno
		}
		n := copy(sector[delta:], buf)
		if errno := r.writeSectors(devNum, startSector, sector, sectorSize); errno.IsErr() {
			return 0, errno
		}
		written += uint32(n)
		if startSector+1 >= endSector {
			return int(written), 0
		}
	}

	midStart := startSector
	if !firstAligned {
		midStart++
	}
	midEndSector := endSector
	if !lastAligned {
		midEndSector--
	}

	if midEndSector > midStart {
		midSectors := uint32(midEndSector - midStart)
		bufOff := written
		if !firstAligned {
			bufOff = sectorSize - delta
		}
		chunk := buf[bufOff : bufOff+midSectors*sectorSize]
		if errno := r.writeSectors(devNum, midStart, chunk, sectorSize); errno.IsErr() {
			return int(written), errno
		}
		written += uint32(len(chunk))
	}

	if !lastAligned && midEndSector < endSector {
		sector := make([]byte, sectorSize)
		if errno := r.readSectors(devNum, midEndSector, sector, sectorSize); errno.IsErr() {
			return int(written), errno
		}
		remaining := buf[written:]
		copy(sector, remaining)
		if errno := r.writeSectors(devNum, midEndSector, sector, sectorSize); errno.IsErr() {
			return int(written), errno
		}
		written += uint32(len(remaining))
	}

	return int(written), 0
}
