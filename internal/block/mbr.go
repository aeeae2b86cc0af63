package block

import (
	"encoding/binary"

	"github.com/dionysus-os/kernel/internal/common"
)

const (
	mbrSize        = 512
	mbrPartTblOff  = 446
	mbrPartEntSize = 16
	mbrMagicOff    = 510
)

// AutopopulateBlkdev reads the MBR from sector 0 through dev.Backend and
// populates dev.Partitions, per spec.md section 4.6 and original_source's
// autopopulate_blkdev. An invalid 0x55AA magic falls back to a single
// partition covering the whole device, matching the teacher's documented
// fallback behavior for unpartitioned media.
func AutopopulateBlkdev(dev *Device) common.Errno {
	mbr := make([]byte, mbrSize)
	if errno := dev.Backend.TransferSectors(0, mbr, false); errno.IsErr() {
		return errno
	}

	if mbr[mbrMagicOff] != 0x55 || mbr[mbrMagicOff+1] != 0xAA {
		dev.Partitions = []Partition{{Minor: dev.Minor, Offset: 0, Size: dev.NSectors}}
		dev.MaxPart = 1
		return 0
	}

	var parts []Partition
	minor := dev.Minor + 1
	for i := 0; i < 4; i++ {
		off := mbrPartTblOff + i*mbrPartEntSize
		entry := mbr[off : off+mbrPartEntSize]
		relSect := binary.LittleEndian.Uint32(entry[8:12])
		nsects := binary.LittleEndian.Uint32(entry[12:16])
		if relSect == 0 && nsects == 0 {
			continue
		}
		parts = append(parts, Partition{Minor: minor, Offset: uint64(relSect), Size: uint64(nsects)})
		minor++
	}
	// The whole-device partition is always present at the device's own
	// first minor.
	parts = append([]Partition{{Minor: dev.Minor, Offset: 0, Size: dev.NSectors}}, parts...)
	dev.Partitions = parts
	dev.MaxPart = uint32(len(parts))
	return 0
}
