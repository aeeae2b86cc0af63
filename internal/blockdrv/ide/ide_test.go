package ide

import (
	"testing"

	"github.com/dionysus-os/kernel/internal/block"
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferSectorsRejectsUnattachedDrive(t *testing.T) {
	ctrl := New(hal.NewSimIDERegisters(make([]byte, 4*sectorSize)))
	be := ctrl.Backend(0, 0)
	buf := make([]byte, sectorSize)
	assert.Equal(t, common.ENODEV, be.TransferSectors(0, buf, false))
}

func TestTransferSectorsRejectsOutOfRangeLBA(t *testing.T) {
	ctrl := New(hal.NewSimIDERegisters(make([]byte, 4*sectorSize)))
	require.Zero(t, ctrl.Attach(0, 0, 4))
	be := ctrl.Backend(0, 0)
	buf := make([]byte, sectorSize)
	assert.Equal(t, common.EFAULT, be.TransferSectors(10, buf, false))
}

func TestWriteThenReadRoundtripsThroughBackend(t *testing.T) {
	image := make([]byte, 8*sectorSize)
	ctrl := New(hal.NewSimIDERegisters(image))
	require.Zero(t, ctrl.Attach(0, 0, 8))
	be := ctrl.Backend(0, 0)

	payload := make([]byte, sectorSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.Zero(t, be.TransferSectors(2, payload, true))

	out := make([]byte, sectorSize)
	require.Zero(t, be.TransferSectors(2, out, false))
	assert.Equal(t, payload, out)
}

func TestDistinctSlotsAreIndependentDrives(t *testing.T) {
	ctrl := New(hal.NewSimIDERegisters(make([]byte, 8*sectorSize)))
	require.Zero(t, ctrl.Attach(0, 0, 4))
	assert.True(t, ctrl.Drive(0, 0).Present)
	assert.False(t, ctrl.Drive(0, 1).Present)
	assert.False(t, ctrl.Drive(1, 0).Present)
}

func TestBackendWiresIntoBlockDevice(t *testing.T) {
	image := make([]byte, 8*sectorSize)
	ctrl := New(hal.NewSimIDERegisters(image))
	require.Zero(t, ctrl.Attach(0, 0, 8))

	registry := block.NewRegistry()
	major, errno := registry.Register(0, "ide")
	require.Zero(t, errno)

	dev := block.NewDevice(major, 0, 1, sectorSize, 8, ctrl.Backend(0, 0))
	dev.Partitions = []block.Partition{{Minor: 0, Offset: 0, Size: 8}}
	require.Zero(t, registry.AddDevice(dev))
	dev.StartTasklet()
	defer dev.StopTasklet()

	devT := common.MkDev(major, 0)
	buf := []byte("hello, ide")
	n, errno := registry.WriteAt(devT, buf, 0)
	require.Zero(t, errno)
	require.Equal(t, len(buf), n)

	out := make([]byte, len(buf))
	n, errno = registry.ReadAt(devT, out, 0)
	require.Zero(t, errno)
	require.Equal(t, len(buf), n)
	assert.Equal(t, buf, out)
}
