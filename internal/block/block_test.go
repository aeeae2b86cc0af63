package block

import (
	"testing"
	"time"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/ksync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	sectorSize uint32
	data       []byte
	reads      int
	writes     int
}

func newMemBackend(sectorSize uint32, nsectors uint64) *memBackend {
	return &memBackend{sectorSize: sectorSize, data: make([]byte, sectorSize*uint32(nsectors))}
}

func (m *memBackend) TransferSectors(firstSector uint64, buf []byte, write bool) common.Errno {
	off := firstSector * uint64(m.sectorSize)
	if write {
		m.writes++
		copy(m.data[off:], buf)
	} else {
		m.reads++
		copy(buf, m.data[off:off+uint64(len(buf))])
	}
	return 0
}

func setupDevice(t *testing.T, nsectors uint64) (*Registry, common.DevT, *memBackend) {
	t.Helper()
	reg := NewRegistry()
	major, errno := reg.Register(0, "ram")
	require.Zero(t, errno)

	backend := newMemBackend(512, nsectors)
	dev := NewDevice(major, 0, 1, 512, nsectors, backend)
	dev.Partitions = []Partition{{Minor: 0, Offset: 0, Size: nsectors}}
	require.Zero(t, reg.AddDevice(dev))
	dev.StartTasklet()
	t.Cleanup(dev.StopTasklet)

	return reg, common.MkDev(major, 0), backend
}

func TestWriteThenReadRoundtrip(t *testing.T) {
	reg, devNum, _ := setupDevice(t, 16)

	payload := []byte("hello, sector-aligned world")
	n, errno := reg.WriteAt(devNum, payload, 0)
	require.Zero(t, errno)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, errno = reg.ReadAt(devNum, buf, 0)
	require.Zero(t, errno)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestUnalignedWriteSingleSectorRMW(t *testing.T) {
	reg, devNum, backend := setupDevice(t, 16)

	buf := make([]byte, 100)
	for i := range buf {
		buf[i] = byte(i)
	}
	n, errno := reg.WriteAt(devNum, buf, 50)
	require.Zero(t, errno)
	assert.Equal(t, 100, n)

	assert.Equal(t, 1, backend.reads, "unaligned single-sector write should read exactly once")
	assert.Equal(t, 1, backend.writes, "unaligned single-sector write should write exactly once")
}

func TestCoalesceMergesContiguousRequests(t *testing.T) {
	reg, devNum, backend := setupDevice(t, 16)

	dev, _ := reg.GetDevice(devNum)
	dev.StopTasklet() // inspect the queue before the tasklet can drain it

	buf1 := make([]byte, 512)
	buf2 := make([]byte, 512)
	_, errno := reg.MakeRequest(devNum, 0, []Bio{{Buf: buf1, NSectors: 1}}, false)
	require.Zero(t, errno)
	_, errno = reg.MakeRequest(devNum, 1, []Bio{{Buf: buf2, NSectors: 1}}, false)
	require.Zero(t, errno)

	// The two contiguous, same-direction requests should have collapsed
	// into a single queue entry spanning both sectors.
	require.Len(t, dev.queue, 1)
	assert.EqualValues(t, 0, dev.queue[0].FirstSector)
	assert.EqualValues(t, 2, dev.queue[0].NSectors)

	merged := dev.queue[0]
	dev.StartTasklet()
	require.Zero(t, WaitRequest(merged))
	assert.Equal(t, 2, backend.reads, "merged request should issue one backend transfer per bio, in list order")
}

func TestEndRequestWakesWaiters(t *testing.T) {
	dev := NewDevice(1, 0, 1, 512, 4, nil)
	req := &Request{Dev: dev, NSectors: 1, Status: StatusPending, Wq: ksync.NewWaitqueue()}

	done := make(chan common.Errno, 1)
	go func() {
		done <- WaitRequest(req)
	}()

	time.Sleep(10 * time.Millisecond)
	EndRequest(req, true, 1)

	select {
	case errno := <-done:
		assert.Zero(t, errno)
	case <-time.After(time.Second):
		t.Fatal("WaitRequest did not wake after EndRequest")
	}
}

func TestAutopopulateFallsBackOnBadMagic(t *testing.T) {
	backend := newMemBackend(512, 100)
	dev := NewDevice(1, 0, 1, 512, 100, backend)

	require.Zero(t, AutopopulateBlkdev(dev))
	require.Len(t, dev.Partitions, 1)
	assert.EqualValues(t, 100, dev.Partitions[0].Size)
}
