package diskimg

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFile struct{ data []byte }

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}
func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.data[off:], p)
	return n, nil
}

func TestFlatFileReadWriteRoundtrip(t *testing.T) {
	mem := &memFile{data: make([]byte, 512*4)}
	f := NewFlatFile(mem, mem, 4)

	buf := bytes.Repeat([]byte{0xAB}, 512)
	require.Zero(t, f.WriteAt(buf, 1))

	out := make([]byte, 512)
	require.Zero(t, f.ReadAt(out, 1))
	assert.Equal(t, buf, out)
}

func TestFlatFileRejectsOutOfRangeSector(t *testing.T) {
	mem := &memFile{data: make([]byte, 512*2)}
	f := NewFlatFile(mem, mem, 2)
	assert.True(t, f.ReadAt(make([]byte, 512), 5).IsErr())
}

func buildQCOW2(clusterBits uint32, l1Entries []uint64, l2Tables map[uint64][]uint64, clusters map[uint64][]byte, sizeBytes uint64) []byte {
	clusterSize := uint64(1) << clusterBits
	img := make([]byte, clusterSize*8) // plenty of room laid out cluster-aligned below

	copy(img[0:4], "QFI\xfb")
	binary.BigEndian.PutUint32(img[20:24], clusterBits)
	binary.BigEndian.PutUint64(img[24:32], sizeBytes)
	binary.BigEndian.PutUint32(img[36:40], uint32(len(l1Entries)))
	l1Off := clusterSize
	binary.BigEndian.PutUint64(img[40:48], l1Off)

	for i, l2Off := range l1Entries {
		binary.BigEndian.PutUint64(img[l1Off+uint64(i)*8:], l2Off)
	}
	for l2Off, entries := range l2Tables {
		for i, clusterOff := range entries {
			binary.BigEndian.PutUint64(img[l2Off+uint64(i)*8:], clusterOff)
		}
	}
	for clusterOff, data := range clusters {
		copy(img[clusterOff:], data)
	}
	return img
}

func TestQCOW2ReadsAllocatedCluster(t *testing.T) {
	const clusterBits = 16 // 64KiB clusters
	clusterSize := uint64(1) << clusterBits
	l2Off := clusterSize * 2
	dataOff := clusterSize * 3

	payload := bytes.Repeat([]byte{0xCD}, 512)
	img := buildQCOW2(clusterBits,
		[]uint64{l2Off},
		map[uint64][]uint64{l2Off: {dataOff}},
		map[uint64][]byte{dataOff: payload},
		clusterSize*8,
	)

	q, err := OpenQCOW2(&memFile{data: img})
	require.NoError(t, err)

	out := make([]byte, 512)
	require.Zero(t, q.ReadAt(out, 0))
	assert.Equal(t, payload, out)
}

func TestQCOW2UnallocatedClusterReadsZero(t *testing.T) {
	const clusterBits = 16
	clusterSize := uint64(1) << clusterBits
	img := buildQCOW2(clusterBits, []uint64{0}, nil, nil, clusterSize*8)

	q, err := OpenQCOW2(&memFile{data: img})
	require.NoError(t, err)

	out := bytes.Repeat([]byte{0xFF}, 512)
	require.Zero(t, q.ReadAt(out, 0))
	assert.Equal(t, make([]byte, 512), out)
}

func TestQCOW2WriteIsReadOnly(t *testing.T) {
	const clusterBits = 16
	clusterSize := uint64(1) << clusterBits
	img := buildQCOW2(clusterBits, []uint64{0}, nil, nil, clusterSize*8)
	q, err := OpenQCOW2(&memFile{data: img})
	require.NoError(t, err)
	assert.True(t, q.WriteAt(make([]byte, 512), 0).IsErr())
}
