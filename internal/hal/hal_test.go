package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimConsoleWriteReadRoundtrip(t *testing.T) {
	c := NewSimConsole()
	n, err := c.Write([]byte("hi\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("hi\n"), c.Output())

	c.Feed([]byte("a"))
	b, ok := c.ReadByte()
	require.True(t, ok)
	assert.Equal(t, byte('a'), b)

	_, ok = c.ReadByte()
	assert.False(t, ok)
}

func TestSimPagingBackendFaultDelivery(t *testing.T) {
	p := NewSimPagingBackend()
	var gotAddr uintptr
	var gotCode uint32
	p.InstallPageFaultHandler(func(cr2 uintptr, code uint32) {
		gotAddr, gotCode = cr2, code
	})
	p.Fault(0x1000, 4)
	assert.EqualValues(t, 0x1000, gotAddr)
	assert.EqualValues(t, 4, gotCode)
	assert.EqualValues(t, 0x1000, p.ReadCR2())
}

func TestSimELFLoaderRejectsNonELF(t *testing.T) {
	l := NewSimELFLoader()
	_, _, err := l.Load([]byte("not an elf"))
	assert.Error(t, err)
}

func TestSimELFLoaderParsesMinimalLoadSegment(t *testing.T) {
	img := make([]byte, 52+32)
	copy(img[:4], "\x7fELF")
	putLE32(img[24:28], 0x1000) // e_entry
	putLE32(img[28:32], 52)     // e_phoff
	putLE16(img[42:44], 32)     // e_phentsize
	putLE16(img[44:46], 1)      // e_phnum

	ph := img[52:84]
	putLE32(ph[0:4], 1)     // PT_LOAD
	putLE32(ph[4:8], 0)     // p_offset
	putLE32(ph[8:12], 0x1000)
	putLE32(ph[16:20], 52) // p_filesz covers the headers themselves for this test
	putLE32(ph[20:24], 0x2000)
	putLE32(ph[24:28], 2) // PF_W

	l := NewSimELFLoader()
	entry, segs, err := l.Load(img)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1000, entry)
	require.Len(t, segs, 1)
	assert.EqualValues(t, 0x1000, segs[0].VAddr)
	assert.True(t, segs[0].Write)
	assert.EqualValues(t, 0x2000, segs[0].MemLen)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func TestStdArith64DivByZero(t *testing.T) {
	var a StdArith64
	_, _, errno := a.Udiv64(10, 0)
	assert.True(t, errno.IsErr())
}

func TestStdArith64DivRoundtrip(t *testing.T) {
	var a StdArith64
	q, r, errno := a.Udiv64(17, 5)
	require.Zero(t, errno)
	assert.EqualValues(t, 3, q)
	assert.EqualValues(t, 2, r)
}
