package chardev

import (
	"testing"
	"time"

	"github.com/dionysus-os/kernel/internal/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDrainsStraightToConsole(t *testing.T) {
	console := hal.NewSimConsole()
	tty := NewTTY(console, time.Millisecond)

	n, errno := tty.Write(0, []byte("hi\n"), 0)
	require.Zero(t, errno)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("hi\n"), console.Output())
}

func TestReadBlocksUntilByteAvailable(t *testing.T) {
	console := hal.NewSimConsole()
	tty := NewTTY(console, time.Millisecond)

	done := make(chan struct{})
	var n int
	buf := make([]byte, 4)
	go func() {
		n, _ = tty.Read(0, buf, 0)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	console.Feed([]byte("ab"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read did not return after bytes were fed")
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, byte('a'), buf[0])
	assert.Equal(t, byte('b'), buf[1])
}
