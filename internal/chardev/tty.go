// Package chardev adapts original_source/chardev/term.c's tty read/write
// pair onto hal.Console. The scancode-translation and VGA-text-buffer
// halves of term.c (kbd_isr, monitor_put) stay out of scope per spec.md
// section 1 — hal.Console already stands in for both, as the single
// "character in, character out" seam a bare-metal backend would implement
// against real hardware. What this package keeps is exactly term.c's
// read/write glue: write drains straight through, read blocks
// (spin-polls, mirroring the original's sleep_thread() busy loop) until a
// byte is available.
package chardev

import (
	"time"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/hal"
)

// TTY is a devreg.CharOps backed by one hal.Console, registered under a
// single major with every minor sharing the same console, matching
// original_source's single global inbuf/readbufpos/writebufpos (term.c
// supports exactly one terminal).
type TTY struct {
	console hal.Console
	poll    time.Duration
}

// NewTTY wraps console. poll, if zero, defaults to a 1ms spin interval for
// Read's blocking wait.
func NewTTY(console hal.Console, poll time.Duration) *TTY {
	if poll <= 0 {
		poll = time.Millisecond
	}
	return &TTY{console: console, poll: poll}
}

// Read blocks until at least one byte is available, then fills buf up to
// the first gap in available input, mirroring term.c's read(): the outer
// wait is for the first byte, the inner loop keeps pulling bytes without
// re-waiting only while they are already queued.
func (t *TTY) Read(minor uint32, buf []byte, off int64) (int, common.Errno) {
	if len(buf) == 0 {
		return 0, 0
	}
	for {
		if b, ok := t.console.ReadByte(); ok {
			buf[0] = b
			n := 1
			for n < len(buf) {
				b, ok := t.console.ReadByte()
				if !ok {
					break
				}
				buf[n] = b
				n++
			}
			return n, 0
		}
		time.Sleep(t.poll)
	}
}

// Write drains buf straight to the console, matching term.c's write()
// calling monitor_put once per byte.
func (t *TTY) Write(minor uint32, buf []byte, off int64) (int, common.Errno) {
	n, err := t.console.Write(buf)
	if err != nil {
		return n, common.EIO
	}
	return n, 0
}

func (t *TTY) Open(minor uint32, flags int32) common.Errno { return 0 }
func (t *TTY) Close(minor uint32) common.Errno              { return 0 }
func (t *TTY) Ioctl(minor uint32, req uint32, data interface{}) (int, common.Errno) {
	return 0, common.ENOTTY
}
