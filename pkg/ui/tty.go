//go:build !windows

package ui

import (
	"io"
	"os"
)

// OpenTTY opens the controlling terminal, so the chat can run interactively
// even when stdin is a pipe.
func OpenTTY() (io.ReadWriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
