//go:build windows

package ui

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/windows"
)

// OpenTTY opens the console input handle, so the chat can run interactively
// even when stdin is a pipe.
func OpenTTY() (io.ReadWriteCloser, error) {
	handle, err := windows.GetStdHandle(windows.STD_INPUT_HANDLE)
	if err != nil {
		return nil, err
	}

	fd := os.NewFile(uintptr(handle), "conin$")
	if fd == nil {
		return nil, errors.New("failed to create file from console handle")
	}

	return fd, nil
}
