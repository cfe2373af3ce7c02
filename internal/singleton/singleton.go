// Package singleton enforces that exactly one wsprrypi process owns the
// RF path at a time, since the DMA ring and GP0 clock cannot be shared
// (spec.md §4.9 "exactly one transmitter façade per process").
//
// Grounded on the flock(2)-based patterns used throughout the other
// examples for exclusive daemon locks; golang.org/x/sys/unix.Flock
// mirrors that idiom directly rather than reimplementing PID-file
// parsing by hand.
package singleton

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held exclusive flock on a fixed lock file.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if needed) path and takes a non-blocking
// exclusive flock, returning an error immediately if another process
// already holds it rather than blocking.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("singleton: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("singleton: another instance is already running (%s): %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the file.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
