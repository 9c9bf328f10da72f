//go:build windows
// +build windows

package lockfile

import (
	"errors"
	"os"
	"syscall"
)

// tryLockFile acquires an exclusive LockFileEx without blocking.
func tryLockFile(f *os.File) error {
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped

	const (
		LOCKFILE_EXCLUSIVE_LOCK   = 0x2
		LOCKFILE_FAIL_IMMEDIATELY = 0x1
	)

	err := syscall.LockFileEx(
		handle,
		LOCKFILE_EXCLUSIVE_LOCK|LOCKFILE_FAIL_IMMEDIATELY,
		0,           // reserved
		1,           // lock 1 byte
		0,           // high-order 32 bits of byte range
		&overlapped,
	)
	if err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) && errno == 33 { // ERROR_LOCK_VIOLATION
			return ErrLocked
		}
		return err
	}
	return nil
}

// unlockFile releases the lock on a file.
func unlockFile(f *os.File) error {
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped

	return syscall.UnlockFileEx(
		handle,
		0, // reserved
		1, // unlock 1 byte
		0, // high-order 32 bits of byte range
		&overlapped,
	)
}
