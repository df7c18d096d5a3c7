package syncer

import (
	"os"

	"golang.org/x/sys/unix"
)

// Flock is an advisory, non-blocking exclusive file lock held on an open
// file descriptor. It guards against two sync runs targeting the same
// media root concurrently.
type Flock struct {
	f *os.File
}

// Lock attempts to take an exclusive, non-blocking lock. If another process
// already holds it, Lock returns an *os.SyscallError wrapping
// EWOULDBLOCK/EAGAIN immediately rather than waiting.
func (fl Flock) Lock() error {
	err := unix.Flock(int(fl.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		return &os.SyscallError{Syscall: "flock", Err: err}
	}
	return nil
}

// Unlock releases the lock.
func (fl Flock) Unlock() error {
	err := unix.Flock(int(fl.f.Fd()), unix.LOCK_UN)
	if err != nil {
		return &os.SyscallError{Syscall: "flock", Err: err}
	}
	return nil
}
