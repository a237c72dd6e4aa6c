//go:build !linux

package hardware

import "syscall"

// Linux errno values; only relevant when tests run off-target.
var (
	errIO       error = syscall.Errno(5)
	errRemoteIO error = syscall.Errno(121)
)
