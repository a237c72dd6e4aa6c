//go:build linux

package hardware

import "golang.org/x/sys/unix"

var (
	errIO       error = unix.EIO
	errRemoteIO error = unix.EREMOTEIO
)
