package hardware

import "errors"

// ErrTransient marks a failure worth retrying that did not come from the kernel,
// e.g. a 1-Wire CRC mismatch.
var ErrTransient = errors.New("hardware: transient bus error")

// IsTransient reports whether err is one of the recoverable bus errors
// (EIO, EREMOTEIO, or ErrTransient).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	return errors.Is(err, errIO) || errors.Is(err, errRemoteIO)
}
