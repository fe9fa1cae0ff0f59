//go:build !windows

package procutil

import (
	"syscall"
)

// IsAlive reports whether a process with the given pid exists.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix systems, sending signal 0 checks if process exists
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Process exists but we don't have permission
		return true
	}
	return false
}
