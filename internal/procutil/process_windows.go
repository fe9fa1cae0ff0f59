//go:build windows

package procutil

// IsAlive reports whether a process with the given pid exists. Liveness is
// not probed on Windows; every positive pid counts as alive so that nothing
// in use is ever dropped.
func IsAlive(pid int) bool {
	return pid > 0
}
