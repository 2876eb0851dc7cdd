//go:build !windows

package pid

import "golang.org/x/sys/unix"

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)

	// EPERM means the process exists but belongs to someone else
	return err == nil || err == unix.EPERM
}
