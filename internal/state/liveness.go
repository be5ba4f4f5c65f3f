//go:build unix

package state

import (
	"os"
	"syscall"
)

// PIDAlive probes the process with signal 0. EPERM still means the pid
// exists, just owned by someone else.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
