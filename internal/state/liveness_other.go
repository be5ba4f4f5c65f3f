//go:build !unix

package state

import "os"

// PIDAlive is best-effort off unix: FindProcess only fails for dead pids on
// platforms where the OS hands back an error.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
