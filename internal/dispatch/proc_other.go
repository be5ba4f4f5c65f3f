//go:build !unix

package dispatch

import "os"

// terminateProcess falls back to a hard kill where SIGTERM is unavailable.
func (d *Dispatcher) terminateProcess(pid int) {
	if pid <= 0 {
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Kill()
}
