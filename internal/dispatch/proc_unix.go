//go:build unix

package dispatch

import (
	"os"
	"syscall"
	"time"

	"github.com/muster-io/muster/internal/state"
)

// terminateProcess is the two-phase shutdown: SIGTERM, a bounded grace wait,
// then SIGKILL if the process is still alive. Idempotent — signalling a dead
// pid is a no-op.
func (d *Dispatcher) terminateProcess(pid int) {
	if pid <= 0 {
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return
	}

	deadline := time.Now().Add(d.cfg.Service.GracePeriod)
	for time.Now().Before(deadline) {
		if !state.PIDAlive(pid) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	if state.PIDAlive(pid) {
		d.logger.Warn("process survived SIGTERM, sending SIGKILL", "pid", pid)
		_ = proc.Kill()
	}
}
