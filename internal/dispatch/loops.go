package dispatch

import (
	"context"
	"time"

	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/state"
)

// Start runs the timeout sweep and the liveness poll until ctx is cancelled.
// Blocking call; run it in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loops started",
		"sweep_interval", d.cfg.Service.SweepInterval,
		"poll_interval", d.cfg.Service.PollInterval)
	defer d.logger.Info("dispatch loops stopped")

	sweep := time.NewTicker(d.cfg.Service.SweepInterval)
	defer sweep.Stop()
	poll := time.NewTicker(d.cfg.Service.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			d.TerminateHanging()
		case <-poll.C:
			d.PollLiveness()
		}
	}
}

// TerminateHanging scans for running agents past their deadline, shuts each
// down gracefully, and marks it terminated with reason "timeout". One sweep
// pass never holds a store-wide lock; it works from a snapshot and lets the
// store arbitrate each terminal transition. Returns the ids it terminated.
func (d *Dispatcher) TerminateHanging() []string {
	now := time.Now()
	var terminated []string

	for _, rec := range d.store.List() {
		if rec.Status != state.StatusRunning || now.Sub(rec.StartTime) <= rec.Timeout {
			continue
		}
		d.logger.Warn("agent exceeded timeout", "agent_id", rec.AgentID, "timeout", rec.Timeout)
		d.terminateProcess(rec.PID)

		if _, err := d.finalize(rec.AgentID, state.StatusTerminated, "timeout", nil); err != nil {
			d.logger.Error("timeout transition failed", "agent_id", rec.AgentID, "error", err)
			continue
		}
		terminated = append(terminated, rec.AgentID)
	}
	return terminated
}

// PollLiveness delegates to the store's OS liveness check and journals the
// agents it found vanished — children killed by something other than this
// controller, which the IPC stream never reports.
func (d *Dispatcher) PollLiveness() []string {
	vanished := d.store.Poll()
	for _, agentID := range vanished {
		d.logger.Warn("agent process vanished", "agent_id", agentID)
		rec, err := d.store.Get(agentID)
		if err != nil {
			continue
		}
		d.publish(events.TypeTerminated, agentID, map[string]any{
			"status": string(state.StatusTerminated),
			"reason": rec.Result,
		})
		d.record(agentID, rec.Profile, string(rec.Status), rec.Result, nil, rec.Model, rec.Visible)
	}
	return vanished
}
