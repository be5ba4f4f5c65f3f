// Package dispatch spawns sub-agent child processes, monitors their output
// streams, and enforces their deadlines.
//
// Each dispatched agent is the controller executable re-invoked in headless
// single-task mode. The dispatcher registers a running record in the state
// store, then owns a per-agent monitor: one reader per output stream, so a
// stalled stream never blocks the other. Structured stdout lines (protocol
// package) feed last_reasoning and the final result; stderr accumulates as
// diagnostic text, capped.
//
// Lifecycle resolution:
//   - exit 0            → completed (result = last result line, or empty with a logged anomaly)
//   - nonzero exit      → errored (structured result if any, else captured stderr)
//   - deadline exceeded → terminated "timeout" by the sweep (SIGTERM → grace → SIGKILL)
//   - pid vanished      → terminated "process vanished" by the liveness poll
//
// Terminal transitions are applied exactly once: the state store rejects a
// second one, so monitor, sweep, poll, and kill can race safely.
//
// Visible-mode agents are launched through a VisibilityProvider in a host
// terminal session; their streams are not piped, so the sweep and the
// liveness poll alone resolve them.
package dispatch
