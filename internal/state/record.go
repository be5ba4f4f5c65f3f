package state

import "time"

// Status is an agent lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusErrored    Status = "errored"
	StatusTerminated Status = "terminated"
)

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusErrored || s == StatusTerminated
}

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusErrored, StatusTerminated:
		return true
	}
	return false
}

// Record is the lifecycle entry for one dispatched agent.
//
// PID is meaningful only while Status is running. Result holds the agent's
// final output on completed, a best-effort error text on errored, and the
// termination reason ("timeout", "killed", "process vanished") on terminated,
// so every terminal record carries a human-readable explanation.
type Record struct {
	AgentID       string
	Profile       string
	Prompt        string
	PID           int
	Status        Status
	LastReasoning string
	Result        string
	ExitCode      *int
	StartTime     time.Time
	Timeout       time.Duration
	Visible       bool
	SessionInfo   string
	Model         string
}

// clone returns a deep copy so callers never observe a live record.
func (r Record) clone() Record {
	out := r
	if r.ExitCode != nil {
		code := *r.ExitCode
		out.ExitCode = &code
	}
	return out
}

// Update is a partial mutation; nil fields are left unchanged.
type Update struct {
	Status        *Status
	LastReasoning *string
	Result        *string
	ExitCode      *int
	SessionInfo   *string
}
