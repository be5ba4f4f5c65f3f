package api

import (
	"time"

	"github.com/muster-io/muster/internal/journal"
	"github.com/muster-io/muster/internal/state"
)

// DispatchRequest is the POST /v1/agents body.
type DispatchRequest struct {
	Profile        string `json:"profile"`
	Prompt         string `json:"prompt"`
	Background     *bool  `json:"background,omitempty"` // default true
	Visible        bool   `json:"visible,omitempty"`
	Model          string `json:"model,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// DispatchResponse acknowledges a dispatch.
type DispatchResponse struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
}

// AgentResponse is the wire form of one agent record.
type AgentResponse struct {
	AgentID        string    `json:"agent_id"`
	Profile        string    `json:"profile"`
	Prompt         string    `json:"prompt"`
	PID            int       `json:"pid,omitempty"`
	Status         string    `json:"status"`
	LastReasoning  string    `json:"last_reasoning,omitempty"`
	Result         string    `json:"result,omitempty"`
	ExitCode       *int      `json:"exit_code,omitempty"`
	StartTime      time.Time `json:"start_time"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Visible        bool      `json:"visible,omitempty"`
	SessionInfo    string    `json:"session_info,omitempty"`
	Model          string    `json:"model,omitempty"`
}

// RestartResponse reports the superseded agent and its replacement.
type RestartResponse struct {
	Agent       AgentResponse `json:"agent"`
	RestartedAs string        `json:"restarted_as"`
}

// HistoryEntry is the wire form of one journal entry.
type HistoryEntry struct {
	AgentID    string    `json:"agent_id"`
	Profile    string    `json:"profile"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Model      string    `json:"model,omitempty"`
	Visible    bool      `json:"visible,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HealthzResponse is the GET /healthz body.
type HealthzResponse struct {
	Status            string `json:"status"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	AgentsRunning     int    `json:"agents_running"`
	AgentsTotal       int    `json:"agents_total"`
	ProfilesLoaded    int    `json:"profiles_loaded"`
	ConfigFingerprint string `json:"config_fingerprint,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func agentResponse(rec state.Record) AgentResponse {
	return AgentResponse{
		AgentID:        rec.AgentID,
		Profile:        rec.Profile,
		Prompt:         rec.Prompt,
		PID:            rec.PID,
		Status:         string(rec.Status),
		LastReasoning:  rec.LastReasoning,
		Result:         rec.Result,
		ExitCode:       rec.ExitCode,
		StartTime:      rec.StartTime,
		TimeoutSeconds: int(rec.Timeout.Seconds()),
		Visible:        rec.Visible,
		SessionInfo:    rec.SessionInfo,
		Model:          rec.Model,
	}
}

func historyEntry(e journal.Entry) HistoryEntry {
	return HistoryEntry{
		AgentID:    e.AgentID,
		Profile:    e.Profile,
		Status:     e.Status,
		Reason:     e.Reason,
		ExitCode:   e.ExitCode,
		Model:      e.Model,
		Visible:    e.Visible,
		RecordedAt: e.RecordedAt,
	}
}
