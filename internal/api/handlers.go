package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muster-io/muster/internal/dispatch"
	"github.com/muster-io/muster/internal/manage"
	"github.com/muster-io/muster/internal/state"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	recs := s.facade.List()
	running := 0
	for _, rec := range recs {
		if !rec.Status.Terminal() {
			running++
		}
	}

	profiles := 0
	if s.registry != nil {
		profiles = len(s.registry.Names())
	}

	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		AgentsRunning:     running,
		AgentsTotal:       len(recs),
		ProfilesLoaded:    profiles,
		ConfigFingerprint: s.fingerprint,
	})
}

// handleDispatch handles POST /v1/agents.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Profile == "" {
		s.writeError(w, http.StatusBadRequest, "profile is required")
		return
	}
	if req.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	// API dispatches default to background; a blocked HTTP worker per agent
	// does not scale and the SSE stream carries completion anyway.
	background := true
	if req.Background != nil {
		background = *req.Background
	}

	id, err := s.facade.Dispatch(r.Context(), dispatch.SpawnRequest{
		Profile:    req.Profile,
		Prompt:     req.Prompt,
		Background: background,
		Visible:    req.Visible,
		Model:      req.Model,
		Timeout:    time.Duration(req.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrUnknownProfile):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, dispatch.ErrNoVisibilityProvider):
			s.writeError(w, http.StatusNotImplemented, err.Error())
		default:
			s.logger.Error("dispatch failed", "profile", req.Profile, "error", err)
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	status := string(state.StatusRunning)
	if rec, err := s.facade.Status(id); err == nil {
		status = string(rec.Status)
	}
	s.writeJSON(w, http.StatusAccepted, DispatchResponse{AgentID: id, Status: status})
}

// handleList handles GET /v1/agents.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs := s.facade.List()
	out := make([]AgentResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, agentResponse(rec))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleStatus handles GET /v1/agents/{agentID}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.facade.Status(chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agentResponse(rec))
}

// handleKill handles POST /v1/agents/{agentID}/kill.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	res, err := s.facade.Manage(r.Context(), chi.URLParam(r, "agentID"), manage.ActionKill)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agentResponse(res.Record))
}

// handleRestart handles POST /v1/agents/{agentID}/restart.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	res, err := s.facade.Manage(r.Context(), chi.URLParam(r, "agentID"), manage.ActionRestart)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RestartResponse{
		Agent:       agentResponse(res.Record),
		RestartedAs: res.RestartedAs,
	})
}

// handleRemove handles DELETE /v1/agents/{agentID}. Removal of an absent id
// succeeds, matching the store's no-op contract.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.Remove(chi.URLParam(r, "agentID")); err != nil {
		s.writeAgentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory handles GET /v1/agents/{agentID}/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.facade.History(r.Context(), chi.URLParam(r, "agentID"), 0)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry(e))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	if errors.Is(err, state.ErrUnknownAgent) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("agent operation failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
