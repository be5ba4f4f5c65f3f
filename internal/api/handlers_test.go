package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muster-io/muster/internal/config"
	"github.com/muster-io/muster/internal/dispatch"
	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/journal"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/manage"
	"github.com/muster-io/muster/internal/profile"
	"github.com/muster-io/muster/internal/state"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type apiEnv struct {
	server *Server
	store  *state.Store
	hub    *events.Hub
	disp   *dispatch.Dispatcher
}

func newAPIEnv(t *testing.T, apiKey, childScript string) *apiEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Service.GracePeriod = 200 * time.Millisecond
	cfg.API.Auth.APIKey = apiKey

	reg := profile.NewRegistry()
	require.NoError(t, reg.Add(&profile.Profile{Name: "worker"}))

	jnl, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })

	st := state.NewStore()
	hub := events.NewHub(64)
	disp := dispatch.New(st, reg, cfg, hub,
		dispatch.WithJournal(jnl),
		dispatch.WithChildCommand(func(taskID, profileName, prompt, model string) (string, []string) {
			return "/bin/sh", []string{"-c", childScript}
		}),
	)
	t.Cleanup(disp.Wait)

	facade := manage.New(st, disp, manage.WithHub(hub), manage.WithJournal(jnl))
	srv := New(cfg.API, facade, hub, reg, "cafe1234")
	return &apiEnv{server: srv, store: st, hub: hub, disp: disp}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	e.server.Routes().ServeHTTP(rr, req)
	return rr
}

func (e *apiEnv) dispatchAgent(t *testing.T, prompt string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/v1/agents", DispatchRequest{Profile: "worker", Prompt: prompt})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AgentID)
	return resp.AgentID
}

func waitTerminal(t *testing.T, st *state.Store, agentID string) state.Record {
	t.Helper()
	var rec state.Record
	require.Eventually(t, func() bool {
		var err error
		rec, err = st.Get(agentID)
		return err == nil && rec.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t, "", `echo '{"kind":"result","text":"ok"}'`)
	env.dispatchAgent(t, "p")

	rr := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.AgentsTotal)
	assert.Equal(t, 1, resp.ProfilesLoaded)
	assert.Equal(t, "cafe1234", resp.ConfigFingerprint)
}

func TestDispatchAndStatus(t *testing.T) {
	env := newAPIEnv(t, "", `echo '{"kind":"result","text":"Task done!"}'`)

	id := env.dispatchAgent(t, "do it")
	waitTerminal(t, env.store, id)

	rr := env.do(t, http.MethodGet, "/v1/agents/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var agent AgentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agent))
	assert.Equal(t, id, agent.AgentID)
	assert.Equal(t, "worker", agent.Profile)
	assert.Equal(t, "completed", agent.Status)
	assert.Equal(t, "Task done!", agent.Result)
	require.NotNil(t, agent.ExitCode)
	assert.Equal(t, 0, *agent.ExitCode)
}

func TestDispatchValidation(t *testing.T) {
	env := newAPIEnv(t, "", `true`)

	rr := env.do(t, http.MethodPost, "/v1/agents", DispatchRequest{Prompt: "p"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/v1/agents", DispatchRequest{Profile: "worker"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchUnknownProfile(t *testing.T) {
	env := newAPIEnv(t, "", `true`)

	rr := env.do(t, http.MethodPost, "/v1/agents", DispatchRequest{Profile: "ghost", Prompt: "p"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusUnknownAgent(t *testing.T) {
	env := newAPIEnv(t, "", `true`)

	rr := env.do(t, http.MethodGet, "/v1/agents/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListAgents(t *testing.T) {
	env := newAPIEnv(t, "", `echo '{"kind":"result","text":"ok"}'`)

	a := env.dispatchAgent(t, "first")
	b := env.dispatchAgent(t, "second")
	waitTerminal(t, env.store, a)
	waitTerminal(t, env.store, b)

	rr := env.do(t, http.MethodGet, "/v1/agents", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var agents []AgentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agents))
	assert.Len(t, agents, 2)
}

func TestKillAgent(t *testing.T) {
	env := newAPIEnv(t, "", `sleep 30`)

	id := env.dispatchAgent(t, "p")
	rr := env.do(t, http.MethodPost, "/v1/agents/"+id+"/kill", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var agent AgentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agent))
	assert.Equal(t, "terminated", agent.Status)
	assert.Equal(t, "killed", agent.Result)
}

func TestRestartAgent(t *testing.T) {
	env := newAPIEnv(t, "", `sleep 30`)

	id := env.dispatchAgent(t, "keep going")
	rr := env.do(t, http.MethodPost, "/v1/agents/"+id+"/restart", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RestartResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Agent.AgentID)
	assert.NotEmpty(t, resp.RestartedAs)
	assert.NotEqual(t, id, resp.RestartedAs)

	env.do(t, http.MethodPost, "/v1/agents/"+resp.RestartedAs+"/kill", nil)
}

func TestRemoveAgent(t *testing.T) {
	env := newAPIEnv(t, "", `echo '{"kind":"result","text":"ok"}'`)

	id := env.dispatchAgent(t, "p")
	waitTerminal(t, env.store, id)

	rr := env.do(t, http.MethodDelete, "/v1/agents/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/agents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Absent removal stays a no-op.
	rr = env.do(t, http.MethodDelete, "/v1/agents/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAgentHistory(t *testing.T) {
	env := newAPIEnv(t, "", `echo '{"kind":"result","text":"ok"}'`)

	id := env.dispatchAgent(t, "p")
	waitTerminal(t, env.store, id)

	var entries []HistoryEntry
	require.Eventually(t, func() bool {
		rr := env.do(t, http.MethodGet, "/v1/agents/"+id+"/history", nil)
		if rr.Code != http.StatusOK {
			return false
		}
		entries = nil
		return json.Unmarshal(rr.Body.Bytes(), &entries) == nil && len(entries) >= 2
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "running", entries[0].Status)
	assert.Equal(t, "completed", entries[len(entries)-1].Status)
}

func TestAuthEnforced(t *testing.T) {
	env := newAPIEnv(t, "sekret", `true`)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	rr := httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rr = httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Healthz stays open.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr = httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestEventsStreamReplaysBuffer(t *testing.T) {
	env := newAPIEnv(t, "", `true`)

	env.hub.Publish(events.TypeDispatched, "agent-1", map[string]string{"profile": "worker"})
	env.hub.Publish(events.TypeCompleted, "agent-1", map[string]string{"status": "completed"})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rr, req)

	body := rr.Body.String()
	assert.Contains(t, body, "event: agent.dispatched")
	assert.Contains(t, body, "event: agent.completed")
	assert.Contains(t, body, `"agent_id":"agent-1"`)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
}

func TestEventsStreamHonorsLastEventID(t *testing.T) {
	env := newAPIEnv(t, "", `true`)

	env.hub.Publish(events.TypeDispatched, "agent-1", nil)
	env.hub.Publish(events.TypeCompleted, "agent-1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	rr := httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rr, req)

	body := rr.Body.String()
	assert.NotContains(t, body, "event: agent.dispatched")
	assert.Contains(t, body, "event: agent.completed")
}
