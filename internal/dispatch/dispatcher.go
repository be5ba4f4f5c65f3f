package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muster-io/muster/internal/config"
	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/journal"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/profile"
	"github.com/muster-io/muster/internal/state"
)

var (
	// ErrUnknownProfile is returned when a dispatch names a profile the
	// registry has never discovered.
	ErrUnknownProfile = errors.New("unknown agent profile")

	// ErrSpawnFailed wraps an OS refusal to create the child process. No
	// record is registered when spawning fails.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrNoVisibilityProvider is returned for a visible dispatch when no
	// provider is configured.
	ErrNoVisibilityProvider = errors.New("no visibility provider configured")
)

// SpawnRequest describes one agent dispatch.
type SpawnRequest struct {
	Profile    string
	Prompt     string
	Background bool
	Visible    bool
	Model      string

	// Timeout overrides the profile and service defaults when positive.
	Timeout time.Duration
}

// childCommandFunc resolves the executable and argv for a child. Replaced in
// tests to run plain shell scripts instead of the controller binary.
type childCommandFunc func(taskID, profileName, prompt, model string) (string, []string)

// Dispatcher spawns, monitors, and times out agent child processes.
type Dispatcher struct {
	store      *state.Store
	registry   *profile.Registry
	cfg        *config.Config
	hub        *events.Hub
	journal    *journal.Journal
	visibility VisibilityProvider
	logger     *slog.Logger

	childCommand childCommandFunc

	wg sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithVisibilityProvider wires the host terminal launcher for visible mode.
func WithVisibilityProvider(vp VisibilityProvider) Option {
	return func(d *Dispatcher) { d.visibility = vp }
}

// WithJournal wires the audit journal. Journal writes are best-effort and
// never fail a dispatch.
func WithJournal(j *journal.Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

// WithChildCommand replaces how child argv is built. Test hook.
func WithChildCommand(fn childCommandFunc) Option {
	return func(d *Dispatcher) { d.childCommand = fn }
}

// New creates a Dispatcher.
func New(st *state.Store, reg *profile.Registry, cfg *config.Config, hub *events.Hub, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		registry: reg,
		cfg:      cfg,
		hub:      hub,
		logger:   log.WithComponent("dispatch"),
	}
	d.childCommand = func(taskID, profileName, prompt, model string) (string, []string) {
		exe, err := os.Executable()
		if err != nil {
			// Fall back to argv[0]; Spawn surfaces the start error if this
			// is not executable either.
			exe = os.Args[0]
		}
		return exe, ChildArgs(taskID, profileName, prompt, model)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Spawn validates the request, launches the child, registers the running
// record, and starts its monitor. Background false additionally blocks until
// the record reaches a terminal state or the agent's deadline (plus grace)
// elapses.
func (d *Dispatcher) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	prof, ok := d.registry.Get(req.Profile)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, req.Profile)
	}

	agentID := uuid.NewString()
	model := req.Model
	if model == "" {
		model = prof.Model
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = prof.Timeout
	}
	if timeout <= 0 {
		timeout = d.cfg.Service.DefaultTimeout
	}

	exe, args := d.childCommand(agentID, req.Profile, req.Prompt, model)
	spawnLogger := d.logger.With("agent_id", agentID, "profile", req.Profile)

	rec := state.Record{
		AgentID:   agentID,
		Profile:   req.Profile,
		Prompt:    req.Prompt,
		Status:    state.StatusRunning,
		StartTime: time.Now(),
		Timeout:   timeout,
		Visible:   req.Visible,
		Model:     model,
	}

	if req.Visible {
		if d.visibility == nil {
			return "", ErrNoVisibilityProvider
		}
		pid, session, err := d.visibility.Launch(ctx, exe, args)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
		rec.PID = pid
		rec.SessionInfo = session
		if err := d.store.Add(rec); err != nil {
			return "", fmt.Errorf("register agent: %w", err)
		}
		spawnLogger.Info("dispatched visible agent", "pid", pid, "session", session, "timeout", timeout)
	} else {
		cmd := exec.Command(exe, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return "", fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return "", fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailed, err)
		}
		if err := cmd.Start(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}

		rec.PID = cmd.Process.Pid
		if err := d.store.Add(rec); err != nil {
			// Unreachable with uuid ids; don't leak the child if it happens.
			_ = cmd.Process.Kill()
			go func() { _ = cmd.Wait() }()
			return "", fmt.Errorf("register agent: %w", err)
		}
		spawnLogger.Info("dispatched agent", "pid", rec.PID, "timeout", timeout)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.monitor(agentID, cmd, stdout, stderr)
		}()
	}

	d.publish(events.TypeDispatched, agentID, map[string]any{
		"profile": req.Profile,
		"model":   model,
		"visible": req.Visible,
	})
	d.record(agentID, rec.Profile, string(state.StatusRunning), "", nil, model, req.Visible)

	if !req.Background {
		d.waitForTerminal(ctx, agentID, timeout+d.cfg.Service.GracePeriod+time.Second)
	}
	return agentID, nil
}

// Kill performs the same graceful-then-forced shutdown as the timeout sweep
// and marks the record terminated with reason "killed". Killing an agent
// already in a terminal state is a no-op returning the unchanged snapshot.
func (d *Dispatcher) Kill(agentID string) (state.Record, error) {
	rec, err := d.store.Get(agentID)
	if err != nil {
		return state.Record{}, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	d.terminateProcess(rec.PID)
	return d.finalize(agentID, state.StatusTerminated, "killed", nil)
}

// Wait blocks until all monitor goroutines have drained. Intended for
// shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// waitForTerminal polls the store until the record is terminal, the deadline
// passes, or ctx is cancelled. The sweep stays the authoritative backstop;
// this only unblocks foreground callers.
func (d *Dispatcher) waitForTerminal(ctx context.Context, agentID string, deadline time.Duration) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-ticker.C:
			rec, err := d.store.Get(agentID)
			if err != nil || rec.Status.Terminal() {
				return
			}
		}
	}
}

// finalize applies the terminal transition and emits the journal entry and
// lifecycle event. A transition the store rejects (another resolver won the
// race) returns the already-terminal snapshot with no error.
func (d *Dispatcher) finalize(agentID string, status state.Status, reason string, exitCode *int) (state.Record, error) {
	upd := state.Update{Status: &status, Result: &reason}
	if exitCode != nil {
		upd.ExitCode = exitCode
	}
	rec, err := d.store.Update(agentID, upd)
	if err != nil {
		if errors.Is(err, state.ErrTerminalState) {
			return d.store.Get(agentID)
		}
		return state.Record{}, err
	}

	d.publish(eventTypeFor(status), agentID, map[string]any{
		"status": string(status),
		"reason": reason,
	})
	d.record(agentID, rec.Profile, string(status), reason, exitCode, rec.Model, rec.Visible)
	return rec, nil
}

func eventTypeFor(status state.Status) string {
	switch status {
	case state.StatusCompleted:
		return events.TypeCompleted
	case state.StatusErrored:
		return events.TypeErrored
	default:
		return events.TypeTerminated
	}
}

func (d *Dispatcher) publish(eventType, agentID string, data any) {
	if d.hub != nil {
		d.hub.Publish(eventType, agentID, data)
	}
}

// record appends to the audit journal; failures are logged, never surfaced.
func (d *Dispatcher) record(agentID, profileName, status, reason string, exitCode *int, model string, visible bool) {
	if d.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.journal.Append(ctx, journal.Entry{
		AgentID:  agentID,
		Profile:  profileName,
		Status:   status,
		Reason:   reason,
		ExitCode: exitCode,
		Model:    model,
		Visible:  visible,
	})
	if err != nil {
		d.logger.Warn("journal append failed", "agent_id", agentID, "error", err)
	}
}
