// Package manage is the caller-facing boundary over the dispatcher and the
// state store. The HTTP API and the CLI both go through it; neither reaches
// the dispatcher or the store directly.
package manage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/muster-io/muster/internal/dispatch"
	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/journal"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/state"
)

// ErrUnknownAction is returned by Manage for an action outside the set
// {status, kill, restart}.
var ErrUnknownAction = errors.New("unknown management action")

// Action is one of the operations Manage accepts.
type Action string

const (
	ActionStatus  Action = "status"
	ActionKill    Action = "kill"
	ActionRestart Action = "restart"
)

// Result is the outcome of one management action. RestartedAs is set only by
// restart and names the replacement agent; Record is always the snapshot of
// the agent the action was addressed to.
type Result struct {
	Record      state.Record
	RestartedAs string
}

// Facade composes the dispatcher and the store behind one surface.
type Facade struct {
	store   *state.Store
	disp    *dispatch.Dispatcher
	hub     *events.Hub
	journal *journal.Journal
	logger  *slog.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithHub wires the event hub for removal notifications.
func WithHub(h *events.Hub) Option {
	return func(f *Facade) { f.hub = h }
}

// WithJournal wires the audit journal for removal entries.
func WithJournal(j *journal.Journal) Option {
	return func(f *Facade) { f.journal = j }
}

// New creates a Facade over the given store and dispatcher.
func New(st *state.Store, d *dispatch.Dispatcher, opts ...Option) *Facade {
	f := &Facade{
		store:  st,
		disp:   d,
		logger: log.WithComponent("manage"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dispatch launches a new agent and returns its id.
func (f *Facade) Dispatch(ctx context.Context, req dispatch.SpawnRequest) (string, error) {
	return f.disp.Spawn(ctx, req)
}

// Manage applies action to the named agent.
func (f *Facade) Manage(ctx context.Context, agentID string, action Action) (Result, error) {
	switch action {
	case ActionStatus:
		rec, err := f.store.Get(agentID)
		return Result{Record: rec}, err
	case ActionKill:
		rec, err := f.disp.Kill(agentID)
		return Result{Record: rec}, err
	case ActionRestart:
		return f.restart(ctx, agentID)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Status is an alias for Manage(agentID, ActionStatus).
func (f *Facade) Status(agentID string) (state.Record, error) {
	return f.store.Get(agentID)
}

// List returns a snapshot of every tracked agent.
func (f *Facade) List() []state.Record {
	return f.store.List()
}

// Remove deletes an agent's record. A running agent is killed first so no
// orphan child survives its own bookkeeping. Removing an absent id is a
// no-op.
func (f *Facade) Remove(agentID string) error {
	rec, err := f.store.Get(agentID)
	if err != nil {
		if errors.Is(err, state.ErrUnknownAgent) {
			return nil
		}
		return err
	}
	if !rec.Status.Terminal() {
		if _, err := f.disp.Kill(agentID); err != nil {
			return fmt.Errorf("kill before remove: %w", err)
		}
	}
	f.store.Remove(agentID)

	if f.hub != nil {
		f.hub.Publish(events.TypeRemoved, agentID, map[string]string{"profile": rec.Profile})
	}
	if f.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := f.journal.Append(ctx, journal.Entry{
			AgentID: agentID,
			Profile: rec.Profile,
			Status:  "removed",
			Model:   rec.Model,
			Visible: rec.Visible,
		})
		if err != nil {
			f.logger.Warn("journal append failed", "agent_id", agentID, "error", err)
		}
	}
	return nil
}

// History returns the journaled transitions for one agent, oldest first. It
// answers for removed agents too; the journal outlives the in-memory record.
func (f *Facade) History(ctx context.Context, agentID string, limit int) ([]journal.Entry, error) {
	if f.journal == nil {
		return nil, errors.New("journal not configured")
	}
	return f.journal.History(ctx, agentID, limit)
}

// restart kills the agent if it is still running, then dispatches a fresh
// agent with the original profile, prompt, model, and visibility. The
// superseded record stays in the store under its own id.
func (f *Facade) restart(ctx context.Context, agentID string) (Result, error) {
	rec, err := f.store.Get(agentID)
	if err != nil {
		return Result{}, err
	}
	if !rec.Status.Terminal() {
		if rec, err = f.disp.Kill(agentID); err != nil {
			return Result{}, fmt.Errorf("kill before restart: %w", err)
		}
	}

	newID, err := f.disp.Spawn(ctx, dispatch.SpawnRequest{
		Profile:    rec.Profile,
		Prompt:     rec.Prompt,
		Background: true,
		Visible:    rec.Visible,
		Model:      rec.Model,
	})
	if err != nil {
		return Result{Record: rec}, fmt.Errorf("restart dispatch: %w", err)
	}

	f.logger.Info("restarted agent", "agent_id", agentID, "new_agent_id", newID)
	return Result{Record: rec, RestartedAs: newID}, nil
}
