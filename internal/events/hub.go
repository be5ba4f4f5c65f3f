// Package events is an in-memory pub/sub hub for agent lifecycle events,
// with a small ring buffer so late subscribers (SSE clients, the watch TUI)
// can catch up.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle event types published by the dispatcher and facade.
const (
	TypeDispatched = "agent.dispatched"
	TypeReasoning  = "agent.reasoning"
	TypeCompleted  = "agent.completed"
	TypeErrored    = "agent.errored"
	TypeTerminated = "agent.terminated"
	TypeRemoved    = "agent.removed"
)

// Event is one published lifecycle event.
type Event struct {
	ID      int64     `json:"id"`
	Type    string    `json:"type"`
	AgentID string    `json:"agent_id"`
	At      time.Time `json:"at"`
	Data    []byte    `json:"data"` // JSON payload
}

// Hub fans events out to subscribers and keeps the last capacity events.
type Hub struct {
	nextID atomic.Int64

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a hub retaining up to capacity events for late clients.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish emits an event. data is marshaled to JSON; a nil or unmarshalable
// payload becomes {}.
func (h *Hub) Publish(eventType, agentID string, data any) {
	id := h.nextID.Add(1)

	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		ID:      id,
		Type:    eventType,
		AgentID: agentID,
		At:      time.Now().UTC(),
		Data:    payload,
	}

	h.mu.Lock()
	h.pushLocked(ev)
	for _, ch := range h.subs {
		// Don't let slow clients block producers.
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a channel of future events and a cancel func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// lastID 0 returns the full buffer.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}
	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
