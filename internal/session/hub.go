package session

import (
	"sync"

	"github.com/google/uuid"
)

const (
	EventStateChanged = "state_changed"
	EventAuthExpired  = "auth_expired"
)

// Event is delivered to subscribers on every state change. AuthExpired
// events additionally carry the message and status of the rejected request.
type Event struct {
	Type    string
	State   State
	Message string
	Status  int
}

// hub fans out events to subscribers. Slow subscribers are skipped rather
// than blocking the session manager.
type hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func newHub() *hub {
	return &hub{subscribers: make(map[string]chan Event)}
}

func (h *hub) subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

func (h *hub) broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
