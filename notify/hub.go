package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pathlog/utils"
)

// Event is a toast pushed to the browser.
type Event struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Kind    Kind      `json:"kind"`
	Time    time.Time `json:"time"`
}

type subscriber struct {
	sessionID string
	ch        chan Event
}

// Hub fans toast events out to the open tabs of a session, over SSE or
// WebSocket. A session can have several tabs; each gets its own
// channel.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a delivery channel for a session and returns the
// subscriber id and channel. The caller must Unsubscribe when the
// connection goes away.
func (h *Hub) Subscribe(sessionID string) (string, <-chan Event) {
	id := uuid.New().String()
	sub := &subscriber{
		sessionID: sessionID,
		ch:        make(chan Event, 10),
	}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	utils.Log.Debug("toast subscriber connected: %s", id)
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		close(sub.ch)
	}
	h.mu.Unlock()

	if ok {
		utils.Log.Debug("toast subscriber disconnected: %s", id)
	}
}

// Publish delivers a slot change to every tab of one session. Only that
// session sees it; there is no cross-user broadcast.
func (h *Hub) Publish(sessionID string, slot Slot) {
	event := Event{
		ID:      uuid.New().String(),
		Message: slot.Message,
		Kind:    slot.Kind,
		Time:    time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers {
		if sub.sessionID != sessionID {
			continue
		}
		select {
		case sub.ch <- event:
			// Sent successfully
		default:
			// Channel full, skip this subscriber
			utils.Log.Warn("toast channel full for subscriber %s", id)
		}
	}
}

// Subscribers returns the number of live connections, for the health
// endpoint.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
