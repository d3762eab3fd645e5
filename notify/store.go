package notify

import (
	"context"
	"sync"

	"pathlog/api"
)

// Kind is the toast flavor.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Slot is the single transient message a browser session may show.
type Slot struct {
	Visible bool   `json:"is_visible"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// Store holds at most one visible message per browser session. Showing
// a new message replaces the old one; hiding clears visibility but
// keeps the text so the exit animation has something to render.
// Auto-dismiss is the view's timer, not the store's: no timer state
// lives here.
type Store struct {
	mu    sync.RWMutex
	slots map[string]Slot
	hub   *Hub // optional push delivery, may be nil
}

// NewStore creates a notification store. hub may be nil when push
// delivery is not wired (tests).
func NewStore(hub *Hub) *Store {
	return &Store{
		slots: make(map[string]Slot),
		hub:   hub,
	}
}

// Show replaces whatever the session currently shows.
func (s *Store) Show(sessionID, message string, kind Kind) {
	if sessionID == "" {
		return
	}

	slot := Slot{Visible: true, Message: message, Kind: kind}

	s.mu.Lock()
	s.slots[sessionID] = slot
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(sessionID, slot)
	}
}

// Hide clears visibility without clearing the message text.
func (s *Store) Hide(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[sessionID]
	if !ok {
		return
	}
	slot.Visible = false
	s.slots[sessionID] = slot
}

// Current returns the session's slot.
func (s *Store) Current(sessionID string) Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[sessionID]
}

// Error implements api.Notifier: the backend client's global reaction
// for failing responses lands in the session's toast slot.
func (s *Store) Error(ctx context.Context, message string) {
	s.Show(api.SessionID(ctx), message, KindError)
}

// Success shows a success toast for the session in ctx.
func (s *Store) Success(ctx context.Context, message string) {
	s.Show(api.SessionID(ctx), message, KindSuccess)
}
