package feed

import (
	"sync"
)

// Hub tracks live subscribers by session id so out-of-band actions (the
// acknowledge endpoint) can reach a specific connection. Subscribers are
// otherwise fully independent — no feed state crosses viewer boundaries.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Register adds a subscriber. The caller must Unregister when the connection
// ends.
func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s.ID()] = s
}

// Unregister removes a subscriber by session id. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Acknowledge routes an acknowledge action to the subscriber owning the
// session. Returns false when the session is not connected.
func (h *Hub) Acknowledge(id string) bool {
	h.mu.RLock()
	s, ok := h.subs[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	s.Acknowledge()
	return true
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
