// Package status exposes the running session to operators: a JSON status
// endpoint, a WebSocket event feed and an mDNS advertisement.
package status

import (
	"encoding/json"
	"sync"

	"github.com/1ureka/groundlink/internal/session"
	"github.com/1ureka/groundlink/internal/util"
)

// SubscriberBufferSize is the number of events queued per subscriber
// before new ones are dropped.
const SubscriberBufferSize = 64

// Hub maintains the subscriberID → outbox route table. Publish never
// blocks the session machine: a slow subscriber loses events.
type Hub struct {
	mu     sync.Mutex
	routes map[uint32]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{routes: make(map[uint32]chan []byte)}
}

// Register creates a buffered outbox for id and returns its receive end.
func (h *Hub) Register(id uint32) <-chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan []byte, SubscriberBufferSize)
	h.routes[id] = ch
	return ch
}

// Unregister removes id. The channel is not closed; the writer exits on its own.
func (h *Hub) Unregister(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.routes, id)
}

// Len is the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.routes)
}

// Publish sends ev to every subscriber.
func (h *Hub) Publish(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		util.LogWarning("encode event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.routes {
		select {
		case ch <- data:
		default:
			util.LogDebug("[%08x] event outbox full, dropping %s event", id, ev.Kind)
		}
	}
}
