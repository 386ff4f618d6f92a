// Package notification implements the in-process session event hub that
// fans workflow progress out to live subscribers.
package notification

import (
	"sync"
	"time"

	"kycdoc/pkg/logger"

	"github.com/google/uuid"
)

// SessionEvent is one workflow lifecycle event delivered to subscribers.
type SessionEvent struct {
	SessionID  uuid.UUID              `json:"session_id"`
	CustomerID uuid.UUID              `json:"customer_id"`
	EventType  string                 `json:"event_type"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Hub routes session events to per-session subscriber channels. Delivery is
// best effort: a subscriber that cannot keep up loses events rather than
// stalling the workflow.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan SessionEvent]struct{}
	logger      logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[chan SessionEvent]struct{}),
		logger:      log,
	}
}

// Subscribe registers for one session's events. The returned cancel func
// must be called when the subscriber disconnects.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)

	h.mu.Lock()
	if h.subscribers[sessionID] == nil {
		h.subscribers[sessionID] = make(map[chan SessionEvent]struct{})
	}
	h.subscribers[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[sessionID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.subscribers, sessionID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}

	return ch, cancel
}

// SessionEvent publishes an event to all subscribers of the session.
func (h *Hub) SessionEvent(sessionID, customerID uuid.UUID, eventType string, data map[string]interface{}) {
	event := SessionEvent{
		SessionID:  sessionID,
		CustomerID: customerID,
		EventType:  eventType,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("session event dropped, subscriber slow", map[string]interface{}{
				"session_id": sessionID.String(),
				"event_type": eventType,
			})
		}
	}
}

// NewNop returns a hub-shaped notifier that discards everything.
func NewNop() *NopNotifier {
	return &NopNotifier{}
}

// NopNotifier drops every event. Used in tests and batch tooling.
type NopNotifier struct{}

func (*NopNotifier) SessionEvent(sessionID, customerID uuid.UUID, eventType string, data map[string]interface{}) {
}
