package notification

import (
	"testing"
	"time"

	"kycdoc/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	hub := NewHub(logger.NewNop())
	sessionID := uuid.New()
	customerID := uuid.New()

	ch, cancel := hub.Subscribe(sessionID)
	defer cancel()

	hub.SessionEvent(sessionID, customerID, "step_completed", map[string]interface{}{
		"step_action": "document_analysis",
	})

	select {
	case event := <-ch:
		assert.Equal(t, sessionID, event.SessionID)
		assert.Equal(t, customerID, event.CustomerID)
		assert.Equal(t, "step_completed", event.EventType)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestHubIsolatesSessions(t *testing.T) {
	hub := NewHub(logger.NewNop())
	sessionA := uuid.New()
	sessionB := uuid.New()

	chA, cancelA := hub.Subscribe(sessionA)
	defer cancelA()

	hub.SessionEvent(sessionB, uuid.New(), "session_completed", nil)

	select {
	case event := <-chA:
		t.Fatalf("subscriber received foreign event: %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub(logger.NewNop())
	sessionID := uuid.New()

	ch, cancel := hub.Subscribe(sessionID)
	defer cancel()

	// Fill the buffer and overflow it. Publishing must never block.
	for i := 0; i < 40; i++ {
		hub.SessionEvent(sessionID, uuid.New(), "step_completed", nil)
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}

	require.Greater(t, received, 0)
	assert.LessOrEqual(t, received, 16)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(logger.NewNop())
	sessionID := uuid.New()

	ch, cancel := hub.Subscribe(sessionID)
	cancel()

	// Channel is closed once the subscription is gone.
	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe is a no-op.
	hub.SessionEvent(sessionID, uuid.New(), "session_completed", nil)
}
