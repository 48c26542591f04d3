package websocket

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCheckOrigin(t *testing.T) {
	t.Run("Wildcard", func(t *testing.T) {
		hub := NewHub(&Config{AllowedOrigins: []string{"*"}}, zap.NewNop())
		req := httptest.NewRequest("GET", "/ws", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		assert.True(t, hub.checkOrigin(req))
	})

	t.Run("ExactMatch", func(t *testing.T) {
		hub := NewHub(&Config{AllowedOrigins: []string{"https://ops.example"}}, zap.NewNop())

		req := httptest.NewRequest("GET", "/ws", nil)
		req.Header.Set("Origin", "https://ops.example")
		assert.True(t, hub.checkOrigin(req))

		req.Header.Set("Origin", "https://evil.example")
		assert.False(t, hub.checkOrigin(req))
	})

	t.Run("NoOriginHeaderAllowed", func(t *testing.T) {
		hub := NewHub(&Config{}, zap.NewNop())
		req := httptest.NewRequest("GET", "/ws", nil)
		assert.True(t, hub.checkOrigin(req))
	})
}

func TestBroadcastEventNeverBlocks(t *testing.T) {
	// No Run loop is draining the channel; the publisher must not stall.
	hub := NewHub(&Config{}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.BroadcastEvent(Event{Type: EventTypeRedaction, Timestamp: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastEvent blocked on a full channel")
	}
}

func TestBroadcastDropsSlowClients(t *testing.T) {
	hub := NewHub(&Config{}, zap.NewNop())
	client := &Client{ID: "slow", Send: make(chan Event, 1)}
	hub.clients[client] = true

	// First event fills the client's queue; the second must evict it.
	hub.broadcastEvent(Event{Type: EventTypeRedaction})
	hub.broadcastEvent(Event{Type: EventTypeRedaction})

	assert.Equal(t, 0, hub.ClientCount())
}
