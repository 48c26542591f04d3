package websocket

import (
	"time"

	"github.com/textveil/textveil/internal/engine"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRedaction reports a completed redaction call.
	EventTypeRedaction EventType = "redaction"
	// EventTypeRuleError reports rules excluded from a call.
	EventTypeRuleError EventType = "rule_error"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// RedactionEvent summarizes one redaction call for the dashboard. It never
// carries document text or matched originals, only counts and timings.
type RedactionEvent struct {
	RequestID    string         `json:"request_id"`
	Total        int            `json:"total"`
	ByCategory   map[string]int `json:"by_category"`
	RuleErrors   int            `json:"rule_errors"`
	Incomplete   bool           `json:"incomplete"`
	ProcessingMS float64        `json:"processing_ms"`
}

// RuleErrorEvent reports rules excluded from a call.
type RuleErrorEvent struct {
	RequestID string             `json:"request_id"`
	Errors    []engine.RuleError `json:"errors"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalRedactions  int64  `json:"total_redactions"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}
