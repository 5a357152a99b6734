package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies agent lifecycle events.
type EventType string

// Event type values double as the wire `type` strings observers receive.
const (
	EventStatusChange  EventType = "status_change"
	EventMetricsUpdate EventType = "metrics_update"
	EventAgentError    EventType = "error"
)

// Event is a single observation published on the event bus.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AgentID   string    `json:"agentId"`
	Domain    Domain    `json:"domain,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh ID and the current time.
func NewEvent(t EventType, agentID string, d Domain, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		AgentID:   agentID,
		Domain:    d,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// StatusChange is the payload of an EventStatusChange event.
type StatusChange struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// AgentError is the payload of an EventAgentError event.
type AgentError struct {
	Message             string `json:"message"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}
