package gateway

import (
	"time"

	"github.com/AndrewDell/3AI/internal/domain"
)

// Server→client message types. Agent events reuse their domain.EventType
// values ("status_change", "metrics_update", "error") as the wire type.
const (
	TypeMetrics       = "metrics"
	TypeCommandResult = "command_result"
	TypeError         = "error"
)

// Message is the envelope for every server→client frame.
type Message struct {
	Type      string `json:"type"`
	AgentID   string `json:"agentId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// NewMessage stamps a message with the current time.
func NewMessage(msgType, agentID string, data any) Message {
	return Message{
		Type:      msgType,
		AgentID:   agentID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// eventMessage converts a bus event into its wire shape. Event timestamps
// are preserved so observers see publication order, not delivery time.
func eventMessage(e domain.Event) Message {
	return Message{
		Type:      string(e.Type),
		AgentID:   e.AgentID,
		Data:      e.Data,
		Timestamp: e.Timestamp.UnixMilli(),
	}
}

// ErrorPayload is the data of an error reply. Error replies carry no
// agentId, which distinguishes them from agent error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// AgentView is one agent's slice of a full-state metrics message and the
// REST agent listing.
type AgentView struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Domain  domain.Domain  `json:"domain"`
	Source  string         `json:"source"`
	Status  domain.Status  `json:"status"`
	Metrics domain.Metrics `json:"metrics"`
}

// MetricsPayload is the data of a full-state metrics message, keyed by
// agent id. Sent on connect and on each heartbeat.
type MetricsPayload struct {
	Metrics map[string]AgentView `json:"metrics"`
}
