package domain

import "encoding/json"

// Command names accepted from gateway clients.
const (
	CommandStart      = "start"
	CommandStop       = "stop"
	CommandRestart    = "restart"
	CommandGetMetrics = "getMetrics"
	CommandSimulate   = "simulate"
)

// Command is an instruction received from a gateway client.
type Command struct {
	Command string          `json:"command"`
	AgentID string          `json:"agentId,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ConfigPatch is the optional params payload of a lifecycle command. Nil
// fields are left unchanged.
type ConfigPatch struct {
	SurveyIntervalMs *int64 `json:"surveyIntervalMs,omitempty"`
	TaskIntervalMs   *int64 `json:"taskIntervalMs,omitempty"`
	RetryAttempts    *int   `json:"retryAttempts,omitempty"`
}
