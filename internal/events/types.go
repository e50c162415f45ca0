package events

import "time"

// Event types published by the commerce agents.
const (
	EventOrderStatusUpdated      = "order.status_updated"
	EventOrderDelivered          = "order.delivered"
	EventOrderArbitrationUpdated = "order.arbitration_updated"
	EventCaseDecided             = "case.decided"
	EventCaseEscalated           = "case.escalated"
	EventCaseExecuted            = "case.executed"
)

// Envelope wraps event data with delivery metadata.
type Envelope struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	SchemaVersion  string         `json:"schema_version"`
	IdempotencyKey string         `json:"idempotency_key"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         string         `json:"source"`
	Data           map[string]any `json:"data"`
}
