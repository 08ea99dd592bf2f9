package events

import "time"

// Event types emitted by the orchestrator runtime.
const (
	TypeNewMessageReceived = "NEW_MESSAGE_RECEIVED"
	TypeStepCompleted      = "STEP_COMPLETED"
	TypeCallEnded          = "CALL_ENDED"
	TypeAnalysisCompleted  = "ANALYSIS_COMPLETED"
	TypeAnalysisFailed     = "ANALYSIS_FAILED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event.
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the standard Event implementation.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
