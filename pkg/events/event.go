package events

import (
	"context"
	"time"
)

// Event types published by the core. Downstream course tooling subscribes
// to these instead of polling job and session state.
const (
	GenerationCompleted = "GENERATION_COMPLETED"
	GenerationFailed    = "GENERATION_FAILED"
	ExercisesApproved   = "EXERCISES_APPROVED"
	ExercisesRejected   = "EXERCISES_REJECTED"
	DiagnosisReady      = "DIAGNOSIS_READY"
	SessionEnded        = "TUTORING_SESSION_ENDED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "EXERCISES_APPROVED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

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

// Publisher delivers events to whatever bus is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events; used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
