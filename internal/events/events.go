package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sequence lifecycle event types. The delivery component subscribes to
// these to learn about freshly scheduled or terminated task sets.
const (
	EventInstanceStarted   = "sequence.instance_started"
	EventInstanceCompleted = "sequence.instance_completed"
	EventInstanceCancelled = "sequence.instance_cancelled"
)

// SequenceEvent is a notification about a sequence instance lifecycle
// change. It carries the event-specific data serialized as JSON so
// consumers have no direct dependency on the service layer.
type SequenceEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Event* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *SequenceEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewSequenceEvent creates a new SequenceEvent with the specified type and payload.
func NewSequenceEvent(eventType string, payload interface{}) (*SequenceEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &SequenceEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *SequenceEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *SequenceEvent) error
}
