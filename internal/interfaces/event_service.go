package interfaces

import (
	"context"
	"time"
)

// EventType identifies a category of application event
type EventType string

const (
	// EventTaskStateChanged fires on every pipeline task state transition
	EventTaskStateChanged EventType = "task_state_changed"

	// EventSegmentCreated fires when a pipeline persists a new segment
	EventSegmentCreated EventType = "segment_created"
)

// Event is a single published application event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event Event) error

// EventService is an in-process pub/sub bus for task lifecycle events,
// consumed by the websocket handler to push updates to clients.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	Close() error
}
