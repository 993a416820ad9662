package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventLogAppended       EventType = "log.appended"
	EventConnectionChanged EventType = "connection.changed"
	EventAnalysisCompleted EventType = "analysis.completed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ConnectionChangedPayload is carried by EventConnectionChanged.
type ConnectionChangedPayload struct {
	Connected bool   `json:"connected"`
	PeerName  string `json:"peer_name,omitempty"`
}

// AnalysisCompletedPayload is carried by EventAnalysisCompleted.
type AnalysisCompletedPayload struct {
	SourceID    string `json:"source_id,omitempty"`
	Placeholder bool   `json:"placeholder"`
	Bytes       int    `json:"bytes"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Emit publishes an event of eventType with payload encoded as JSON.
	Emit(ctx context.Context, eventType EventType, payload any)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
