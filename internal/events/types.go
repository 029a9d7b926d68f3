// Package events provides an asynchronous event bus that decouples the
// pipeline and the stores from slow consumers such as MQTT and websockets.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/fraktlabs/fencewatch/internal/vision"
)

// Type names an event kind.
type Type string

const (
	TypeRegistryChanged   Type = "registry-changed"
	TypeFenceListChanged  Type = "fence-list-changed"
	TypeAlertListChanged  Type = "alert-list-changed"
	TypeViolationDetected Type = "violation-detected"
)

// Event is one published occurrence. Payload is JSON-encodable.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and the current time.
func New(t Type, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Violation is the payload of a violation-detected event.
type Violation struct {
	SourceID   string          `json:"sourceId"`
	SourceName string          `json:"sourceName"`
	FenceName  string          `json:"fence"`
	AlertName  string          `json:"alert,omitempty"`
	Point      vision.Keypoint `json:"point"`
	Evidence   string          `json:"evidence,omitempty"` // base64 JPEG
	PassID     string          `json:"passId,omitempty"`
}

// WithoutEvidence returns e with any evidence frame removed from its payload.
func (e Event) WithoutEvidence() Event {
	if v, ok := e.Payload.(Violation); ok && v.Evidence != "" {
		v.Evidence = ""
		e.Payload = v
	}
	return e
}

// Publisher accepts events without blocking. It reports false when the event
// was dropped.
type Publisher interface {
	Publish(Event) bool
}

// Consumer processes events delivered by the bus.
type Consumer interface {
	// Name identifies the consumer in logs and stats.
	Name() string
	ProcessEvent(Event) error
}

// Stats contains runtime statistics for monitoring
type Stats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) bool { return false }
