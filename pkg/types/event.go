// Package types provides core data types for the lessonpulse pipeline.
package types

import (
	"encoding/json"
	"time"
)

// Event represents a single learner-activity event. Events are immutable once
// they have been decoded at an ingress adapter.
type Event struct {
	// LearnerID identifies the learner who triggered the event
	LearnerID string `json:"learner_id"`

	// CourseID identifies the course the activity belongs to
	CourseID string `json:"course_id"`

	// LessonID identifies the lesson within the course
	LessonID string `json:"lesson_id"`

	// SessionID optionally ties the event to a learning session
	SessionID string `json:"session_id,omitempty"`

	// EventType categorizes the event (e.g., "lesson_started", "quiz_answered")
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred at the producer
	Timestamp time.Time `json:"timestamp"`

	// Payload contains the event-specific data. The pipeline treats it as an
	// opaque, size-bounded key/value map; interpretation belongs to consumers.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Metadata carries optional producer annotations (client version, region)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PayloadBytes returns the serialized size of the event payload in bytes.
// A nil payload has size zero.
func (e *Event) PayloadBytes() int {
	if len(e.Payload) == 0 {
		return 0
	}
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return 0
	}
	return len(b)
}

// Batch is an ordered group of events accepted by one ingestion call.
// A batch is owned by the journal once durably appended.
type Batch struct {
	// BatchID is the ULID assigned at ingestion (time-ordered)
	BatchID string `json:"batch_id"`

	// Events is the ordered event sequence sharing this ingestion call
	Events []Event `json:"events"`

	// ReceivedAt is the arrival timestamp assigned by the processor
	ReceivedAt time.Time `json:"received_at"`
}

// EncodedBytes returns the serialized size of the batch in bytes.
func (b *Batch) EncodedBytes() int {
	data, err := json.Marshal(b)
	if err != nil {
		return 0
	}
	return len(data)
}
