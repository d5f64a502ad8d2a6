package ingest

import (
	"fmt"
	"time"

	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// Limits bounds what a single ingestion call may carry. Batch-level bounds
// are enforced at the ingress adapters before the processor ever sees the
// batch; per-event bounds are enforced during validation.
type Limits struct {
	// MaxBatchEvents is the maximum event count per ingestion call.
	MaxBatchEvents int `json:"max_batch_events" yaml:"max_batch_events"`

	// MaxBatchBytes is the maximum serialized size per ingestion call.
	MaxBatchBytes int64 `json:"max_batch_bytes" yaml:"max_batch_bytes"`

	// MaxEventBytes is the maximum serialized payload size per event.
	MaxEventBytes int `json:"max_event_bytes" yaml:"max_event_bytes"`

	// MaxFutureSkew is how far in the future an event timestamp may lie.
	MaxFutureSkew time.Duration `json:"max_future_skew" yaml:"max_future_skew"`
}

// DefaultLimits returns sensible defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxBatchEvents: 500,
		MaxBatchBytes:  1024 * 1024,
		MaxEventBytes:  32 * 1024,
		MaxFutureSkew:  5 * time.Minute,
	}
}

// CheckBatchBounds enforces the whole-batch count limit. Adapters call this
// before Submit so an oversized batch is rejected without touching the
// journal. Byte-level bounds are enforced by the adapters at decode time.
func CheckBatchBounds(events []types.Event, limits Limits) error {
	if len(events) == 0 {
		return pipeerr.New(pipeerr.ErrCategoryIngress, pipeerr.CodeInvalidArgument, "events must not be empty")
	}
	if len(events) > limits.MaxBatchEvents {
		return pipeerr.New(pipeerr.ErrCategoryIngress, pipeerr.CodePayloadTooLarge,
			fmt.Sprintf("batch of %d events exceeds limit of %d", len(events), limits.MaxBatchEvents))
	}
	return nil
}

// validateEvent checks the schema-shape invariants of one event. It returns
// an empty string when the event is acceptable, or a short reason otherwise.
func validateEvent(ev *types.Event, limits Limits, now time.Time) string {
	switch {
	case ev.LearnerID == "":
		return "learner_id is required"
	case ev.CourseID == "":
		return "course_id is required"
	case ev.LessonID == "":
		return "lesson_id is required"
	case ev.EventType == "":
		return "event_type is required"
	case ev.Timestamp.IsZero():
		return "timestamp is required"
	case ev.Timestamp.After(now.Add(limits.MaxFutureSkew)):
		return "timestamp is too far in the future"
	}
	if size := ev.PayloadBytes(); size > limits.MaxEventBytes {
		return fmt.Sprintf("payload of %d bytes exceeds limit of %d", size, limits.MaxEventBytes)
	}
	return ""
}
