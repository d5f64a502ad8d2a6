package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// Replay must yield exactly the appended batches, in append order, for any
// batch count, event sizes and segment size bound.
func TestJournal_ReplayMatchesAppendOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("replay order equals append order", prop.ForAll(
		func(batchCount int, eventsPerBatch int, maxSegmentBytes int64) bool {
			dir := t.TempDir()
			cfg := DefaultConfig()
			cfg.MaxSegmentBytes = maxSegmentBytes
			j, err := Open(dir, cfg)
			if err != nil {
				return false
			}
			defer j.Close()

			for i := 0; i < batchCount; i++ {
				b := &types.Batch{
					BatchID:    fmt.Sprintf("batch-%04d", i),
					ReceivedAt: time.Now(),
				}
				for e := 0; e < eventsPerBatch; e++ {
					b.Events = append(b.Events, types.Event{
						LearnerID: fmt.Sprintf("learner-%d", e),
						CourseID:  "course",
						LessonID:  "lesson",
						EventType: "video_played",
						Timestamp: time.Now(),
					})
				}
				if _, err := j.Append(b); err != nil {
					return false
				}
			}

			r := j.OpenReader(Position{})
			defer r.Close()

			var prev Position
			for i := 0; i < batchCount; i++ {
				rec, next, err := r.Next()
				if err != nil {
					return false
				}
				if rec.Batch.BatchID != fmt.Sprintf("batch-%04d", i) {
					return false
				}
				if len(rec.Batch.Events) != eventsPerBatch {
					return false
				}
				if i > 0 && !prev.Before(next) {
					return false
				}
				prev = next
			}

			_, _, err = r.Next()
			return err == ErrNoRecord
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 5),
		gen.Int64Range(1, 4096),
	))

	properties.TestingRun(t)
}
