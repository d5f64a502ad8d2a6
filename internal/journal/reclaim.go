package journal

import (
	"context"
	"log"
	"time"

	"github.com/lessonpulse/lessonpulse/internal/observability"
)

// Reclaimer deletes sealed segments that are past the retention horizon AND
// fully behind the persisted cursor. A segment with any unread data is never
// removed, so redelivery after a crash always has its input available.
type Reclaimer struct {
	journal   *Journal
	cursors   *CursorStore
	retention time.Duration
	interval  time.Duration
}

// NewReclaimer creates a reclaimer for the given journal and cursor store.
func NewReclaimer(j *Journal, cursors *CursorStore, retention, interval time.Duration) *Reclaimer {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reclaimer{
		journal:   j,
		cursors:   cursors,
		retention: retention,
		interval:  interval,
	}
}

// Run executes reclamation scans until the context is cancelled.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.ReclaimOnce(); err != nil {
				log.Printf("journal/reclaim: scan failed: %v", err)
			} else if n > 0 {
				log.Printf("journal/reclaim: removed %d expired segments", n)
			}
		}
	}
}

// ReclaimOnce performs a single scan and returns the number of segments
// removed. It needs only read access to segment and cursor metadata.
func (r *Reclaimer) ReclaimOnce() (int, error) {
	cursor, err := r.cursors.Load()
	if err != nil {
		return 0, err
	}

	horizon := time.Now().Add(-r.retention)
	removed := 0
	for _, meta := range r.journal.sealedMetas() {
		if !meta.newest.Before(horizon) {
			continue
		}
		// The cursor points at the next unread record; only segments whose
		// whole offset range is behind it are safe to delete.
		if meta.seq >= cursor.Segment {
			continue
		}
		if err := r.journal.removeSegment(meta.seq); err != nil {
			log.Printf("journal/reclaim: failed to remove segment %016x: %v", meta.seq, err)
			continue
		}
		removed++
		observability.SegmentsReclaimed.Inc()
	}
	return removed, nil
}
