package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

func testBatch(id string, n int) *types.Batch {
	events := make([]types.Event, n)
	for i := range events {
		events[i] = types.Event{
			LearnerID: fmt.Sprintf("learner-%d", i),
			CourseID:  "course-1",
			LessonID:  "lesson-1",
			EventType: "lesson_completed",
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{"score": float64(i)},
		}
	}
	return &types.Batch{BatchID: id, Events: events, ReceivedAt: time.Now()}
}

func TestJournal_AppendReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	defer j.Close()

	var positions []Position
	for i := 0; i < 3; i++ {
		pos, err := j.Append(testBatch(fmt.Sprintf("batch-%d", i), 2))
		require.NoError(t, err)
		positions = append(positions, pos)
	}

	r := j.OpenReader(Position{})
	defer r.Close()

	for i := 0; i < 3; i++ {
		rec, next, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("batch-%d", i), rec.Batch.BatchID)
		assert.Len(t, rec.Batch.Events, 2)
		assert.Equal(t, positions[i].Segment, rec.Segment)
		assert.Equal(t, positions[i].Offset, rec.Offset)
		assert.True(t, positions[i].Before(next))
	}

	_, _, err = r.Next()
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestJournal_SegmentRotationBySize(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxSegmentBytes = 1 // every append lands in its own segment
	j, err := Open(dir, cfg)
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 4; i++ {
		_, err := j.Append(testBatch(fmt.Sprintf("batch-%d", i), 1))
		require.NoError(t, err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "journal_*.log"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(files), 4)

	// Rotation must not disturb replay order.
	r := j.OpenReader(Position{})
	defer r.Close()
	for i := 0; i < 4; i++ {
		rec, _, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("batch-%d", i), rec.Batch.BatchID)
	}
	_, _, err = r.Next()
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestJournal_SegmentRotationByAge(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxSegmentAge = 20 * time.Millisecond
	j, err := Open(dir, cfg)
	require.NoError(t, err)
	defer j.Close()

	first, err := j.Append(testBatch("batch-0", 1))
	require.NoError(t, err)

	// Let the open segment outlive its age bound.
	time.Sleep(2 * cfg.MaxSegmentAge)

	second, err := j.Append(testBatch("batch-1", 1))
	require.NoError(t, err)
	assert.Greater(t, second.Segment, first.Segment)

	files, err := filepath.Glob(filepath.Join(dir, "journal_*.log"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(files), 2)

	r := j.OpenReader(Position{})
	defer r.Close()
	rec, _, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "batch-0", rec.Batch.BatchID)
	rec, _, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "batch-1", rec.Batch.BatchID)
}

func TestJournal_BackpressureAboveHighWater(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.HighWaterBytes = 1
	j, err := Open(dir, cfg)
	require.NoError(t, err)
	defer j.Close()

	assert.True(t, j.Accepting())

	_, err = j.Append(testBatch("batch-0", 1))
	require.NoError(t, err)

	_, err = j.Append(testBatch("batch-1", 1))
	require.Error(t, err)
	assert.Equal(t, pipeerr.CodeResourceExhausted, pipeerr.Code(err))
	assert.True(t, pipeerr.IsRetryable(err))
	assert.False(t, j.Accepting())
}

func TestJournal_RecoveryTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, DefaultConfig())
	require.NoError(t, err)

	_, err = j.Append(testBatch("batch-0", 1))
	require.NoError(t, err)
	pos, err := j.Append(testBatch("batch-1", 1))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Simulate a crash mid-write: a frame header promising more bytes than
	// the file holds.
	path := segmentPath(dir, pos.Segment)
	info, err := os.Stat(path)
	require.NoError(t, err)
	validLen := info.Size()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xff, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	defer reopened.Close()

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, validLen, info.Size(), "torn tail should be truncated")

	r := reopened.OpenReader(Position{})
	defer r.Close()
	rec, _, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "batch-0", rec.Batch.BatchID)
	rec, _, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "batch-1", rec.Batch.BatchID)
	_, _, err = r.Next()
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestJournal_RecoveryDropsEmptySegments(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Close left one empty segment behind; reopening removes it and starts
	// a fresh one.
	reopened, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, int64(0), reopened.TotalBytes())
}

func TestJournal_AppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = j.Append(testBatch("batch-0", 1))
	require.Error(t, err)
	assert.Equal(t, pipeerr.CodeJournalClosed, pipeerr.Code(err))
}

func TestReclaimer_RemovesOnlyExpiredBehindCursor(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxSegmentBytes = 1
	j, err := Open(dir, cfg)
	require.NoError(t, err)
	defer j.Close()

	old := time.Now().Add(-2 * time.Hour)
	var positions []Position
	for i := 0; i < 3; i++ {
		b := testBatch(fmt.Sprintf("batch-%d", i), 1)
		b.ReceivedAt = old
		pos, err := j.Append(b)
		require.NoError(t, err)
		positions = append(positions, pos)
	}
	// One fresh batch that is behind the cursor but inside retention.
	fresh, err := j.Append(testBatch("batch-3", 1))
	require.NoError(t, err)
	// Seal the fresh segment too.
	_, err = j.Append(testBatch("batch-4", 1))
	require.NoError(t, err)

	cursors := NewCursorStore(dir)
	require.NoError(t, cursors.Save(Position{Segment: fresh.Segment + 1}))

	before := j.TotalBytes()
	rec := NewReclaimer(j, cursors, time.Hour, time.Minute)
	removed, err := rec.ReclaimOnce()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Less(t, j.TotalBytes(), before)

	for _, pos := range positions {
		_, err := os.Stat(segmentPath(dir, pos.Segment))
		assert.True(t, os.IsNotExist(err))
	}
	// The fresh segment survives even though it is behind the cursor.
	_, err = os.Stat(segmentPath(dir, fresh.Segment))
	assert.NoError(t, err)
}

func TestReclaimer_NeverRemovesUnreadSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxSegmentBytes = 1
	j, err := Open(dir, cfg)
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 3; i++ {
		b := testBatch(fmt.Sprintf("batch-%d", i), 1)
		b.ReceivedAt = time.Now().Add(-2 * time.Hour)
		_, err := j.Append(b)
		require.NoError(t, err)
	}

	// Cursor never saved: everything is unread.
	cursors := NewCursorStore(dir)
	rec := NewReclaimer(j, cursors, time.Hour, time.Minute)
	removed, err := rec.ReclaimOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCursorStore_RoundtripAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	cursors := NewCursorStore(dir)

	pos, err := cursors.Load()
	require.NoError(t, err)
	assert.Equal(t, Position{}, pos)

	want := Position{Segment: 7, Offset: 4096}
	require.NoError(t, cursors.Save(want))

	got, err := cursors.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReader_ResumesAfterReclaimedSegment(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxSegmentBytes = 1
	j, err := Open(dir, cfg)
	require.NoError(t, err)
	defer j.Close()

	first, err := j.Append(testBatch("batch-0", 1))
	require.NoError(t, err)
	_, err = j.Append(testBatch("batch-1", 1))
	require.NoError(t, err)

	require.NoError(t, j.removeSegment(first.Segment))

	// A reader positioned at the reclaimed segment skips to the next one.
	r := j.OpenReader(Position{Segment: first.Segment})
	defer r.Close()
	rec, _, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "batch-1", rec.Batch.BatchID)
}

func TestPosition_Before(t *testing.T) {
	assert.True(t, Position{Segment: 1, Offset: 10}.Before(Position{Segment: 2, Offset: 0}))
	assert.True(t, Position{Segment: 1, Offset: 10}.Before(Position{Segment: 1, Offset: 11}))
	assert.False(t, Position{Segment: 1, Offset: 10}.Before(Position{Segment: 1, Offset: 10}))
}
