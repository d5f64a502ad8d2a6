package grpc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lessonpulse/lessonpulse/api/proto"
	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

func TestWindowBuilder_ClosesOnCount(t *testing.T) {
	b := newWindowBuilder(3, time.Minute)

	assert.True(t, b.empty())
	assert.False(t, b.add(types.Event{LearnerID: "a"}))
	assert.False(t, b.add(types.Event{LearnerID: "b"}))
	assert.True(t, b.add(types.Event{LearnerID: "c"}), "third event fills the window")

	events := b.take()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].LearnerID)
	assert.True(t, b.empty())

	// The next window counts from zero again.
	assert.False(t, b.add(types.Event{LearnerID: "d"}))
}

func TestWindowBuilder_ExpiresOnAge(t *testing.T) {
	b := newWindowBuilder(100, 10*time.Millisecond)

	assert.False(t, b.expired(time.Now()), "an empty window never expires")

	b.add(types.Event{LearnerID: "a"})
	assert.False(t, b.expired(time.Now()))
	assert.True(t, b.expired(time.Now().Add(20*time.Millisecond)))

	b.take()
	assert.False(t, b.expired(time.Now().Add(time.Hour)))
}

func TestEventFromProto_RoundTrip(t *testing.T) {
	payload, err := json.Marshal(map[string]interface{}{"score": 0.9, "attempt": 2.0})
	require.NoError(t, err)

	ts := time.Now().Truncate(time.Millisecond)
	pe := &proto.Event{
		LearnerId:       "alice",
		CourseId:        "course-1",
		LessonId:        "lesson-1",
		SessionId:       "session-1",
		EventType:       "quiz_submitted",
		TimestampUnixMs: ts.UnixMilli(),
		Payload:         payload,
		Metadata: []*proto.Attribute{
			{Key: "client", Value: "ios"},
			{Key: "app_version", Value: "3.2.1"},
		},
	}

	ev, err := eventFromProto(pe)
	require.NoError(t, err)
	assert.Equal(t, "alice", ev.LearnerID)
	assert.Equal(t, "course-1", ev.CourseID)
	assert.Equal(t, "lesson-1", ev.LessonID)
	assert.Equal(t, "session-1", ev.SessionID)
	assert.Equal(t, "quiz_submitted", ev.EventType)
	assert.True(t, ev.Timestamp.Equal(ts))
	assert.Equal(t, 0.9, ev.Payload["score"])
	assert.Equal(t, "ios", ev.Metadata["client"])
}

func TestEventFromProto_Rejections(t *testing.T) {
	_, err := eventFromProto(nil)
	assert.Error(t, err)

	_, err = eventFromProto(&proto.Event{
		LearnerId: "alice",
		Payload:   []byte("{not json"),
	})
	assert.Error(t, err)
}

func TestEventFromProto_ZeroTimestampStaysZero(t *testing.T) {
	ev, err := eventFromProto(&proto.Event{LearnerId: "alice"})
	require.NoError(t, err)
	assert.True(t, ev.Timestamp.IsZero(), "missing timestamp must fail validation, not default to 1970")
}

func TestToStatus_Mapping(t *testing.T) {
	tests := []struct {
		code string
		want codes.Code
	}{
		{pipeerr.CodeInvalidArgument, codes.InvalidArgument},
		{pipeerr.CodeValidationFailed, codes.InvalidArgument},
		{pipeerr.CodePayloadTooLarge, codes.ResourceExhausted},
		{pipeerr.CodeResourceExhausted, codes.ResourceExhausted},
		{pipeerr.CodeDeadlineExceeded, codes.DeadlineExceeded},
		{pipeerr.CodeUnavailable, codes.Unavailable},
		{pipeerr.CodeJournalClosed, codes.Unavailable},
		{pipeerr.CodeUnexpected, codes.Internal},
	}

	for _, tt := range tests {
		err := toStatus(pipeerr.New(pipeerr.ErrCategoryJournal, tt.code, "boom"))
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, tt.want, st.Code(), tt.code)
	}
}
