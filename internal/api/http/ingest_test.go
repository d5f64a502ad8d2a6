package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonpulse/lessonpulse/internal/deadletter"
	"github.com/lessonpulse/lessonpulse/internal/ingest"
	"github.com/lessonpulse/lessonpulse/internal/journal"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

type fixture struct {
	journal *journal.Journal
	dl      *deadletter.Store
	handler http.Handler
}

func newFixture(t *testing.T, jcfg journal.Config, limits ingest.Limits) *fixture {
	t.Helper()
	dir := t.TempDir()

	j, err := journal.Open(filepath.Join(dir, "journal"), jcfg)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	dl, err := deadletter.Open(filepath.Join(dir, "deadletter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dl.Close() })

	p := ingest.NewProcessor(j, dl, limits)
	return &fixture{
		journal: j,
		dl:      dl,
		handler: NewRouter(p, dl, j),
	}
}

func eventJSON(learner string) map[string]interface{} {
	return map[string]interface{}{
		"learner_id": learner,
		"course_id":  "course-1",
		"lesson_id":  "lesson-1",
		"event_type": "video_played",
		"timestamp":  time.Now().Format(time.RFC3339Nano),
		"payload":    map[string]interface{}{"position_s": 42},
	}
}

func postEvents(t *testing.T, h http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIngestHandler_AcceptsBatch(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	w := postEvents(t, f.handler, map[string]interface{}{
		"events": []interface{}{eventJSON("alice"), eventJSON("bob")},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, 0, resp.Rejected)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestIngestHandler_AcceptsSingleBareEvent(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	w := postEvents(t, f.handler, eventJSON("alice"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
}

func TestIngestHandler_ReportsPerEventRejections(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	bad := eventJSON("carol")
	delete(bad, "course_id")
	w := postEvents(t, f.handler, map[string]interface{}{
		"events": []interface{}{eventJSON("alice"), bad},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 1, resp.Rejected)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Accepted)
	assert.Contains(t, resp.Results[1].Reason, "course_id")

	n, err := f.dl.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIngestHandler_AllRejectedIsUnprocessable(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	bad := eventJSON("x")
	delete(bad, "learner_id")
	w := postEvents(t, f.handler, map[string]interface{}{"events": []interface{}{bad}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIngestHandler_RejectsMalformedBody(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestHandler_RejectsOversizedBody(t *testing.T) {
	limits := ingest.DefaultLimits()
	limits.MaxBatchBytes = 64
	f := newFixture(t, journal.DefaultConfig(), limits)

	w := postEvents(t, f.handler, map[string]interface{}{
		"events": []interface{}{eventJSON("a-learner-with-a-long-identifier"), eventJSON("another-one")},
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestHandler_EnforcesBatchByteBoundExactly(t *testing.T) {
	limits := ingest.DefaultLimits()
	limits.MaxBatchBytes = 256
	f := newFixture(t, journal.DefaultConfig(), limits)

	single := eventJSON("alice")
	small, err := json.Marshal(single)
	require.NoError(t, err)
	require.LessOrEqual(t, int64(len(small)), limits.MaxBatchBytes)

	w := postEvents(t, f.handler, single)
	assert.Equal(t, http.StatusOK, w.Code)

	// A batch between the configured bound and the pre-parse body cap must
	// still be rejected at the configured bound.
	batch := map[string]interface{}{
		"events": []interface{}{eventJSON("bob"), eventJSON("carol")},
	}
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	require.Greater(t, int64(len(data)), limits.MaxBatchBytes)
	require.Less(t, int64(len(data)), 2*limits.MaxBatchBytes)

	w = postEvents(t, f.handler, batch)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestHandler_RejectsOversizedBatchCount(t *testing.T) {
	limits := ingest.DefaultLimits()
	limits.MaxBatchEvents = 2
	f := newFixture(t, journal.DefaultConfig(), limits)

	w := postEvents(t, f.handler, map[string]interface{}{
		"events": []interface{}{eventJSON("a"), eventJSON("b"), eventJSON("c")},
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestHandler_BackpressureIs503(t *testing.T) {
	cfg := journal.DefaultConfig()
	cfg.HighWaterBytes = 1
	f := newFixture(t, cfg, ingest.DefaultLimits())

	w := postEvents(t, f.handler, eventJSON("alice"))
	require.Equal(t, http.StatusOK, w.Code)

	w = postEvents(t, f.handler, eventJSON("bob"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestIngestHandler_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthHandlers(t *testing.T) {
	cfg := journal.DefaultConfig()
	cfg.HighWaterBytes = 1
	f := newFixture(t, cfg, ingest.DefaultLimits())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Fill the journal past the high-water mark; readiness flips.
	_, err := f.journal.Append(&types.Batch{
		BatchID:    "batch-0",
		Events:     []types.Event{{LearnerID: "a"}},
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeadLetterHandler_ListsAndFilters(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	for i := 0; i < 3; i++ {
		_, err := f.dl.Record(context.Background(), deadletter.Entry{
			Payload: []byte(fmt.Sprintf(`{"n":%d}`, i)),
			Reason:  deadletter.ReasonPublishRejected,
		})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/deadletters?reason=publish_rejected&limit=2", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp DeadLetterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, int64(3), resp.Total)
}

func TestDeadLetterHandler_RejectsBadParams(t *testing.T) {
	f := newFixture(t, journal.DefaultConfig(), ingest.DefaultLimits())

	req := httptest.NewRequest(http.MethodGet, "/v1/deadletters?limit=zero", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/deadletters?created_after=yesterday", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
