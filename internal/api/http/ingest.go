package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/internal/ingest"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// IngestRequest is the body of POST /v1/events. Either a batch under
// "events" or a single bare event object is accepted.
type IngestRequest struct {
	Events []types.Event `json:"events"`
}

// IngestResponse acknowledges a submitted batch.
type IngestResponse struct {
	BatchID   string               `json:"batch_id"`
	Accepted  int                  `json:"accepted"`
	Rejected  int                  `json:"rejected"`
	Results   []ingest.EventResult `json:"results,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

// IngestHandler handles POST /v1/events.
type IngestHandler struct {
	processor *ingest.Processor
}

// NewIngestHandler creates the event submission handler.
func NewIngestHandler(p *ingest.Processor) *IngestHandler {
	return &IngestHandler{processor: p}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
		return
	}

	limits := h.processor.Limits()

	// The body bound doubles the batch byte limit so grossly oversized
	// requests are cut off before parsing; the exact limit is enforced on
	// the decoded batch below.
	r.Body = http.MaxBytesReader(w, r.Body, 2*limits.MaxBatchBytes)
	events, batchBytes, err := decodeEvents(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				pipeerr.CodePayloadTooLarge, requestID)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err),
			pipeerr.CodeInvalidArgument, requestID)
		return
	}

	if batchBytes > limits.MaxBatchBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d bytes exceeds limit of %d", batchBytes, limits.MaxBatchBytes),
			pipeerr.CodePayloadTooLarge, requestID)
		return
	}

	if err := ingest.CheckBatchBounds(events, limits); err != nil {
		writePipelineError(w, err, requestID)
		return
	}

	result, err := h.processor.Submit(r.Context(), events)
	if err != nil {
		writePipelineError(w, err, requestID)
		return
	}

	status := http.StatusOK
	if result.Accepted == 0 {
		// Every event was rejected; the ack still carries per-event reasons.
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, IngestResponse{
		BatchID:   result.BatchID,
		Accepted:  result.Accepted,
		Rejected:  result.Rejected,
		Results:   result.Results,
		RequestID: requestID,
	})
}

// decodeEvents accepts {"events": [...]} or a single bare event object, and
// reports the serialized batch size for the byte-bound check.
func decodeEvents(r *http.Request) ([]types.Event, int64, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, 0, err
	}

	var req IngestRequest
	if err := json.Unmarshal(raw, &req); err == nil && len(req.Events) > 0 {
		return req.Events, int64(len(raw)), nil
	}

	var single types.Event
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, 0, err
	}
	return []types.Event{single}, int64(len(raw)), nil
}

// writePipelineError maps a pipeline error onto an HTTP status. Backpressure
// and downstream unavailability are 503 so clients retry; deadline expiry is
// 504 because no durable decision was reached.
func writePipelineError(w http.ResponseWriter, err error, requestID string) {
	code := pipeerr.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case pipeerr.CodeInvalidArgument, pipeerr.CodeValidationFailed:
		status = http.StatusBadRequest
	case pipeerr.CodePayloadTooLarge:
		status = http.StatusRequestEntityTooLarge
	case pipeerr.CodeResourceExhausted, pipeerr.CodeUnavailable, pipeerr.CodeJournalClosed:
		status = http.StatusServiceUnavailable
	case pipeerr.CodeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, err.Error(), code, requestID)
}
