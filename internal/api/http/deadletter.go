package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lessonpulse/lessonpulse/internal/deadletter"
	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
)

// DeadLetterResponse is the body of GET /v1/deadletters.
type DeadLetterResponse struct {
	Records   []*deadletter.Record `json:"records"`
	Total     int64                `json:"total"`
	RequestID string               `json:"request_id,omitempty"`
}

// DeadLetterHandler exposes the dead-letter store to operator tooling.
type DeadLetterHandler struct {
	store *deadletter.Store
}

// NewDeadLetterHandler creates the dead-letter inspection handler.
func NewDeadLetterHandler(store *deadletter.Store) *DeadLetterHandler {
	return &DeadLetterHandler{store: store}
}

// ServeHTTP lists dead-letter records. Query parameters: reason,
// created_after (RFC 3339), limit.
func (h *DeadLetterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", requestID)
		return
	}

	filter := deadletter.Filter{
		Reason: r.URL.Query().Get("reason"),
	}
	if v := r.URL.Query().Get("created_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid created_after: %v", err), pipeerr.CodeInvalidArgument, requestID)
			return
		}
		filter.CreatedAfter = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer",
				pipeerr.CodeInvalidArgument, requestID)
			return
		}
		filter.Limit = n
	}

	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), pipeerr.CodeUnexpected, requestID)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), pipeerr.CodeUnexpected, requestID)
		return
	}

	writeJSON(w, http.StatusOK, DeadLetterResponse{
		Records:   records,
		Total:     total,
		RequestID: requestID,
	})
}
