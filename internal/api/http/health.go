package http

import (
	"net/http"

	"github.com/lessonpulse/lessonpulse/internal/journal"
)

// HealthHandler answers liveness and readiness probes. Liveness is
// unconditional; readiness reflects whether the journal is accepting
// appends, so load balancers stop routing during backpressure.
type HealthHandler struct {
	journal *journal.Journal
}

// NewHealthHandler creates the probe handler.
func NewHealthHandler(j *journal.Journal) *HealthHandler {
	return &HealthHandler{journal: j}
}

// Liveness handles GET /healthz.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if !h.journal.Accepting() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":        "backpressure",
			"journal_bytes": h.journal.TotalBytes(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"journal_bytes": h.journal.TotalBytes(),
	})
}
