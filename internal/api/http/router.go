package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lessonpulse/lessonpulse/internal/deadletter"
	"github.com/lessonpulse/lessonpulse/internal/ingest"
	"github.com/lessonpulse/lessonpulse/internal/journal"
)

// NewRouter assembles the HTTP surface: event ingress, dead-letter
// inspection, probes and metrics.
func NewRouter(p *ingest.Processor, dl *deadletter.Store, j *journal.Journal) http.Handler {
	wrap := DefaultMiddleware()

	mux := http.NewServeMux()
	mux.Handle("/v1/events", wrap(NewIngestHandler(p)))
	mux.Handle("/v1/deadletters", wrap(NewDeadLetterHandler(dl)))

	health := NewHealthHandler(j)
	mux.HandleFunc("/healthz", health.Liveness)
	mux.HandleFunc("/readyz", health.Readiness)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
