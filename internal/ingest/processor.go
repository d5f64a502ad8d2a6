// Package ingest implements the event processor: per-event validation,
// batch assembly, and the durable hand-off to the journal. The processor
// holds no durable state of its own and never retries internally — retry on
// backpressure is the caller's responsibility.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lessonpulse/lessonpulse/internal/deadletter"
	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/internal/journal"
	"github.com/lessonpulse/lessonpulse/internal/observability"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// EventResult reports the per-event outcome of a submission.
type EventResult struct {
	Index    int    `json:"index"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// BatchResult is the acknowledgement returned to an ingress adapter.
type BatchResult struct {
	BatchID  string           `json:"batch_id"`
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Results  []EventResult    `json:"results,omitempty"`
	Position journal.Position `json:"-"`
}

// Processor validates events, assembles batches and appends them durably.
type Processor struct {
	journal     *journal.Journal
	deadLetters *deadletter.Store
	limits      Limits
	ulids       *types.ULIDGenerator
}

// NewProcessor creates a processor writing to the given journal and
// dead-letter store.
func NewProcessor(j *journal.Journal, dl *deadletter.Store, limits Limits) *Processor {
	if limits.MaxBatchEvents <= 0 {
		limits = DefaultLimits()
	}
	return &Processor{
		journal:     j,
		deadLetters: dl,
		limits:      limits,
		ulids:       types.NewULIDGenerator(),
	}
}

// Limits returns the processor's per-call bounds, shared with the adapters.
func (p *Processor) Limits() Limits {
	return p.limits
}

// Submit validates every event, diverts invalid ones to the dead-letter store
// with reason validation_failed, and durably appends the remainder as one
// batch. If the journal rejects the write the whole batch fails and nothing
// is buffered; the caller must retry. An expired context fails with
// DEADLINE_EXCEEDED before any durable decision is made.
func (p *Processor) Submit(ctx context.Context, events []types.Event) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pipeerr.Wrap(pipeerr.ErrCategoryIngress, pipeerr.CodeDeadlineExceeded,
			"deadline elapsed before a durable decision", err)
	}

	observability.EventsReceived.Add(float64(len(events)))

	id, err := p.ulids.Generate()
	if err != nil {
		return nil, pipeerr.Wrap(pipeerr.ErrCategoryInternal, pipeerr.CodeUnexpected,
			"failed to generate batch id", err)
	}

	now := time.Now()
	result := &BatchResult{
		BatchID: id.String(),
		Results: make([]EventResult, len(events)),
	}

	accepted := make([]types.Event, 0, len(events))
	for i := range events {
		reason := validateEvent(&events[i], p.limits, now)
		if reason == "" {
			accepted = append(accepted, events[i])
			result.Results[i] = EventResult{Index: i, Accepted: true}
			continue
		}

		result.Results[i] = EventResult{Index: i, Reason: reason}
		result.Rejected++
		observability.EventsRejected.WithLabelValues(deadletter.ReasonValidationFailed).Inc()
		p.divertInvalid(ctx, &events[i], reason)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	batch := types.Batch{
		BatchID:    result.BatchID,
		Events:     accepted,
		ReceivedAt: now,
	}
	pos, err := p.journal.Append(&batch)
	if err != nil {
		// No partial buffering: the whole remainder is rejected and the
		// caller retries the complete call.
		return nil, err
	}

	result.Accepted = len(accepted)
	result.Position = pos
	return result, nil
}

// divertInvalid routes one unprocessable event to the dead-letter store.
// Dead-letter failures are logged, not surfaced: the event is already
// rejected in the acknowledgement either way.
func (p *Processor) divertInvalid(ctx context.Context, ev *types.Event, reason string) {
	payload, err := json.Marshal(ev)
	if err != nil {
		payload = []byte(err.Error())
	}
	_, err = p.deadLetters.Record(ctx, deadletter.Entry{
		Payload: payload,
		Reason:  deadletter.ReasonValidationFailed,
	})
	if err != nil {
		log.Printf("ingest: failed to dead-letter invalid event (%s): %v", reason, err)
	}
}
