package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lessonpulse/lessonpulse/internal/deadletter"
	"github.com/lessonpulse/lessonpulse/internal/journal"
	"github.com/lessonpulse/lessonpulse/internal/observability"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// Config holds publisher tuning parameters.
type Config struct {
	// MaxBatchBytes bounds one downstream publish request.
	MaxBatchBytes int64 `json:"max_batch_bytes" yaml:"max_batch_bytes"`

	// MaxAttempts is the retry budget per publish window.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// InitialBackoff is the delay after the first transient failure.
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff caps the exponential backoff delay.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// AttemptTimeout bounds a single downstream send, distinct from the
	// overall retry budget.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout"`

	// PollInterval is how often the drain loop checks for new records.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxBatchBytes:  512 * 1024,
		MaxAttempts:    8,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		AttemptTimeout: 10 * time.Second,
		PollInterval:   250 * time.Millisecond,
	}
}

// pendingRecord tracks one event through the retry loop of a publish window.
type pendingRecord struct {
	record    *Record
	firstSeen time.Time
}

// Publisher continuously drains the journal through a cursor, packs events
// into size-bounded publish requests and sends them downstream. Exactly one
// publisher runs per journal; the cursor never advances past a record that
// has not been resolved as published or dead-lettered.
type Publisher struct {
	cursors     *journal.CursorStore
	reader      *journal.Reader
	sink        Sink
	deadLetters *deadletter.Store
	cfg         Config
}

// NewPublisher creates a publisher resuming from the persisted cursor.
func NewPublisher(j *journal.Journal, cursors *journal.CursorStore, sink Sink, dl *deadletter.Store, cfg Config) (*Publisher, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}

	cursor, err := cursors.Load()
	if err != nil {
		return nil, fmt.Errorf("publisher: failed to load cursor: %w", err)
	}

	return &Publisher{
		cursors:     cursors,
		reader:      j.OpenReader(cursor),
		sink:        sink,
		deadLetters: dl,
		cfg:         cfg,
	}, nil
}

// Run drains the journal until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	defer p.reader.Close()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			progressed, err := p.publishOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("publisher: window failed: %v", err)
				break
			}
			if !progressed {
				break
			}
		}
	}
}

// publishOnce packs one publish window, resolves it downstream, and advances
// the cursor. Returns false when the journal has no unread records.
func (p *Publisher) publishOnce(ctx context.Context) (bool, error) {
	window, next, err := p.packWindow()
	if err != nil {
		return false, err
	}
	if len(window) == 0 {
		return false, nil
	}

	if err := p.deliver(ctx, window); err != nil {
		// Cursor untouched: a crash or shutdown mid-retry resumes from the
		// same position. Duplicates downstream are possible and expected.
		return false, err
	}

	if err := p.cursors.Save(next); err != nil {
		return false, fmt.Errorf("publisher: failed to persist cursor: %w", err)
	}
	return true, nil
}

// packWindow reads consecutive journal records and flattens their events
// into publish records until the byte bound is reached.
func (p *Publisher) packWindow() ([]*pendingRecord, journal.Position, error) {
	var window []*pendingRecord
	var next journal.Position
	var bytes int64

	for bytes < p.cfg.MaxBatchBytes {
		rec, pos, err := p.reader.Next()
		if err != nil {
			if errors.Is(err, journal.ErrNoRecord) {
				break
			}
			return nil, journal.Position{}, err
		}

		for i := range rec.Batch.Events {
			pub, err := toPublishRecord(&rec.Batch.Events[i])
			if err != nil {
				// Cannot happen for events that passed validation; divert
				// rather than stall.
				log.Printf("publisher: unencodable event in batch %s: %v", rec.Batch.BatchID, err)
				continue
			}
			window = append(window, &pendingRecord{
				record:    pub,
				firstSeen: rec.Batch.ReceivedAt,
			})
			bytes += int64(len(pub.Value))
		}
		next = pos
	}
	return window, next, nil
}

// deliver resolves every record of a window: accepted downstream, or written
// to the dead-letter store. Transient failures retry with exponential backoff
// up to the attempt budget; permanent rejections are dead-lettered right away
// so one poison record cannot stall the drain.
func (p *Publisher) deliver(ctx context.Context, window []*pendingRecord) error {
	pending := window
	delay := p.cfg.InitialBackoff

	for attempt := 1; ; attempt++ {
		observability.PublishAttempts.Inc()

		records := make([]*Record, len(pending))
		for i, pr := range pending {
			records[i] = pr.record
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		start := time.Now()
		results, err := p.sink.Publish(attemptCtx, records)
		cancel()
		observability.PublishLatency.Observe(time.Since(start).Seconds())

		var retry []*pendingRecord
		if err != nil {
			// Whole-call failure: transient for every record.
			observability.PublishFailures.WithLabelValues("transient").Inc()
			retry = pending
		} else {
			for i, res := range results {
				switch res.Status {
				case StatusAccepted:
					observability.RecordsPublished.Inc()
				case StatusPermanentRejection:
					observability.PublishFailures.WithLabelValues("permanent").Inc()
					p.deadLetter(ctx, pending[i], attempt, res.Err)
				default:
					retry = append(retry, pending[i])
				}
			}
			if len(retry) > 0 {
				observability.PublishFailures.WithLabelValues("transient").Inc()
			}
		}

		if len(retry) == 0 {
			return nil
		}
		if attempt >= p.cfg.MaxAttempts {
			// Retry budget exhausted: convert to a permanent dead-letter
			// action rather than retrying forever.
			for _, pr := range retry {
				p.deadLetter(ctx, pr, attempt, fmt.Errorf("retry budget of %d attempts exhausted", p.cfg.MaxAttempts))
			}
			return nil
		}

		pending = retry
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.cfg.MaxBackoff {
			delay = p.cfg.MaxBackoff
		}
	}
}

// deadLetter records one unpublishable record. Failures are logged; the
// cursor still advances, which trades a lost dead-letter entry for not
// stalling the stream.
func (p *Publisher) deadLetter(ctx context.Context, pr *pendingRecord, attempts int, cause error) {
	_, err := p.deadLetters.Record(ctx, deadletter.Entry{
		Payload:     pr.record.Value,
		Reason:      deadletter.ReasonPublishRejected,
		Attempts:    attempts,
		FirstSeen:   pr.firstSeen,
		LastAttempt: time.Now(),
	})
	if err != nil {
		log.Printf("publisher: failed to dead-letter record (%v): %v", cause, err)
	}
}

// toPublishRecord serializes one event for the downstream log, keyed by
// learner so a learner's activity stays ordered within a log partition.
func toPublishRecord(ev *types.Event) (*Record, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &Record{Key: []byte(ev.LearnerID), Value: value}, nil
}
