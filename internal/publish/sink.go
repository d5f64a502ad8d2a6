// Package publish drains the journal and republishes records to the
// downstream append-only log with bounded retry, diverting permanently
// rejected records to the dead-letter store so one poison record cannot
// stall the stream.
package publish

import "context"

// Status classifies the downstream log's per-record verdict.
type Status int

const (
	// StatusAccepted means the downstream log durably accepted the record.
	StatusAccepted Status = iota

	// StatusTransientFailure means the send failed in a retryable way
	// (broker unavailable, timeout, leadership change).
	StatusTransientFailure

	// StatusPermanentRejection means the downstream refused the record
	// itself; retrying the identical record cannot succeed.
	StatusPermanentRejection
)

// Result is the per-record outcome of one publish attempt.
type Result struct {
	Status Status
	Err    error
}

// Record is one downstream publish unit: a single event serialized for the
// log, keyed so all activity of one learner lands in one log partition.
type Record struct {
	Key   []byte
	Value []byte
}

// Sink is the downstream log publish target. Publish returns one Result per
// input record, in input order; a non-nil error means the whole call failed
// and is treated as transient for every record.
type Sink interface {
	Publish(ctx context.Context, records []*Record) ([]Result, error)
	Close() error
}
