package grpc

import (
	"time"

	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// windowBuilder accumulates streamed events into a logical batch window
// bounded by count or age, whichever is reached first. Each closed window
// goes through the same submit path as a request/response batch.
type windowBuilder struct {
	maxEvents int
	maxAge    time.Duration
	events    []types.Event
	openedAt  time.Time
}

func newWindowBuilder(maxEvents int, maxAge time.Duration) *windowBuilder {
	return &windowBuilder{maxEvents: maxEvents, maxAge: maxAge}
}

// add appends one event and reports whether the window is now full.
func (b *windowBuilder) add(ev types.Event) bool {
	if len(b.events) == 0 {
		b.openedAt = time.Now()
	}
	b.events = append(b.events, ev)
	return len(b.events) >= b.maxEvents
}

func (b *windowBuilder) empty() bool {
	return len(b.events) == 0
}

// expired reports whether the open window has outlived its age bound.
func (b *windowBuilder) expired(now time.Time) bool {
	return len(b.events) > 0 && now.Sub(b.openedAt) >= b.maxAge
}

// take returns the window's events and resets the builder.
func (b *windowBuilder) take() []types.Event {
	events := b.events
	b.events = nil
	return events
}
