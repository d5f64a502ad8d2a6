package journal

import (
	"encoding/json"
	"io"
	"log"
	"os"

	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
)

// ErrNoRecord is returned by Reader.Next when no further record is currently
// readable. More data may become available later; callers poll.
var ErrNoRecord = pipeerr.New(pipeerr.ErrCategoryJournal, pipeerr.CodeUnavailable, "no record available")

// Reader replays journal records in append order starting from a position.
// Within a segment, records come back in append order; across segments, in
// segment sequence order. Reads never block writers.
type Reader struct {
	j    *Journal
	pos  Position
	file *os.File
}

// OpenReader creates a reader positioned at pos. The zero Position starts
// from the oldest retained record.
func (j *Journal) OpenReader(pos Position) *Reader {
	return &Reader{j: j, pos: pos}
}

// Position returns the position of the next unread record.
func (r *Reader) Position() Position {
	return r.pos
}

// Next returns the next record and the position immediately after it (the
// cursor value to persist once the record is fully handled). It returns
// ErrNoRecord when the reader has caught up with the open segment.
func (r *Reader) Next() (*Record, Position, error) {
	for {
		if r.file == nil {
			seq, ok := r.j.segmentFrom(r.pos.Segment)
			if !ok {
				return nil, r.pos, ErrNoRecord
			}
			if seq != r.pos.Segment {
				// The requested segment was reclaimed or never written;
				// resume at the next one that exists.
				r.pos = Position{Segment: seq}
			}
			f, err := os.Open(segmentPath(r.j.dir, seq))
			if err != nil {
				if os.IsNotExist(err) {
					return nil, r.pos, ErrNoRecord
				}
				return nil, r.pos, err
			}
			r.file = f
		}

		payload, frameLen, err := readFrameAt(r.file, r.pos.Offset)
		switch {
		case err == nil:
			var rec Record
			if jsonErr := json.Unmarshal(payload, &rec); jsonErr != nil {
				log.Printf("journal: undecodable record at segment %016x offset %d, skipping", r.pos.Segment, r.pos.Offset)
				r.pos.Offset += frameLen
				continue
			}
			next := Position{Segment: r.pos.Segment, Offset: r.pos.Offset + frameLen}
			r.pos = next
			return &rec, next, nil

		case err == io.EOF, err == io.ErrUnexpectedEOF, isCorruptErr(err):
			if isCorruptErr(err) {
				log.Printf("journal: corrupt frame at segment %016x offset %d", r.pos.Segment, r.pos.Offset)
			}
			if !r.j.isSealed(r.pos.Segment) {
				// Caught up with the open segment; a torn frame here is an
				// in-flight write that the next read attempt will see whole.
				return nil, r.pos, ErrNoRecord
			}
			// End of a sealed segment: move on to the next.
			r.file.Close()
			r.file = nil
			r.pos = Position{Segment: r.pos.Segment + 1}

		default:
			return nil, r.pos, err
		}
	}
}

// Close releases the reader's file handle.
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

func isCorruptErr(err error) bool {
	_, ok := err.(*errCorruptFrame)
	return ok
}
