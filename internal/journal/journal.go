// Package journal provides the durable on-disk buffer between ingestion and
// publishing. Accepted batches are appended to time/size-bounded segment
// files; a replay reader feeds the publisher and a background reclaimer
// deletes segments that are past retention and fully behind the cursor.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/golang/snappy"

	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/internal/observability"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// Config holds journal tuning parameters.
type Config struct {
	// MaxSegmentBytes seals the open segment once it reaches this size.
	MaxSegmentBytes int64 `json:"max_segment_bytes" yaml:"max_segment_bytes"`

	// MaxSegmentAge seals the open segment once it has been open this long.
	MaxSegmentAge time.Duration `json:"max_segment_age" yaml:"max_segment_age"`

	// HighWaterBytes is the backpressure threshold: once un-reclaimed bytes
	// exceed it, Append fails fast with RESOURCE_EXHAUSTED.
	HighWaterBytes int64 `json:"high_water_bytes" yaml:"high_water_bytes"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSegmentBytes: 64 * 1024 * 1024,
		MaxSegmentAge:   10 * time.Minute,
		HighWaterBytes:  1024 * 1024 * 1024,
	}
}

// Position identifies a record in the journal: the segment sequence number
// plus the byte offset of the record's frame within that segment.
type Position struct {
	Segment uint64 `json:"segment"`
	Offset  int64  `json:"offset"`
}

// Before reports whether p is strictly earlier than q in replay order.
func (p Position) Before(q Position) bool {
	if p.Segment != q.Segment {
		return p.Segment < q.Segment
	}
	return p.Offset < q.Offset
}

// Record is one journal entry: a batch tagged with its segment and offset.
type Record struct {
	Segment uint64      `json:"segment"`
	Offset  int64       `json:"offset"`
	Batch   types.Batch `json:"batch"`
}

// segmentMeta tracks per-segment bookkeeping held in memory. Rebuilt from the
// segment files on startup.
type segmentMeta struct {
	seq    uint64
	size   int64
	newest time.Time // ReceivedAt of the newest batch in the segment
	sealed bool
}

// Journal is the durable buffer. The write path is the single serialization
// point of the pipeline: appends to the open segment are mutually exclusive,
// while readers never take the write lock except to snapshot metadata.
type Journal struct {
	dir string
	cfg Config

	mu             sync.Mutex
	active         *os.File
	activeSeq      uint64
	activeSize     int64
	activeOpenedAt time.Time
	totalSize      int64
	segments       map[uint64]*segmentMeta
	closed         bool
}

const frameHeaderSize = 8 // [len:4 LE][crc32:4 LE]

// Open opens (or creates) a journal in dir, recovering existing segments.
// A torn frame at the tail of the most recent segment is truncated and
// discarded; sealed segments are never modified. Recovery always starts a
// fresh open segment, so every segment present at startup is sealed.
func Open(dir string, cfg Config) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("journal: failed to create directory: %w", err)
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = DefaultConfig().MaxSegmentBytes
	}
	if cfg.MaxSegmentAge <= 0 {
		cfg.MaxSegmentAge = DefaultConfig().MaxSegmentAge
	}
	if cfg.HighWaterBytes <= 0 {
		cfg.HighWaterBytes = DefaultConfig().HighWaterBytes
	}

	j := &Journal{
		dir:      dir,
		cfg:      cfg,
		segments: make(map[uint64]*segmentMeta),
	}

	if err := j.recover(); err != nil {
		return nil, err
	}

	if err := j.openSegment(j.nextSeq()); err != nil {
		return nil, err
	}

	observability.JournalSizeBytes.Set(float64(j.totalSize))
	return j, nil
}

// recover scans the journal directory and rebuilds segment metadata. The
// highest segment may end in a torn frame from an interrupted write; it is
// truncated at the last complete frame. Only the in-flight tail is lost.
func (j *Journal) recover() error {
	seqs, err := j.listSegments()
	if err != nil {
		return err
	}

	for i, seq := range seqs {
		path := segmentPath(j.dir, seq)
		validLen, newest, torn, err := scanSegment(path)
		if err != nil {
			return fmt.Errorf("journal: failed to scan segment %s: %w", path, err)
		}

		if torn {
			if i == len(seqs)-1 {
				log.Printf("journal: truncating torn tail of segment %016x at offset %d", seq, validLen)
				if err := os.Truncate(path, validLen); err != nil {
					return fmt.Errorf("journal: failed to truncate segment %s: %w", path, err)
				}
			} else {
				// A sealed segment should never be torn; readers stop at
				// the last complete frame, so log and carry on.
				log.Printf("journal: segment %016x has invalid data past offset %d", seq, validLen)
			}
		}

		if validLen == 0 {
			// Nothing readable; drop the empty file.
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("journal: failed to remove empty segment %s: %w", path, err)
			}
			continue
		}

		j.segments[seq] = &segmentMeta{seq: seq, size: validLen, newest: newest, sealed: true}
		j.totalSize += validLen
	}

	return nil
}

// listSegments returns existing segment sequence numbers in ascending order.
func (j *Journal) listSegments() ([]uint64, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to read directory: %w", err)
	}

	var seqs []uint64
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		var seq uint64
		if _, err := fmt.Sscanf(f.Name(), "journal_%016x.log", &seq); err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(a, b int) bool { return seqs[a] < seqs[b] })
	return seqs, nil
}

// nextSeq returns the sequence number for a fresh segment.
func (j *Journal) nextSeq() uint64 {
	var last uint64
	for seq := range j.segments {
		if seq > last {
			last = seq
		}
	}
	return last + 1
}

// openSegment creates the segment file for seq and makes it the open segment.
func (j *Journal) openSegment(seq uint64) error {
	path := segmentPath(j.dir, seq)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("journal: failed to open segment file: %w", err)
	}

	j.active = f
	j.activeSeq = seq
	j.activeSize = 0
	j.activeOpenedAt = time.Now()
	// newest starts at the zero time and tracks batch arrival only: retention
	// is keyed to what the segment holds, not to when the file was created.
	j.segments[seq] = &segmentMeta{seq: seq}
	return nil
}

// seal closes the open segment and opens the next one. Caller must hold j.mu.
// Sealing is atomic with respect to readers: the sealed flag flips under the
// same lock readers use to snapshot metadata.
func (j *Journal) seal() error {
	if err := j.active.Close(); err != nil {
		return fmt.Errorf("journal: failed to close segment: %w", err)
	}
	j.segments[j.activeSeq].sealed = true
	return j.openSegment(j.activeSeq + 1)
}

// Append durably writes a batch to the open segment and returns its position.
// Above the high-water mark Append fails fast with RESOURCE_EXHAUSTED so that
// producers observe backpressure instead of the journal growing unboundedly.
func (j *Journal) Append(batch *types.Batch) (Position, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return Position{}, pipeerr.New(pipeerr.ErrCategoryJournal, pipeerr.CodeJournalClosed, "journal is closed")
	}
	if j.totalSize >= j.cfg.HighWaterBytes {
		return Position{}, pipeerr.New(pipeerr.ErrCategoryJournal, pipeerr.CodeResourceExhausted,
			"journal above high-water mark, retry later")
	}

	// Seal on size or age, whichever threshold is crossed first.
	if j.activeSize >= j.cfg.MaxSegmentBytes ||
		(j.activeSize > 0 && time.Since(j.activeOpenedAt) >= j.cfg.MaxSegmentAge) {
		if err := j.seal(); err != nil {
			return Position{}, err
		}
	}

	rec := Record{Segment: j.activeSeq, Offset: j.activeSize, Batch: *batch}
	payload, err := json.Marshal(&rec)
	if err != nil {
		return Position{}, fmt.Errorf("journal: failed to serialize record: %w", err)
	}
	compressed := snappy.Encode(nil, payload)

	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(compressed))

	if _, err := j.active.Write(header[:]); err != nil {
		return Position{}, fmt.Errorf("journal: failed to write frame header: %w", err)
	}
	if _, err := j.active.Write(compressed); err != nil {
		return Position{}, fmt.Errorf("journal: failed to write frame payload: %w", err)
	}
	if err := j.active.Sync(); err != nil {
		return Position{}, fmt.Errorf("journal: failed to fsync: %w", err)
	}

	pos := Position{Segment: j.activeSeq, Offset: j.activeSize}
	frameLen := int64(frameHeaderSize + len(compressed))
	j.activeSize += frameLen
	j.totalSize += frameLen

	meta := j.segments[j.activeSeq]
	meta.size = j.activeSize
	if batch.ReceivedAt.After(meta.newest) {
		meta.newest = batch.ReceivedAt
	}

	observability.JournalSizeBytes.Set(float64(j.totalSize))
	observability.BatchesAppended.Inc()
	return pos, nil
}

// Accepting reports whether the journal is below its high-water mark and able
// to take writes. Drives the readiness probe.
func (j *Journal) Accepting() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.closed && j.totalSize < j.cfg.HighWaterBytes
}

// TotalBytes returns the current un-reclaimed journal size.
func (j *Journal) TotalBytes() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totalSize
}

// Close seals the open segment and releases resources.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if j.active != nil {
		if err := j.active.Sync(); err != nil {
			return fmt.Errorf("journal: failed to fsync on close: %w", err)
		}
		if err := j.active.Close(); err != nil {
			return fmt.Errorf("journal: failed to close segment: %w", err)
		}
		j.segments[j.activeSeq].sealed = true
		j.active = nil
	}
	return nil
}

// isSealed reports whether segment seq exists and is sealed.
func (j *Journal) isSealed(seq uint64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	meta, ok := j.segments[seq]
	return ok && meta.sealed
}

// segmentFrom returns the smallest existing segment sequence >= seq.
func (j *Journal) segmentFrom(seq uint64) (uint64, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var best uint64
	found := false
	for s, meta := range j.segments {
		if s < seq || meta.size == 0 {
			continue
		}
		if !found || s < best {
			best = s
			found = true
		}
	}
	return best, found
}

// sealedMetas returns a snapshot of sealed, non-empty segment metadata.
func (j *Journal) sealedMetas() []segmentMeta {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]segmentMeta, 0, len(j.segments))
	for _, meta := range j.segments {
		if meta.sealed && meta.size > 0 {
			out = append(out, *meta)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].seq < out[b].seq })
	return out
}

// removeSegment deletes a sealed segment file and its metadata.
func (j *Journal) removeSegment(seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	meta, ok := j.segments[seq]
	if !ok || !meta.sealed {
		return fmt.Errorf("journal: segment %016x is not reclaimable", seq)
	}
	if err := os.Remove(segmentPath(j.dir, seq)); err != nil {
		return fmt.Errorf("journal: failed to remove segment: %w", err)
	}
	j.totalSize -= meta.size
	delete(j.segments, seq)

	observability.JournalSizeBytes.Set(float64(j.totalSize))
	return nil
}

// segmentPath builds the file path for a segment sequence number.
func segmentPath(dir string, seq uint64) string {
	return filepath.Join(dir, fmt.Sprintf("journal_%016x.log", seq))
}

// errCorruptFrame marks a frame whose checksum does not match. The frame
// length is still known, so readers of sealed segments can skip past it.
type errCorruptFrame struct {
	frameLen int64
}

func (e *errCorruptFrame) Error() string {
	return fmt.Sprintf("journal: corrupt frame of %d bytes", e.frameLen)
}

// readFrameAt reads the frame starting at offset. It returns the decompressed
// record payload and the total frame length. io.EOF means a clean end of
// segment; io.ErrUnexpectedEOF means a torn (partially written) frame.
func readFrameAt(f *os.File, offset int64) ([]byte, int64, error) {
	var header [frameHeaderSize]byte
	if _, err := f.ReadAt(header[:], offset); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, err
	}

	length := binary.LittleEndian.Uint32(header[0:4])
	crc := binary.LittleEndian.Uint32(header[4:8])

	compressed := make([]byte, length)
	if _, err := f.ReadAt(compressed, offset+frameHeaderSize); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}

	frameLen := int64(frameHeaderSize) + int64(length)
	if crc32.ChecksumIEEE(compressed) != crc {
		return nil, frameLen, &errCorruptFrame{frameLen: frameLen}
	}

	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, frameLen, &errCorruptFrame{frameLen: frameLen}
	}
	return payload, frameLen, nil
}

// scanSegment walks a segment file frame by frame. It returns the byte length
// of the valid prefix, the newest batch timestamp seen, and whether the file
// ends in a torn or otherwise unreadable frame.
func scanSegment(path string) (validLen int64, newest time.Time, torn bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	defer f.Close()

	var offset int64
	for {
		payload, frameLen, err := readFrameAt(f, offset)
		if err == io.EOF {
			return offset, newest, false, nil
		}
		if err == io.ErrUnexpectedEOF {
			return offset, newest, true, nil
		}
		if err != nil {
			var corrupt *errCorruptFrame
			if ok := asCorrupt(err, &corrupt); ok {
				// Treat a corrupt frame like a torn tail: everything before
				// it stays readable, everything after is discarded.
				return offset, newest, true, nil
			}
			return 0, time.Time{}, false, err
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return offset, newest, true, nil
		}
		if rec.Batch.ReceivedAt.After(newest) {
			newest = rec.Batch.ReceivedAt
		}
		offset += frameLen
	}
}

// asCorrupt reports whether err is an errCorruptFrame, filling target.
func asCorrupt(err error, target **errCorruptFrame) bool {
	ce, ok := err.(*errCorruptFrame)
	if ok {
		*target = ce
	}
	return ok
}
