package types

import (
	"crypto/rand"
	"sync"
	"time"
)

// ULID is a 128-bit, time-ordered, lexicographically sortable identifier:
// 48 bits of millisecond timestamp followed by 80 bits of randomness.
// Batch identifiers are ULIDs so that sorting by identifier sorts by arrival.
type ULID [16]byte

// Crockford's Base32 alphabet (I, L, O, U excluded).
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDGenerator produces ULIDs that are strictly increasing, including within
// a single millisecond (the random component is incremented on collision).
type ULIDGenerator struct {
	mu       sync.Mutex
	lastMs   uint64
	lastRand [10]byte
}

// NewULIDGenerator creates a new ULID generator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate creates a new ULID for the current time.
func (g *ULIDGenerator) Generate() (ULID, error) {
	return g.GenerateWithTime(time.Now())
}

// GenerateWithTime creates a new ULID for the given time. Useful for tests.
func (g *ULIDGenerator) GenerateWithTime(t time.Time) (ULID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := uint64(t.UnixMilli())

	var u ULID
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)

	if ms == g.lastMs {
		// Same millisecond: bump the random component to stay monotonic.
		for i := 9; i >= 0; i-- {
			g.lastRand[i]++
			if g.lastRand[i] != 0 {
				break
			}
		}
	} else {
		if _, err := rand.Read(g.lastRand[:]); err != nil {
			return ULID{}, err
		}
		g.lastMs = ms
	}
	copy(u[6:], g.lastRand[:])

	return u, nil
}

// Time returns the timestamp component.
func (u ULID) Time() time.Time {
	ms := uint64(u[0])<<40 | uint64(u[1])<<32 | uint64(u[2])<<24 |
		uint64(u[3])<<16 | uint64(u[4])<<8 | uint64(u[5])
	return time.UnixMilli(int64(ms))
}

// Compare orders two ULIDs lexicographically: -1, 0 or 1.
func (u ULID) Compare(other ULID) int {
	for i := range u {
		switch {
		case u[i] < other[i]:
			return -1
		case u[i] > other[i]:
			return 1
		}
	}
	return 0
}

// String encodes the ULID as a 26-character Crockford Base32 string.
func (u ULID) String() string {
	var buf [26]byte
	v := u
	for i := 25; i >= 0; i-- {
		buf[i] = crockfordBase32[v[15]&0x1f]
		shiftRight5(&v)
	}
	return string(buf[:])
}

// ParseULID decodes a 26-character Crockford Base32 string.
func ParseULID(s string) (ULID, error) {
	if len(s) != 26 {
		return ULID{}, ErrInvalidULIDLength
	}
	// The top two bits of a 26-character encoding must be zero,
	// so the first character cannot exceed '7'.
	if s[0] > '7' {
		return ULID{}, ErrInvalidULIDCharacter
	}

	var u ULID
	for i := 0; i < 26; i++ {
		d := decodeBase32(s[i])
		if d == 0xFF {
			return ULID{}, ErrInvalidULIDCharacter
		}
		shiftLeft5Add(&u, d)
	}
	return u, nil
}

// shiftRight5 shifts the 128-bit big-endian value right by five bits.
func shiftRight5(b *ULID) {
	var carry byte
	for i := 0; i < len(b); i++ {
		v := b[i]
		b[i] = v>>5 | carry<<3
		carry = v & 0x1f
	}
}

// shiftLeft5Add shifts the 128-bit big-endian value left by five bits and
// adds the digit d into the low bits.
func shiftLeft5Add(b *ULID, d byte) {
	carry := uint16(d)
	for i := len(b) - 1; i >= 0; i-- {
		v := uint16(b[i])<<5 | carry
		b[i] = byte(v)
		carry = v >> 8
	}
}

// decodeBase32 decodes one Crockford Base32 character, 0xFF if invalid.
func decodeBase32(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'H':
		return c - 'A' + 10
	case c == 'J' || c == 'K':
		return c - 'J' + 18
	case c == 'M' || c == 'N':
		return c - 'M' + 20
	case c >= 'P' && c <= 'T':
		return c - 'P' + 22
	case c >= 'V' && c <= 'Z':
		return c - 'V' + 27
	case c >= 'a' && c <= 'h':
		return c - 'a' + 10
	case c == 'j' || c == 'k':
		return c - 'j' + 18
	case c == 'm' || c == 'n':
		return c - 'm' + 20
	case c >= 'p' && c <= 't':
		return c - 'p' + 22
	case c >= 'v' && c <= 'z':
		return c - 'v' + 27
	default:
		return 0xFF
	}
}
