package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_ULIDOrdering checks that ULID lexicographic order follows
// generation time: identifiers minted later always sort after identifiers
// minted earlier, so batch IDs sort by arrival.
func TestProperty_ULIDOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("later timestamps yield greater ULIDs", prop.ForAll(
		func(aMs, bMs int64) bool {
			if aMs >= bMs {
				aMs, bMs = bMs, aMs+1
			}

			g := NewULIDGenerator()
			u1, err := g.GenerateWithTime(time.UnixMilli(aMs))
			if err != nil {
				return false
			}
			u2, err := g.GenerateWithTime(time.UnixMilli(bMs))
			if err != nil {
				return false
			}
			return u1.Compare(u2) < 0
		},
		gen.Int64Range(1000000000000, 2000000000000),
		gen.Int64Range(1000000000000, 2000000000000),
	))

	properties.Property("string encoding preserves ordering", prop.ForAll(
		func(aMs, bMs int64) bool {
			if aMs == bMs {
				bMs = aMs + 1
			}

			g := NewULIDGenerator()
			u1, err := g.GenerateWithTime(time.UnixMilli(aMs))
			if err != nil {
				return false
			}
			u2, err := g.GenerateWithTime(time.UnixMilli(bMs))
			if err != nil {
				return false
			}
			return (u1.Compare(u2) < 0) == (u1.String() < u2.String())
		},
		gen.Int64Range(1000000000000, 2000000000000),
		gen.Int64Range(1000000000000, 2000000000000),
	))

	properties.TestingRun(t)
}
