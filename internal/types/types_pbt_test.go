package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var phases = []HarvestPhase{HarvestResolving, HarvestFetching, HarvestDone}

// Applying any sequence of requested phases, accepting only the allowed
// moves, never lowers the phase order.
func TestHarvestPhase_MonotonicProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("phase order never decreases", prop.ForAll(
		func(steps []int) bool {
			current := HarvestResolving
			for _, i := range steps {
				next := phases[i]
				if !current.CanAdvanceTo(next) {
					continue
				}
				if next.Order() < current.Order() {
					return false
				}
				current = next
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(phases)-1)),
	))

	properties.Property("done is terminal", prop.ForAll(
		func(i int) bool {
			next := phases[i]
			return HarvestDone.CanAdvanceTo(next) == (next == HarvestDone)
		},
		gen.IntRange(0, len(phases)-1),
	))

	properties.TestingRun(t)
}
