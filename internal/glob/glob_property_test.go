//go:build property

package glob

import (
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPartitionProperties checks that a set and its negated complement split
// a directory without overlap or loss, the way svg and sprite do.
func TestPartitionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1717)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	standalone := mustSet(t, "images/*.svg", "!images/logos/*.svg")
	logos := mustSet(t, "images/logos/*.svg")

	properties.Property("standalone and logo sets partition the svg files", prop.ForAll(
		func(plain, logo int) bool {
			fsys := fstest.MapFS{}
			for i := 0; i < plain; i++ {
				fsys[fmt.Sprintf("images/icon%d.svg", i)] = &fstest.MapFile{Data: []byte("<svg/>")}
			}
			for i := 0; i < logo; i++ {
				fsys[fmt.Sprintf("images/logos/brand%d.svg", i)] = &fstest.MapFile{Data: []byte("<svg/>")}
			}

			a, err := standalone.Expand(fsys)
			if err != nil {
				return false
			}
			b, err := logos.Expand(fsys)
			if err != nil {
				return false
			}
			disjoint, err := Disjoint(fsys, standalone, logos)
			if err != nil {
				return false
			}
			return disjoint && len(a) == plain && len(b) == logo
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))

	properties.Property("expansion is sorted and unique", prop.ForAll(
		func(names []string) bool {
			fsys := fstest.MapFS{}
			for _, n := range names {
				fsys["src/"+n+".js"] = &fstest.MapFile{Data: []byte("x")}
			}
			set := mustSet(t, "src/*.js", "src/**/*.js")
			ms, err := set.Expand(fsys)
			if err != nil {
				return false
			}
			for i := 1; i < len(ms); i++ {
				if ms[i-1].Path >= ms[i].Path {
					return false
				}
			}
			return len(ms) == len(fsys)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
