//go:build property

package watcher

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties checks that a flushed batch holds each changed
// path exactly once, sorted.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("flush deduplicates and sorts paths", prop.ForAll(
		func(paths []string) bool {
			if len(paths) == 0 {
				return true
			}

			d := newDebouncer(0)
			d.pending = make([]ChangeEvent, 0, len(paths))
			for _, p := range paths {
				d.pending = append(d.pending, ChangeEvent{Path: p})
			}
			d.flush()

			batch := <-d.output

			unique := make(map[string]bool)
			for _, p := range paths {
				unique[p] = true
			}
			if len(batch) != len(unique) {
				return false
			}

			got := make([]string, len(batch))
			for i, ev := range batch {
				got[i] = ev.Path
			}
			return sort.StringsAreSorted(got)
		},
		gen.SliceOf(gen.OneConstOf("a.less", "b.less", "index.html", "js/script.js", "c.less")),
	))

	properties.TestingRun(t)
}
