// Package glob implements the static source selectors used by tasks.
//
// A Set is an ordered list of include patterns plus negated ("!"-prefixed)
// exclude patterns, all relative to the project root and always written with
// forward slashes. Patterns support ** and {a,b} alternation.
package glob

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match is one file selected by a Set.
type Match struct {
	// Path is the slash-separated path relative to the project root.
	Path string
	// Rel is Path relative to the base of the include pattern that matched it.
	Rel string
}

// Set is an immutable include/exclude pattern set.
type Set struct {
	patterns []string
	includes []string
	excludes []string
}

// New builds a Set from patterns. Patterns starting with "!" exclude.
func New(patterns ...string) (Set, error) {
	s := Set{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		negated := strings.HasPrefix(p, "!")
		clean := normalize(strings.TrimPrefix(p, "!"))
		if !doublestar.ValidatePattern(clean) {
			return Set{}, fmt.Errorf("invalid glob pattern %q", p)
		}
		if negated {
			s.excludes = append(s.excludes, clean)
		} else {
			s.includes = append(s.includes, clean)
		}
	}
	if len(s.includes) == 0 {
		return Set{}, fmt.Errorf("glob set %v has no include pattern", patterns)
	}
	return s, nil
}

// String implements fmt.Stringer.
func (s Set) String() string {
	return strings.Join(s.patterns, ", ")
}

// Bases returns the static directory prefix of every include pattern.
func (s Set) Bases() []string {
	seen := make(map[string]bool)
	var bases []string
	for _, inc := range s.includes {
		b := Base(inc)
		if !seen[b] {
			seen[b] = true
			bases = append(bases, b)
		}
	}
	return bases
}

// Matches reports whether the slash-separated name is selected by the set.
func (s Set) Matches(name string) bool {
	name = normalize(name)
	if s.excluded(name) {
		return false
	}
	for _, inc := range s.includes {
		if ok, _ := doublestar.Match(inc, name); ok {
			return true
		}
	}
	return false
}

func (s Set) excluded(name string) bool {
	for _, exc := range s.excludes {
		if ok, _ := doublestar.Match(exc, name); ok {
			return true
		}
	}
	return false
}

// Expand lists the regular files under fsys selected by the set, sorted by
// path. A file matched by several include patterns is returned once, with Rel
// computed from the first pattern that matched it.
func (s Set) Expand(fsys fs.FS) ([]Match, error) {
	seen := make(map[string]bool)
	var matches []Match

	for _, inc := range s.includes {
		base := Base(inc)
		names, err := doublestar.Glob(fsys, inc)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", inc, err)
		}
		for _, name := range names {
			if seen[name] || s.excluded(name) {
				continue
			}
			info, err := fs.Stat(fsys, name)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", name, err)
			}
			if info.IsDir() {
				continue
			}
			seen[name] = true
			matches = append(matches, Match{Path: name, Rel: relTo(base, name)})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })
	return matches, nil
}

// Disjoint reports whether no file under fsys is selected by both sets.
func Disjoint(fsys fs.FS, a, b Set) (bool, error) {
	am, err := a.Expand(fsys)
	if err != nil {
		return false, err
	}
	for _, m := range am {
		if b.Matches(m.Path) {
			return false, nil
		}
	}
	return true, nil
}

// Base returns the longest leading directory of pattern that contains no
// glob metacharacters, or "." when the pattern starts with one.
func Base(pattern string) string {
	base, _ := doublestar.SplitPattern(normalize(pattern))
	if base == "" {
		return "."
	}
	return base
}

func relTo(base, name string) string {
	if base == "." {
		return name
	}
	return strings.TrimPrefix(strings.TrimPrefix(name, base), "/")
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return "."
	}
	return path.Clean(p)
}
