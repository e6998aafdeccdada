package watcher

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/conneroisu/assetpipe/internal/glob"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// Rule binds a glob set to the action run when any matching file changes.
type Rule struct {
	Name    string
	Pattern glob.Set
	// Action receives the changed paths, relative to the project root.
	Action func(ctx context.Context, paths []string) error
}

// Router dispatches debounced change batches to rules. Each rule runs at
// most once per batch, in declaration order.
type Router struct {
	root   string
	rules  []Rule
	logger logging.Logger
}

// NewRouter creates a router for paths under root.
func NewRouter(root string, logger logging.Logger, rules ...Rule) (*Router, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{root: abs, rules: rules, logger: logger.WithComponent("watcher")}, nil
}

// Dirs returns the directories that must be watched to observe every rule,
// as absolute paths.
func (r *Router) Dirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, rule := range r.rules {
		for _, base := range rule.Pattern.Bases() {
			dir := filepath.Join(r.root, filepath.FromSlash(base))
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// Handle implements ChangeHandler.
func (r *Router) Handle(ctx context.Context, events []ChangeEvent) error {
	rels := make([]string, 0, len(events))
	for _, ev := range events {
		if rel, ok := r.relative(ev.Path); ok {
			rels = append(rels, rel)
		}
	}
	if len(rels) == 0 {
		return nil
	}

	var errs error
	for _, rule := range r.rules {
		var matched []string
		for _, rel := range rels {
			if rule.Pattern.Matches(rel) {
				matched = append(matched, rel)
			}
		}
		if len(matched) == 0 {
			continue
		}

		r.logger.Info(ctx, "Change detected", "rule", rule.Name, "files", matched)
		if err := rule.Action(ctx, matched); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("watch rule %s: %w", rule.Name, err))
		}
	}
	return errs
}

// relative converts an event path into a slash-separated path under root.
func (r *Router) relative(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return path.Clean(rel), true
}
