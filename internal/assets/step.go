package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/glob"
)

// expand lists the files selected by set under the project root.
func (p *Project) expand(task string, set glob.Set) ([]glob.Match, error) {
	matches, err := set.Expand(os.DirFS(p.root))
	if err != nil {
		return nil, apperrors.NewIOError(task, "expand "+set.String(), err)
	}
	return matches, nil
}

// eachFile runs fn on every file selected by set, in path order, stopping at
// the first error or when ctx is cancelled.
func (p *Project) eachFile(ctx context.Context, task string, set glob.Set, fn func(m glob.Match, src []byte) error) error {
	matches, err := p.expand(task, set)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		p.logger.Debug(ctx, "No files matched", "task", task, "patterns", set.String())
		return nil
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := p.read(task, m.Path)
		if err != nil {
			return err
		}
		if err := fn(m, src); err != nil {
			return err
		}
	}

	p.logger.Debug(ctx, "Processed files", "task", task, "files", len(matches))
	return nil
}

// read loads a slash-separated path relative to the project root.
func (p *Project) read(task, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, apperrors.NewIOError(task, "read failed", err).WithPath(rel)
	}
	return data, nil
}

// write stores data at <output>/<dest>/<rel>, creating parent directories
// and replacing any existing file. It returns the path written, relative to
// the output directory.
func (p *Project) write(task, dest, rel string, data []byte) (string, error) {
	out := filepath.Join(filepath.FromSlash(dest), filepath.FromSlash(rel))
	target := filepath.Join(p.output, out)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", apperrors.NewIOError(task, "create directory failed", err).WithPath(filepath.ToSlash(out))
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", apperrors.NewIOError(task, "write failed", err).WithPath(filepath.ToSlash(out))
	}
	return filepath.ToSlash(out), nil
}

// relToBase returns name relative to base when name lies under it, and
// fallback otherwise.
func relToBase(base, name, fallback string) string {
	base = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(base)), "/")
	if base == "." || base == "" {
		return name
	}
	if strings.HasPrefix(name, base+"/") {
		return strings.TrimPrefix(name, base+"/")
	}
	return fallback
}

// replaceExt swaps the extension of a slash-separated path.
func replaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
