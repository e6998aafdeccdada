package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/glob"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/transform"
)

func (p *Project) declareTasks() map[string]*pipeline.Task {
	tasks := []*pipeline.Task{
		pipeline.NewTask(TaskClean, "Delete the output directory", p.clean),
		pipeline.NewTask(TaskCopy, "Copy fonts and icons verbatim", p.copy),
		pipeline.NewTask(TaskStyles, "Compile, prefix and minify stylesheets", p.styles),
		pipeline.NewTask(TaskHTML, "Minify HTML documents", p.html),
		pipeline.NewTask(TaskScript, "Minify scripts", p.script),
		pipeline.NewTask(TaskOptimizeImages, "Re-encode JPEG and PNG images", p.optimizeImages(TaskOptimizeImages)),
		// Same work as optimizeimages; kept under its own name for the dev pipeline.
		pipeline.NewTask(TaskCopyImages, "Re-encode JPEG and PNG images (alias of optimizeimages)", p.optimizeImages(TaskCopyImages)),
		pipeline.NewTask(TaskCreateWebp, "Encode WebP copies of raster images", p.createWebp),
		pipeline.NewTask(TaskSVG, "Minify standalone SVG images", p.svg),
		pipeline.NewTask(TaskSprite, "Assemble the SVG symbol sprite", p.sprite),
		pipeline.NewTask(TaskStartServer, "Start the development server", p.dev.startServer),
		pipeline.NewTask(TaskStartWatcher, "Watch sources and rebuild on change", p.dev.startWatcher),
	}

	byName := make(map[string]*pipeline.Task, len(tasks))
	for _, t := range tasks {
		byName[t.Name()] = t
	}
	return byName
}

func (p *Project) clean(ctx context.Context) error {
	if err := os.RemoveAll(p.output); err != nil {
		return apperrors.NewIOError(TaskClean, "remove output directory", err).WithPath(p.cfg.Paths.Output)
	}
	p.logger.Debug(ctx, "Removed output directory", "path", p.output)
	return nil
}

// copy writes files verbatim, keeping their path relative to copy.base.
func (p *Project) copy(ctx context.Context) error {
	return p.eachFile(ctx, TaskCopy, p.sets.copy, func(m glob.Match, src []byte) error {
		_, err := p.write(TaskCopy, ".", relToBase(p.cfg.Copy.Base, m.Path, m.Rel), src)
		return err
	})
}

func (p *Project) styles(ctx context.Context) error {
	matches, err := p.expand(TaskStyles, p.sets.styles)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return apperrors.NewIOError(TaskStyles, "stylesheet entry not found", os.ErrNotExist).
			WithPath(p.sets.styles.String())
	}

	written := make([]string, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := p.compileStylesheet(ctx, m, len(matches) == 1)
		if err != nil {
			return err
		}
		written = append(written, out)
	}

	if err := p.notifier.StreamCSS(written...); err != nil {
		p.logger.Warn(ctx, err, "Failed to stream stylesheet to browsers")
	}
	return nil
}

// compileStylesheet builds one entry file. A single entry is written under
// styles.output_name; several entries each get <name>.min.css.
//
// A published source map must describe the written file, so mapped output
// keeps the compiler's line layout and is not minified. A postprocess
// command has to carry the map through (postcss does with its default
// inline map); otherwise the map is dropped and the CSS is minified.
func (p *Project) compileStylesheet(ctx context.Context, m glob.Match, single bool) (string, error) {
	result, err := p.compiler.Compile(ctx, m.Path)
	if err != nil {
		return "", p.compileError(m.Path, err)
	}

	css, sourceMap := result.CSS, result.SourceMap
	if !p.cfg.Styles.SourceMaps || len(sourceMap) == 0 {
		sourceMap = nil
	}

	if p.postprocess != nil {
		in := css
		if sourceMap != nil {
			in = transform.InlineSourceMap(css, sourceMap)
		}
		out, err := p.postprocess.Filter(ctx, in)
		if err != nil {
			te := apperrors.NewTransformError(TaskStyles, "postprocess failed", err).WithPath(m.Path)
			if d, ok := apperrors.FirstDiagnostic(err.Error()); ok {
				te.WithHint(d.Hint)
			}
			return "", te
		}

		carried, carriedMap, ok := transform.ExtractInlineSourceMap(out)
		css = carried
		if sourceMap != nil && (!ok || len(carriedMap) == 0) {
			p.logger.Warn(ctx, nil, "Postprocess did not return a source map, writing minified CSS without one",
				"task", TaskStyles, "path", m.Path)
			sourceMap = nil
		} else if sourceMap != nil {
			sourceMap = carriedMap
		}
	}

	if sourceMap == nil {
		if css, err = p.minifier.Minify(transform.MediaCSS, css); err != nil {
			return "", apperrors.NewTransformError(TaskStyles, "minify failed", err).WithPath(m.Path)
		}
	}

	name := p.cfg.Styles.OutputName
	if !single {
		name = replaceExt(m.Rel, ".min.css")
	}

	if sourceMap != nil {
		sourceRoot, err := p.sourceRoot(path.Join(p.cfg.Styles.Dest, path.Dir(name)))
		if err != nil {
			return "", apperrors.NewIOError(TaskStyles, "resolve source root", err).WithPath(m.Path)
		}
		rebased, err := transform.RebaseSourceMap(sourceMap, path.Base(name), sourceRoot)
		if err != nil {
			return "", apperrors.NewTransformError(TaskStyles, "invalid source map", err).WithPath(m.Path)
		}
		if _, err := p.write(TaskStyles, p.cfg.Styles.Dest, name+".map", rebased); err != nil {
			return "", err
		}
		css = append(bytes.TrimRight(css, "\n\r\t "), fmt.Sprintf("\n/*# sourceMappingURL=%s.map */\n", path.Base(name))...)
	}

	return p.write(TaskStyles, p.cfg.Styles.Dest, name, css)
}

// sourceRoot is the slash path from <output>/<dir> back to the project
// root, the directory map sources are relative to.
func (p *Project) sourceRoot(dir string) (string, error) {
	rel, err := filepath.Rel(filepath.Join(p.output, filepath.FromSlash(dir)), p.root)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel) + "/", nil
}

// compileError locates a compiler failure using the diagnostics in its
// output. Errors inside an imported file point at that file.
func (p *Project) compileError(entry string, err error) *apperrors.TaskError {
	te := apperrors.NewTransformError(TaskStyles, "compile failed", err).WithPath(entry)
	if errors.Is(err, exec.ErrNotFound) {
		return te.WithHint("install less (npm install -g less) or point styles.compiler at your compiler")
	}

	d, ok := apperrors.FirstDiagnostic(err.Error())
	if !ok {
		return te
	}
	if d.File != "" {
		te.WithPath(p.relPath(d.File))
	}
	return te.WithLocation(d.Line, d.Column).WithHint(d.Hint)
}

// relPath turns a path reported by an external tool into a slash path
// relative to the project root when it lies inside it.
func (p *Project) relPath(name string) string {
	if !filepath.IsAbs(name) {
		return filepath.ToSlash(name)
	}
	rel, err := filepath.Rel(p.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(name)
	}
	return filepath.ToSlash(rel)
}

func (p *Project) html(ctx context.Context) error {
	return p.minifyEach(ctx, TaskHTML, p.sets.html, p.cfg.HTML.Dest, transform.MediaHTML)
}

func (p *Project) script(ctx context.Context) error {
	return p.minifyEach(ctx, TaskScript, p.sets.script, p.cfg.Script.Dest, transform.MediaJS)
}

func (p *Project) svg(ctx context.Context) error {
	return p.minifyEach(ctx, TaskSVG, p.sets.svg, p.cfg.SVG.Dest, transform.MediaSVG)
}

func (p *Project) minifyEach(ctx context.Context, task string, set glob.Set, dest, media string) error {
	return p.eachFile(ctx, task, set, func(m glob.Match, src []byte) error {
		out, err := p.minifier.Minify(media, src)
		if err != nil {
			return apperrors.NewTransformError(task, "minify failed", err).WithPath(m.Path)
		}
		_, err = p.write(task, dest, m.Rel, out)
		return err
	})
}

func (p *Project) optimizeImages(task string) pipeline.Action {
	return func(ctx context.Context) error {
		return p.eachFile(ctx, task, p.sets.images, func(m glob.Match, src []byte) error {
			out, err := p.images.Optimize(src, path.Ext(m.Path))
			if err != nil {
				return apperrors.NewTransformError(task, "optimize failed", err).WithPath(m.Path)
			}
			_, err = p.write(task, p.cfg.Images.Dest, m.Rel, out)
			return err
		})
	}
}

func (p *Project) createWebp(ctx context.Context) error {
	if !p.cfg.Images.WebP {
		p.logger.Debug(ctx, "WebP output disabled", "task", TaskCreateWebp)
		return nil
	}
	return p.eachFile(ctx, TaskCreateWebp, p.sets.images, func(m glob.Match, src []byte) error {
		out, err := p.images.WebP(src)
		if err != nil {
			return apperrors.NewTransformError(TaskCreateWebp, "webp encode failed", err).WithPath(m.Path)
		}
		_, err = p.write(TaskCreateWebp, p.cfg.Images.Dest, replaceExt(m.Rel, ".webp"), out)
		return err
	})
}

func (p *Project) sprite(ctx context.Context) error {
	var sources []transform.SpriteSource
	err := p.eachFile(ctx, TaskSprite, p.sets.sprite, func(m glob.Match, src []byte) error {
		out, err := p.minifier.Minify(transform.MediaSVG, src)
		if err != nil {
			return apperrors.NewTransformError(TaskSprite, "minify failed", err).WithPath(m.Path)
		}
		sources = append(sources, transform.SpriteSource{ID: transform.SpriteID(m.Path), Content: out})
		return nil
	})
	if err != nil || len(sources) == 0 {
		return err
	}

	sprite, err := p.sprites.Assemble(sources)
	if err != nil {
		return apperrors.NewTransformError(TaskSprite, "assemble failed", err).WithPath(p.sets.sprite.String())
	}
	_, err = p.write(TaskSprite, p.cfg.Sprite.Dest, p.cfg.Sprite.OutputName, sprite)
	return err
}
