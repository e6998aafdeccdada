// Package assets declares the concrete asset tasks and the pipelines built
// from them.
//
//	build   = clean, copy, optimizeimages, (styles | html | script | svg | sprite | createWebp)
//	default = clean, copy, copyimages, (styles | html | script | svg | sprite | createWebp), startServer, startWatcher
//
// Every task reads files selected by a glob set relative to the project
// root and writes under the output directory. Transformations are delegated
// to the collaborators in internal/transform, which tests replace with fakes.
package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/assetpipe/internal/config"
	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/glob"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/transform"
)

// Task names.
const (
	TaskClean          = "clean"
	TaskCopy           = "copy"
	TaskStyles         = "styles"
	TaskHTML           = "html"
	TaskScript         = "script"
	TaskOptimizeImages = "optimizeimages"
	TaskCopyImages     = "copyimages"
	TaskCreateWebp     = "createWebp"
	TaskSVG            = "svg"
	TaskSprite         = "sprite"
	TaskStartServer    = "startServer"
	TaskStartWatcher   = "startWatcher"

	PipelineBuild   = "build"
	PipelineDefault = "default"
)

// Notifier receives output changes that connected browsers should see.
type Notifier interface {
	Reload() error
	StreamCSS(paths ...string) error
}

type nopNotifier struct{}

func (nopNotifier) Reload() error { return nil }
func (nopNotifier) StreamCSS(...string) error { return nil }

// NopNotifier discards every notification.
var NopNotifier Notifier = nopNotifier{}

// Project binds a configuration to the tasks and pipelines it drives.
type Project struct {
	cfg    *config.Config
	root   string
	output string
	logger logging.Logger

	sets sets

	compiler    transform.StyleCompiler
	postprocess transform.Filter
	minifier    transform.Minifier
	images      transform.ImageEncoder
	sprites     transform.SpriteAssembler
	notifier    Notifier

	tracker *pipeline.Tracker
	dev     *Dev
	tasks   map[string]*pipeline.Task
}

// sets holds the compiled glob sets of every task and watch rule. Watch
// sets are optional; an empty pattern list disables the rule.
type sets struct {
	styles, html, script, images, svg, sprite, copy glob.Set

	watchStyles, watchHTML, watchScript *glob.Set
}

// Option customises a Project.
type Option func(*Project)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Project) { p.logger = l }
}

// WithStyleCompiler replaces the external LESS compiler.
func WithStyleCompiler(c transform.StyleCompiler) Option {
	return func(p *Project) { p.compiler = c }
}

// WithPostprocess replaces the CSS postprocess filter.
func WithPostprocess(f transform.Filter) Option {
	return func(p *Project) { p.postprocess = f }
}

// WithMinifier replaces the minifier.
func WithMinifier(m transform.Minifier) Option {
	return func(p *Project) { p.minifier = m }
}

// WithImageEncoder replaces the raster image encoder.
func WithImageEncoder(e transform.ImageEncoder) Option {
	return func(p *Project) { p.images = e }
}

// WithSpriteAssembler replaces the sprite assembler.
func WithSpriteAssembler(a transform.SpriteAssembler) Option {
	return func(p *Project) { p.sprites = a }
}

// WithNotifier routes style and reload notifications to n instead of the
// development server.
func WithNotifier(n Notifier) Option {
	return func(p *Project) { p.notifier = n }
}

// New creates a project from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Project, error) {
	root, err := filepath.Abs(cfg.Paths.Root)
	if err != nil {
		return nil, apperrors.NewConfigError("resolve project root", err)
	}

	p := &Project{
		cfg:     cfg,
		root:    root,
		output:  filepath.Join(root, filepath.FromSlash(cfg.Paths.Output)),
		tracker: pipeline.NewTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	if p.sets, err = compileSets(cfg); err != nil {
		return nil, err
	}
	if err := p.defaultCollaborators(); err != nil {
		return nil, err
	}

	p.dev = &Dev{p: p}
	if p.notifier == nil {
		p.notifier = p.dev
	}

	p.tasks = p.declareTasks()
	return p, nil
}

func (p *Project) defaultCollaborators() error {
	if p.compiler == nil {
		c, err := transform.NewCommandCompiler(p.cfg.Styles.Compiler, p.root, p.cfg.Styles.SourceMaps)
		if err != nil {
			return apperrors.NewConfigError("styles.compiler", err)
		}
		p.compiler = c
	}
	if p.postprocess == nil {
		f, err := transform.NewCommandFilter(p.cfg.Styles.Postprocess, p.root)
		if err != nil {
			return apperrors.NewConfigError("styles.postprocess", err)
		}
		p.postprocess = f
	}
	if p.minifier == nil {
		p.minifier = transform.NewMinifier(transform.MinifyOptions{
			CollapseWhitespace: p.cfg.HTML.CollapseWhitespace,
		})
	}
	if p.images == nil {
		p.images = transform.NewImageEncoder(transform.ImageOptions{JPEGQuality: p.cfg.Images.JPEGQuality})
	}
	if p.sprites == nil {
		p.sprites = transform.NewSpriteAssembler()
	}
	return nil
}

func compileSets(cfg *config.Config) (sets, error) {
	var s sets
	required := []struct {
		field    string
		patterns []string
		dst      *glob.Set
	}{
		{"styles.src", cfg.Styles.Src, &s.styles},
		{"html.src", cfg.HTML.Src, &s.html},
		{"script.src", cfg.Script.Src, &s.script},
		{"images.src", cfg.Images.Src, &s.images},
		{"svg.src", cfg.SVG.Src, &s.svg},
		{"sprite.src", cfg.Sprite.Src, &s.sprite},
		{"copy.src", cfg.Copy.Src, &s.copy},
	}
	for _, r := range required {
		set, err := glob.New(r.patterns...)
		if err != nil {
			return sets{}, apperrors.NewConfigError(r.field, err)
		}
		*r.dst = set
	}

	optional := []struct {
		field    string
		patterns []string
		dst      **glob.Set
	}{
		{"watch.styles", cfg.Watch.Styles, &s.watchStyles},
		{"watch.html", cfg.Watch.HTML, &s.watchHTML},
		{"watch.script", cfg.Watch.Script, &s.watchScript},
	}
	for _, o := range optional {
		if len(o.patterns) == 0 {
			continue
		}
		set, err := glob.New(o.patterns...)
		if err != nil {
			return sets{}, apperrors.NewConfigError(o.field, err)
		}
		*o.dst = &set
	}
	return s, nil
}

// Root returns the absolute project root.
func (p *Project) Root() string { return p.root }

// Output returns the absolute output directory.
func (p *Project) Output() string { return p.output }

// Dev returns the development server and watcher lifecycle.
func (p *Project) Dev() *Dev { return p.dev }

// Tracker returns the observer holding the last run of every task.
func (p *Project) Tracker() *pipeline.Tracker { return p.tracker }

// Runner returns a runner that reports to the project's tracker and to
// observers.
func (p *Project) Runner(observers ...pipeline.Observer) *pipeline.Runner {
	return pipeline.NewRunner(p.logger, append([]pipeline.Observer{p.tracker}, observers...)...)
}

// Check verifies the static invariants that depend on the source tree: the
// svg and sprite sets must never select the same file.
func (p *Project) Check() error {
	ok, err := glob.Disjoint(os.DirFS(p.root), p.sets.svg, p.sets.sprite)
	if err != nil {
		return apperrors.NewConfigError("expand svg.src", err)
	}
	if !ok {
		return apperrors.NewConfigError(
			fmt.Sprintf("svg.src (%s) and sprite.src (%s) select the same files", p.sets.svg, p.sets.sprite), nil)
	}
	return nil
}

// Task returns a declared task by name.
func (p *Project) Task(name string) (*pipeline.Task, bool) {
	t, ok := p.tasks[name]
	return t, ok
}

func (p *Project) assets() pipeline.Runnable {
	return pipeline.Parallel("assets",
		p.tasks[TaskStyles],
		p.tasks[TaskHTML],
		p.tasks[TaskScript],
		p.tasks[TaskSVG],
		p.tasks[TaskSprite],
		p.tasks[TaskCreateWebp],
	)
}

// Build returns the production pipeline.
func (p *Project) Build() pipeline.Runnable {
	return pipeline.Sequence(PipelineBuild,
		p.tasks[TaskClean],
		p.tasks[TaskCopy],
		p.tasks[TaskOptimizeImages],
		p.assets(),
	)
}

// Default returns the development pipeline. It leaves the server and
// watcher running; see Dev.Wait.
func (p *Project) Default() pipeline.Runnable {
	return pipeline.Sequence(PipelineDefault,
		p.tasks[TaskClean],
		p.tasks[TaskCopy],
		p.tasks[TaskCopyImages],
		p.assets(),
		pipeline.Sequence("serve",
			p.tasks[TaskStartServer],
			p.tasks[TaskStartWatcher],
		),
	)
}

// Registry returns every task and both pipelines under their names.
func (p *Project) Registry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	for _, name := range []string{
		TaskClean, TaskCopy, TaskStyles, TaskHTML, TaskScript,
		TaskOptimizeImages, TaskCopyImages, TaskCreateWebp, TaskSVG, TaskSprite,
		TaskStartServer, TaskStartWatcher,
	} {
		reg.MustRegister(p.tasks[name])
	}
	reg.MustRegister(p.Build(), p.Default())
	return reg
}
