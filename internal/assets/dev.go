package assets

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"

	apperrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/server"
	"github.com/conneroisu/assetpipe/internal/watcher"
)

// shutdownTimeout bounds Dev.Wait's cleanup after its context is done.
const shutdownTimeout = 5 * time.Second

// Dev owns the long-running half of the default pipeline: the development
// server and the source watcher. Both keep running after the pipeline
// returns, until Close.
type Dev struct {
	p *Project

	mu      sync.Mutex
	server  *server.DevServer
	watcher *watcher.FileWatcher
}

// Server returns the running development server, or nil.
func (d *Dev) Server() *server.DevServer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server
}

// Active reports whether the server or the watcher is running.
func (d *Dev) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server != nil || d.watcher != nil
}

// Reload implements Notifier. It is a no-op until the server is running.
func (d *Dev) Reload() error {
	if srv := d.Server(); srv != nil {
		return srv.Reload()
	}
	return nil
}

// StreamCSS implements Notifier. It is a no-op until the server is running.
func (d *Dev) StreamCSS(paths ...string) error {
	if srv := d.Server(); srv != nil {
		return srv.StreamCSS(paths...)
	}
	return nil
}

func (d *Dev) startServer(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server != nil {
		return apperrors.NewNetworkError(TaskStartServer, "server already running", nil)
	}

	srv := server.New(d.p.cfg.Server, d.p.output, d.p.logger, server.WithStatusSource(d.p.tracker))
	if err := srv.Start(ctx); err != nil {
		return err
	}
	d.server = srv
	return nil
}

func (d *Dev) startWatcher(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil {
		return apperrors.NewIOError(TaskStartWatcher, "watcher already running", nil)
	}

	router, err := watcher.NewRouter(d.p.root, d.p.logger, d.rules()...)
	if err != nil {
		return apperrors.NewIOError(TaskStartWatcher, "create router", err)
	}

	fw, err := watcher.NewFileWatcher(d.p.cfg.Watch.Debounce, d.p.logger)
	if err != nil {
		return apperrors.NewIOError(TaskStartWatcher, "create watcher", err)
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddHandler(router.Handle)

	for _, dir := range router.Dirs() {
		if err := fw.AddRecursive(dir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				d.p.logger.Warn(ctx, err, "Watch directory does not exist", "path", dir)
				continue
			}
			_ = fw.Stop()
			return apperrors.NewIOError(TaskStartWatcher, "watch failed", err).WithPath(dir)
		}
	}

	// The watcher outlives the pipeline run that started it.
	if err := fw.Start(context.WithoutCancel(ctx)); err != nil {
		_ = fw.Stop()
		return apperrors.NewIOError(TaskStartWatcher, "start watcher", err)
	}
	d.watcher = fw
	d.p.logger.Info(ctx, "Watching for changes", "roots", router.Dirs(), "dirs", len(fw.WatchList()))
	return nil
}

// rules maps the watch globs onto tasks: styles stream CSS on their own,
// html and script trigger a full reload.
func (d *Dev) rules() []watcher.Rule {
	var rules []watcher.Rule
	s := d.p.sets

	if s.watchStyles != nil {
		rules = append(rules, watcher.Rule{
			Name:    TaskStyles,
			Pattern: *s.watchStyles,
			Action:  d.runThenReload(TaskStyles, false),
		})
	}
	if s.watchHTML != nil {
		var action func(context.Context, []string) error
		if d.p.cfg.Watch.RebuildHTML {
			action = d.runThenReload(TaskHTML, true)
		} else {
			action = func(context.Context, []string) error { return d.p.notifier.Reload() }
		}
		rules = append(rules, watcher.Rule{Name: TaskHTML, Pattern: *s.watchHTML, Action: action})
	}
	if s.watchScript != nil {
		rules = append(rules, watcher.Rule{
			Name:    TaskScript,
			Pattern: *s.watchScript,
			Action:  d.runThenReload(TaskScript, true),
		})
	}
	return rules
}

func (d *Dev) runThenReload(task string, reload bool) func(context.Context, []string) error {
	return func(ctx context.Context, _ []string) error {
		if err := d.p.Runner().Run(ctx, d.p.tasks[task]); err != nil {
			return err
		}
		if reload {
			return d.p.notifier.Reload()
		}
		return nil
	}
}

// Wait blocks until ctx is done, then stops the watcher and the server.
func (d *Dev) Wait(ctx context.Context) error {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Close(shutdownCtx)
}

// Close stops the watcher and the server. It is safe to call when neither
// was started.
func (d *Dev) Close(ctx context.Context) error {
	d.mu.Lock()
	fw, srv := d.watcher, d.server
	d.watcher, d.server = nil, nil
	d.mu.Unlock()

	var err error
	if fw != nil {
		err = multierr.Append(err, fw.Stop())
	}
	if srv != nil {
		err = multierr.Append(err, srv.Shutdown(ctx))
	}
	return err
}
