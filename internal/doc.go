// Package internal contains the implementation packages of the assetpipe
// CLI.
//
// # Package Organization
//
//   - assets: the concrete tasks and the build and default pipelines
//   - config: configuration loading and validation
//   - errors: the task error taxonomy and compiler diagnostics
//   - glob: include/exclude source pattern sets
//   - logging: structured logging over log/slog
//   - pipeline: tasks, Sequence and Parallel composition, the runner
//   - server: the development server with live reload
//   - transform: style compilation, minification, images and sprites
//   - version: build information
//   - watcher: file system monitoring with debouncing and glob routing
//   - websocket: the live-reload broadcast hub
//
// # Data Flow
//
// The cmd package loads a config.Config, binds it to an assets.Project and
// hands one of its pipelines to a pipeline.Runner. Tasks read sources
// selected by glob sets, transform them through the interfaces in transform
// and write under the output directory. In the default pipeline the last two
// tasks start the server and the watcher; the watcher re-runs tasks through
// the same runner and the server tells browsers to reload.
package internal
