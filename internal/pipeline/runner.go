package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/assetpipe/internal/logging"
)

// Status is the outcome of a single task execution.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Event describes one task transition reported to an Observer.
type Event struct {
	Task     string
	Status   Status
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Observer receives task lifecycle events. Implementations must be safe for
// concurrent use; tasks inside a Parallel report concurrently.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Runner executes runnables, logging every task start and finish.
type Runner struct {
	logger    logging.Logger
	observers []Observer
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(logger logging.Logger, observers ...Observer) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		logger:    logger.WithComponent("pipeline"),
		observers: observers,
	}
}

// Run executes r and returns its error. The error is returned unchanged so
// callers see exactly what the failing task reported.
func (rn *Runner) Run(ctx context.Context, r Runnable) error {
	rc := &runContext{runner: rn}

	start := time.Now()
	rn.logger.Debug(ctx, "Starting pipeline", "pipeline", r.Name())
	err := r.run(ctx, rc)
	if err != nil {
		rn.logger.Debug(ctx, "Pipeline failed", "pipeline", r.Name(), "duration", time.Since(start).String())
		return err
	}
	rn.logger.Debug(ctx, "Finished pipeline", "pipeline", r.Name(), "duration", time.Since(start).String())
	return nil
}

// runContext carries per-run state down the composition tree.
type runContext struct {
	runner *Runner
	mu     sync.Mutex
}

func (rc *runContext) execute(ctx context.Context, t *Task) error {
	op := logging.StartOperation(rc.runner.logger.With("task", t.name), t.name)
	start := op.Started()

	op.Info(ctx, "Starting task")
	rc.notify(Event{Task: t.name, Status: StatusRunning, Started: start})

	err := t.action(ctx)
	duration := op.End(ctx)

	if err != nil {
		op.Error(ctx, err, "Task failed", "duration", duration.String())
		rc.notify(Event{Task: t.name, Status: StatusFailed, Started: start, Duration: duration, Err: err})
		return err
	}

	op.Info(ctx, "Finished task", "duration", duration.String())
	rc.notify(Event{Task: t.name, Status: StatusSuccess, Started: start, Duration: duration})
	return nil
}

func (rc *runContext) notify(ev Event) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, o := range rc.runner.observers {
		o.Observe(ev)
	}
}
