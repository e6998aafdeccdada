// Package pipeline composes named tasks into sequential and parallel
// pipelines and runs them.
//
// Compositions are declared once and never change:
//
//	build := pipeline.Sequence("build",
//		clean, copy,
//		pipeline.Parallel("assets", styles, html, script),
//	)
//
// Sequence stops at the first failing child. Parallel starts every child,
// waits for all of them and returns the combined error of those that failed;
// siblings of a failing child are never cancelled.
package pipeline

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Action is the body of a task.
type Action func(ctx context.Context) error

// Runnable is anything that can be executed as part of a pipeline.
// Both individual tasks and compositions implement it.
type Runnable interface {
	// Name identifies the runnable in logs and in the registry.
	Name() string

	// Tasks returns every task reachable from this runnable in declaration order.
	Tasks() []*Task

	run(ctx context.Context, rc *runContext) error
}

// Task is a single named unit of work.
type Task struct {
	name        string
	description string
	action      Action
}

// NewTask creates a task. A nil action is a no-op.
func NewTask(name, description string, action Action) *Task {
	if action == nil {
		action = func(context.Context) error { return nil }
	}
	return &Task{name: name, description: description, action: action}
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Description returns the human readable task description.
func (t *Task) Description() string { return t.description }

// Tasks returns the task itself.
func (t *Task) Tasks() []*Task { return []*Task{t} }

func (t *Task) run(ctx context.Context, rc *runContext) error {
	return rc.execute(ctx, t)
}

// sequence runs children one after another.
type sequence struct {
	name  string
	items []Runnable
}

// Sequence returns a composition that runs items in order, aborting at the
// first failure.
func Sequence(name string, items ...Runnable) Runnable {
	return &sequence{name: name, items: items}
}

func (s *sequence) Name() string { return s.name }

func (s *sequence) Tasks() []*Task { return collect(s.items) }

func (s *sequence) run(ctx context.Context, rc *runContext) error {
	for _, r := range s.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.run(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// parallel runs children concurrently.
type parallel struct {
	name  string
	items []Runnable
}

// Parallel returns a composition that runs items concurrently and completes
// when all of them have completed.
func Parallel(name string, items ...Runnable) Runnable {
	return &parallel{name: name, items: items}
}

func (p *parallel) Name() string { return p.name }

func (p *parallel) Tasks() []*Task { return collect(p.items) }

func (p *parallel) run(ctx context.Context, rc *runContext) error {
	switch len(p.items) {
	case 0:
		return nil
	case 1:
		return p.items[0].run(ctx, rc)
	}

	// No WithContext: a failing child must not cancel its siblings.
	g := pool.New().WithErrors()
	for _, r := range p.items {
		g.Go(func() error {
			return r.run(ctx, rc)
		})
	}
	return g.Wait()
}

func collect(items []Runnable) []*Task {
	var all []*Task
	for _, r := range items {
		all = append(all, r.Tasks()...)
	}
	return all
}
