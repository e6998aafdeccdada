package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/logging"
)

// recorder collects task names in completion order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) task(name string, err error) *Task {
	return NewTask(name, "", func(ctx context.Context) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return err
	})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func TestSequenceRunsInOrder(t *testing.T) {
	rec := &recorder{}
	seq := Sequence("build", rec.task("clean", nil), rec.task("copy", nil), rec.task("images", nil))

	err := NewRunner(nil).Run(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "copy", "images"}, rec.names())
}

func TestSequenceAbortsOnFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	seq := Sequence("build", rec.task("clean", nil), rec.task("copy", boom), rec.task("images", nil))

	err := NewRunner(nil).Run(context.Background(), seq)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"clean", "copy"}, rec.names())
}

func TestSequenceStopsOnCancelledContext(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancelling := NewTask("cancel", "", func(context.Context) error {
		cancel()
		return nil
	})
	seq := Sequence("build", cancelling, rec.task("after", nil))

	err := NewRunner(nil).Run(ctx, seq)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.names())
}

func TestParallelRunsConcurrently(t *testing.T) {
	const n = 4
	var started sync.WaitGroup
	started.Add(n)

	items := make([]Runnable, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, NewTask("t", "", func(ctx context.Context) error {
			started.Done()
			// Every task waits until all have started; a serial executor would deadlock.
			done := make(chan struct{})
			go func() { started.Wait(); close(done) }()
			select {
			case <-done:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("tasks did not run concurrently")
			}
		}))
	}

	err := NewRunner(nil).Run(context.Background(), Parallel("assets", items...))
	require.NoError(t, err)
}

func TestParallelFailureDoesNotCancelSiblings(t *testing.T) {
	var finished atomic.Bool
	boom := errors.New("styles failed")

	failing := NewTask("styles", "", func(context.Context) error { return boom })
	slow := NewTask("createWebp", "", func(ctx context.Context) error {
		select {
		case <-time.After(50 * time.Millisecond):
			finished.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	err := NewRunner(nil).Run(context.Background(), Parallel("assets", failing, slow))
	require.ErrorIs(t, err, boom)
	assert.True(t, finished.Load(), "sibling should run to completion")
}

func TestParallelCombinesErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	rec := &recorder{}

	p := Parallel("assets", rec.task("a", errA), rec.task("ok", nil), rec.task("b", errB))
	err := NewRunner(nil).Run(context.Background(), p)

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.ElementsMatch(t, []string{"a", "ok", "b"}, rec.names())
}

func TestParallelFailureAbortsEnclosingSequence(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("compile error")

	build := Sequence("build",
		rec.task("clean", nil),
		Parallel("assets", rec.task("styles", boom), rec.task("html", nil)),
		rec.task("serve", nil),
	)

	err := NewRunner(nil).Run(context.Background(), build)
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, rec.names(), "serve")
	assert.Contains(t, rec.names(), "html")
}

func TestEmptyCompositions(t *testing.T) {
	rn := NewRunner(nil)
	assert.NoError(t, rn.Run(context.Background(), Sequence("empty")))
	assert.NoError(t, rn.Run(context.Background(), Parallel("empty")))
}

func TestTasksFlattensComposition(t *testing.T) {
	a := NewTask("a", "first", nil)
	b := NewTask("b", "", nil)
	c := NewTask("c", "", nil)

	r := Sequence("root", a, Parallel("p", b, Sequence("s", c)))
	tasks := r.Tasks()

	require.Len(t, tasks, 3)
	assert.Equal(t, "a", tasks[0].Name())
	assert.Equal(t, "first", tasks[0].Description())
	assert.Equal(t, "c", tasks[2].Name())
}

func TestRunnerNotifiesObservers(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	obs := ObserverFunc(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	boom := errors.New("boom")
	seq := Sequence("build", NewTask("ok", "", nil), NewTask("bad", "", func(context.Context) error { return boom }))
	_ = NewRunner(nil, obs).Run(context.Background(), seq)

	require.Len(t, events, 4)
	assert.Equal(t, Event{Task: "ok", Status: StatusRunning, Started: events[0].Started}, events[0])
	assert.Equal(t, StatusSuccess, events[1].Status)
	assert.Equal(t, "bad", events[3].Task)
	assert.Equal(t, StatusFailed, events[3].Status)
	assert.ErrorIs(t, events[3].Err, boom)
}

func TestRunnerLogsTaskTimings(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})

	var seen Event
	obs := ObserverFunc(func(ev Event) {
		if ev.Status == StatusSuccess {
			seen = ev
		}
	})

	task := NewTask("styles", "", func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, NewRunner(logger, obs).Run(context.Background(), task))

	out := buf.String()
	assert.Contains(t, out, "operation=styles")
	assert.Contains(t, out, "duration_ms=")
	assert.Contains(t, out, "msg=\"Finished task\"")
	assert.GreaterOrEqual(t, seen.Duration, 5*time.Millisecond)
	assert.False(t, seen.Started.IsZero())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	reg.MustRegister(rec.task("styles", nil), rec.task("html", nil))

	assert.Equal(t, []string{"styles", "html"}, reg.Names())
	assert.Error(t, reg.Register(rec.task("styles", nil)))

	r, err := reg.Lookup("html", "styles")
	require.NoError(t, err)
	require.NoError(t, NewRunner(nil).Run(context.Background(), r))
	assert.Equal(t, []string{"html", "styles"}, rec.names())

	_, err = reg.Lookup("missing")
	assert.Error(t, err)

	sorted := reg.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "html", sorted[0].Name())
}

func TestTrackerKeepsLatestEventPerTask(t *testing.T) {
	tracker := NewTracker()
	boom := errors.New("boom")

	seq := Sequence("build",
		NewTask("clean", "", nil),
		NewTask("styles", "", func(context.Context) error { return boom }),
	)
	err := NewRunner(nil, tracker).Run(context.Background(), seq)
	require.ErrorIs(t, err, boom)

	snap := tracker.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "clean", snap[0].Task)
	assert.Equal(t, StatusSuccess, snap[0].Status)
	assert.Equal(t, "styles", snap[1].Task)
	assert.Equal(t, StatusFailed, snap[1].Status)
	assert.ErrorIs(t, snap[1].Err, boom)
}
