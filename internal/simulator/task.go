package simulator

import (
	"context"
	"sync"
)

// Task is the handle of a run started in the background. Cancel asks the run
// to stop after its current step; Wait joins it.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Go starts run in a new goroutine with a cancellable child of ctx.
func Go(ctx context.Context, run func(ctx context.Context) error) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		err := run(taskCtx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()
	return t
}

// RunAsync starts Run in the background.
func (s *LocalSimulator) RunAsync(ctx context.Context, start, end, step float64, topLevel bool) *Task {
	return Go(ctx, func(ctx context.Context) error {
		return s.Run(ctx, start, end, step, topLevel)
	})
}

func (t *Task) Cancel() { t.cancel() }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the run ends and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}

// Err returns the run's error, or nil while it is still running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
