package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/promptvault/gateway/pkg/observability"
)

// DefaultTimeout bounds a background task when Tasks is built without one
const DefaultTimeout = 5 * time.Second

// Tasks runs fire-and-forget work that must outlive the request that
// scheduled it, with panic recovery and a per-task timeout.
//
// Example:
//
//	tasks := async.NewTasks(5*time.Second, nil)
//	tasks.Go(r.Context(), logger, "last-used update", func(ctx context.Context) error {
//	    return store.TouchLastUsed(ctx, keyID, now)
//	})
//	...
//	_ = tasks.WaitContext(shutdownCtx)
type Tasks struct {
	timeout   time.Duration
	onFailure func(taskName string)

	wg sync.WaitGroup
}

// NewTasks creates a task runner. onFailure, if not nil, is called once for
// every task that returns an error or panics.
func NewTasks(timeout time.Duration, onFailure func(taskName string)) *Tasks {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tasks{timeout: timeout, onFailure: onFailure}
}

// Go runs fn in a goroutine. The context passed to fn keeps the values of
// parent but not its cancellation, and expires after the task timeout.
// Errors and panics are logged to logger and never reach the caller.
func (t *Tasks) Go(parent context.Context, logger *observability.Logger, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer observability.RecoverPanicWithCallback(logger, taskName, func() { t.fail(taskName) })

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), t.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
			t.fail(taskName)
		}
	}()
}

func (t *Tasks) fail(taskName string) {
	if t.onFailure != nil {
		t.onFailure(taskName)
	}
}

// Wait blocks until every scheduled task has returned
func (t *Tasks) Wait() {
	t.wg.Wait()
}

// WaitContext is like Wait but gives up when ctx is done. Tasks still
// running at that point keep running.
func (t *Tasks) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
