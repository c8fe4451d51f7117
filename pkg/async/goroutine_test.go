package async

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

	"github.com/promptvault/gateway/pkg/observability"
)

type failures struct {
	mu    sync.Mutex
	names []string
}

func (f *failures) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
}

func (f *failures) get() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

func TestTasks_Success(t *testing.T) {
	var f failures
	tasks := NewTasks(time.Second, f.record)

	var executed atomic.Bool
	tasks.Go(context.Background(), nil, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})
	tasks.Wait()

	assert.True(t, executed.Load())
	assert.Empty(t, f.get())
}

func TestTasks_ErrorIsLoggedAndReported(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	var f failures
	tasks := NewTasks(time.Second, f.record)

	tasks.Go(context.Background(), logger, "touch", func(ctx context.Context) error {
		return errors.New("write timeout")
	})
	tasks.Wait()

	assert.Equal(t, []string{"touch"}, f.get())
	assert.Contains(t, buf.String(), "background task failed")
	assert.Contains(t, buf.String(), "write timeout")
}

func TestTasks_PanicIsRecovered(t *testing.T) {
	var f failures
	tasks := NewTasks(time.Second, f.record)

	tasks.Go(context.Background(), nil, "exploding", func(ctx context.Context) error {
		panic("boom")
	})

	assert.NotPanics(t, tasks.Wait)
	assert.Equal(t, []string{"exploding"}, f.get())
}

func TestTasks_OutlivesParentCancellation(t *testing.T) {
	tasks := NewTasks(time.Second, nil)

	type key struct{}
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "kept"))

	started := make(chan struct{})
	var ctxErr error
	var value interface{}
	tasks.Go(parent, nil, "detached", func(ctx context.Context) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		ctxErr = ctx.Err()
		value = ctx.Value(key{})
		return nil
	})

	<-started
	cancel()
	tasks.Wait()

	assert.NoError(t, ctxErr)
	assert.Equal(t, "kept", value)
}

func TestTasks_Timeout(t *testing.T) {
	tasks := NewTasks(10*time.Millisecond, nil)

	var ctxErr error
	tasks.Go(context.Background(), nil, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		ctxErr = ctx.Err()
		return nil
	})
	tasks.Wait()

	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}

func TestTasks_WaitContext(t *testing.T) {
	tasks := NewTasks(time.Second, nil)
	release := make(chan struct{})
	tasks.Go(context.Background(), nil, "blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tasks.WaitContext(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NoError(t, tasks.WaitContext(context.Background()))
}

func TestNewTasks_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewTasks(0, nil).timeout)
}
