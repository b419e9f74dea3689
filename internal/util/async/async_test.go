package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Success(t *testing.T) {
	var count atomic.Int32
	inc := func(context.Context) error {
		count.Add(1)
		return nil
	}

	tasks := []Task{{Name: "r1", Func: inc}, {Name: "r2", Func: inc}, {Name: "r3", Func: inc}}

	require.NoError(t, RunParallel(context.Background(), tasks, 0))
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	assert.NoError(t, RunParallel(context.Background(), nil, 1))
	assert.NoError(t, RunParallel(context.Background(), []Task{}, 1))
}

func TestRunParallel_ErrorsJoinedInTaskOrder(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	tasks := []Task{
		{Name: "fail1", Func: func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return err1
		}},
		{Name: "ok", Func: func(context.Context) error { return nil }},
		{Name: "fail2", Func: func(context.Context) error { return err2 }},
	}

	err := RunParallel(context.Background(), tasks, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, err1)
	assert.ErrorIs(t, err, err2)
	assert.Equal(t, "fail1: error 1\nfail2: error 2", err.Error())
}

func TestRunParallel_FailureDoesNotCancelOthers(t *testing.T) {
	var completed atomic.Int32
	tasks := []Task{
		{Name: "fail", Func: func(context.Context) error { return errors.New("boom") }},
		{Name: "slow", Func: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
			completed.Add(1)
			return nil
		}},
	}

	err := RunParallel(context.Background(), tasks, 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), completed.Load())
}

func TestRunParallel_RespectsLimit(t *testing.T) {
	const limit = 2
	var running, peak atomic.Int32

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Name: "t", Func: func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}}
	}

	require.NoError(t, RunParallel(context.Background(), tasks, limit))
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Equal(t, int32(0), running.Load())
}

func TestRunParallel_SequentialStartsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	tasks := []Task{{Name: "a", Func: record("a")}, {Name: "b", Func: record("b")}, {Name: "c", Func: record("c")}}

	require.NoError(t, RunParallel(context.Background(), tasks, 1))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRunParallel_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	err := RunParallel(ctx, []Task{{Name: "ctx", Func: func(ctx context.Context) error {
		if ctx.Value(key{}) != "v" {
			return errors.New("context not propagated")
		}
		return nil
	}}}, 1)
	assert.NoError(t, err)
}
