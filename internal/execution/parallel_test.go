package execution

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllPreservesOrder(t *testing.T) {
	const n = 6
	tasks := make([]Task[int], n)
	for i := 0; i < n; i++ {
		tasks[i] = func(ctx context.Context) (int, error) {
			// later tasks finish first
			time.Sleep(time.Duration(n-i) * 10 * time.Millisecond)
			return i, nil
		}
	}

	outcomes := RunAll(context.Background(), tasks, ParallelConfig{})
	require.Len(t, outcomes, n)
	for i, out := range outcomes {
		require.NoError(t, out.Err)
		assert.Equal(t, i, out.Value)
	}
}

func TestRunAllFailureDoesNotCancelSiblings(t *testing.T) {
	var finished atomic.Int32
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) { return "", errors.New("boom") },
		func(ctx context.Context) (string, error) {
			select {
			case <-time.After(30 * time.Millisecond):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			finished.Add(1)
			return "slow", nil
		},
		func(ctx context.Context) (string, error) { panic("worker crashed") },
		func(ctx context.Context) (string, error) { finished.Add(1); return "fast", nil },
	}

	outcomes := RunAll(context.Background(), tasks, ParallelConfig{MaxConcurrency: 2})
	require.Len(t, outcomes, 4)
	assert.EqualError(t, outcomes[0].Err, "boom")
	assert.Equal(t, "slow", outcomes[1].Value)
	assert.ErrorContains(t, outcomes[2].Err, "panicked")
	assert.Equal(t, "fast", outcomes[3].Value)
	assert.Equal(t, int32(2), finished.Load())
}

func TestRunAllRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tasks := make([]Task[struct{}], 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		}
	}

	RunAll(context.Background(), tasks, ParallelConfig{MaxConcurrency: 3})
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestRunAllLaunchesConcurrently(t *testing.T) {
	const n = 4
	started := make(chan struct{}, n)
	release := make(chan struct{})
	tasks := make([]Task[int], n)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			started <- struct{}{}
			<-release
			return i, nil
		}
	}

	done := make(chan []Outcome[int])
	go func() { done <- RunAll(context.Background(), tasks, ParallelConfig{}) }()
	for i := 0; i < n; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d tasks started", i, n)
		}
	}
	close(release)
	outcomes := <-done
	for i, out := range outcomes {
		assert.Equal(t, i, out.Value, fmt.Sprintf("slot %d", i))
	}
}

func TestRunAllEmptyAndNil(t *testing.T) {
	assert.Empty(t, RunAll[int](context.Background(), nil, ParallelConfig{}))

	outcomes := RunAll(context.Background(), []Task[int]{nil}, ParallelConfig{})
	assert.Error(t, outcomes[0].Err)
}
