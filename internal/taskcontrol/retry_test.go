package taskcontrol_test

import (
	"context"
	"sync"
	"testing"

	"buildctl/internal/buildlog"
	"buildctl/internal/counter"
	"buildctl/internal/models"
	"buildctl/internal/taskcontrol"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRetry_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addTask("B1", "T1", retryOptions(2), models.StatusRunning)
	c := f.controller(nil)

	expected := []struct {
		retry   bool
		counter int64
	}{{true, 1}, {true, 2}, {false, 2}}

	for i, e := range expected {
		retry, err := c.ShouldRetry(ctx, "B1", "T1")
		require.NoError(t, err)
		assert.Equal(t, e.retry, retry, "call %d", i+1)

		value, _, err := f.counter.Get(ctx, counter.Key("B1", "T1"))
		require.NoError(t, err)
		assert.Equal(t, e.counter, value, "counter after call %d", i+1)
	}

	lines := f.buildLog.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Task Build-T1 failed, retry attempt 1 starts in 5s", lines[0].Message)
	assert.Equal(t, "Task Build-T1 failed, retry attempt 2 starts in 5s", lines[1].Message)
	assert.Equal(t, "T1", lines[0].Tag)
	assert.Equal(t, "c-1", lines[0].JobID)
	assert.Equal(t, buildlog.LevelWarn, lines[0].Level)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RetryDecisions.WithLabelValues("retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetryDecisions.WithLabelValues("no_retry")))
}

func TestShouldRetry_Disabled(t *testing.T) {
	tests := []struct {
		name string
		opts *models.AdditionalOptions
	}{
		{name: "absent options", opts: nil},
		{name: "retry turned off", opts: &models.AdditionalOptions{RetryWhenFailed: false, RetryCount: 5}},
		{name: "no retries allowed", opts: &models.AdditionalOptions{RetryWhenFailed: true, RetryCount: 0}},
	}

	for _, tt := range tests {
		for _, attempts := range []int{0, 1, 3} {
			t.Run(tt.name, func(t *testing.T) {
				ctx := context.Background()
				f := newFixture()
				f.addTask("b-1", "t-1", tt.opts, models.StatusRunning)
				key := counter.Key("b-1", "t-1")
				for range attempts {
					_, err := f.counter.Increment(ctx, key)
					require.NoError(t, err)
				}

				retry, err := f.controller(nil).ShouldRetry(ctx, "b-1", "t-1")
				require.NoError(t, err)
				assert.False(t, retry)

				value, _, err := f.counter.Get(ctx, key)
				require.NoError(t, err)
				assert.EqualValues(t, attempts, value, "counter must not change")
				assert.Empty(t, f.buildLog.Lines())
			})
		}
	}
}

func TestShouldRetry_Limit(t *testing.T) {
	const maxRetries = 4
	for attempts := int64(0); attempts <= maxRetries+2; attempts++ {
		ctx := context.Background()
		f := newFixture()
		f.addTask("b-1", "t-1", retryOptions(maxRetries), models.StatusRunning)
		key := counter.Key("b-1", "t-1")
		for range attempts {
			_, err := f.counter.Increment(ctx, key)
			require.NoError(t, err)
		}

		retry, err := f.controller(nil).ShouldRetry(ctx, "b-1", "t-1")
		require.NoError(t, err)
		assert.Equal(t, attempts < maxRetries, retry, "attempts=%d", attempts)

		value, _, err := f.counter.Get(ctx, key)
		require.NoError(t, err)
		if retry {
			assert.Equal(t, attempts+1, value)
		} else {
			assert.Equal(t, attempts, value)
		}
	}
}

func TestShouldRetry_Concurrent(t *testing.T) {
	const k = 50
	ctx := context.Background()
	f := newFixture()
	f.addTask("b-1", "t-1", retryOptions(k), models.StatusRunning)
	c := f.controller(nil)

	// twice as many callers as allowed retries race on the same task
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 2 * k {
		wg.Add(1)
		go func() {
			defer wg.Done()
			retry, err := c.ShouldRetry(ctx, "b-1", "t-1")
			assert.NoError(t, err)
			if retry {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	value, _, err := f.counter.Get(ctx, counter.Key("b-1", "t-1"))
	require.NoError(t, err)
	assert.EqualValues(t, k, value)
	assert.Equal(t, k, granted)
}

func TestShouldRetry_ConcurrentExactlyK(t *testing.T) {
	const k = 16
	ctx := context.Background()
	f := newFixture()
	f.addTask("b-1", "t-1", retryOptions(k), models.StatusRunning)
	c := f.controller(nil)

	var wg sync.WaitGroup
	for range k {
		wg.Add(1)
		go func() {
			defer wg.Done()
			retry, err := c.ShouldRetry(ctx, "b-1", "t-1")
			assert.NoError(t, err)
			assert.True(t, retry)
		}()
	}
	wg.Wait()

	value, _, err := f.counter.Get(ctx, counter.Key("b-1", "t-1"))
	require.NoError(t, err)
	assert.EqualValues(t, k, value)
}

func TestClearRetryState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addTask("b-1", "t-1", retryOptions(1), models.StatusRunning)
	c := f.controller(nil)

	retry, err := c.ShouldRetry(ctx, "b-1", "t-1")
	require.NoError(t, err)
	assert.True(t, retry)

	retry, err = c.ShouldRetry(ctx, "b-1", "t-1")
	require.NoError(t, err)
	assert.False(t, retry)

	require.NoError(t, c.ClearRetryState(ctx, "b-1", "t-1"))
	require.NoError(t, c.ClearRetryState(ctx, "b-1", "t-1"), "clearing twice is a no-op")

	attempts, err := c.RetryState(ctx, "b-1", "t-1")
	require.NoError(t, err)
	assert.Zero(t, attempts)

	// behaves like a task that never failed
	retry, err = c.ShouldRetry(ctx, "b-1", "t-1")
	require.NoError(t, err)
	assert.True(t, retry)

	attempts, err = c.RetryState(ctx, "b-1", "t-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, attempts)
}

func TestShouldRetry_CounterUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("read failure fails open", func(t *testing.T) {
		f := newFixture()
		f.addTask("b-1", "t-1", retryOptions(2), models.StatusRunning)
		c := f.controller(&brokenCounter{Store: f.counter, failing: map[string]bool{"get": true}})

		retry, err := c.ShouldRetry(ctx, "b-1", "t-1")
		require.NoError(t, err)
		assert.True(t, retry)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterStoreErrors.WithLabelValues("get")))
	})

	t.Run("increment failure is surfaced", func(t *testing.T) {
		f := newFixture()
		f.addTask("b-1", "t-1", retryOptions(2), models.StatusRunning)
		c := f.controller(&brokenCounter{Store: f.counter, failing: map[string]bool{"get": true, "increment": true}})

		retry, err := c.ShouldRetry(ctx, "b-1", "t-1")
		assert.False(t, retry)
		assert.ErrorIs(t, err, taskcontrol.ErrCounterWrite)
		assert.ErrorIs(t, err, errCounterDown)
		assert.Empty(t, f.buildLog.Lines())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterStoreErrors.WithLabelValues("increment")))
	})

	t.Run("delete failure is returned", func(t *testing.T) {
		f := newFixture()
		c := f.controller(&brokenCounter{Store: f.counter, failing: map[string]bool{"delete": true}})

		assert.ErrorIs(t, c.ClearRetryState(ctx, "b-1", "t-1"), errCounterDown)
	})
}

func TestShouldRetry_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.controller(nil)

	_, err := c.ShouldRetry(ctx, "b-1", "missing")
	assert.ErrorIs(t, err, taskcontrol.ErrTaskNotFound)

	_, err = c.ShouldRetry(ctx, "", "t-1")
	assert.ErrorIs(t, err, taskcontrol.ErrInvalidArgument)

	_, err = c.ShouldRetry(ctx, "b-1", "")
	assert.ErrorIs(t, err, taskcontrol.ErrInvalidArgument)

	assert.ErrorIs(t, c.ClearRetryState(ctx, "", "t-1"), taskcontrol.ErrInvalidArgument)
}
