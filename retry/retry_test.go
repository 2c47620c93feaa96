package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/pkg/clock"
)

func TestClassifyPermanentKeywords(t *testing.T) {
	assert.Equal(t, ClassificationPermanent, Classify(errors.New("401 Unauthorized")))
	assert.Equal(t, ClassificationPermanent, Classify(errors.New("resource not found")))
	assert.Equal(t, ClassificationTransient, Classify(errors.New("connection reset by peer")))
	assert.Equal(t, ClassificationTransient, Classify(nil))
}

func TestCalculateDelayExponential(t *testing.T) {
	e := NewExecutor(Config{Strategy: StrategyExponential, InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second})
	assert.Equal(t, 100*time.Millisecond, e.CalculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, e.CalculateDelay(2))
	assert.Equal(t, 400*time.Millisecond, e.CalculateDelay(3))
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	e := NewExecutor(Config{Strategy: StrategyExponential, InitialDelay: 1 * time.Second, MaxDelay: 3 * time.Second})
	assert.Equal(t, 3*time.Second, e.CalculateDelay(10))
}

func TestCalculateDelayLinearAndFixed(t *testing.T) {
	linear := NewExecutor(Config{Strategy: StrategyLinear, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	assert.Equal(t, 300*time.Millisecond, linear.CalculateDelay(3))

	fixed := NewExecutor(Config{Strategy: StrategyFixed, InitialDelay: 250 * time.Millisecond, MaxDelay: time.Second})
	assert.Equal(t, 250*time.Millisecond, fixed.CalculateDelay(5))
}

func TestExecuteWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	e := NewExecutor(Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Strategy:     StrategyExponential,
		Clock:        clock.Real{},
	})

	attempts := 0
	result, err := e.ExecuteWithRetry(context.Background(), "op-1", func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 4 {
			return nil, errors.New("network timeout")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 4, attempts)

	stats := e.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.TotalRetries)
}

func TestExecuteWithRetryPermanentFailureStopsImmediately(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	e := NewExecutor(Config{MaxRetries: 3, InitialDelay: time.Millisecond, Clock: fc})

	attempts := 0
	_, err := e.ExecuteWithRetry(context.Background(), "op-2", func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errors.New("unauthorized access")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	e := NewExecutor(Config{
		MaxRetries:              0,
		InitialDelay:            time.Millisecond,
		CircuitBreakerThreshold: 2,
		Clock:                   fc,
	})

	_, _ = e.ExecuteWithRetry(context.Background(), "a", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("timeout")
	})
	assert.False(t, e.IsCircuitOpen())

	_, _ = e.ExecuteWithRetry(context.Background(), "b", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("timeout")
	})
	assert.True(t, e.IsCircuitOpen())

	_, err := e.ExecuteWithRetry(context.Background(), "c", func(ctx context.Context) (interface{}, error) {
		return "should not run", nil
	})
	assert.True(t, kerrors.IsCircuitOpen(err))
}

func TestStatsSuccessRate(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	e := NewExecutor(Config{MaxRetries: 0, Clock: fc})

	_, _ = e.ExecuteWithRetry(context.Background(), "x", func(ctx context.Context) (interface{}, error) { return "ok", nil })
	_, _ = e.ExecuteWithRetry(context.Background(), "y", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("timeout")
	})

	stats := e.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0.5, stats.SuccessRate)
}
