// Package retry implements the failure-recovery state machine: a
// retry executor with configurable backoff strategies, jitter, error
// classification, and a circuit breaker gate. Grounded on the
// teacher's resilience package, simplified to the specification's
// consecutive-failure-threshold circuit (not a sliding error-rate
// window).
package retry

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/pkg/clock"
	"github.com/itsneelabh/kaizen/pkg/telemetry"
)

// Strategy selects the backoff delay calculation.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
)

// Classification is the outcome of classifying an error.
type Classification string

const (
	ClassificationTransient Classification = "transient"
	ClassificationPermanent Classification = "permanent"
)

var permanentKeywords = []string{
	"invalid credentials", "unauthorized", "forbidden", "not found", "bad request", "invalid",
}

// Classify inspects err's message (case-insensitive) for keywords that
// indicate the failure will never succeed on retry.
func Classify(err error) Classification {
	if err == nil {
		return ClassificationTransient
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range permanentKeywords {
		if strings.Contains(msg, kw) {
			return ClassificationPermanent
		}
	}
	return ClassificationTransient
}

// Config configures an Executor.
type Config struct {
	MaxRetries              int
	InitialDelay            time.Duration
	MaxDelay                time.Duration
	Strategy                Strategy
	Jitter                  bool
	CircuitBreakerThreshold int
	Clock                   clock.Clock
}

// DefaultConfig returns the specification's defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:              3,
		InitialDelay:            1000 * time.Millisecond,
		MaxDelay:                30000 * time.Millisecond,
		Strategy:                StrategyExponential,
		Jitter:                  false,
		CircuitBreakerThreshold: 5,
	}
}

// Attempt is one recorded execution attempt.
type Attempt struct {
	OperationID string
	AttemptNum  int
	Succeeded   bool
	Err         error
	At          time.Time
}

// Statistics are derived from the attempt history.
type Statistics struct {
	Total        int
	Successes    int
	Failures     int
	SuccessRate  float64
	TotalRetries int
}

// Executor runs operations with retry, backoff, and a consecutive-
// failure circuit breaker.
type Executor struct {
	cfg Config
	clk clock.Clock
	rng *rand.Rand

	mu                  sync.Mutex
	consecutiveFailures int
	circuitOpen         bool
	history             []Attempt
}

// NewExecutor constructs an Executor from cfg, filling in zero fields
// from DefaultConfig. MaxRetries is the exception: 0 means a single
// attempt with no retries, and only a negative value takes the default.
func NewExecutor(cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = def.CircuitBreakerThreshold
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Executor{
		cfg: cfg,
		clk: clk,
		rng: rand.New(rand.NewSource(1)),
	}
}

// CalculateDelay returns the backoff delay for attempt n (1-indexed),
// capped at MaxDelay, with jitter applied if configured.
func (e *Executor) CalculateDelay(n int) time.Duration {
	var delay time.Duration
	switch e.cfg.Strategy {
	case StrategyLinear:
		delay = e.cfg.InitialDelay * time.Duration(n)
	case StrategyFixed:
		delay = e.cfg.InitialDelay
	default: // exponential
		mult := 1 << uint(n-1)
		delay = e.cfg.InitialDelay * time.Duration(mult)
	}
	if delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	if e.cfg.Jitter {
		offset := (e.rng.Float64() - 0.5) * float64(delay)
		delay += time.Duration(offset)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// IsCircuitOpen reports whether the circuit is currently open.
func (e *Executor) IsCircuitOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.circuitOpen
}

// ExecuteWithRetry runs op, retrying on transient failures per cfg,
// until success, a permanent failure, the retry budget is exhausted,
// or the circuit is open.
func (e *Executor) ExecuteWithRetry(ctx context.Context, id string, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	e.mu.Lock()
	open := e.circuitOpen
	e.mu.Unlock()
	if open {
		return nil, kerrors.New("retry.ExecuteWithRetry", "retry", kerrors.ErrCircuitOpen).WithID(id)
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		telemetry.AddEvent(ctx, "retry.attempt", attribute.String("operation.id", id), attribute.Int("attempt", attempt+1))
		result, err := op(ctx)
		now := e.clk.Now()

		if err == nil {
			e.recordSuccess(id, attempt, now)
			return result, nil
		}

		lastErr = err
		class := Classify(err)
		e.recordFailure(id, attempt, err, now)

		if class == ClassificationPermanent || attempt == e.cfg.MaxRetries {
			telemetry.RecordError(ctx, lastErr)
			return nil, lastErr
		}

		delay := e.CalculateDelay(attempt + 1)
		timer := e.clk.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C():
		}
	}

	return nil, lastErr
}

func (e *Executor) recordSuccess(id string, attempt int, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFailures = 0
	e.circuitOpen = false
	e.history = append(e.history, Attempt{OperationID: id, AttemptNum: attempt + 1, Succeeded: true, At: at})
}

func (e *Executor) recordFailure(id string, attempt int, err error, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, Attempt{OperationID: id, AttemptNum: attempt + 1, Succeeded: false, Err: err, At: at})
	e.consecutiveFailures++
	if e.consecutiveFailures >= e.cfg.CircuitBreakerThreshold {
		e.circuitOpen = true
	}
}

// History returns every recorded attempt, in chronological order.
func (e *Executor) History() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Attempt, len(e.history))
	copy(out, e.history)
	return out
}

// Stats derives aggregate statistics from the attempt history.
func (e *Executor) Stats() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats Statistics
	opAttempts := make(map[string]int)
	for _, a := range e.history {
		stats.Total++
		if a.Succeeded {
			stats.Successes++
		} else {
			stats.Failures++
		}
		opAttempts[a.OperationID]++
	}
	for _, count := range opAttempts {
		stats.TotalRetries += count - 1
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.Total)
	}
	return stats
}

// ResetCircuit manually closes the circuit and clears the consecutive
// failure counter.
func (e *Executor) ResetCircuit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.circuitOpen = false
	e.consecutiveFailures = 0
}
