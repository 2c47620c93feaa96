// Package safety implements the safety-bounds predicate engine: a set
// of typed thresholds evaluated against a metric snapshot, producing
// severity-classified violations and a rollback recommendation.
package safety

import (
	"sync"

	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/metrics"
)

// Recognized bound keys with a fixed metric-derivation rule. Keys
// outside this set are still accepted by UpsertBound — they are
// evaluated against a same-named gauge as a generic fallback.
const (
	BoundCrashRate          = "crashRate"
	BoundCheckpointTime     = "checkpointTime"
	BoundResumeSuccessRate  = "resumeSuccessRate"
	BoundTokenCost          = "tokenCost"
	BoundRestartTime        = "restartTime"
)

const (
	metricCrashAccuracy   = "shim_crash_prediction_accuracy"
	metricCheckpointTime  = "shim_checkpoint_creation_time"
	metricResumeRate      = "shim_resume_success_rate"
	metricRestartTime     = "shim_supervisor_restart_time"
)

// BoundSpec defines the thresholds checked for one bound key. Exactly
// one of Max/Min is meaningful per recognized key; MaxIncrease applies
// only to tokenCost.
type BoundSpec struct {
	Max         *float64
	Min         *float64
	MaxIncrease *float64
	Critical    *float64
}

// Severity classifies a Violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Violation describes one bound breach.
type Violation struct {
	BoundType    string
	CurrentValue float64
	Threshold    float64
	Severity     Severity
	Message      string
	ExperimentID string
	DetectedAt   int64 // unix millis
}

// ValidationResult is the outcome of a validate/validateExperiment call.
type ValidationResult struct {
	Passed         bool
	Violations     []Violation
	ShouldRollback bool
	RollbackReason string
}

// Config configures an Evaluator.
type Config struct {
	// Bounds seeds the initial bound table. Copied on construction.
	Bounds map[string]BoundSpec
	// TokenCostBaseline is the external baseline cost tokenCost
	// compares the current value against.
	TokenCostBaseline float64
	// TokenCostMetric names the gauge holding the current token cost.
	// Defaults to "token_cost_current".
	TokenCostMetric string
	// Bus receives violation/critical_violation/rollback_recommended
	// events. May be nil.
	Bus *events.Bus
}

// Evaluator evaluates metric snapshots against a mutable bound table.
type Evaluator struct {
	mu                sync.RWMutex
	bounds            map[string]BoundSpec
	tokenCostBaseline float64
	tokenCostMetric   string
	bus               *events.Bus
}

// NewEvaluator constructs an Evaluator from cfg. A nil/empty Bounds map
// starts the evaluator with no bounds configured at all; every
// recognized key is inert until upserted via UpsertBound.
func NewEvaluator(cfg Config) *Evaluator {
	bounds := make(map[string]BoundSpec, len(cfg.Bounds))
	for k, v := range cfg.Bounds {
		bounds[k] = v
	}
	metric := cfg.TokenCostMetric
	if metric == "" {
		metric = "token_cost_current"
	}
	return &Evaluator{
		bounds:            bounds,
		tokenCostBaseline: cfg.TokenCostBaseline,
		tokenCostMetric:   metric,
		bus:               cfg.Bus,
	}
}

// UpsertBound adds or replaces the bound spec for key.
func (e *Evaluator) UpsertBound(key string, spec BoundSpec) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bounds[key] = spec
}

// RemoveBound deletes the bound spec for key, if present.
func (e *Evaluator) RemoveBound(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.bounds, key)
}

// Bound returns the current spec for key.
func (e *Evaluator) Bound(key string) (BoundSpec, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	spec, ok := e.bounds[key]
	return spec, ok
}

func (e *Evaluator) snapshotBounds() map[string]BoundSpec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]BoundSpec, len(e.bounds))
	for k, v := range e.bounds {
		out[k] = v
	}
	return out
}

// derive resolves the current value for a bound key from the metric
// snapshot, per the table in the safety-bounds specification. ok is
// false when the backing metric has not been observed.
func derive(key string, snap metrics.Snapshot, tokenCostBaseline float64, tokenCostMetric string) (value float64, ok bool) {
	switch key {
	case BoundCrashRate:
		acc, exists := snap.Gauge(metricCrashAccuracy)
		if !exists {
			return 0, false
		}
		return 1 - acc, true
	case BoundCheckpointTime:
		return snap.HistogramAverage(metricCheckpointTime)
	case BoundResumeSuccessRate:
		return snap.Gauge(metricResumeRate)
	case BoundRestartTime:
		return snap.HistogramAverage(metricRestartTime)
	case BoundTokenCost:
		current, exists := snap.Gauge(tokenCostMetric)
		if !exists || tokenCostBaseline == 0 {
			return 0, false
		}
		return (current - tokenCostBaseline) / tokenCostBaseline, true
	default:
		// Generic fallback for user-defined bound keys: look up a
		// gauge of the same name.
		return snap.Gauge(key)
	}
}
