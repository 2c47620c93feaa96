package safety

import (
	"fmt"
	"sort"

	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/metrics"
)

// Validate evaluates every configured bound against snap and returns
// the aggregate result. One violation/critical_violation event is
// published per violation; rollback_recommended is published once if
// the rollback rule fires.
func (e *Evaluator) Validate(snap metrics.Snapshot) ValidationResult {
	return e.validate(snap, "")
}

// ValidateExperiment is Validate, with every violation annotated with
// experimentID.
func (e *Evaluator) ValidateExperiment(experimentID string, snap metrics.Snapshot) ValidationResult {
	return e.validate(snap, experimentID)
}

func (e *Evaluator) validate(snap metrics.Snapshot, experimentID string) ValidationResult {
	bounds := e.snapshotBounds()

	keys := make([]string, 0, len(bounds))
	for k := range bounds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := nowMillis()
	violations := make([]Violation, 0)

	for _, key := range keys {
		spec := bounds[key]
		value, ok := derive(key, snap, e.tokenCostBaseline, e.tokenCostMetric)
		if !ok {
			continue
		}

		v, violated := checkBound(key, value, spec)
		if !violated {
			continue
		}
		v.ExperimentID = experimentID
		v.DetectedAt = now
		violations = append(violations, v)
	}

	result := ValidationResult{
		Passed:     len(violations) == 0,
		Violations: violations,
	}

	criticalCount := 0
	contributing := make([]string, 0)
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			criticalCount++
		}
		contributing = append(contributing, v.BoundType)
	}
	result.ShouldRollback = criticalCount >= 1 || len(violations) >= 2
	if result.ShouldRollback {
		result.RollbackReason = fmt.Sprintf("bounds violated: %v", contributing)
	}

	if e.bus != nil {
		for _, v := range violations {
			e.bus.Publish(events.Event{Kind: events.KindViolation, Payload: v})
			if v.Severity == SeverityCritical {
				e.bus.Publish(events.Event{Kind: events.KindCriticalViolation, Payload: v})
			}
		}
		if result.ShouldRollback {
			e.bus.Publish(events.Event{Kind: events.KindRollbackRecommended, Payload: result})
		}
	}

	return result
}

// checkBound tests value against spec for boundType, returning the
// Violation (with Message/Severity set) when violated.
func checkBound(boundType string, value float64, spec BoundSpec) (Violation, bool) {
	switch {
	case spec.Max != nil:
		if value <= *spec.Max {
			return Violation{}, false
		}
		sev := SeverityWarning
		if spec.Critical != nil && value > *spec.Critical {
			sev = SeverityCritical
		}
		return Violation{
			BoundType:    boundType,
			CurrentValue: value,
			Threshold:    *spec.Max,
			Severity:     sev,
			Message:      fmt.Sprintf("%s exceeded maximum: %.4f > %.4f", boundType, value, *spec.Max),
		}, true

	case spec.Min != nil:
		if value >= *spec.Min {
			return Violation{}, false
		}
		sev := SeverityWarning
		if spec.Critical != nil && value < *spec.Critical {
			sev = SeverityCritical
		}
		return Violation{
			BoundType:    boundType,
			CurrentValue: value,
			Threshold:    *spec.Min,
			Severity:     sev,
			Message:      fmt.Sprintf("%s fell below minimum: %.4f < %.4f", boundType, value, *spec.Min),
		}, true

	case spec.MaxIncrease != nil:
		if value <= *spec.MaxIncrease {
			// Cost decreases (value < 0) never violate either.
			return Violation{}, false
		}
		critical := *spec.MaxIncrease * 1.5
		sev := SeverityWarning
		if value > critical {
			sev = SeverityCritical
		}
		return Violation{
			BoundType:    boundType,
			CurrentValue: value,
			Threshold:    *spec.MaxIncrease,
			Severity:     sev,
			Message:      fmt.Sprintf("%s increased beyond allowance: %.4f > %.4f", boundType, value, *spec.MaxIncrease),
		}, true
	}

	return Violation{}, false
}
