package events

import "time"

// DetectionSkipped accompanies KindDetectionSkipped.
type DetectionSkipped struct {
	Reason string
}

// ExperimentRejected accompanies KindExperimentRejected and
// KindDeploymentRejected.
type ExperimentRejected struct {
	Experiment string
	Reason     string
}

// AutoRollback accompanies KindAutoRollback.
type AutoRollback struct {
	Experiment string
	Reason     string
}

// AutoDeployed accompanies KindAutoDeployed.
type AutoDeployed struct {
	Experiment string
	Variant    string
	Deployed   bool
}

// ErrorPayload accompanies KindError, which only the Kaizen engine
// publishes. Phase names one of "detection", "safety", "progress", or
// "cycle" (a panic recovered from a loop body).
type ErrorPayload struct {
	Phase string
	Err   error
	At    time.Time
}

// OpportunitiesDetected accompanies KindOpportunitiesDetected. Opportunities
// is left as interface{} so events stays independent of the opportunity
// package; listeners type-assert to []opportunity.Opportunity.
type OpportunitiesDetected struct {
	Opportunities interface{}
	Count         int
}

// ExperimentCreated accompanies KindExperimentCreated.
type ExperimentCreated struct {
	Experiment string
}

// MaxExperimentsReached accompanies KindMaxExperimentsReached.
type MaxExperimentsReached struct {
	Active int
	Max    int
}

// SafetyViolation accompanies KindSafetyViolation. Violations is left
// as interface{} to avoid an events -> safety import.
type SafetyViolation struct {
	Violations interface{}
}

// ProgressUpdate accompanies KindProgressUpdate.
type ProgressUpdate struct {
	ExperimentStatus map[string]string
}

// CycleExecuted accompanies KindCycleExecuted, published by the
// autonomous orchestrator after each completed execution cycle.
type CycleExecuted struct {
	GoalID          string
	CyclesCompleted int
}

// MaxCyclesReached accompanies KindMaxCyclesReached.
type MaxCyclesReached struct {
	GoalID string
	Cycles int
}

// GoalRegistered accompanies KindGoalRegistered.
type GoalRegistered struct {
	GoalID string
}
