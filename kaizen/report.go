package kaizen

import "time"

// StatusReport is the engine's point-in-time counters and cycle
// timestamps, returned by GenerateStatusReport.
type StatusReport struct {
	State                  State
	Paused                 bool
	OpportunitiesDetected  int
	ExperimentsCreated     int
	ExperimentsCompleted   int
	ExperimentsRolledBack  int
	Errors                 int
	ActiveExperiments      int
	LastDetectionCycle     time.Time
	LastSafetyCheck        time.Time
	LastProgressCheck      time.Time
}

// GenerateStatusReport snapshots the engine's running counters.
func (e *Engine) GenerateStatusReport() StatusReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusReport{
		State:                 e.state,
		Paused:                e.paused,
		OpportunitiesDetected: e.stats.OpportunitiesDetected,
		ExperimentsCreated:    e.stats.ExperimentsCreated,
		ExperimentsCompleted:  e.stats.ExperimentsCompleted,
		ExperimentsRolledBack: e.stats.ExperimentsRolledBack,
		Errors:                e.stats.Errors,
		ActiveExperiments:     len(e.activeExperiments),
		LastDetectionCycle:    e.stats.LastDetectionCycle,
		LastSafetyCheck:       e.stats.LastSafetyCheck,
		LastProgressCheck:     e.stats.LastProgressCheck,
	}
}

// ImprovementReport summarizes completed experiments.
type ImprovementReport struct {
	CompletedExperiments []string
	TotalCompleted       int
	TotalRolledBack      int
	ROI                  ROI
}

// GenerateImprovementReport summarizes every completed experiment plus
// the current ROI estimate.
func (e *Engine) GenerateImprovementReport() ImprovementReport {
	e.mu.Lock()
	names := sortedExperimentNames(e.completed)
	rolledBack := e.stats.ExperimentsRolledBack
	e.mu.Unlock()

	return ImprovementReport{
		CompletedExperiments: names,
		TotalCompleted:       len(names),
		TotalRolledBack:      rolledBack,
		ROI:                  e.CalculateROI(),
	}
}

// ROI is the engine's return-on-investment estimate. Each field is a
// baseline-vs-current hook: with no baseline configured, the engine
// reports zero rather than inventing a comparison.
type ROI struct {
	CrashReduction  float64
	PerformanceGain float64
	TokenSavings    float64
}

// Baselines supplies the prior values CalculateROI compares the
// current snapshot against. A zero value for any field means "no
// baseline supplied" and that field's ROI component reports zero.
type Baselines struct {
	CrashRate       *float64
	RestartTime     *float64
	TokenCostBefore *float64
}

// SetBaselines records the baseline values used by CalculateROI.
func (e *Engine) SetBaselines(b Baselines) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baselines = b
}

// CalculateROI derives {crashReduction, performanceGain, tokenSavings}
// from the configured baselines and the current metric snapshot.
// Defaults to zero for any component whose baseline was never
// supplied.
func (e *Engine) CalculateROI() ROI {
	e.mu.Lock()
	b := e.baselines
	e.mu.Unlock()

	snap := e.reg.Snapshot()
	var roi ROI

	if b.CrashRate != nil {
		if acc, ok := snap.Gauge(hasNewMetricsSentinel); ok {
			current := 1 - acc
			roi.CrashReduction = *b.CrashRate - current
		}
	}
	if b.RestartTime != nil {
		if avg, ok := snap.HistogramAverage("shim_supervisor_restart_time"); ok {
			roi.PerformanceGain = *b.RestartTime - avg
		}
	}
	if b.TokenCostBefore != nil {
		if cur, ok := snap.Gauge("token_cost_current"); ok {
			roi.TokenSavings = *b.TokenCostBefore - cur
		}
	}

	return roi
}
