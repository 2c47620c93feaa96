package kaizen

import (
	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/experiment"
	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/opportunity"
)

// detectionCycle is the detection loop's body: emit detection_cycle,
// bail out when no metric has ever been observed, otherwise run the
// opportunity detector and turn surfaced opportunities into
// experiments.
func (e *Engine) detectionCycle() {
	e.mu.Lock()
	e.stats.LastDetectionCycle = e.clk.Now()
	e.mu.Unlock()
	e.publish(events.KindDetectionCycle, nil)

	if paused, stopped := e.isPausedOrStopped(); paused || stopped {
		return
	}

	snap := e.reg.Snapshot()
	if _, ok := snap.Gauge(hasNewMetricsSentinel); !ok {
		e.publish(events.KindDetectionSkipped, events.DetectionSkipped{Reason: "No new metrics available"})
		return
	}

	opps := e.detect.DetectOpportunities(snap)
	if len(opps) == 0 {
		return
	}

	e.mu.Lock()
	e.stats.OpportunitiesDetected += len(opps)
	e.mu.Unlock()
	e.publish(events.KindOpportunitiesDetected, events.OpportunitiesDetected{Opportunities: opps, Count: len(opps)})

	e.createExperimentsFromOpportunities(opps)
}

// createExperimentsFromOpportunities ranks opps and, while capacity
// remains in activeExperiments, validates each against the safety
// bounds and creates an experiment for every one that passes.
func (e *Engine) createExperimentsFromOpportunities(opps []opportunity.Opportunity) {
	e.mu.Lock()
	active := len(e.activeExperiments)
	max := e.cfg.MaxConcurrentExperiments
	e.mu.Unlock()

	if active >= max {
		e.publish(events.KindMaxExperimentsReached, events.MaxExperimentsReached{Active: active, Max: max})
		return
	}

	ranked := opportunity.Rank(opps)
	snap := e.reg.Snapshot()

	for _, opp := range ranked {
		e.mu.Lock()
		active = len(e.activeExperiments)
		e.mu.Unlock()
		if active >= max {
			e.publish(events.KindMaxExperimentsReached, events.MaxExperimentsReached{Active: active, Max: max})
			return
		}

		result := e.safe.Validate(snap)
		if !result.Passed {
			e.publish(events.KindExperimentRejected, events.ExperimentRejected{
				Experiment: string(opp.Type),
				Reason:     result.RollbackReason,
			})
			continue
		}

		scaffold := opportunity.ToScaffold(opp)
		exp, err := e.backend.CreateExperiment(experiment.Opportunity{
			Type:           string(opp.Type),
			CurrentValue:   scaffold.ControlValue,
			ProposedValue:  scaffold.TreatmentValue,
			Hypothesis:     scaffold.Hypothesis,
			SuccessMetrics: scaffold.SuccessMetrics,
		})
		if err != nil {
			e.recordError("detection", err)
			continue
		}

		e.mu.Lock()
		e.activeExperiments[exp.Name] = exp
		e.stats.ExperimentsCreated++
		e.mu.Unlock()
		e.publish(events.KindExperimentCreated, events.ExperimentCreated{Experiment: exp.Name})
	}
}

// safetyCycle is the safety loop's body: validate the current
// snapshot; on a critical or compounding violation, roll back every
// active experiment.
func (e *Engine) safetyCycle() {
	e.mu.Lock()
	e.stats.LastSafetyCheck = e.clk.Now()
	e.mu.Unlock()
	e.publish(events.KindSafetyCheck, nil)

	if paused, stopped := e.isPausedOrStopped(); paused || stopped {
		return
	}

	snap := e.reg.Snapshot()
	result := e.safe.Validate(snap)
	if !result.Passed {
		e.publish(events.KindSafetyViolation, events.SafetyViolation{Violations: result.Violations})
	}
	if !result.ShouldRollback {
		return
	}

	e.mu.Lock()
	names := sortedExperimentNames(e.activeExperiments)
	e.mu.Unlock()

	for _, name := range names {
		if err := e.backend.Rollback(name, result.RollbackReason); err != nil {
			e.recordError("safety", err)
			continue
		}
		e.mu.Lock()
		exp, ok := e.activeExperiments[name]
		if ok {
			delete(e.activeExperiments, name)
			e.rollbacked[name] = exp
			e.stats.ExperimentsRolledBack++
		}
		e.mu.Unlock()
		e.publish(events.KindAutoRollback, events.AutoRollback{Experiment: name, Reason: result.RollbackReason})
	}
}

// progressCycle is the progress loop's body: fetch results for every
// active experiment, gate a significant winner through the safety
// bounds, and deploy it on success.
func (e *Engine) progressCycle() {
	e.mu.Lock()
	e.stats.LastProgressCheck = e.clk.Now()
	names := sortedExperimentNames(e.activeExperiments)
	e.mu.Unlock()

	status := make(map[string]string, len(names))
	for _, n := range names {
		status[n] = "active"
	}
	e.publish(events.KindProgressCheck, nil)
	e.publish(events.KindProgressUpdate, events.ProgressUpdate{ExperimentStatus: status})

	if paused, stopped := e.isPausedOrStopped(); paused || stopped {
		return
	}

	for _, name := range names {
		e.progressStep(name)
	}
}

// Rollback manually rolls back a single active experiment, for
// operator-triggered intervention outside the safety loop's automatic
// path. Returns NotFound if name is not currently active.
func (e *Engine) Rollback(name, reason string) error {
	e.mu.Lock()
	exp, ok := e.activeExperiments[name]
	e.mu.Unlock()
	if !ok {
		return kerrors.New("kaizen.Rollback", "kaizen", kerrors.ErrNotFound).WithID(name)
	}

	if err := e.backend.Rollback(name, reason); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.activeExperiments, name)
	e.rollbacked[name] = exp
	e.stats.ExperimentsRolledBack++
	e.mu.Unlock()
	e.publish(events.KindAutoRollback, events.AutoRollback{Experiment: name, Reason: reason})
	return nil
}

func (e *Engine) progressStep(name string) {
	result, err := e.backend.GetExperimentResults(name)
	if err != nil {
		e.recordError("progress", err)
		return
	}

	if result.Control.SampleSize < e.cfg.MinSampleSize || result.Treatment.SampleSize < e.cfg.MinSampleSize {
		return
	}
	if !result.IsSignificant || result.Winner == "" || result.Winner == "none" {
		return
	}

	gate := e.safe.ValidateExperiment(name, e.reg.Snapshot())
	if !gate.Passed {
		e.publish(events.KindDeploymentRejected, events.ExperimentRejected{Experiment: name, Reason: gate.RollbackReason})
		return
	}

	outcome, err := e.backend.DeployWinner(name)
	if err != nil {
		e.recordError("progress", err)
		return
	}
	if !outcome.Deployed {
		e.publish(events.KindDeploymentRejected, events.ExperimentRejected{Experiment: name, Reason: outcome.Reason})
		return
	}

	e.mu.Lock()
	exp, ok := e.activeExperiments[name]
	if ok {
		delete(e.activeExperiments, name)
		e.completed[name] = exp
		e.stats.ExperimentsCompleted++
	}
	e.mu.Unlock()
	e.publish(events.KindAutoDeployed, events.AutoDeployed{Experiment: name, Variant: outcome.Variant, Deployed: true})
}
