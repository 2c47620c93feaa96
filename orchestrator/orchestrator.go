// Package orchestrator implements the autonomous orchestrator: a
// periodic execution cycle over a single decomposed goal, driving each
// subgoal through the failure-recovery executor and consulting the
// decision engine whenever a subgoal's execution ends in an error.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/itsneelabh/kaizen/decision"
	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/goal"
	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/pkg/clock"
	"github.com/itsneelabh/kaizen/pkg/logger"
	"github.com/itsneelabh/kaizen/progress"
	"github.com/itsneelabh/kaizen/retry"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// SubGoalExecutor performs the work one subgoal represents. Returning
// an error marks the subgoal blocked for that cycle; a nil error marks
// it complete. The orchestrator retries a failing execution through
// the failure-recovery executor before giving up for the cycle.
type SubGoalExecutor func(ctx context.Context, sg goal.SubGoal) error

// Config configures an Orchestrator.
type Config struct {
	ExecutionInterval time.Duration // default 100ms
	Clock             clock.Clock
	Logger            logger.Logger
	Executor          SubGoalExecutor // required
	Retry             *retry.Executor // defaults to retry.NewExecutor(retry.DefaultConfig())
	Decision          *decision.Engine
}

// StartOptions bounds a run.
type StartOptions struct {
	MaxCycles int // 0 means unbounded
}

// Status is the orchestrator's externally-visible state.
type Status struct {
	State           State
	CurrentGoalID   string
	CyclesCompleted int
	StartedAt       time.Time
	UptimeMs        int64
	LastCycleAt     time.Time
}

// Orchestrator drives one goal's decomposition through periodic
// execution cycles. The zero value is not usable; construct with New.
type Orchestrator struct {
	cfg      Config
	clk      clock.Clock
	log      logger.Logger
	bus      *events.Bus
	tracker  *progress.Tracker
	executor SubGoalExecutor
	retryx   *retry.Executor
	dec      *decision.Engine

	mu              sync.Mutex
	state           State
	currentGoal     *goal.Goal
	decomposition   goal.Decomposition
	order           []string
	maxCycles       int
	cyclesCompleted int
	startedAt       time.Time
	lastCycleAt     time.Time

	timer  clock.Timer
	stopCh chan struct{}
}

// New constructs an Orchestrator. Fails with InvalidConfig if
// cfg.Executor is nil.
func New(cfg Config, bus *events.Bus, tracker *progress.Tracker) (*Orchestrator, error) {
	if cfg.Executor == nil {
		return nil, kerrors.New("orchestrator.New", "orchestrator", kerrors.ErrInvalidConfig)
	}
	if cfg.ExecutionInterval == 0 {
		cfg.ExecutionInterval = 100 * time.Millisecond
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger.NewDefaultLogger()
	}
	rx := cfg.Retry
	if rx == nil {
		rx = retry.NewExecutor(retry.DefaultConfig())
	}

	return &Orchestrator{
		cfg:      cfg,
		clk:      clk,
		log:      lg.WithField("component", "orchestrator"),
		bus:      bus,
		tracker:  tracker,
		executor: cfg.Executor,
		retryx:   rx,
		dec:      cfg.Decision,
		state:    StateStopped,
	}, nil
}

// Start decomposes g, registers it with the progress tracker, and
// schedules the first cycle. Rejects a call while already running.
func (o *Orchestrator) Start(g goal.Goal, opts StartOptions) error {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return kerrors.New("orchestrator.Start", "orchestrator", kerrors.ErrAlreadyStarted)
	}
	o.mu.Unlock()

	d, err := goal.Decompose(g)
	if err != nil {
		return err
	}
	if err := o.tracker.StartTracking(g.ID, d, nil); err != nil {
		return err
	}

	order := make([]string, len(d.SubGoals))
	for i, sg := range d.SubGoals {
		order[i] = sg.ID
	}
	sortedOrder := goal.TopologicalSort(order, d.Dependencies)

	now := o.clk.Now()

	o.mu.Lock()
	o.currentGoal = &g
	o.decomposition = d
	o.order = sortedOrder
	o.maxCycles = opts.MaxCycles
	o.cyclesCompleted = 0
	o.startedAt = now
	o.lastCycleAt = time.Time{}
	o.state = StateRunning
	o.stopCh = make(chan struct{})
	o.mu.Unlock()

	o.publish(events.KindGoalRegistered, events.GoalRegistered{GoalID: g.ID})
	o.publish(events.KindStarted, nil)

	o.scheduleNext()
	return nil
}

// scheduleNext arms a one-shot timer that fires runCycle after
// ExecutionInterval. The next cycle is scheduled from the firing of
// this timer (not from a fixed wall-clock grid), matching the
// specification's explicitly-accepted periodic jitter.
func (o *Orchestrator) scheduleNext() {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	timer := o.clk.NewTimer(o.cfg.ExecutionInterval)
	o.timer = timer
	stopCh := o.stopCh
	o.mu.Unlock()

	go func() {
		select {
		case <-stopCh:
			return
		case <-timer.C():
			o.runCycle()
		}
	}()
}

// runCycle executes one scheduled tick: re-checks state, advances the
// subgoal frontier, and either stops (maxCycles reached) or reschedules.
func (o *Orchestrator) runCycle() {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	o.cyclesCompleted++
	o.lastCycleAt = o.clk.Now()
	cycles := o.cyclesCompleted
	maxCycles := o.maxCycles
	goalID := o.currentGoal.ID
	o.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("cycle panic", "error", r)
			}
		}()
		if err := o.executeNextSubGoal(); err != nil {
			o.log.Error("cycle error", "goal", goalID, "error", err)
		}
	}()

	o.publish(events.KindCycleExecuted, events.CycleExecuted{GoalID: goalID, CyclesCompleted: cycles})

	if maxCycles > 0 && cycles >= maxCycles {
		o.mu.Lock()
		o.state = StateStopped
		o.mu.Unlock()
		o.publish(events.KindMaxCyclesReached, events.MaxCyclesReached{GoalID: goalID, Cycles: cycles})
		o.publish(events.KindStopped, nil)
		return
	}

	o.scheduleNext()
}

// executeNextSubGoal finds the first subgoal (in dependency order)
// that is not yet complete and whose dependencies are all complete,
// and drives it through the retry executor.
func (o *Orchestrator) executeNextSubGoal() error {
	o.mu.Lock()
	goalID := o.currentGoal.ID
	order := o.order
	subgoals := make(map[string]goal.SubGoal, len(o.decomposition.SubGoals))
	for _, sg := range o.decomposition.SubGoals {
		subgoals[sg.ID] = sg
	}
	o.mu.Unlock()

	progressState, err := o.tracker.GetProgress(goalID)
	if err != nil {
		return err
	}
	if progressState.CompletionPercentage >= 100 {
		return nil
	}

	next := o.nextRunnableSubGoal(goalID, order, subgoals)
	if next == nil {
		return nil
	}

	if err := o.tracker.UpdateSubGoal(goalID, next.ID, progress.StatusInProgress, ""); err != nil {
		return err
	}

	ctx := context.Background()
	_, execErr := o.retryx.ExecuteWithRetry(ctx, next.ID, func(ctx context.Context) (interface{}, error) {
		return nil, o.executor(ctx, *next)
	})

	if execErr != nil {
		if o.dec != nil {
			o.consultOnFailure(*next, execErr)
		}
		return o.tracker.UpdateSubGoal(goalID, next.ID, progress.StatusBlocked, progress.SeverityMedium)
	}

	return o.tracker.UpdateSubGoal(goalID, next.ID, progress.StatusComplete, "")
}

// consultOnFailure records a decision about whether the failure
// should halt autonomous progress; the decision is recorded for
// operator review but does not itself change control flow beyond
// logging, since the specification leaves the escalation transport
// out of scope.
func (o *Orchestrator) consultOnFailure(sg goal.SubGoal, execErr error) {
	d, err := o.dec.MakeDecision(decision.Context{
		Question: "continue autonomously after subgoal failure: " + sg.Description,
		Options:  []string{"continue", "escalate"},
		Evidence: []string{execErr.Error()},
	})
	if err != nil {
		return
	}
	if d.RequiresHuman {
		o.log.Info("subgoal failure requires human review", "subgoal", sg.ID, "confidence", d.Confidence, "risk", d.RiskLevel)
	}
}

func (o *Orchestrator) nextRunnableSubGoal(goalID string, order []string, subgoals map[string]goal.SubGoal) *goal.SubGoal {
	for _, id := range order {
		sg, ok := subgoals[id]
		if !ok {
			continue
		}
		status, err := o.subgoalStatus(goalID, id)
		if err != nil || status == progress.StatusComplete || status == progress.StatusInProgress {
			continue
		}
		if o.dependenciesComplete(goalID, sg.Dependencies) {
			sg := sg
			return &sg
		}
	}
	return nil
}

func (o *Orchestrator) dependenciesComplete(goalID string, deps []string) bool {
	for _, dep := range deps {
		status, err := o.subgoalStatus(goalID, dep)
		if err != nil || status != progress.StatusComplete {
			return false
		}
	}
	return true
}

func (o *Orchestrator) subgoalStatus(goalID, subgoalID string) (progress.Status, error) {
	return o.tracker.SubGoalStatus(goalID, subgoalID)
}

// Pause clears the scheduled timer but retains the current goal.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	o.state = StatePaused
	if o.timer != nil {
		o.timer.Stop()
	}
	o.mu.Unlock()
	o.publish(events.KindPaused, nil)
}

// Resume reschedules the next cycle after a Pause.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	if o.state != StatePaused {
		o.mu.Unlock()
		return
	}
	o.state = StateRunning
	o.mu.Unlock()
	o.publish(events.KindResumed, nil)
	o.scheduleNext()
}

// Stop clears state, the timer, and the current goal.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.state == StateStopped {
		o.mu.Unlock()
		return
	}
	o.state = StateStopped
	if o.timer != nil {
		o.timer.Stop()
	}
	if o.stopCh != nil {
		close(o.stopCh)
	}
	o.currentGoal = nil
	o.mu.Unlock()
	o.publish(events.KindStopped, nil)
}

// Status returns the orchestrator's current externally-visible state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	var goalID string
	if o.currentGoal != nil {
		goalID = o.currentGoal.ID
	}
	var uptime int64
	if !o.startedAt.IsZero() {
		uptime = o.clk.Since(o.startedAt).Milliseconds()
	}
	return Status{
		State:           o.state,
		CurrentGoalID:   goalID,
		CyclesCompleted: o.cyclesCompleted,
		StartedAt:       o.startedAt,
		UptimeMs:        uptime,
		LastCycleAt:     o.lastCycleAt,
	}
}

func (o *Orchestrator) publish(kind events.Kind, payload interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{Kind: kind, Payload: payload})
}
