// Package progress implements the progress tracker: per-goal subgoal
// status, blocker bookkeeping, milestone crossing, and velocity-based
// completion estimates.
package progress

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/kaizen/goal"
	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/pkg/clock"
)

// Status is a subgoal's current state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusBlocked    Status = "blocked"
)

// Severity is a blocker's severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Blocker records why a subgoal cannot proceed.
type Blocker struct {
	ID          string
	Severity    Severity
	Description string
	DetectedAt  time.Time
}

// SubGoalState is one subgoal's tracked state.
type SubGoalState struct {
	SubGoalID   string
	Status      Status
	CompletedAt *time.Time
	Blocker     *Blocker
}

// Milestone is a completion-percentage checkpoint.
type Milestone struct {
	TargetPercentage int
	Achieved         bool
	AchievedAt       *time.Time
}

// CompletionLogEntry records one subgoal's first transition to complete.
type CompletionLogEntry struct {
	SubGoalID string
	At        time.Time
}

// trackedGoal is the tracker's internal per-goal record.
type trackedGoal struct {
	decomposition goal.Decomposition
	subgoals      map[string]*SubGoalState
	milestones    []*Milestone
	completionLog []CompletionLogEntry
	startedAt     time.Time
}

// Progress is the computed view returned by GetProgress.
type Progress struct {
	GoalID                  string
	CompletionPercentage    int
	Completed               int
	Total                   int
	Velocity                float64 // completed subgoals per hour
	EstimatedHoursRemaining float64 // math.Inf(1) when velocity is 0 and subgoals remain
}

// Tracker tracks progress across any number of goals.
type Tracker struct {
	clk clock.Clock

	mu    sync.Mutex
	goals map[string]*trackedGoal
}

// NewTracker constructs an empty Tracker. A nil clock defaults to
// clock.Real{}.
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Tracker{clk: clk, goals: make(map[string]*trackedGoal)}
}

// StartTracking registers goalId for tracking. Rejects a duplicate
// goalId. A nil/empty milestones slice defaults to {25,50,75,100}.
func (t *Tracker) StartTracking(goalID string, d goal.Decomposition, milestones []int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.goals[goalID]; exists {
		return kerrors.New("progress.StartTracking", "progress", kerrors.ErrInvalidInput).WithID(goalID)
	}

	if len(milestones) == 0 {
		milestones = []int{25, 50, 75, 100}
	}
	ms := make([]*Milestone, 0, len(milestones))
	for _, pct := range milestones {
		ms = append(ms, &Milestone{TargetPercentage: pct})
	}

	subgoals := make(map[string]*SubGoalState, len(d.SubGoals))
	for _, sg := range d.SubGoals {
		subgoals[sg.ID] = &SubGoalState{SubGoalID: sg.ID, Status: StatusPending}
	}

	t.goals[goalID] = &trackedGoal{
		decomposition: d,
		subgoals:      subgoals,
		milestones:    ms,
		startedAt:     t.clk.Now(),
	}
	return nil
}

// UpdateSubGoal transitions subgoalID's status within goalID.
func (t *Tracker) UpdateSubGoal(goalID, subgoalID string, status Status, severity Severity) error {
	if status != StatusPending && status != StatusInProgress && status != StatusComplete && status != StatusBlocked {
		return kerrors.New("progress.UpdateSubGoal", "progress", kerrors.ErrInvalidInput).WithID(string(status))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.goals[goalID]
	if !ok {
		return kerrors.New("progress.UpdateSubGoal", "progress", kerrors.ErrNotFound).WithID(goalID)
	}
	sg, ok := g.subgoals[subgoalID]
	if !ok {
		return kerrors.New("progress.UpdateSubGoal", "progress", kerrors.ErrNotFound).WithID(subgoalID)
	}

	now := t.clk.Now()
	wasComplete := sg.Status == StatusComplete
	sg.Status = status

	if status == StatusComplete && !wasComplete {
		sg.CompletedAt = &now
		g.completionLog = append(g.completionLog, CompletionLogEntry{SubGoalID: subgoalID, At: now})
	}

	if status == StatusBlocked {
		sev := severity
		if sev == "" {
			sev = SeverityMedium
		}
		desc := subgoalID
		for _, s := range g.decomposition.SubGoals {
			if s.ID == subgoalID {
				desc = s.Description
				break
			}
		}
		sg.Blocker = &Blocker{
			ID:          fmt.Sprintf("blocker-%s-%d", subgoalID, now.UnixMilli()),
			Severity:    sev,
			Description: desc,
			DetectedAt:  now,
		}
	} else {
		sg.Blocker = nil
	}

	t.updateMilestones(g, now)
	return nil
}

func (t *Tracker) updateMilestones(g *trackedGoal, now time.Time) {
	pct := completionPercentage(g)
	for _, m := range g.milestones {
		if !m.Achieved && m.TargetPercentage <= pct {
			m.Achieved = true
			at := now
			m.AchievedAt = &at
		}
	}
}

func completionPercentage(g *trackedGoal) int {
	total := len(g.subgoals)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, sg := range g.subgoals {
		if sg.Status == StatusComplete {
			completed++
		}
	}
	return int(round(100 * float64(completed) / float64(total)))
}

func round(f float64) float64 {
	if f < 0 {
		return float64(int(f - 0.5))
	}
	return float64(int(f + 0.5))
}

// GetProgress computes the current progress view for goalID.
func (t *Tracker) GetProgress(goalID string) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.goals[goalID]
	if !ok {
		return Progress{}, kerrors.New("progress.GetProgress", "progress", kerrors.ErrNotFound).WithID(goalID)
	}

	total := len(g.subgoals)
	completed := 0
	for _, sg := range g.subgoals {
		if sg.Status == StatusComplete {
			completed++
		}
	}

	elapsedHours := t.clk.Since(g.startedAt).Hours()
	velocity := 0.0
	if completed > 0 && elapsedHours > 0 {
		velocity = float64(completed) / elapsedHours
	}

	remaining := float64(total - completed)
	hoursRemaining := 0.0
	if velocity == 0 {
		if remaining > 0 {
			hoursRemaining = math.Inf(1)
		}
	} else {
		hoursRemaining = remaining / velocity
	}

	return Progress{
		GoalID:                  goalID,
		CompletionPercentage:    completionPercentage(g),
		Completed:               completed,
		Total:                   total,
		Velocity:                velocity,
		EstimatedHoursRemaining: hoursRemaining,
	}, nil
}

// EstimateCompletion returns the estimated completion timestamp for
// goalID: now if already 100%, now+365d if velocity is 0 (no
// progress yet to extrapolate from), else now+remaining/velocity hours.
func (t *Tracker) EstimateCompletion(goalID string) (time.Time, error) {
	p, err := t.GetProgress(goalID)
	if err != nil {
		return time.Time{}, err
	}
	now := t.clk.Now()
	if p.CompletionPercentage >= 100 {
		return now, nil
	}
	if p.Velocity == 0 {
		return now.Add(365 * 24 * time.Hour), nil
	}
	return now.Add(time.Duration(p.EstimatedHoursRemaining * float64(time.Hour))), nil
}

// IsBlocked reports whether any subgoal of goalID is currently blocked.
func (t *Tracker) IsBlocked(goalID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.goals[goalID]
	if !ok {
		return false, kerrors.New("progress.IsBlocked", "progress", kerrors.ErrNotFound).WithID(goalID)
	}
	for _, sg := range g.subgoals {
		if sg.Status == StatusBlocked {
			return true, nil
		}
	}
	return false, nil
}

// SubGoalStatus returns subgoalID's current status within goalID.
func (t *Tracker) SubGoalStatus(goalID, subgoalID string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.goals[goalID]
	if !ok {
		return "", kerrors.New("progress.SubGoalStatus", "progress", kerrors.ErrNotFound).WithID(goalID)
	}
	sg, ok := g.subgoals[subgoalID]
	if !ok {
		return "", kerrors.New("progress.SubGoalStatus", "progress", kerrors.ErrNotFound).WithID(subgoalID)
	}
	return sg.Status, nil
}

// Milestones returns a copy of goalID's milestone set, sorted by
// target percentage.
func (t *Tracker) Milestones(goalID string) ([]Milestone, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.goals[goalID]
	if !ok {
		return nil, kerrors.New("progress.Milestones", "progress", kerrors.ErrNotFound).WithID(goalID)
	}
	out := make([]Milestone, len(g.milestones))
	for i, m := range g.milestones {
		out[i] = *m
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetPercentage < out[j].TargetPercentage })
	return out, nil
}

// CompletionLog returns a copy of goalID's completion log, in
// chronological order.
func (t *Tracker) CompletionLog(goalID string) ([]CompletionLogEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.goals[goalID]
	if !ok {
		return nil, kerrors.New("progress.CompletionLog", "progress", kerrors.ErrNotFound).WithID(goalID)
	}
	out := make([]CompletionLogEntry, len(g.completionLog))
	copy(out, g.completionLog)
	return out, nil
}

