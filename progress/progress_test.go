package progress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kaizen/goal"
	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/pkg/clock"
)

func testDecomposition(t *testing.T) goal.Decomposition {
	t.Helper()
	d, err := goal.Decompose(goal.Goal{ID: "g1", Description: "Build a new feature", Type: goal.TypeDevelopment, Priority: 1})
	require.NoError(t, err)
	return d
}

func TestStartTrackingRejectsDuplicateGoalID(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	err := tr.StartTracking("g1", d, nil)
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalidInput(err))
}

func TestStartTrackingDefaultsMilestones(t *testing.T) {
	tr := NewTracker(clock.New())
	require.NoError(t, tr.StartTracking("g1", testDecomposition(t), nil))
	ms, err := tr.Milestones("g1")
	require.NoError(t, err)
	require.Len(t, ms, 4)
	assert.Equal(t, []int{25, 50, 75, 100}, []int{ms[0].TargetPercentage, ms[1].TargetPercentage, ms[2].TargetPercentage, ms[3].TargetPercentage})
}

func TestUpdateSubGoalRejectsUnknownStatus(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	err := tr.UpdateSubGoal("g1", d.SubGoals[0].ID, Status("bogus"), "")
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalidInput(err))
}

func TestUpdateSubGoalRejectsUnknownGoalOrSubGoal(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))

	err := tr.UpdateSubGoal("missing-goal", d.SubGoals[0].ID, StatusInProgress, "")
	require.Error(t, err)
	assert.True(t, kerrors.IsNotFound(err))

	err = tr.UpdateSubGoal("g1", "missing-subgoal", StatusInProgress, "")
	require.Error(t, err)
	assert.True(t, kerrors.IsNotFound(err))
}

func TestUpdateSubGoalRecordsCompletionOnce(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	sgID := d.SubGoals[0].ID

	require.NoError(t, tr.UpdateSubGoal("g1", sgID, StatusComplete, ""))
	require.NoError(t, tr.UpdateSubGoal("g1", sgID, StatusComplete, ""))

	log, err := tr.CompletionLog("g1")
	require.NoError(t, err)
	assert.Len(t, log, 1)
	assert.Equal(t, sgID, log[0].SubGoalID)
}

func TestUpdateSubGoalBlockedSetsBlockerWithDefaultSeverity(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	sgID := d.SubGoals[0].ID

	require.NoError(t, tr.UpdateSubGoal("g1", sgID, StatusBlocked, ""))

	blocked, err := tr.IsBlocked("g1")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocker := tr.goals["g1"].subgoals[sgID].Blocker
	require.NotNil(t, blocker)
	assert.Equal(t, SeverityMedium, blocker.Severity)
}

func TestUpdateSubGoalClearsBlockerWhenUnblocked(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	sgID := d.SubGoals[0].ID

	require.NoError(t, tr.UpdateSubGoal("g1", sgID, StatusBlocked, SeverityHigh))
	require.NoError(t, tr.UpdateSubGoal("g1", sgID, StatusInProgress, ""))

	blocked, err := tr.IsBlocked("g1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestMilestonesAreAchievedOnceThresholdCrossed(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t) // 4 subgoals -> each completion is 25%
	require.NoError(t, tr.StartTracking("g1", d, nil))

	require.NoError(t, tr.UpdateSubGoal("g1", d.SubGoals[0].ID, StatusComplete, ""))

	ms, err := tr.Milestones("g1")
	require.NoError(t, err)
	assert.True(t, ms[0].Achieved) // 25%
	assert.False(t, ms[1].Achieved)
}

func TestGetProgressComputesCompletionPercentage(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	require.NoError(t, tr.UpdateSubGoal("g1", d.SubGoals[0].ID, StatusComplete, ""))
	require.NoError(t, tr.UpdateSubGoal("g1", d.SubGoals[1].ID, StatusComplete, ""))

	p, err := tr.GetProgress("g1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.CompletionPercentage)
	assert.Equal(t, 2, p.Completed)
	assert.Equal(t, 4, p.Total)
}

func TestGetProgressZeroVelocityWithNoCompletions(t *testing.T) {
	tr := NewTracker(clock.New())
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))

	p, err := tr.GetProgress("g1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Velocity)
	assert.True(t, math.IsInf(p.EstimatedHoursRemaining, 1))
}

func TestGetProgressUnknownGoalReturnsNotFound(t *testing.T) {
	tr := NewTracker(clock.New())
	_, err := tr.GetProgress("missing")
	require.Error(t, err)
	assert.True(t, kerrors.IsNotFound(err))
}

func TestEstimateCompletionReturnsNowAtFullCompletion(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tr := NewTracker(fake)
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))
	for _, sg := range d.SubGoals {
		require.NoError(t, tr.UpdateSubGoal("g1", sg.ID, StatusComplete, ""))
	}

	got, err := tr.EstimateCompletion("g1")
	require.NoError(t, err)
	assert.Equal(t, fake.Now(), got)
}

func TestEstimateCompletionFarFutureWithoutProgress(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tr := NewTracker(fake)
	d := testDecomposition(t)
	require.NoError(t, tr.StartTracking("g1", d, nil))

	got, err := tr.EstimateCompletion("g1")
	require.NoError(t, err)
	assert.True(t, got.After(fake.Now().Add(300*24*time.Hour)))
}
