package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kaizen/kerrors"
)

func TestDecomposeRejectsEmptyIDOrDescription(t *testing.T) {
	_, err := Decompose(Goal{ID: "", Description: "fix a bug"})
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalidInput(err))

	_, err = Decompose(Goal{ID: "g1", Description: ""})
	require.Error(t, err)
}

func TestComplexityScoreReducingKeywordsLowerScore(t *testing.T) {
	assert.Equal(t, 1, ComplexityScore("quick fix"))
}

func TestComplexityScoreIncreasingKeywordsRaiseScore(t *testing.T) {
	assert.Equal(t, 7, ComplexityScore("rebuild the entire system architecture"))
}

func TestComplexityScoreClampsToRange(t *testing.T) {
	longDesc := ""
	for i := 0; i < 30; i++ {
		longDesc += "comprehensive architecture system oauth 2fa session "
	}
	assert.Equal(t, 10, ComplexityScore(longDesc))
}

func TestDecomposeUnknownTypeUsesDevelopmentTemplate(t *testing.T) {
	d, err := Decompose(Goal{ID: "g1", Description: "a reasonably sized goal description here", Type: "unknown-type", Priority: 2})
	require.NoError(t, err)
	assert.Equal(t, len(templates[TypeDevelopment]), len(d.SubGoals))
}

func TestDecomposeInstantiatesSubgoalIDs(t *testing.T) {
	d, err := Decompose(Goal{ID: "g7", Description: "Improve the onboarding documentation", Type: TypeDocumentation, Priority: 1})
	require.NoError(t, err)
	require.Len(t, d.SubGoals, 3)
	assert.Equal(t, "g7-sub-1", d.SubGoals[0].ID)
	assert.Equal(t, "g7-sub-2", d.SubGoals[1].ID)
	assert.Equal(t, "g7-sub-3", d.SubGoals[2].ID)
}

func TestDecomposeDevelopmentChainsDependencies(t *testing.T) {
	d, err := Decompose(Goal{ID: "g2", Description: "Build a new feature", Type: TypeDevelopment, Priority: 1})
	require.NoError(t, err)
	require.Len(t, d.SubGoals, 4)
	assert.Empty(t, d.Dependencies[d.SubGoals[0].ID])
	assert.Equal(t, []string{d.SubGoals[0].ID}, d.Dependencies[d.SubGoals[1].ID])
	assert.Equal(t, []string{d.SubGoals[2].ID}, d.Dependencies[d.SubGoals[3].ID])
}

func TestDecomposeQualityFansInOnLastSubgoal(t *testing.T) {
	d, err := Decompose(Goal{ID: "g3", Description: "Raise the overall quality bar", Type: TypeQuality, Priority: 1})
	require.NoError(t, err)
	last := d.SubGoals[len(d.SubGoals)-1]
	assert.Len(t, d.Dependencies[last.ID], len(d.SubGoals)-1)
	assert.Empty(t, d.Dependencies[d.SubGoals[0].ID])
}

func TestDecomposeTestingHasNoDependencies(t *testing.T) {
	d, err := Decompose(Goal{ID: "g4", Description: "Add test coverage", Type: TypeTesting, Priority: 1})
	require.NoError(t, err)
	for _, sg := range d.SubGoals {
		assert.Empty(t, d.Dependencies[sg.ID])
	}
}

func TestDecomposeScalesHoursByComplexity(t *testing.T) {
	low, err := Decompose(Goal{ID: "g5", Description: "quick fix", Type: TypeDevelopment, Priority: 1})
	require.NoError(t, err)
	high, err := Decompose(Goal{ID: "g6", Description: "rebuild the entire system architecture with multiple oauth 2fa session flows", Type: TypeDevelopment, Priority: 1})
	require.NoError(t, err)

	assert.Less(t, low.TotalEstimatedHours, high.TotalEstimatedHours)
}

func TestDecomposeHoursNeverBelowFloor(t *testing.T) {
	d, err := Decompose(Goal{ID: "g8", Description: "fix", Type: TypeDevelopment, Priority: 1})
	require.NoError(t, err)
	for _, sg := range d.SubGoals {
		assert.GreaterOrEqual(t, sg.EstimatedHours, 0.5)
	}
}

func TestDecomposeRespectsMaxHoursConstraint(t *testing.T) {
	d, err := Decompose(Goal{
		ID:          "g9",
		Description: "rebuild the entire system architecture comprehensively",
		Type:        TypeDevelopment,
		Priority:    1,
		Constraints: &Constraints{MaxHours: 6},
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, d.TotalEstimatedHours, 1e-6)
}

func TestPriorityBandsAssignedByPosition(t *testing.T) {
	d, err := Decompose(Goal{ID: "g10", Description: "Deploy the new service to production", Type: TypeDeployment, Priority: 1})
	require.NoError(t, err)
	assert.Equal(t, Priority(1), d.SubGoals[0].Priority)
	assert.Equal(t, Priority(3), d.SubGoals[len(d.SubGoals)-1].Priority)
}

func TestHasCircularDependenciesDetectsCycle(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}
	assert.True(t, HasCircularDependencies(deps))
}

func TestHasCircularDependenciesFalseForDAG(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": nil,
	}
	assert.False(t, HasCircularDependencies(deps))
}

func TestDecompositionsAreAlwaysAcyclic(t *testing.T) {
	for typ := range templates {
		d, err := Decompose(Goal{ID: "gx", Description: "Do something reasonably complex here", Type: typ, Priority: 1})
		require.NoError(t, err)
		assert.False(t, HasCircularDependencies(d.Dependencies))
	}
}

func TestTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": nil,
	}
	order := TopologicalSort([]string{"a", "b", "c"}, deps)
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestTopologicalSortIsStableAcrossDuplicateDependents(t *testing.T) {
	deps := map[string][]string{
		"x": {"shared"},
		"y": {"shared"},
		"shared": nil,
	}
	order := TopologicalSort([]string{"x", "y", "shared"}, deps)
	assert.Equal(t, []string{"shared", "x", "y"}, order)
}
