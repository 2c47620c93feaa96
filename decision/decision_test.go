package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kaizen/kerrors"
)

func TestNewEngineDefaultsThreshold(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)
	assert.Equal(t, 0.6, e.threshold)
}

func TestNewEngineRejectsOutOfRangeThreshold(t *testing.T) {
	_, err := NewEngine(Config{ConfidenceThreshold: 1.5})
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalidConfig(err))
}

func TestMakeDecisionRejectsEmptyOptions(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)
	_, err = e.MakeDecision(Context{Question: "what now"})
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalidInput(err))
}

func TestMakeDecisionHighConfidenceLowRiskAutonomous(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	d, err := e.MakeDecision(Context{
		Question: "should we adjust the checkpoint interval comment",
		Options:  []string{"apply", "skip"},
		Evidence: []string{"this approach is proven and well tested", "results are documented and reliable", "the rollout is reversible"},
	})
	require.NoError(t, err)
	assert.Equal(t, "apply", d.Choice)
	assert.Equal(t, RiskLow, d.RiskLevel)
	assert.False(t, d.RequiresHuman)
	assert.Greater(t, d.Confidence, 60.0)
}

func TestMakeDecisionHighRiskAlwaysRequiresHuman(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	d, err := e.MakeDecision(Context{
		Question: "deploy this change to production",
		Options:  []string{"deploy", "hold"},
		Evidence: []string{"proven", "tested", "documented"},
	})
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, d.RiskLevel)
	assert.True(t, d.RequiresHuman)
}

func TestMakeDecisionLowConfidenceRequiresHuman(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	d, err := e.MakeDecision(Context{
		Question: "should we try this",
		Options:  []string{"try", "skip"},
		Evidence: []string{"this is experimental and untested, results unclear"},
	})
	require.NoError(t, err)
	assert.Less(t, d.Confidence, 60.0)
	assert.True(t, d.RequiresHuman)
}

func TestCalculateConfidenceClampsToZero(t *testing.T) {
	c := calculateConfidence([]string{"might fail, unclear, experimental, untested, failing, risk"})
	assert.Equal(t, 0.0, c)
}

func TestCalculateConfidenceCapsEvidenceBonusAtThree(t *testing.T) {
	four := calculateConfidence([]string{"a", "b", "c", "d"})
	three := calculateConfidence([]string{"a", "b", "c"})
	assert.Equal(t, three, four)
}

func TestEvaluateAlternativesSortsByConfidenceDescending(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	decisions, err := e.EvaluateAlternatives([]Context{
		{Question: "low", Options: []string{"a"}, Evidence: []string{"untested, unclear"}},
		{Question: "high", Options: []string{"b"}, Evidence: []string{"proven, tested, documented"}},
	})
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.GreaterOrEqual(t, decisions[0].Confidence, decisions[1].Confidence)
}

func TestHistoryFiltersByRequiresHuman(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	_, err = e.MakeDecision(Context{Question: "deploy to production", Options: []string{"a"}})
	require.NoError(t, err)
	_, err = e.MakeDecision(Context{Question: "update a comment", Options: []string{"a"}, Evidence: []string{"proven tested documented reliable"}})
	require.NoError(t, err)

	requiresHuman := true
	filtered := e.History(HistoryFilter{RequiresHuman: &requiresHuman})
	assert.Len(t, filtered, 1)
	assert.Equal(t, RiskHigh, filtered[0].RiskLevel)
}
