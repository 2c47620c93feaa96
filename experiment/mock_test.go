package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExperimentNameFormat(t *testing.T) {
	m := NewMockBackend()
	exp, err := m.CreateExperiment(Opportunity{Type: "checkpoint_interval_optimization", CurrentValue: 5, ProposedValue: 3})
	require.NoError(t, err)
	assert.Contains(t, exp.Name, "checkpoint_interval_optimization_")
	assert.Equal(t, StateRunning, exp.State)
	assert.Equal(t, float64(5), exp.Control.Value)
	assert.Equal(t, float64(3), exp.Treatment.Value)
}

func TestGetVariantIsDeterministicPerUser(t *testing.T) {
	m := NewMockBackend()
	exp, err := m.CreateExperiment(Opportunity{Type: "token_optimization", CurrentValue: 0.3, ProposedValue: 0.15})
	require.NoError(t, err)

	v1, err := m.GetVariant(exp.Name, "user-42", nil)
	require.NoError(t, err)
	v2, err := m.GetVariant(exp.Name, "user-42", nil)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestGetVariantUnknownExperimentReturnsControlZero(t *testing.T) {
	m := NewMockBackend()
	v, err := m.GetVariant("does-not-exist", "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "control", v.Name)
	assert.Equal(t, float64(0), v.Value)
}

func TestDeployWinnerMissingExperiment(t *testing.T) {
	m := NewMockBackend()
	outcome, err := m.DeployWinner("nope")
	require.NoError(t, err)
	assert.False(t, outcome.Deployed)
	assert.Equal(t, "Experiment not found", outcome.Reason)
}

func TestDeployWinnerPreconditions(t *testing.T) {
	m := NewMockBackend()
	m.SetDeploymentThreshold(0.95)
	exp, err := m.CreateExperiment(Opportunity{Type: "resume_reliability", CurrentValue: 0.8, ProposedValue: 0.95})
	require.NoError(t, err)

	m.SetResults(exp.Name, Result{
		Control:       ArmResult{SampleSize: 50},
		Treatment:     ArmResult{SampleSize: 50},
		IsSignificant: true,
		PValue:        0.01,
		Winner:        "treatment",
	})

	outcome, err := m.DeployWinner(exp.Name)
	require.NoError(t, err)
	assert.True(t, outcome.Deployed)
	assert.Equal(t, "treatment", outcome.Variant)
	assert.Equal(t, float64(0.95), outcome.NewValue)
}

func TestDeployWinnerRejectsHighPValue(t *testing.T) {
	m := NewMockBackend()
	m.SetDeploymentThreshold(0.95)
	exp, err := m.CreateExperiment(Opportunity{Type: "resume_reliability", CurrentValue: 0.8, ProposedValue: 0.95})
	require.NoError(t, err)

	m.SetResults(exp.Name, Result{
		IsSignificant: true,
		PValue:        0.10,
		Winner:        "treatment",
	})

	outcome, err := m.DeployWinner(exp.Name)
	require.NoError(t, err)
	assert.False(t, outcome.Deployed)
}

func TestRollbackTransitionsState(t *testing.T) {
	m := NewMockBackend()
	exp, err := m.CreateExperiment(Opportunity{Type: "monitor_latency"})
	require.NoError(t, err)

	require.NoError(t, m.Rollback(exp.Name, "safety violation"))
	cfg, ok := m.GetExperimentConfig(exp.Name)
	require.True(t, ok)
	assert.Equal(t, StateRolledBack, cfg.State)
}

func TestShutdownIsIdempotentAndFlushesFirst(t *testing.T) {
	m := NewMockBackend()
	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
	assert.True(t, m.IsShutdown())
	assert.True(t, m.flushed)
}

func TestGetExperimentResultsStubWhenUnseeded(t *testing.T) {
	m := NewMockBackend()
	result, err := m.GetExperimentResults("anything")
	require.NoError(t, err)
	assert.False(t, result.IsSignificant)
	assert.Equal(t, 1.0, result.PValue)
}

// TestGetVariantFallsBackWhenCacheUnreachable attaches a cache pointed
// at a port nothing listens on; GetVariant must still assign
// deterministically instead of propagating the cache's connection
// error to the caller.
func TestGetVariantFallsBackWhenCacheUnreachable(t *testing.T) {
	cache, err := NewRedisAssignmentCache(RedisAssignmentCacheOptions{RedisURL: "redis://127.0.0.1:1/0"})
	require.NoError(t, err)

	m := NewMockBackend(WithAssignmentCache(cache))
	exp, err := m.CreateExperiment(Opportunity{Type: "token_optimization", CurrentValue: 0.3, ProposedValue: 0.15})
	require.NoError(t, err)

	v, err := m.GetVariant(exp.Name, "user-7", nil)
	require.NoError(t, err)
	assert.Contains(t, []string{"control", "treatment"}, v.Name)
}
