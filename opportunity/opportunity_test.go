package opportunity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kaizen/metrics"
)

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func newTestDetector(minSampleSize int) *Detector {
	return NewDetector(Config{
		MinConfidence:     0.5,
		MinImpact:         0,
		MinSampleSize:     minSampleSize,
		PatternExpiryTime: time.Hour,
		Now:               fixedNow,
	})
}

func TestNoOpportunitiesOnHealthyMetrics(t *testing.T) {
	reg := metrics.New()
	require.NoError(t, reg.ObserveGauge("shim_crash_prediction_accuracy", 0.95))
	require.NoError(t, reg.ObserveHistogram("shim_checkpoint_creation_time", 30))
	require.NoError(t, reg.ObserveHistogram("shim_checkpoint_creation_time", 40))
	require.NoError(t, reg.ObserveHistogram("shim_checkpoint_creation_time", 50))

	d := newTestDetector(3)
	opps := d.DetectOpportunities(reg.Snapshot())
	assert.Empty(t, opps)
}

func TestHighCrashRateDetected(t *testing.T) {
	reg := metrics.New()
	require.NoError(t, reg.ObserveGauge("shim_crash_prediction_accuracy", 0.85))

	d := newTestDetector(3)
	opps := d.DetectOpportunities(reg.Snapshot())
	require.Len(t, opps, 1)
	o := opps[0]
	assert.Equal(t, TypeCheckpointIntervalOpt, o.Type)
	assert.Equal(t, 0.85, o.Confidence)
	assert.Equal(t, float64(5), o.CurrentValue)
	assert.Equal(t, float64(3), o.ProposedValue)
	assert.InDelta(t, 0.15*0.4*1000, o.EstimatedSavings, 0.001)
}

func TestSampleSizeBelowMinimumNeverSurfaces(t *testing.T) {
	reg := metrics.New()
	require.NoError(t, reg.ObserveHistogram("shim_checkpoint_creation_time", 200))

	d := newTestDetector(10)
	opps := d.DetectOpportunities(reg.Snapshot())
	assert.Empty(t, opps)
}

func TestOpusOveruseDetected(t *testing.T) {
	reg := metrics.New()
	require.NoError(t, reg.IncrementCounter("model_selections_haiku_total", 30, nil))
	require.NoError(t, reg.IncrementCounter("model_selections_sonnet_total", 30, nil))
	require.NoError(t, reg.IncrementCounter("model_selections_opus_total", 40, nil))

	d := newTestDetector(10)
	opps := d.DetectOpportunities(reg.Snapshot())
	require.Len(t, opps, 1)
	assert.Equal(t, TypeTokenOpt, opps[0].Type)
	assert.InDelta(t, 0.40, opps[0].CurrentValue, 0.001)
}

func TestRankOrdersByConfidenceTimesSavingsDescendingStable(t *testing.T) {
	opps := []Opportunity{
		{ID: "a", Confidence: 0.5, EstimatedSavings: 10},
		{ID: "b", Confidence: 0.9, EstimatedSavings: 100},
		{ID: "c", Confidence: 0.5, EstimatedSavings: 10},
	}
	ranked := Rank(opps)
	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, "a", ranked[1].ID)
	assert.Equal(t, "c", ranked[2].ID)
}

func TestConfidenceOfSamplesLowVariance(t *testing.T) {
	low := ConfidenceOfSamples([]float64{10, 10, 10, 10})
	high := ConfidenceOfSamples([]float64{1, 100, 1, 100})
	assert.InDelta(t, 1.0, low, 0.0001)
	assert.Less(t, high, low)
}

func TestConfidenceOfSamplesTooFew(t *testing.T) {
	assert.Equal(t, 0.0, ConfidenceOfSamples([]float64{}))
	assert.Equal(t, 0.0, ConfidenceOfSamples([]float64{5}))
}

func TestPatternMemoryTracksAndExpires(t *testing.T) {
	reg := metrics.New()
	require.NoError(t, reg.ObserveGauge("shim_crash_prediction_accuracy", 0.85))

	now := fixedNow()
	d := NewDetector(Config{
		MinConfidence:     0.5,
		MinSampleSize:     3,
		PatternExpiryTime: 0, // any elapsed time without a re-detection expires an entry
		Now:               func() time.Time { return now },
	})

	d.DetectOpportunities(reg.Snapshot())
	history := d.GetPatternHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Count)

	d.DetectOpportunities(reg.Snapshot())
	history = d.GetPatternHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Count)

	// A second later, a detect that no longer surfaces the pattern
	// marks the entry expired without removing it.
	now = now.Add(time.Second)
	d.DetectOpportunities(metrics.New().Snapshot())
	history = d.GetPatternHistory()
	require.Len(t, history, 1)
	assert.True(t, history[0].Expired)
}

func TestToScaffoldMapsSuccessMetrics(t *testing.T) {
	o := Opportunity{
		Type:          TypeResumeReliability,
		CurrentValue:  0.8,
		ProposedValue: 0.95,
		Hypothesis:    "improve checkpoints",
		DetectedAt:    fixedNow(),
	}
	scaffold := ToScaffold(o)
	assert.Contains(t, scaffold.Name, string(TypeResumeReliability))
	assert.Equal(t, []string{"shim_resume_success_rate"}, scaffold.SuccessMetrics)
	assert.Equal(t, "Current configuration", scaffold.ControlDesc)
}
