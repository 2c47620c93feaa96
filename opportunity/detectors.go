package opportunity

import (
	"time"

	"github.com/itsneelabh/kaizen/metrics"
)

const (
	metricCrashAccuracy  = "shim_crash_prediction_accuracy"
	metricCheckpointTime = "shim_checkpoint_creation_time"
	metricResumeRate     = "shim_resume_success_rate"
	metricRoutingAccuracy = "model_routing_accuracy"
	metricHaikuSelections = "model_selections_haiku_total"
	metricSonnetSelections = "model_selections_sonnet_total"
	metricOpusSelections  = "model_selections_opus_total"
	metricRestartTime     = "shim_supervisor_restart_time"
	metricMonitorLatency  = "monitor_latency_ms"
)

// detectHighCrashRate is policy 1: crash_prediction_accuracy < 0.90
// and the derived crash rate exceeds 0.10.
func detectHighCrashRate(snap metrics.Snapshot, now time.Time, nextID func() string) (Opportunity, bool) {
	accuracy, ok := snap.Gauge(metricCrashAccuracy)
	if !ok {
		return Opportunity{}, false
	}
	crashRate := 1 - accuracy
	if accuracy >= 0.90 || crashRate <= 0.10 {
		return Opportunity{}, false
	}
	return Opportunity{
		ID:               nextID(),
		Type:             TypeCheckpointIntervalOpt,
		Pattern:          "high crash rate with frequent checkpoints",
		Hypothesis:       "Reducing checkpoint interval improves crash-prediction accuracy",
		Confidence:       0.85,
		Impact:           "reduces crash rate",
		CurrentValue:     5,
		ProposedValue:    3,
		EstimatedSavings: crashRate * 0.4 * 1000,
		SampleSize:       10,
		DetectedAt:       now,
	}, true
}

// detectSlowCheckpoint is policy 2: checkpoint histogram average above
// 100ms with enough samples.
func detectSlowCheckpoint(snap metrics.Snapshot, now time.Time, minSampleSize int, nextID func() string) (Opportunity, bool) {
	stats, ok := snap.Histogram(metricCheckpointTime)
	if !ok || int(stats.Count) < minSampleSize {
		return Opportunity{}, false
	}
	avg := stats.Sum / float64(stats.Count)
	if avg <= 100 {
		return Opportunity{}, false
	}
	proposed := 0.5 * avg
	savings := (avg - proposed) * float64(stats.Count)
	return Opportunity{
		ID:               nextID(),
		Type:             TypeCheckpointPerformance,
		Pattern:          "slow checkpoint creation",
		Hypothesis:       "Halving checkpoint payload size reduces creation time",
		Confidence:       0.80,
		Impact:           "reduces checkpoint latency",
		CurrentValue:     avg,
		ProposedValue:    proposed,
		EstimatedSavings: savings,
		SampleSize:       int(stats.Count),
		DetectedAt:       now,
	}, true
}

// detectLowResumeRate is policy 3: resume success rate gauge below 0.90.
func detectLowResumeRate(snap metrics.Snapshot, now time.Time, nextID func() string) (Opportunity, bool) {
	rate, ok := snap.Gauge(metricResumeRate)
	if !ok || rate >= 0.90 {
		return Opportunity{}, false
	}
	return Opportunity{
		ID:               nextID(),
		Type:             TypeResumeReliability,
		Pattern:          "low resume success rate",
		Hypothesis:       "Improving checkpoint validation increases resume reliability",
		Confidence:       0.75,
		Impact:           "improves resume reliability",
		CurrentValue:     rate,
		ProposedValue:    0.95,
		EstimatedSavings: (0.95 - rate) * 1000,
		SampleSize:       10,
		DetectedAt:       now,
	}, true
}

// detectLowRoutingAccuracy is policy 4: model-routing accuracy below 0.85.
func detectLowRoutingAccuracy(snap metrics.Snapshot, now time.Time, nextID func() string) (Opportunity, bool) {
	accuracy, ok := snap.Gauge(metricRoutingAccuracy)
	if !ok || accuracy >= 0.85 {
		return Opportunity{}, false
	}
	return Opportunity{
		ID:               nextID(),
		Type:             TypeRoutingOpt,
		Pattern:          "low model routing accuracy",
		Hypothesis:       "Retraining the routing model improves selection accuracy",
		Confidence:       0.80,
		Impact:           "improves model routing",
		CurrentValue:     accuracy,
		ProposedValue:    0.90,
		EstimatedSavings: (0.90 - accuracy) * 1000,
		SampleSize:       10,
		DetectedAt:       now,
	}, true
}

// detectOpusOveruse is policy 5: opus selections exceed 30% of total
// haiku+sonnet+opus selections, with enough total volume.
func detectOpusOveruse(snap metrics.Snapshot, now time.Time, minSampleSize int, nextID func() string) (Opportunity, bool) {
	haiku, _ := snap.Counter(metricHaikuSelections)
	sonnet, _ := snap.Counter(metricSonnetSelections)
	opus, okOpus := snap.Counter(metricOpusSelections)
	if !okOpus {
		return Opportunity{}, false
	}
	total := haiku + sonnet + opus
	if total < float64(minSampleSize) || total == 0 {
		return Opportunity{}, false
	}
	ratio := opus / total
	if ratio <= 0.30 {
		return Opportunity{}, false
	}
	return Opportunity{
		ID:               nextID(),
		Type:             TypeTokenOpt,
		Pattern:          "opus model overuse",
		Hypothesis:       "Routing more requests to haiku/sonnet reduces token cost",
		Confidence:       0.85,
		Impact:           "reduces token cost",
		CurrentValue:     ratio,
		ProposedValue:    0.15,
		EstimatedSavings: (ratio - 0.15) * total * 1000,
		SampleSize:       int(total),
		DetectedAt:       now,
	}, true
}

// detectSlowSupervisorRestart is policy 6: supervisor restart histogram
// average above 5000ms.
func detectSlowSupervisorRestart(snap metrics.Snapshot, now time.Time, nextID func() string) (Opportunity, bool) {
	stats, ok := snap.Histogram(metricRestartTime)
	if !ok || stats.Count == 0 {
		return Opportunity{}, false
	}
	avg := stats.Sum / float64(stats.Count)
	if avg <= 5000 {
		return Opportunity{}, false
	}
	proposed := 0.6 * avg
	return Opportunity{
		ID:               nextID(),
		Type:             TypeSupervisorPerf,
		Pattern:          "slow supervisor restart",
		Hypothesis:       "Reducing supervisor startup work improves restart time",
		Confidence:       0.75,
		Impact:           "reduces restart latency",
		CurrentValue:     avg,
		ProposedValue:    proposed,
		EstimatedSavings: (avg - proposed) * float64(stats.Count),
		SampleSize:       int(stats.Count),
		DetectedAt:       now,
	}, true
}

// detectMonitorLatency is policy 7: monitor latency histogram average
// above 25ms.
func detectMonitorLatency(snap metrics.Snapshot, now time.Time, nextID func() string) (Opportunity, bool) {
	stats, ok := snap.Histogram(metricMonitorLatency)
	if !ok || stats.Count == 0 {
		return Opportunity{}, false
	}
	avg := stats.Sum / float64(stats.Count)
	if avg <= 25 {
		return Opportunity{}, false
	}
	proposed := 0.5 * avg
	return Opportunity{
		ID:               nextID(),
		Type:             TypeMonitorLatency,
		Pattern:          "slow monitor evaluation",
		Hypothesis:       "Reducing monitor evaluation scope improves latency",
		Confidence:       0.70,
		Impact:           "reduces monitor latency",
		CurrentValue:     avg,
		ProposedValue:    proposed,
		EstimatedSavings: (avg - proposed) * float64(stats.Count),
		SampleSize:       int(stats.Count),
		DetectedAt:       now,
	}, true
}
