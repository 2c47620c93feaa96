// Package opportunity implements the opportunity detector: a fixed
// set of statistical policies run against a metric snapshot, producing
// ranked, typed, confidence-scored improvement hypotheses plus a
// pattern-memory log of what has been seen before.
package opportunity

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/kaizen/metrics"
)

// Type enumerates the opportunity kinds the fixed detector policies
// can produce.
type Type string

const (
	TypeCheckpointIntervalOpt Type = "checkpoint_interval_optimization"
	TypeCheckpointPerformance Type = "checkpoint_performance"
	TypeResumeReliability     Type = "resume_reliability"
	TypeRoutingOpt            Type = "model_routing_optimization"
	TypeTokenOpt              Type = "token_optimization"
	TypeSupervisorPerf        Type = "supervisor_performance"
	TypeMonitorLatency        Type = "monitor_latency"
)

// Opportunity is one surfaced improvement hypothesis.
type Opportunity struct {
	ID               string
	Type             Type
	Pattern          string
	Hypothesis       string
	Confidence       float64
	Impact           string
	CurrentValue     float64
	ProposedValue    float64
	EstimatedSavings float64
	SampleSize       int
	DetectedAt       time.Time
}

// PatternEntry is one pattern-memory record.
type PatternEntry struct {
	Pattern       string
	FirstDetected time.Time
	LastDetected  time.Time
	Count         int
	Expired       bool
}

// Config configures a Detector.
type Config struct {
	MinConfidence     float64
	MinImpact         float64
	MinSampleSize     int
	PatternExpiryTime time.Duration
	Now               func() time.Time // overridable for tests; defaults to time.Now
}

// Detector runs the fixed detector policies against metric snapshots.
type Detector struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	history map[string]*PatternEntry
	seq     int
}

// NewDetector constructs a Detector from cfg.
func NewDetector(cfg Config) *Detector {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Detector{
		cfg:     cfg,
		now:     now,
		history: make(map[string]*PatternEntry),
	}
}

// DetectOpportunities runs every detector policy against snap, filters
// by confidence/sample-size thresholds, records surfaced patterns in
// pattern memory, and returns the surviving opportunities in detector
// order (unranked — call Rank to order by confidence × estimated savings).
func (d *Detector) DetectOpportunities(snap metrics.Snapshot) []Opportunity {
	candidates := d.runPolicies(snap)

	surfaced := make([]Opportunity, 0, len(candidates))
	for _, o := range candidates {
		if o.Confidence >= d.cfg.MinConfidence && o.SampleSize >= d.cfg.MinSampleSize {
			surfaced = append(surfaced, o)
		}
	}

	d.recordPatterns(surfaced)
	d.expirePatterns()

	return surfaced
}

func (d *Detector) runPolicies(snap metrics.Snapshot) []Opportunity {
	now := d.now()
	var out []Opportunity

	if o, ok := detectHighCrashRate(snap, now, d.nextID); ok {
		out = append(out, o)
	}
	if o, ok := detectSlowCheckpoint(snap, now, d.cfg.MinSampleSize, d.nextID); ok {
		out = append(out, o)
	}
	if o, ok := detectLowResumeRate(snap, now, d.nextID); ok {
		out = append(out, o)
	}
	if o, ok := detectLowRoutingAccuracy(snap, now, d.nextID); ok {
		out = append(out, o)
	}
	if o, ok := detectOpusOveruse(snap, now, d.cfg.MinSampleSize, d.nextID); ok {
		out = append(out, o)
	}
	if o, ok := detectSlowSupervisorRestart(snap, now, d.nextID); ok {
		out = append(out, o)
	}
	if o, ok := detectMonitorLatency(snap, now, d.nextID); ok {
		out = append(out, o)
	}

	return out
}

func (d *Detector) nextID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return "opp-" + itoa(d.seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (d *Detector) recordPatterns(opps []Opportunity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for _, o := range opps {
		entry, ok := d.history[o.Pattern]
		if !ok {
			entry = &PatternEntry{Pattern: o.Pattern, FirstDetected: now}
			d.history[o.Pattern] = entry
		}
		entry.LastDetected = now
		entry.Count++
		entry.Expired = false
	}
}

func (d *Detector) expirePatterns() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for _, entry := range d.history {
		if now.Sub(entry.LastDetected) > d.cfg.PatternExpiryTime {
			entry.Expired = true
		}
	}
}

// GetPatternHistory returns every recorded pattern, including expired
// ones, ordered by pattern text.
func (d *Detector) GetPatternHistory() []PatternEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PatternEntry, 0, len(d.history))
	for _, entry := range d.history {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

// Rank sorts opps by confidence*estimatedSavings descending; ties
// preserve their original relative order (stable sort).
func Rank(opps []Opportunity) []Opportunity {
	out := make([]Opportunity, len(opps))
	copy(out, opps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence*out[i].EstimatedSavings > out[j].Confidence*out[j].EstimatedSavings
	})
	return out
}

// ConfidenceOfSamples computes 1 minus the coefficient of variation of
// samples, clamped to [0,1]. Returns 0 for fewer than two samples.
func ConfidenceOfSamples(samples []float64) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(n)
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)
	cv := stddev / math.Abs(mean)
	confidence := 1 - cv
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
