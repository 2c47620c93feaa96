// Package decision implements the confidence/risk scorer that decides
// whether an action can proceed autonomously or must escalate to a
// human operator.
package decision

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/itsneelabh/kaizen/kerrors"
)

// RiskLevel classifies a decision's blast radius.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var highQualityKeywords = []string{
	"proven", "tested", "documented", "reliable", "standard", "succeeded", "pass", "clear", "reasonable",
}

var lowQualityKeywords = []string{
	"might", "unclear", "experimental", "untested", "failing", "risk",
}

var highRiskKeywords = []string{"production", "delete", "deploy", "failing", "unclear impact"}
var lowRiskKeywords = []string{"comment", "documentation", "safe", "reversible", "low impact"}

// Context is the question/options/evidence handed to MakeDecision.
type Context struct {
	Question string
	Options  []string
	Evidence []string
}

// Decision is the outcome of MakeDecision.
type Decision struct {
	Choice        string
	Confidence    float64
	RiskLevel     RiskLevel
	RequiresHuman bool
	Question      string
	Options       []string
}

// Config configures an Engine.
type Config struct {
	ConfidenceThreshold float64 // in [0,1], default 0.6
}

// Engine scores decisions and keeps an in-memory history.
type Engine struct {
	threshold float64

	mu      sync.Mutex
	history []Decision
}

// NewEngine validates cfg and constructs an Engine. A zero
// ConfidenceThreshold defaults to 0.6; any other out-of-range value
// fails with InvalidConfig.
func NewEngine(cfg Config) (*Engine, error) {
	threshold := cfg.ConfidenceThreshold
	if threshold == 0 {
		threshold = 0.6
	}
	if threshold < 0 || threshold > 1 {
		return nil, kerrors.New("decision.NewEngine", "decision", kerrors.ErrInvalidConfig).
			WithID(fmt.Sprintf("confidenceThreshold=%v", threshold))
	}
	return &Engine{threshold: threshold}, nil
}

// MakeDecision scores ctx and appends the result to history.
func (e *Engine) MakeDecision(ctx Context) (Decision, error) {
	if len(ctx.Options) == 0 {
		return Decision{}, kerrors.New("decision.MakeDecision", "decision", kerrors.ErrInvalidInput)
	}

	confidence := calculateConfidence(ctx.Evidence)
	risk := classifyRisk(ctx.Question, ctx.Evidence)
	requiresHuman := confidence < e.threshold*100 || risk == RiskHigh

	d := Decision{
		Choice:        ctx.Options[0],
		Confidence:    confidence,
		RiskLevel:     risk,
		RequiresHuman: requiresHuman,
		Question:      ctx.Question,
		Options:       ctx.Options,
	}

	e.mu.Lock()
	e.history = append(e.history, d)
	e.mu.Unlock()

	return d, nil
}

// calculateConfidence scores evidence: base 0, +20 per evidence item
// (capped at 3 items), +10 per high-quality keyword hit, -15 per
// low-quality keyword hit, clamped to [0,100].
func calculateConfidence(evidence []string) float64 {
	base := 20.0 * float64(min(len(evidence), 3))

	joined := strings.ToLower(strings.Join(evidence, " "))
	for _, kw := range highQualityKeywords {
		if strings.Contains(joined, kw) {
			base += 10
		}
	}
	for _, kw := range lowQualityKeywords {
		if strings.Contains(joined, kw) {
			base -= 15
		}
	}

	if base < 0 {
		return 0
	}
	if base > 100 {
		return 100
	}
	return base
}

func classifyRisk(question string, evidence []string) RiskLevel {
	joined := strings.ToLower(question + " " + strings.Join(evidence, " "))
	for _, kw := range highRiskKeywords {
		if strings.Contains(joined, kw) {
			return RiskHigh
		}
	}
	for _, kw := range lowRiskKeywords {
		if strings.Contains(joined, kw) {
			return RiskLow
		}
	}
	return RiskMedium
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// EvaluateAlternatives scores every context in ctxs and returns the
// resulting decisions sorted by confidence descending.
func (e *Engine) EvaluateAlternatives(ctxs []Context) ([]Decision, error) {
	out := make([]Decision, 0, len(ctxs))
	for _, c := range ctxs {
		d, err := e.MakeDecision(c)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

// HistoryFilter selects a subset of recorded decisions.
type HistoryFilter struct {
	MinConfidence *float64
	MaxConfidence *float64
	Risk          *RiskLevel
	RequiresHuman *bool
}

// History returns every recorded decision matching filter.
func (e *Engine) History(filter HistoryFilter) []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Decision, 0, len(e.history))
	for _, d := range e.history {
		if filter.MinConfidence != nil && d.Confidence < *filter.MinConfidence {
			continue
		}
		if filter.MaxConfidence != nil && d.Confidence > *filter.MaxConfidence {
			continue
		}
		if filter.Risk != nil && d.RiskLevel != *filter.Risk {
			continue
		}
		if filter.RequiresHuman != nil && d.RequiresHuman != *filter.RequiresHuman {
			continue
		}
		out = append(out, d)
	}
	return out
}
