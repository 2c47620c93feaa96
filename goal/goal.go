// Package goal implements the goal decomposer: it turns a single
// high-level goal into an ordered, dependency-wired set of subgoals
// sized by a keyword-driven complexity score.
package goal

import (
	"fmt"
	"math"
	"strings"

	"github.com/itsneelabh/kaizen/kerrors"
)

// Type enumerates the goal types with a fixed subgoal template.
type Type string

const (
	TypeDevelopment   Type = "development"
	TypeTesting       Type = "testing"
	TypeDocumentation Type = "documentation"
	TypeDeployment    Type = "deployment"
	TypeOptimization  Type = "optimization"
	TypeQuality       Type = "quality"
	TypeWorkflow      Type = "workflow"
	TypeProcess       Type = "process"
)

// Priority is a goal or subgoal's priority band.
type Priority int

// Constraints narrows how a goal may be decomposed.
type Constraints struct {
	MaxHours  float64
	Deadline  string
	Resources []string
}

// Goal is the unit decompose() operates on.
type Goal struct {
	ID          string
	Description string
	Type        Type
	Priority    Priority
	Constraints *Constraints
}

// SubGoal is one instantiated unit of work.
type SubGoal struct {
	ID               string
	Description      string
	Priority         Priority
	EstimatedHours   float64
	SuccessCriteria  []string
	Dependencies     []string
}

// Decomposition is the full output of Decompose: the subgoals plus
// their dependency adjacency map.
type Decomposition struct {
	GoalID               string
	Complexity           int
	SubGoals             []SubGoal
	Dependencies         map[string][]string
	TotalEstimatedHours  float64
}

var reduceComplexityKeywords = []string{"fix", "update", "small", "simple", "quick"}
var increaseComplexityKeywords = []string{"system", "architecture", "complete", "comprehensive", "multiple", "oauth", "2fa", "session"}

// ComplexityScore derives a 1-10 complexity score for description,
// starting at 3 and adjusting per keyword/length/word-count rules.
func ComplexityScore(description string) int {
	lower := strings.ToLower(description)
	score := 3

	for _, kw := range reduceComplexityKeywords {
		if strings.Contains(lower, kw) {
			score--
			break
		}
	}
	for _, kw := range increaseComplexityKeywords {
		if strings.Contains(lower, kw) {
			score += 4
			break
		}
	}

	length := len(description)
	if length > 100 {
		score += 2
	} else if length < 30 {
		score--
	}

	words := len(strings.Fields(description))
	if words > 15 {
		score += 2
	} else if words < 5 {
		score--
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Decompose validates g and produces its Decomposition.
func Decompose(g Goal) (Decomposition, error) {
	if g.ID == "" || g.Description == "" {
		return Decomposition{}, kerrors.New("goal.Decompose", "goal", kerrors.ErrInvalidInput)
	}

	complexity := ComplexityScore(g.Description)
	tmpl := templateFor(g.Type)
	scale := float64(complexity) / 5

	subgoals := make([]SubGoal, 0, len(tmpl))
	n := len(tmpl)
	for i, t := range tmpl {
		hours := t.Hours * scale
		if hours < 0.5 {
			hours = 0.5
		}
		subgoals = append(subgoals, SubGoal{
			ID:              fmt.Sprintf("%s-sub-%d", g.ID, i+1),
			Description:     t.Description,
			Priority:        priorityForPosition(i, n, g.Priority),
			EstimatedHours:  hours,
			SuccessCriteria: append([]string(nil), t.SuccessCriteria...),
		})
	}

	deps := wireDependencies(g.Type, subgoals)
	for i := range subgoals {
		subgoals[i].Dependencies = deps[subgoals[i].ID]
	}

	total := 0.0
	for _, sg := range subgoals {
		total += sg.EstimatedHours
	}

	if g.Constraints != nil && g.Constraints.MaxHours > 0 && total > g.Constraints.MaxHours {
		factor := g.Constraints.MaxHours / total
		total = 0
		for i := range subgoals {
			hours := subgoals[i].EstimatedHours * factor
			if hours < 0.5 {
				hours = 0.5
			}
			subgoals[i].EstimatedHours = hours
			total += hours
		}
	}

	return Decomposition{
		GoalID:              g.ID,
		Complexity:          complexity,
		SubGoals:            subgoals,
		Dependencies:        deps,
		TotalEstimatedHours: total,
	}, nil
}

// priorityForPosition assigns goal priority to the first 30% of
// subgoals, min(3, goalPriority+1) to the next 40%, and 3 to the
// final 30%. Band boundaries are clamped so the last subgoal always
// falls in the final band, even when n is too small for three
// non-empty bands.
func priorityForPosition(i, n int, goalPriority Priority) Priority {
	first := int(math.Ceil(float64(n) * 0.3))
	if first > n-1 {
		first = n - 1
	}
	mid := first + int(math.Floor(float64(n)*0.4))
	if mid > n-1 {
		mid = n - 1
	}

	switch {
	case i < first:
		return goalPriority
	case i < mid:
		p := goalPriority + 1
		if p > 3 {
			p = 3
		}
		return p
	default:
		return 3
	}
}

// wireDependencies applies the per-type dependency rule: a linear
// chain for development/deployment/workflow/process, a fan-in on the
// last subgoal for quality/optimization, none otherwise.
func wireDependencies(t Type, subgoals []SubGoal) map[string][]string {
	deps := make(map[string][]string, len(subgoals))
	for _, sg := range subgoals {
		deps[sg.ID] = nil
	}
	if len(subgoals) == 0 {
		return deps
	}

	switch t {
	case TypeDevelopment, TypeDeployment, TypeWorkflow, TypeProcess:
		for i := 1; i < len(subgoals); i++ {
			deps[subgoals[i].ID] = []string{subgoals[i-1].ID}
		}
	case TypeQuality, TypeOptimization:
		last := subgoals[len(subgoals)-1].ID
		all := make([]string, 0, len(subgoals)-1)
		for i := 0; i < len(subgoals)-1; i++ {
			all = append(all, subgoals[i].ID)
		}
		deps[last] = all
	}
	return deps
}
