package safety

import (
	"fmt"
	"strings"
)

var remediations = map[string]string{
	BoundCrashRate:         "Investigate recent checkpoint/restore changes; consider reverting the active experiment.",
	BoundCheckpointTime:    "Profile the checkpoint path for the active experiment; reduce checkpoint interval if needed.",
	BoundResumeSuccessRate: "Inspect resume failures; verify checkpoint integrity and storage availability.",
	BoundTokenCost:         "Review prompt/response sizes and model routing for the active experiment.",
	BoundRestartTime:       "Inspect supervisor startup path; check for resource contention during restart.",
}

// GenerateReport renders result as a human-readable text block: one
// line per violation with severity tag, message, current/threshold
// values, and a canned remediation keyed by bound type.
func GenerateReport(result ValidationResult) string {
	var sb strings.Builder

	if result.Passed {
		sb.WriteString("Safety validation: PASSED — no bounds violated.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Safety validation: FAILED — %d violation(s).\n", len(result.Violations))
	if result.ShouldRollback {
		fmt.Fprintf(&sb, "Rollback recommended: %s\n", result.RollbackReason)
	}
	sb.WriteString("\n")

	for _, v := range result.Violations {
		tag := "[WARNING]"
		if v.Severity == SeverityCritical {
			tag = "[CRITICAL]"
		}
		fmt.Fprintf(&sb, "%s %s\n", tag, v.Message)
		fmt.Fprintf(&sb, "  current=%.4f threshold=%.4f\n", v.CurrentValue, v.Threshold)
		if remedy, ok := remediations[v.BoundType]; ok {
			fmt.Fprintf(&sb, "  remediation: %s\n", remedy)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
