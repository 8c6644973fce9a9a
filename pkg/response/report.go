package response

import (
	"fmt"
	"strings"

	"github.com/veracity-labs/veracity/pkg/evidence"
)

// RenderReport assembles the human-readable evaluation report handed to
// the orchestration layer. Fixed sections in fixed order; empty
// sections are omitted.
func RenderReport(result *evidence.ConfidenceResult, resp *GraduatedResponse) string {
	var b strings.Builder

	b.WriteString("=== EVIDENCE EVALUATION REPORT ===\n\n")
	fmt.Fprintf(&b, "Overall Confidence: %.1f%%\n", result.OverallScore*100)
	fmt.Fprintf(&b, "Risk Level: %s\n\n", result.RiskLevel)

	b.WriteString("Factor Breakdown:\n")
	fmt.Fprintf(&b, "  Timing Realism:          %.1f%%\n", result.Factors.TimingRealism*100)
	fmt.Fprintf(&b, "  Evidence Richness:       %.1f%%\n", result.Factors.EvidenceRichness*100)
	fmt.Fprintf(&b, "  Behavioral Consistency:  %.1f%%\n", result.Factors.BehavioralConsistency*100)
	fmt.Fprintf(&b, "  Cross Validation:        %.1f%%\n", result.Factors.CrossValidation*100)
	fmt.Fprintf(&b, "  Authenticity Indicators: %.1f%%\n", result.Factors.AuthenticityIndicators*100)

	if len(result.DeceptionIndicators) > 0 {
		b.WriteString("\nDeception Indicators:\n")
		for _, ind := range result.DeceptionIndicators {
			fmt.Fprintf(&b, "  - %s\n", ind)
		}
	}

	fmt.Fprintf(&b, "\nDecision: %s (%s)\n", resp.Action.Type, resp.Action.Severity)
	fmt.Fprintf(&b, "Reasoning: %s\n", resp.Reasoning)

	if len(resp.Action.Requirements) > 0 {
		b.WriteString("\nRequired Actions:\n")
		for _, r := range resp.Action.Requirements {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	if len(resp.Action.NextSteps) > 0 {
		b.WriteString("\nNext Steps:\n")
		for _, s := range resp.Action.NextSteps {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	if len(resp.EscalationPath) > 0 {
		fmt.Fprintf(&b, "\nEscalation Path: %s\n", strings.Join(resp.EscalationPath, " -> "))
	}
	if len(result.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, r := range result.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}

	return b.String()
}
