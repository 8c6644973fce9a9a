package response

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/confidence"
	"github.com/veracity-labs/veracity/pkg/evidence"
)

func TestDecideBandBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		actionType string
		severity   string
	}{
		{1.0, "continue", "low"},
		{0.9, "continue", "low"},
		{0.89, "monitor", "low"},
		{0.7, "monitor", "low"},
		{0.69, "verify", "medium"},
		{0.5, "verify", "medium"},
		{0.49, "quarantine", "high"},
		{0.3, "quarantine", "high"},
		{0.29, "reject", "critical"},
		{0.0, "reject", "critical"},
	}
	for _, tc := range cases {
		resp := Decide(tc.confidence, evidence.RiskMedium)
		assert.Equal(t, tc.actionType, resp.Action.Type, "confidence %.2f", tc.confidence)
		assert.Equal(t, tc.severity, resp.Action.Severity, "confidence %.2f", tc.confidence)
		assert.Equal(t, tc.confidence, resp.Confidence)
		assert.NotEmpty(t, resp.Reasoning)
		assert.NotEmpty(t, resp.Action.Requirements)
		assert.NotEmpty(t, resp.Action.NextSteps)
		assert.NotEmpty(t, resp.EscalationPath)
	}
}

func TestDecideCarriesRiskLevelThrough(t *testing.T) {
	resp := Decide(0.95, evidence.RiskCritical)
	assert.Equal(t, evidence.RiskCritical, resp.RiskLevel)
	assert.Equal(t, "continue", resp.Action.Type) // policy bands on confidence only
}

func TestMonitoringCadenceBands(t *testing.T) {
	assert.Equal(t, "periodic", MonitoringCadence(0.95))
	assert.Equal(t, "regular", MonitoringCadence(0.75))
	assert.Equal(t, "frequent", MonitoringCadence(0.6))
	assert.Equal(t, "continuous", MonitoringCadence(0.35))
	assert.Equal(t, "immediate", MonitoringCadence(0.1))
}

func TestRenderReportSections(t *testing.T) {
	result := &evidence.ConfidenceResult{
		OverallScore: 0.42,
		Factors: evidence.ConfidenceFactors{
			TimingRealism:          0.3,
			EvidenceRichness:       0.5,
			BehavioralConsistency:  0.4,
			CrossValidation:        0.5,
			AuthenticityIndicators: 0.5,
		},
		RiskLevel:           evidence.RiskHigh,
		DeceptionIndicators: []string{"High: suspicious timing patterns"},
		Recommendations:     []string{"Require additional verification"},
		EvaluatedAt:         time.Now(),
	}
	resp := Decide(result.OverallScore, result.RiskLevel)

	report := RenderReport(result, resp)

	assert.Contains(t, report, "EVIDENCE EVALUATION REPORT")
	assert.Contains(t, report, "Overall Confidence: 42.0%")
	assert.Contains(t, report, "Risk Level: high")
	assert.Contains(t, report, "Timing Realism:          30.0%")
	assert.Contains(t, report, "High: suspicious timing patterns")
	assert.Contains(t, report, "Decision: quarantine (high)")
	assert.Contains(t, report, "Required Actions:")
	assert.Contains(t, report, "Next Steps:")
	assert.Contains(t, report, "Escalation Path:")
	assert.Contains(t, report, "Require additional verification")
}

func TestRenderReportOmitsEmptySections(t *testing.T) {
	result := &evidence.ConfidenceResult{OverallScore: 0.95, RiskLevel: evidence.RiskLow}
	resp := Decide(result.OverallScore, result.RiskLevel)

	report := RenderReport(result, resp)
	assert.NotContains(t, report, "Deception Indicators:")
	assert.NotContains(t, report, "Recommendations:")
}

// End-to-end: a realistic genuine run scores into a permissive band.
func TestGenuineRunGetsPermissiveAction(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := evidence.Bundle{
		Logs: []evidence.LogEntry{
			{Timestamp: base, Level: "info", Message: "navigating to checkout page for cart validation", Context: map[string]any{"url": "/checkout"}},
			{Timestamp: base.Add(2 * time.Second), Level: "warn", Message: "retrying click after element was briefly obscured", Context: map[string]any{"selector": "#submit"}},
			{Timestamp: base.Add(4 * time.Second), Level: "error", Message: "first submit attempt rejected by validation, retrying with corrected field", Context: map[string]any{"field": "zip"}},
		},
		ToolCalls: []evidence.ToolCall{
			{ToolName: "browser_click", DurationMs: 1200, Success: true, Parameters: map[string]any{"selector": "#submit", "button": "left", "timeout": 5000}, Response: "clicked submit", Timestamp: base},
			{ToolName: "browser_click", DurationMs: 900, Success: true, Parameters: map[string]any{"selector": "#confirm", "button": "left", "timeout": 5000}, Response: "clicked confirm", Timestamp: base.Add(3 * time.Second)},
			{ToolName: "browser_click", DurationMs: 800, Success: false, Parameters: map[string]any{"selector": "#apply", "button": "left", "timeout": 5000}, Response: "element not interactable", Timestamp: base.Add(6 * time.Second)},
			{ToolName: "browser_click", DurationMs: 700, Success: true, Parameters: map[string]any{"selector": "#apply", "button": "left", "timeout": 5000}, Response: "clicked apply", Timestamp: base.Add(9 * time.Second)},
		},
		Screenshots:  []string{"checkout.png"},
		Measurements: []map[string]any{{"width": 317.0, "height": 44.0}},
	}

	result := confidence.NewScorer().Score(ev, 12000, nil)
	resp := Decide(result.OverallScore, result.RiskLevel)

	assert.GreaterOrEqual(t, result.Factors.TimingRealism, 0.8)
	assert.True(t, resp.Action.Type == "continue" || resp.Action.Type == "monitor",
		"got action %q at confidence %.3f", resp.Action.Type, result.OverallScore)
}

// End-to-end: a fabricated instant navigation is rejected outright.
func TestFabricatedRunIsRejected(t *testing.T) {
	ev := evidence.Bundle{
		ToolCalls: []evidence.ToolCall{
			{ToolName: "browser_navigate", DurationMs: 5, Success: true, Timestamp: time.Now()},
		},
	}

	result := confidence.NewScorer().Score(ev, 5, nil)
	resp := Decide(result.OverallScore, result.RiskLevel)

	require.Equal(t, "reject", resp.Action.Type)
	assert.Equal(t, "critical", resp.Action.Severity)

	report := RenderReport(result, resp)
	assert.Contains(t, strings.ToLower(report), "reject")
}
