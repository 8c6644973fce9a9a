// Package evidence defines the shared data shapes consumed by every
// component of the trust engine: evidence bundles handed over by the
// test-execution layer, per-action measurement events streamed by the
// instrumentation layer, and the confidence results derived from them.
package evidence

import "time"

// RiskLevel categorizes the risk attached to a confidence evaluation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Severity categorizes deception alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// LogEntry is one ordered, leveled log line captured during a test item.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// ToolCall records one timed tool invocation.
// Invariant: DurationMs >= 0.
type ToolCall struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Response   any            `json:"response,omitempty"`
	DurationMs float64        `json:"duration_ms"`
	Success    bool           `json:"success"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Bundle is the evidence accumulated for one completed test item.
// It is handed to the confidence scorer by value and treated as read-only;
// the test-execution collaborator owns it for the lifetime of the item.
type Bundle struct {
	Logs         []LogEntry       `json:"logs"`
	ToolCalls    []ToolCall       `json:"tool_calls"`
	Screenshots  []string         `json:"screenshots"`
	Measurements []map[string]any `json:"measurements"`
	Errors       []string         `json:"errors"`
}

// SystemMetrics captures resource usage sampled alongside an operation.
type SystemMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

// MeasurementEvent is one instrumented operation observed in real time.
// Events are produced continuously and consumed append-only by the
// deception monitor.
type MeasurementEvent struct {
	Timestamp      time.Time      `json:"timestamp"`
	AgentID        string         `json:"agent_id"`
	Operation      string         `json:"operation"`
	Selector       string         `json:"selector"`
	ResponseTimeMs float64        `json:"response_time_ms"`
	Result         map[string]any `json:"result,omitempty"`
	SystemMetrics  SystemMetrics  `json:"system_metrics"`
}

// DimensionKeys are the numeric result fields the statistical detectors
// inspect (element geometry reported by the measurement helpers).
var DimensionKeys = []string{"width", "height", "x", "y"}

// Dimension extracts a numeric dimension from an event result.
// JSON decoding yields float64; integer producers are tolerated.
func (e *MeasurementEvent) Dimension(key string) (float64, bool) {
	if e.Result == nil {
		return 0, false
	}
	switch v := e.Result[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// ConfidenceFactors are the five independent factor scores, each in [0,1].
type ConfidenceFactors struct {
	TimingRealism          float64 `json:"timing_realism"`
	EvidenceRichness       float64 `json:"evidence_richness"`
	BehavioralConsistency  float64 `json:"behavioral_consistency"`
	CrossValidation        float64 `json:"cross_validation"`
	AuthenticityIndicators float64 `json:"authenticity_indicators"`
}

// ConfidenceResult is the outcome of one evidence evaluation.
// Created fresh per evaluation, never mutated.
type ConfidenceResult struct {
	OverallScore        float64           `json:"overall_score"`
	Factors             ConfidenceFactors `json:"factors"`
	RiskLevel           RiskLevel         `json:"risk_level"`
	DeceptionIndicators []string          `json:"deception_indicators"`
	Recommendations     []string          `json:"recommendations"`
	EvaluatedAt         time.Time         `json:"evaluated_at"`
}
