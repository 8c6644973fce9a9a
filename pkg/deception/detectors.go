package deception

import (
	"math"
	"regexp"

	"github.com/google/uuid"

	"github.com/veracity-labs/veracity/pkg/evidence"
	"github.com/veracity-labs/veracity/pkg/stats"
)

// detector inspects one event against a consistent history snapshot.
// history excludes the current event; snapshot includes it as the last
// element. Detectors run in fixed order and are independently testable.
type detector func(m *Monitor, event evidence.MeasurementEvent, history, snapshot []evidence.MeasurementEvent) *Alert

var detectors = []detector{
	detectTimingPattern,
	detectBenfordAnomaly,
	detectConsistencyViolation,
	detectResourceAnomaly,
	detectCrossAgentCorrelation,
}

// Operations that cannot legitimately complete in single-digit
// milliseconds: DOM analysis, rendering, extraction, screenshots.
var complexOpPattern = regexp.MustCompile(`(?i)(analyz|extract|render|screenshot|evaluat|traverse|full_page|batch)`)

// Operations expected to burn measurable CPU and memory.
var heavyOpPattern = regexp.MustCompile(`(?i)(screenshot|render|analyz|extract|batch|full_page)`)

// Operations that legitimately move or resize elements.
var interactionOpPattern = regexp.MustCompile(`(?i)(click|drag|scroll|resize|type|input|hover)`)

// detectTimingPattern checks the current response time against the
// recent timing distribution. First matching rule wins.
func detectTimingPattern(m *Monitor, event evidence.MeasurementEvent, history, _ []evidence.MeasurementEvent) *Alert {
	t := m.tunables
	if len(history) < t.TimingMinPriorEvents {
		return nil
	}
	times := responseTimes(tail(history, t.TimingWindow))
	mean := stats.Mean(times)
	stdev := stats.StdDev(times)
	rt := event.ResponseTimeMs

	if complexOpPattern.MatchString(event.Operation) && rt < t.ImpossiblyFastMs {
		return &Alert{
			Severity:   evidence.SeverityCritical,
			Pattern:    PatternImpossiblyFast,
			Confidence: 0.95,
			Evidence: map[string]any{
				"operation":        event.Operation,
				"response_time_ms": rt,
				"floor_ms":         t.ImpossiblyFastMs,
			},
		}
	}
	if stdev < t.UniformStdDevMs && mean > t.UniformMinMeanMs {
		return &Alert{
			Severity:   evidence.SeverityHigh,
			Pattern:    PatternUniformTiming,
			Confidence: 0.8,
			Evidence:   map[string]any{"mean_ms": mean, "stdev_ms": stdev},
		}
	}
	if stdev > 0 {
		if z := math.Abs(rt-mean) / stdev; z > t.OutlierZScore {
			return &Alert{
				Severity:   evidence.SeverityMedium,
				Pattern:    PatternOutlier,
				Confidence: 0.6,
				Evidence:   map[string]any{"z_score": z, "mean_ms": mean, "stdev_ms": stdev, "response_time_ms": rt},
			}
		}
	}
	if rt > 0 && math.Mod(rt, t.RoundBaseMs) == 0 {
		return &Alert{
			Severity:   evidence.SeverityLow,
			Pattern:    PatternRoundTiming,
			Confidence: 0.4,
			Evidence:   map[string]any{"response_time_ms": rt},
		}
	}
	return nil
}

// detectBenfordAnomaly tests the leading-digit distribution of reported
// element dimensions against Benford's Law. Fabricated geometry tends to
// cluster on round, uniform digits.
func detectBenfordAnomaly(m *Monitor, event evidence.MeasurementEvent, history, snapshot []evidence.MeasurementEvent) *Alert {
	t := m.tunables

	prior := 0
	for i := range history {
		if hasDimensions(&history[i]) {
			prior++
		}
	}
	if prior < t.BenfordMinEvents {
		return nil
	}

	var values, widths []float64
	for i := range snapshot {
		e := &snapshot[i]
		for _, key := range evidence.DimensionKeys {
			if v, ok := e.Dimension(key); ok {
				values = append(values, v)
				if key == "width" {
					widths = append(widths, v)
				}
			}
		}
	}

	deviation := stats.BenfordDeviation(values)
	roundCluster := stats.RoundFraction(widths, 10) > t.RoundClusterFraction

	if deviation <= t.BenfordDeviation && !roundCluster {
		return nil
	}

	severity := evidence.SeverityMedium
	if deviation > t.BenfordHighDeviation {
		severity = evidence.SeverityHigh
	}
	confidence := math.Min(0.9, 2*deviation)
	if roundCluster && confidence < t.RoundClusterMinConfidence {
		confidence = t.RoundClusterMinConfidence
	}
	return &Alert{
		Severity:   severity,
		Pattern:    PatternStatisticalAnomal,
		Confidence: confidence,
		Evidence: map[string]any{
			"benford_deviation": deviation,
			"digit_samples":     len(values),
			"round_cluster":     roundCluster,
		},
	}
}

// detectConsistencyViolation flags physically implausible jumps: the
// same selector reporting a large geometry change within minutes with no
// interaction that could have mutated the DOM.
func detectConsistencyViolation(m *Monitor, event evidence.MeasurementEvent, history, _ []evidence.MeasurementEvent) *Alert {
	t := m.tunables
	if event.Selector == "" || !hasDimensions(&event) {
		return nil
	}
	if interactionOpPattern.MatchString(event.Operation) {
		return nil
	}
	cutoff := event.Timestamp.Add(-t.ConsistencyWindow)

	// Compare against every same-selector measurement in the window, not
	// just the nearest one; a benign recent reading must not mask an
	// earlier implausible jump. An interaction on the selector explains
	// everything measured before it.
	for i := len(history) - 1; i >= 0; i-- {
		prev := &history[i]
		if prev.Timestamp.Before(cutoff) {
			break
		}
		if prev.Selector != event.Selector {
			continue
		}
		if interactionOpPattern.MatchString(prev.Operation) {
			return nil
		}
		for _, key := range evidence.DimensionKeys {
			cur, ok1 := event.Dimension(key)
			old, ok2 := prev.Dimension(key)
			if !ok1 || !ok2 {
				continue
			}
			limit := t.MaxDimensionJumpPx
			if key == "x" || key == "y" {
				limit = t.MaxPositionJumpPx
			}
			if math.Abs(cur-old) > limit {
				return &Alert{
					Severity:   evidence.SeverityHigh,
					Pattern:    PatternConsistency,
					Confidence: 0.85,
					Evidence: map[string]any{
						"selector":  event.Selector,
						"dimension": key,
						"previous":  old,
						"current":   cur,
						"delta":     math.Abs(cur - old),
					},
				}
			}
		}
	}
	return nil
}

// detectResourceAnomaly flags heavy operations reporting near-zero
// resource usage: real rendering and analysis cost CPU and memory.
func detectResourceAnomaly(m *Monitor, event evidence.MeasurementEvent, _, _ []evidence.MeasurementEvent) *Alert {
	t := m.tunables
	if !heavyOpPattern.MatchString(event.Operation) {
		return nil
	}
	sm := event.SystemMetrics
	if sm.CPUUsage >= t.HeavyOpMinCPU || sm.MemoryUsage >= t.HeavyOpMinMemory {
		return nil
	}
	return &Alert{
		Severity:   evidence.SeverityHigh,
		Pattern:    PatternLowResourceUsage,
		Confidence: 0.8,
		Evidence: map[string]any{
			"operation":    event.Operation,
			"cpu_usage":    sm.CPUUsage,
			"memory_usage": sm.MemoryUsage,
		},
	}
}

// detectCrossAgentCorrelation compares the agent's recent response times
// against every other known agent. Near-identical timing across agents
// is evidence of shared or scripted execution.
func detectCrossAgentCorrelation(m *Monitor, event evidence.MeasurementEvent, _, snapshot []evidence.MeasurementEvent) *Alert {
	t := m.tunables
	if len(snapshot) < t.CorrelationMinEvents {
		return nil
	}
	mine := responseTimes(tail(snapshot, t.CorrelationWindow))

	for _, peer := range m.peerIDs(event.AgentID) {
		theirs := m.peerResponseTimes(peer, t.CorrelationWindow, t.CorrelationMinEvents)
		if theirs == nil {
			continue
		}
		n := len(mine)
		if len(theirs) < n {
			n = len(theirs)
		}
		if n < t.CorrelationMinEvents {
			continue
		}
		corr := stats.Pearson(tail(mine, n), tail(theirs, n))
		if corr > t.CorrelationThreshold {
			return &Alert{
				Severity:   evidence.SeverityCritical,
				Pattern:    PatternCoordinated,
				Confidence: 0.9,
				Evidence: map[string]any{
					"peer_agent_id": peer,
					"correlation":   corr,
					"window":        n,
				},
			}
		}
	}
	return nil
}

// detectDrift is the long-horizon scan: an agent whose timing variance
// collapses over the ring is gradually adapting toward scripted output.
func (m *Monitor) detectDrift(agentID string, times []float64) *Alert {
	t := m.tunables
	if len(times) < t.DriftMinEvents {
		return nil
	}
	mid := len(times) / 2
	early := stats.CoefficientOfVariation(times[:mid])
	late := stats.CoefficientOfVariation(times[mid:])

	if late >= t.DriftCVFloor || early <= late*2 {
		return nil
	}
	return &Alert{
		ID:                uuid.New().String(),
		AgentID:           agentID,
		Severity:          evidence.SeverityMedium,
		Pattern:           PatternGradualAdaptation,
		Confidence:        0.65,
		RecommendedAction: recommendedAction(evidence.SeverityMedium),
		Timestamp:         m.clock(),
		Evidence: map[string]any{
			"early_cv": early,
			"late_cv":  late,
			"events":   len(times),
		},
	}
}

func hasDimensions(e *evidence.MeasurementEvent) bool {
	for _, key := range evidence.DimensionKeys {
		if _, ok := e.Dimension(key); ok {
			return true
		}
	}
	return false
}
