package deception

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/evidence"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func event(agentID, op string, rtMs float64, at time.Time) evidence.MeasurementEvent {
	return evidence.MeasurementEvent{
		Timestamp:      at,
		AgentID:        agentID,
		Operation:      op,
		ResponseTimeMs: rtMs,
		SystemMetrics:  evidence.SystemMetrics{CPUUsage: 12, MemoryUsage: 40},
	}
}

// seedTiming ingests n baseline events with natural variance and no
// round-number response times.
func seedTiming(m *Monitor, agentID string, n int) {
	for i := 0; i < n; i++ {
		rt := 101 + float64(i%7)*4
		m.Ingest(event(agentID, "measure", rt, testEpoch.Add(time.Duration(i)*time.Second)))
	}
}

func findPattern(alerts []Alert, pattern string) *Alert {
	for i := range alerts {
		if alerts[i].Pattern == pattern {
			return &alerts[i]
		}
	}
	return nil
}

func TestImpossiblyFastComplexOperation(t *testing.T) {
	m := NewMonitor()
	seedTiming(m, "agent-1", 15)

	alerts := m.Ingest(event("agent-1", "analyze_layout", 5, testEpoch.Add(time.Minute)))
	a := findPattern(alerts, PatternImpossiblyFast)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityCritical, a.Severity)
	assert.Equal(t, 0.95, a.Confidence)
	assert.Equal(t, "quarantine_agent", a.RecommendedAction)
}

func TestSuspiciouslyConsistentTiming(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 15; i++ {
		m.Ingest(event("agent-1", "measure", 103, testEpoch.Add(time.Duration(i)*time.Second)))
	}

	alerts := m.Ingest(event("agent-1", "measure", 103, testEpoch.Add(time.Minute)))
	a := findPattern(alerts, PatternUniformTiming)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityHigh, a.Severity)
	assert.Equal(t, 0.8, a.Confidence)
}

func TestStatisticalOutlier(t *testing.T) {
	m := NewMonitor()
	seedTiming(m, "agent-1", 20)

	alerts := m.Ingest(event("agent-1", "measure", 999, testEpoch.Add(time.Minute)))
	a := findPattern(alerts, PatternOutlier)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityMedium, a.Severity)
	assert.Greater(t, a.Evidence["z_score"].(float64), 3.0)
}

func TestRoundNumberTiming(t *testing.T) {
	m := NewMonitor()
	seedTiming(m, "agent-1", 20)

	alerts := m.Ingest(event("agent-1", "measure", 110, testEpoch.Add(time.Minute)))
	a := findPattern(alerts, PatternRoundTiming)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityLow, a.Severity)
	assert.Equal(t, "observe", a.RecommendedAction)
}

func TestBenfordAnomalyOnFabricatedDimensions(t *testing.T) {
	m := NewMonitor()

	// 60 measurements whose dimensions all lead with 5: nowhere near the
	// logarithmic leading-digit distribution of organic geometry.
	var alerts []Alert
	for i := 0; i < 60; i++ {
		e := event("agent-1", "measure", 101+float64(i%7)*3, testEpoch.Add(time.Duration(i)*time.Second))
		e.Result = map[string]any{"width": 555.0, "height": 577.0}
		alerts = m.Ingest(e)
	}

	a := findPattern(alerts, PatternStatisticalAnomal)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityHigh, a.Severity)
	assert.InDelta(t, 0.9, a.Confidence, 1e-9)
	assert.Greater(t, a.Evidence["benford_deviation"].(float64), 0.3)
}

func TestRoundClusterAloneCarriesFloorConfidence(t *testing.T) {
	m := NewMonitor()

	// Leading digits track Benford closely, but every width is an exact
	// multiple of 10: the round cluster raises the alert, not the digit
	// deviation, so confidence lands on the cluster floor.
	counts := []int{18, 11, 8, 6, 5, 4, 3, 3, 2} // digits 1..9 over 60 samples
	var widths []float64
	for d, n := range counts {
		for i := 0; i < n; i++ {
			widths = append(widths, float64(d+1)*10)
		}
	}

	var alerts []Alert
	for i, w := range widths {
		e := event("agent-1", "measure", 95+float64((i*17)%43), testEpoch.Add(time.Duration(i)*time.Second))
		e.Result = map[string]any{"width": w}
		alerts = m.Ingest(e)
	}

	a := findPattern(alerts, PatternStatisticalAnomal)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityMedium, a.Severity)
	assert.Equal(t, DefaultTunables().RoundClusterMinConfidence, a.Confidence)
	assert.Less(t, a.Evidence["benford_deviation"].(float64), DefaultTunables().BenfordDeviation)
	assert.Equal(t, true, a.Evidence["round_cluster"])
}

func TestBenfordRequiresMinimumHistory(t *testing.T) {
	m := NewMonitor()
	var alerts []Alert
	for i := 0; i < 40; i++ {
		e := event("agent-1", "measure", 101+float64(i%7)*3, testEpoch.Add(time.Duration(i)*time.Second))
		e.Result = map[string]any{"width": 999.0}
		alerts = m.Ingest(e)
	}
	assert.Nil(t, findPattern(alerts, PatternStatisticalAnomal))
}

func TestConsistencyViolationOnJumpingGeometry(t *testing.T) {
	m := NewMonitor()

	var last []Alert
	var seen *Alert
	for i := 0; i < 8; i++ {
		e := event("agent-1", "measure_element", 101+float64(i%5)*3, testEpoch.Add(time.Duration(i)*10*time.Second))
		e.Selector = "#checkout-button"
		e.Result = map[string]any{
			"width":  float64(200 + i*300),
			"height": float64(100 + i*300),
		}
		last = m.Ingest(e)
		if a := findPattern(last, PatternConsistency); a != nil {
			seen = a
		}
	}

	require.NotNil(t, seen, "expected consistency_violation for 300px jumps")
	assert.Equal(t, evidence.SeverityHigh, seen.Severity)
	assert.Equal(t, 0.85, seen.Confidence)
	assert.Equal(t, "#checkout-button", seen.Evidence["selector"])
}

func TestConsistencyAllowsInteractionExplainedChange(t *testing.T) {
	m := NewMonitor()

	resize := event("agent-1", "resize_viewport", 120, testEpoch)
	resize.Selector = "#panel"
	resize.Result = map[string]any{"width": 400.0}
	m.Ingest(resize)

	after := event("agent-1", "measure_element", 131, testEpoch.Add(5*time.Second))
	after.Selector = "#panel"
	after.Result = map[string]any{"width": 900.0}
	alerts := m.Ingest(after)

	assert.Nil(t, findPattern(alerts, PatternConsistency))
}

func TestConsistencyScansWholeWindowNotJustNearestReading(t *testing.T) {
	m := NewMonitor()

	first := event("agent-1", "measure_element", 117, testEpoch)
	first.Selector = "#hero"
	first.Result = map[string]any{"width": 300.0}
	m.Ingest(first)

	second := event("agent-1", "measure_element", 123, testEpoch.Add(time.Minute))
	second.Selector = "#hero"
	second.Result = map[string]any{"width": 650.0}
	m.Ingest(second)

	// Near-identical to the reading right before it, but still 340px off
	// the measurement two minutes ago. The benign follow-up must not bury
	// the earlier jump.
	third := event("agent-1", "measure_element", 119, testEpoch.Add(2*time.Minute))
	third.Selector = "#hero"
	third.Result = map[string]any{"width": 640.0}
	alerts := m.Ingest(third)

	a := findPattern(alerts, PatternConsistency)
	require.NotNil(t, a)
	assert.Equal(t, 300.0, a.Evidence["previous"])
	assert.Equal(t, 640.0, a.Evidence["current"])
}

func TestConsistencyIgnoresStaleMeasurements(t *testing.T) {
	m := NewMonitor()

	old := event("agent-1", "measure_element", 117, testEpoch)
	old.Selector = "#hero"
	old.Result = map[string]any{"width": 300.0}
	m.Ingest(old)

	// Ten minutes later the page may legitimately differ.
	later := event("agent-1", "measure_element", 123, testEpoch.Add(10*time.Minute))
	later.Selector = "#hero"
	later.Result = map[string]any{"width": 800.0}
	alerts := m.Ingest(later)

	assert.Nil(t, findPattern(alerts, PatternConsistency))
}

func TestResourceAnomalyOnHeavyOperation(t *testing.T) {
	m := NewMonitor()

	e := event("agent-1", "full_page_screenshot", 450, testEpoch)
	e.SystemMetrics = evidence.SystemMetrics{CPUUsage: 0.2, MemoryUsage: 1.5}
	alerts := m.Ingest(e)

	a := findPattern(alerts, PatternLowResourceUsage)
	require.NotNil(t, a)
	assert.Equal(t, evidence.SeverityHigh, a.Severity)
	assert.Equal(t, 0.8, a.Confidence)

	// Normal resource usage on the same operation stays quiet.
	ok := event("agent-1", "full_page_screenshot", 460, testEpoch.Add(time.Second))
	alerts = m.Ingest(ok)
	assert.Nil(t, findPattern(alerts, PatternLowResourceUsage))
}

func TestCoordinatedBehaviorAcrossAgents(t *testing.T) {
	m := NewMonitor()

	sequence := make([]float64, 20)
	for i := range sequence {
		sequence[i] = 95 + float64((i*37)%41) // varied, non-round
	}

	for i, rt := range sequence {
		m.Ingest(event("agent-a", "measure", rt, testEpoch.Add(time.Duration(i)*time.Second)))
	}

	var seen *Alert
	for i, rt := range sequence {
		alerts := m.Ingest(event("agent-b", "measure", rt, testEpoch.Add(time.Duration(i)*time.Second)))
		if a := findPattern(alerts, PatternCoordinated); a != nil {
			seen = a
		}
	}

	require.NotNil(t, seen, "identical response-time sequences must correlate")
	assert.Equal(t, evidence.SeverityCritical, seen.Severity)
	assert.Equal(t, 0.9, seen.Confidence)
	assert.Equal(t, "agent-a", seen.Evidence["peer_agent_id"])
}

func TestCorrelationRequiresTenEventsOnBothSides(t *testing.T) {
	m := NewMonitor()

	sequence := make([]float64, 20)
	for i := range sequence {
		sequence[i] = 95 + float64((i*37)%41)
	}
	for i, rt := range sequence {
		m.Ingest(event("agent-a", "measure", rt, testEpoch.Add(time.Duration(i)*time.Second)))
	}

	// Nine mirrored events: below the correlation floor on agent-b's side.
	for i := 0; i < 9; i++ {
		alerts := m.Ingest(event("agent-b", "measure", sequence[i], testEpoch.Add(time.Duration(i)*time.Second)))
		assert.Nil(t, findPattern(alerts, PatternCoordinated), "event %d", i)
	}
}

func TestDriftDetection(t *testing.T) {
	m := NewMonitor()

	times := make([]float64, 60)
	for i := 0; i < 30; i++ {
		times[i] = 100 + float64((i*13)%50) // organic spread
	}
	for i := 30; i < 60; i++ {
		times[i] = 120 // variance collapse
	}

	a := m.detectDrift("agent-1", times)
	require.NotNil(t, a)
	assert.Equal(t, PatternGradualAdaptation, a.Pattern)
	assert.Equal(t, evidence.SeverityMedium, a.Severity)

	// A consistently organic series does not drift.
	organic := make([]float64, 60)
	for i := range organic {
		organic[i] = 100 + float64((i*13)%50)
	}
	assert.Nil(t, m.detectDrift("agent-1", organic))
}

func TestDetectorPanicDoesNotPoisonIngest(t *testing.T) {
	m := NewMonitor()

	// Events with a Result value of an unexpected dynamic type exercise
	// the defensive paths; ingest must not panic.
	e := event("agent-1", "measure", 100, testEpoch)
	e.Result = map[string]any{"width": "not-a-number", "height": []string{"odd"}}
	assert.NotPanics(t, func() {
		for i := 0; i < 20; i++ {
			m.Ingest(e)
		}
	})
}

func TestTailHelper(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4, 5}, tail(xs, 3))
	assert.Equal(t, xs, tail(xs, 10))
	assert.Empty(t, tail(xs, 0))
}

func TestSeededAgentsStayQuietOnBaseline(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 30; i++ {
		alerts := m.Ingest(event("agent-1", "measure", 101+float64(i%7)*4, testEpoch.Add(time.Duration(i)*time.Second)))
		for _, a := range alerts {
			assert.Failf(t, "unexpected alert", "%s at event %d: %v", a.Pattern, i, a.Evidence)
		}
	}
}
