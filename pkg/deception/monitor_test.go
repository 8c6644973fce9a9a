package deception

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/evidence"
)

func TestHistoryTrimsOldestFirst(t *testing.T) {
	tun := DefaultTunables()
	tun.MaxHistoryEvents = 50
	m := NewMonitorWith(tun)

	for i := 0; i < 60; i++ {
		e := event("agent-1", "measure", 101+float64(i%7)*4, testEpoch.Add(time.Duration(i)*time.Second))
		e.Selector = ""
		m.Ingest(e)
	}

	history := m.History("agent-1")
	require.Len(t, history, 50)
	// The first ten events were trimmed; the window starts at event 10.
	assert.Equal(t, testEpoch.Add(10*time.Second), history[0].Timestamp)
	assert.Equal(t, testEpoch.Add(59*time.Second), history[49].Timestamp)
}

func TestHistoryUnknownAgent(t *testing.T) {
	m := NewMonitor()
	assert.Nil(t, m.History("nobody"))
}

func TestSubscriberReceivesAlertsAsynchronously(t *testing.T) {
	m := NewMonitor()
	received := make(chan Alert, 16)
	m.Subscribe(func(a Alert) { received <- a })

	seedTiming(m, "agent-1", 15)
	alerts := m.Ingest(event("agent-1", "analyze_layout", 3, testEpoch.Add(time.Minute)))
	require.NotEmpty(t, alerts)

	select {
	case a := <-received:
		assert.Equal(t, PatternImpossiblyFast, a.Pattern)
		assert.Equal(t, "agent-1", a.AgentID)
		assert.NotEmpty(t, a.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the alert")
	}
}

func TestAlertThrottleNeverAffectsIngestReturn(t *testing.T) {
	tun := DefaultTunables()
	tun.AlertRatePerSecond = 0.001
	tun.AlertBurst = 1
	m := NewMonitorWith(tun)

	var mu sync.Mutex
	delivered := 0
	m.Subscribe(func(Alert) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	// Every event past the warm-up raises a uniform-timing alert.
	returned := 0
	for i := 0; i < 30; i++ {
		alerts := m.Ingest(event("agent-1", "measure", 103, testEpoch.Add(time.Duration(i)*time.Second)))
		returned += len(alerts)
	}

	assert.Greater(t, returned, 10, "ingest return values must not be throttled")
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, delivered, 2, "subscriber fan-out should be throttled")
}

func TestScanOnceFlagsVarianceCollapse(t *testing.T) {
	m := NewMonitor()

	for i := 0; i < 30; i++ {
		m.Ingest(event("agent-1", "probe", 100+float64((i*13)%50), testEpoch.Add(time.Duration(i)*time.Second)))
	}
	for i := 30; i < 60; i++ {
		m.Ingest(event("agent-1", "probe", 120, testEpoch.Add(time.Duration(i)*time.Second)))
	}

	alerts := m.ScanOnce()
	a := findPattern(alerts, PatternGradualAdaptation)
	require.NotNil(t, a)
	assert.Equal(t, "agent-1", a.AgentID)
}

func TestStartStopLifecycle(t *testing.T) {
	tun := DefaultTunables()
	tun.ScanInterval = 10 * time.Millisecond
	m := NewMonitorWith(tun)

	received := make(chan Alert, 16)
	m.Subscribe(func(a Alert) {
		if a.Pattern == PatternGradualAdaptation {
			received <- a
		}
	})

	for i := 0; i < 30; i++ {
		m.Ingest(event("agent-1", "probe", 100+float64((i*13)%50), testEpoch.Add(time.Duration(i)*time.Second)))
	}
	for i := 30; i < 60; i++ {
		m.Ingest(event("agent-1", "probe", 120, testEpoch.Add(time.Duration(i)*time.Second)))
	}

	m.Start()
	m.Start() // idempotent
	defer m.Stop()

	select {
	case a := <-received:
		assert.Equal(t, PatternGradualAdaptation, a.Pattern)
	case <-time.After(2 * time.Second):
		t.Fatal("periodic scan never fired")
	}

	m.Stop()
	m.Stop() // idempotent
}

func TestConcurrentIngestAcrossAgents(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	agents := []string{"agent-a", "agent-b", "agent-c", "agent-d"}
	for _, id := range agents {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				e := event(agentID, "measure", 90+float64((i*17)%60), testEpoch.Add(time.Duration(i)*time.Millisecond))
				e.Result = map[string]any{"width": 100 + float64(i%311)}
				m.Ingest(e)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range agents {
		assert.Len(t, m.History(id), 200)
	}
}

func TestRecommendedActionMapping(t *testing.T) {
	assert.Equal(t, "quarantine_agent", recommendedAction(evidence.SeverityCritical))
	assert.Equal(t, "require_verification", recommendedAction(evidence.SeverityHigh))
	assert.Equal(t, "increase_monitoring", recommendedAction(evidence.SeverityMedium))
	assert.Equal(t, "observe", recommendedAction(evidence.SeverityLow))
}
