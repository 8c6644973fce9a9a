// Package deception implements the real-time deception monitor: an
// event-driven service that keeps a bounded rolling history per agent,
// runs five independent statistical detectors against every ingested
// measurement event, and periodically scans all agents for long-horizon
// drift.
//
// Per-agent state is sharded: concurrent Ingest calls for different
// agents never block each other, while calls for the same agent are
// serialized by that agent's lock. The cross-agent detector only ever
// snapshot-copies a second agent's history under that agent's own lock;
// two agent locks are never held at once.
package deception

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/veracity-labs/veracity/pkg/evidence"
)

// Alert is one detected deception pattern. Alerts are emitted, not
// stored; the behavioral ledger is the durable record.
type Alert struct {
	ID                string            `json:"id"`
	AgentID           string            `json:"agent_id"`
	Severity          evidence.Severity `json:"severity"`
	Pattern           string            `json:"pattern"`
	Confidence        float64           `json:"confidence"`
	Evidence          map[string]any    `json:"evidence,omitempty"`
	RecommendedAction string            `json:"recommended_action"`
	Timestamp         time.Time         `json:"timestamp"`
}

// Detected pattern names.
const (
	PatternImpossiblyFast    = "impossibly_fast_complex_operation"
	PatternUniformTiming     = "suspiciously_consistent_timing"
	PatternOutlier           = "statistical_outlier"
	PatternRoundTiming       = "round_number_timing"
	PatternStatisticalAnomal = "statistical_anomaly"
	PatternConsistency       = "consistency_violation"
	PatternLowResourceUsage  = "insufficient_resource_usage"
	PatternCoordinated       = "coordinated_behavior"
	PatternGradualAdaptation = "gradual_adaptation"
)

// Subscriber receives alerts asynchronously. Delivery order across
// alerts for one event is unspecified; all alerts for one event are
// computed from the same history snapshot.
type Subscriber func(Alert)

type agentState struct {
	mu      sync.Mutex
	events  []evidence.MeasurementEvent
	limiter *rate.Limiter
}

// Monitor ingests measurement events and raises deception alerts.
type Monitor struct {
	mu     sync.RWMutex
	agents map[string]*agentState
	subs   []Subscriber

	tunables Tunables
	clock    func() time.Time
	logger   *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewMonitor creates a monitor with default tunables.
func NewMonitor() *Monitor {
	return NewMonitorWith(DefaultTunables())
}

// NewMonitorWith creates a monitor with explicit tunables.
func NewMonitorWith(t Tunables) *Monitor {
	return &Monitor{
		agents:   make(map[string]*agentState),
		tunables: t,
		clock:    time.Now,
		logger:   slog.Default(),
	}
}

// WithClock overrides the clock for testing.
func (m *Monitor) WithClock(clock func() time.Time) *Monitor {
	m.clock = clock
	return m
}

// WithLogger overrides the logger.
func (m *Monitor) WithLogger(logger *slog.Logger) *Monitor {
	m.logger = logger
	return m
}

// Subscribe registers an asynchronous alert consumer.
func (m *Monitor) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Start launches the periodic drift scan. Idempotent until Stop.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.scanLoop()
}

// Stop halts the periodic scan and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) scanLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tunables.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.ScanOnce()
		}
	}
}

// state returns the agent's shard, creating it lazily.
func (m *Monitor) state(agentID string) *agentState {
	m.mu.RLock()
	st, ok := m.agents[agentID]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok = m.agents[agentID]; ok {
		return st
	}
	st = &agentState{
		limiter: rate.NewLimiter(rate.Limit(m.tunables.AlertRatePerSecond), m.tunables.AlertBurst),
	}
	m.agents[agentID] = st
	return st
}

// Ingest records one measurement event and runs all detectors against a
// consistent snapshot of the agent's history. Returns every alert
// raised for this event; subscriber delivery is asynchronous and may be
// throttled, the return value never is.
func (m *Monitor) Ingest(event evidence.MeasurementEvent) []Alert {
	st := m.state(event.AgentID)

	st.mu.Lock()
	st.events = append(st.events, event)
	if over := len(st.events) - m.tunables.MaxHistoryEvents; over > 0 {
		st.events = st.events[over:]
	}
	snapshot := make([]evidence.MeasurementEvent, len(st.events))
	copy(snapshot, st.events)
	st.mu.Unlock()

	// The snapshot includes the current event as its last element.
	history := snapshot[:len(snapshot)-1]

	var alerts []Alert
	for _, detect := range detectors {
		if a := m.runDetector(detect, event, history, snapshot); a != nil {
			alerts = append(alerts, *a)
		}
	}
	for _, a := range alerts {
		m.emit(st, a)
	}
	return alerts
}

// runDetector isolates one detector; a panic in one detector must not
// prevent the others from producing results.
func (m *Monitor) runDetector(detect detector, event evidence.MeasurementEvent, history, snapshot []evidence.MeasurementEvent) (alert *Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("detector panicked", "agent_id", event.AgentID, "panic", r)
			alert = nil
		}
	}()
	a := detect(m, event, history, snapshot)
	if a == nil {
		return nil
	}
	a.ID = uuid.New().String()
	a.AgentID = event.AgentID
	a.Timestamp = m.clock()
	a.RecommendedAction = recommendedAction(a.Severity)
	return a
}

func (m *Monitor) emit(st *agentState, a Alert) {
	m.logger.Warn("deception alert",
		"agent_id", a.AgentID,
		"pattern", a.Pattern,
		"severity", string(a.Severity),
		"confidence", a.Confidence)

	if !st.limiter.Allow() {
		m.logger.Warn("alert delivery throttled", "agent_id", a.AgentID, "pattern", a.Pattern)
		return
	}

	m.mu.RLock()
	subs := make([]Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.RUnlock()

	for _, fn := range subs {
		go fn(a)
	}
}

// ScanOnce runs the long-horizon drift scan over snapshot copies of
// every agent's history. Read access never holds the monitor lock for
// the duration of the scan.
func (m *Monitor) ScanOnce() []Alert {
	m.mu.RLock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var alerts []Alert
	for _, id := range ids {
		st := m.state(id)
		st.mu.Lock()
		times := responseTimes(st.events)
		st.mu.Unlock()

		if a := m.detectDrift(id, times); a != nil {
			alerts = append(alerts, *a)
			m.emit(st, *a)
		}
	}
	return alerts
}

// History returns a copy of an agent's rolling history.
func (m *Monitor) History(agentID string) []evidence.MeasurementEvent {
	m.mu.RLock()
	st, ok := m.agents[agentID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]evidence.MeasurementEvent, len(st.events))
	copy(out, st.events)
	return out
}

// peerResponseTimes snapshot-copies another agent's trailing response
// times under that agent's own lock. Returns nil when the peer has
// fewer than min events.
func (m *Monitor) peerResponseTimes(agentID string, window, min int) []float64 {
	m.mu.RLock()
	st, ok := m.agents[agentID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.events) < min {
		return nil
	}
	return responseTimes(tail(st.events, window))
}

// peerIDs lists every other known agent.
func (m *Monitor) peerIDs(except string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

func recommendedAction(sev evidence.Severity) string {
	switch sev {
	case evidence.SeverityCritical:
		return "quarantine_agent"
	case evidence.SeverityHigh:
		return "require_verification"
	case evidence.SeverityMedium:
		return "increase_monitoring"
	default:
		return "observe"
	}
}

func responseTimes(events []evidence.MeasurementEvent) []float64 {
	out := make([]float64, len(events))
	for i, e := range events {
		out[i] = e.ResponseTimeMs
	}
	return out
}

func tail[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
