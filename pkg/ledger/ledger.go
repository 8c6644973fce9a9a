package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veracity-labs/veracity/pkg/audit"
	"github.com/veracity-labs/veracity/pkg/evidence"
	"github.com/veracity-labs/veracity/pkg/stats"
)

// Measurement is one set of numeric observations keyed by dimension,
// as exchanged during cross-validation.
type Measurement map[string]float64

// Metrics receives ledger-level measurements. Satisfied by
// observability.Provider.
type Metrics interface {
	RecordTierTransition(ctx context.Context, from, to string)
}

// Ledger maintains per-agent behavioral profiles. Agent records are
// locked per key so unrelated agents never serialize each other.
type Ledger struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex

	store    ProfileStore
	tunables Tunables
	clock    func() time.Time
	logger   *slog.Logger
	audit    audit.Logger
	metrics  Metrics
}

// NewLedger creates a ledger on an in-memory store with default tunables.
func NewLedger() *Ledger {
	return NewLedgerWith(NewMemoryStore(), DefaultTunables())
}

// NewLedgerWith creates a ledger on an explicit store and tunables.
func NewLedgerWith(store ProfileStore, t Tunables) *Ledger {
	return &Ledger{
		locks:    make(map[string]*sync.Mutex),
		store:    store,
		tunables: t,
		clock:    time.Now,
		logger:   slog.Default(),
	}
}

// WithClock overrides the clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// WithLogger overrides the logger.
func (l *Ledger) WithLogger(logger *slog.Logger) *Ledger {
	l.logger = logger
	return l
}

// WithAudit attaches an audit trail for trust mutations.
func (l *Ledger) WithAudit(a audit.Logger) *Ledger {
	l.audit = a
	return l
}

// WithMetrics attaches a metrics sink for tier transitions.
func (l *Ledger) WithMetrics(m Metrics) *Ledger {
	l.metrics = m
	return l
}

func (l *Ledger) lockFor(agentID string) *sync.Mutex {
	l.mu.RLock()
	mu, ok := l.locks[agentID]
	l.mu.RUnlock()
	if ok {
		return mu
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if mu, ok = l.locks[agentID]; ok {
		return mu
	}
	mu = &sync.Mutex{}
	l.locks[agentID] = mu
	return mu
}

// load fetches or lazily creates an agent's profile. Caller holds the
// agent lock.
func (l *Ledger) load(ctx context.Context, agentID string) (*BehavioralProfile, error) {
	p, err := l.store.Get(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", agentID, err)
	}
	if p == nil {
		now := l.clock()
		p = &BehavioralProfile{
			AgentID:    agentID,
			TrustScore: l.tunables.InitialTrust,
			Tier:       l.tunables.TierFor(l.tunables.InitialTrust),
			FirstSeen:  now,
		}
	}
	return p, nil
}

// Analyze runs the batch pattern detectors over a slice of measurement
// events, updates the agent's trust score, and returns the mutated
// profile.
func (l *Ledger) Analyze(ctx context.Context, agentID string, events []evidence.MeasurementEvent) (*BehavioralProfile, error) {
	mu := l.lockFor(agentID)
	mu.Lock()
	defer mu.Unlock()

	p, err := l.load(ctx, agentID)
	if err != nil {
		return nil, err
	}
	now := l.clock()
	previous := p.TrustScore

	indicators := detectBatchPatterns(l.tunables, events)
	for _, ind := range indicators {
		p.TrustScore -= ind.Confidence * l.deduction(ind.RecommendedAction)
		p.RiskFactors = appendUnique(p.RiskFactors, ind.Pattern)
		l.logger.Warn("batch deception indicator",
			"agent_id", agentID,
			"pattern", ind.Pattern,
			"confidence", ind.Confidence,
			"action", string(ind.RecommendedAction))
	}

	// Recovery credit for recently verified work.
	p.TrustScore += l.tunables.RecoveryPerSuccess * float64(l.recentSuccesses(p, now))
	p.TrustScore = stats.Clamp(p.TrustScore, 0, 100)
	p.Tier = l.tunables.TierFor(p.TrustScore)

	if len(events) > 0 {
		p.BehaviorSignatures = append(p.BehaviorSignatures, summarize(events, now))
	}
	p.BehaviorSignatures = trimSignatures(p.BehaviorSignatures, now.Add(-l.tunables.SignatureWindow))
	p.LastAnalyzed = now

	if err := l.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %q: %w", agentID, err)
	}
	l.recordTrustChange(ctx, p, previous, "analyze", map[string]any{
		"events":     len(events),
		"indicators": len(indicators),
	})
	return p, nil
}

// DeployHoneypot commissions a synthetic probe for an agent: a request
// the agent can only answer correctly by actually doing the work, e.g.
// measuring an element that does not exist. The pending probe is
// recorded in the profile's verification history.
func (l *Ledger) DeployHoneypot(ctx context.Context, agentID, testType string) (*VerificationEvent, error) {
	mu := l.lockFor(agentID)
	mu.Lock()
	defer mu.Unlock()

	p, err := l.load(ctx, agentID)
	if err != nil {
		return nil, err
	}

	probe := VerificationEvent{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Kind:      verificationKindHoneypot,
		TestType:  testType,
		Status:    verificationStatusPending,
		Expected:  honeypotExpectation(testType),
		Timestamp: l.clock(),
		Details: map[string]any{
			"selector": honeypotSelectorPrefix + uuid.New().String()[:8],
		},
	}
	p.VerificationHistory = append(p.VerificationHistory, probe)

	if err := l.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %q: %w", agentID, err)
	}
	l.recordVerification(ctx, &probe, "honeypot_deployed")
	return &probe, nil
}

// honeypotExpectation maps a probe type to the outcome an honest agent
// must report.
func honeypotExpectation(testType string) string {
	switch testType {
	case "hidden_element":
		return "zero_dimensions"
	case "detached_element":
		return "stale_reference"
	default: // nonexistent_element and unknown types
		return honeypotExpectedNotFound
	}
}

// ResolveHoneypot grades a pending probe against the agent's reported
// outcome. A confident answer to an impossible request is close to
// proof of fabrication and is punished at revoke level.
func (l *Ledger) ResolveHoneypot(ctx context.Context, agentID, probeID, observed string) (*VerificationEvent, error) {
	mu := l.lockFor(agentID)
	mu.Lock()
	defer mu.Unlock()

	p, err := l.load(ctx, agentID)
	if err != nil {
		return nil, err
	}
	previous := p.TrustScore

	var probe *VerificationEvent
	for i := range p.VerificationHistory {
		v := &p.VerificationHistory[i]
		if v.ID == probeID && v.Kind == verificationKindHoneypot {
			probe = v
			break
		}
	}
	if probe == nil {
		return nil, fmt.Errorf("no honeypot probe %q for agent %q", probeID, agentID)
	}
	if probe.Status != verificationStatusPending {
		return nil, fmt.Errorf("honeypot probe %q already resolved (%s)", probeID, probe.Status)
	}

	probe.Observed = observed
	if observed == probe.Expected {
		probe.Status = verificationStatusPassed
		p.TrustScore += l.tunables.RecoveryPerSuccess
	} else {
		probe.Status = verificationStatusFailed
		p.TrustScore -= l.tunables.HoneypotFailConfidence * l.tunables.DeductRevoke
		p.RiskFactors = appendUnique(p.RiskFactors, "honeypot_failure")
	}
	p.TrustScore = stats.Clamp(p.TrustScore, 0, 100)
	p.Tier = l.tunables.TierFor(p.TrustScore)

	if err := l.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %q: %w", agentID, err)
	}
	l.recordTrustChange(ctx, p, previous, "honeypot_resolved", map[string]any{
		"probe_id": probeID,
		"status":   probe.Status,
	})
	out := *probe
	return &out, nil
}

// CrossValidate compares the primary agent's measurement against
// reports from validator agents for the same target. Agreement within
// tolerance on every shared dimension counts as corroboration.
func (l *Ledger) CrossValidate(ctx context.Context, primaryID string, validatorIDs []string, measured Measurement, reports map[string]Measurement) (*VerificationEvent, error) {
	mu := l.lockFor(primaryID)
	mu.Lock()
	defer mu.Unlock()

	p, err := l.load(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	previous := p.TrustScore

	agreeing := 0
	counted := 0
	for _, vid := range validatorIDs {
		report, ok := reports[vid]
		if !ok {
			continue
		}
		counted++
		if measurementsAgree(measured, report, l.tunables.CrossValTolerancePx) {
			agreeing++
		}
	}

	event := VerificationEvent{
		ID:        uuid.New().String(),
		AgentID:   primaryID,
		Kind:      verificationKindCrossVal,
		Timestamp: l.clock(),
		Details: map[string]any{
			"validators": counted,
			"agreeing":   agreeing,
		},
	}

	switch {
	case counted == 0:
		// No corroboration available: neither reward nor punish.
		event.Status = verificationStatusPending
	case float64(agreeing)/float64(counted) >= l.tunables.CrossValPassFraction:
		event.Status = verificationStatusPassed
		p.TrustScore += l.tunables.RecoveryPerSuccess
	default:
		event.Status = verificationStatusFailed
		p.TrustScore -= l.tunables.CrossValFailPenalty
		p.RiskFactors = appendUnique(p.RiskFactors, "cross_validation_failure")
	}
	p.TrustScore = stats.Clamp(p.TrustScore, 0, 100)
	p.Tier = l.tunables.TierFor(p.TrustScore)
	p.VerificationHistory = append(p.VerificationHistory, event)

	if err := l.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile %q: %w", primaryID, err)
	}
	l.recordTrustChange(ctx, p, previous, "cross_validate", map[string]any{
		"status":     event.Status,
		"validators": counted,
	})
	out := event
	return &out, nil
}

// Profile returns a copy of an agent's profile, or nil when the agent
// has never been seen.
func (l *Ledger) Profile(ctx context.Context, agentID string) (*BehavioralProfile, error) {
	return l.store.Get(ctx, agentID)
}

// Profiles lists every known profile sorted by agent ID.
func (l *Ledger) Profiles(ctx context.Context) ([]*BehavioralProfile, error) {
	out, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (l *Ledger) deduction(action RecommendedAction) float64 {
	switch action {
	case ActionRevokeTrust:
		return l.tunables.DeductRevoke
	case ActionQuarantine:
		return l.tunables.DeductQuarantine
	default:
		return l.tunables.DeductInvestigate
	}
}

func (l *Ledger) recentSuccesses(p *BehavioralProfile, now time.Time) int {
	cutoff := now.Add(-l.tunables.RecoveryWindow)
	n := 0
	for i := range p.VerificationHistory {
		v := &p.VerificationHistory[i]
		if v.Status == verificationStatusPassed && v.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

func (l *Ledger) recordTrustChange(ctx context.Context, p *BehavioralProfile, previous float64, action string, metadata map[string]any) {
	if math.Abs(p.TrustScore-previous) > 1e-9 {
		l.logger.Info("trust score updated",
			"agent_id", p.AgentID,
			"previous", previous,
			"current", p.TrustScore,
			"tier", string(p.Tier))
	}
	if prevTier := l.tunables.TierFor(previous); l.metrics != nil && prevTier != p.Tier {
		l.metrics.RecordTierTransition(ctx, string(prevTier), string(p.Tier))
	}
	if l.audit == nil {
		return
	}
	md := map[string]any{"previous": previous, "current": p.TrustScore, "tier": string(p.Tier)}
	for k, v := range metadata {
		md[k] = v
	}
	_ = l.audit.Record(ctx, audit.EventTrust, p.AgentID, action, md)
}

func (l *Ledger) recordVerification(ctx context.Context, v *VerificationEvent, action string) {
	if l.audit == nil {
		return
	}
	_ = l.audit.Record(ctx, audit.EventProbe, v.AgentID, action, map[string]any{
		"probe_id":  v.ID,
		"test_type": v.TestType,
		"expected":  v.Expected,
	})
}

func measurementsAgree(a, b Measurement, tolerance float64) bool {
	shared := 0
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			continue
		}
		shared++
		if math.Abs(av-bv) > tolerance {
			return false
		}
	}
	return shared > 0
}

func summarize(events []evidence.MeasurementEvent, now time.Time) BehaviorSignature {
	times := make([]float64, len(events))
	opSet := make(map[string]struct{})
	for i := range events {
		times[i] = events[i].ResponseTimeMs
		opSet[events[i].Operation] = struct{}{}
	}
	ops := make([]string, 0, len(opSet))
	for op := range opSet {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return BehaviorSignature{
		RecordedAt:     now,
		Operations:     ops,
		EventCount:     len(events),
		MeanResponseMs: stats.Mean(times),
		ResponseCV:     stats.CoefficientOfVariation(times),
	}
}

func trimSignatures(sigs []BehaviorSignature, cutoff time.Time) []BehaviorSignature {
	out := sigs[:0]
	for _, s := range sigs {
		if s.RecordedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}
