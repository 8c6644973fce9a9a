// Package ledger implements the behavioral verification ledger: the
// stateful per-agent record of long-term trust, behavior signatures, and
// verification history. The ledger is the only component that mutates
// trust scores; everything else observes them.
package ledger

import "time"

// RecommendedAction grades how to respond to one batch-level indicator.
type RecommendedAction string

const (
	ActionInvestigate RecommendedAction = "investigate"
	ActionQuarantine  RecommendedAction = "quarantine"
	ActionRevokeTrust RecommendedAction = "revoke_trust"
)

// AuthorizationTier is the autonomy level granted by the trust score.
type AuthorizationTier string

const (
	TierFullAutonomy AuthorizationTier = "full_autonomy"
	TierSupervised   AuthorizationTier = "supervised"
	TierRestricted   AuthorizationTier = "restricted"
	TierQuarantine   AuthorizationTier = "quarantine"
)

// DeceptionIndicator is one batch-level pattern finding.
type DeceptionIndicator struct {
	Pattern           string            `json:"pattern"`
	Confidence        float64           `json:"confidence"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	Detail            string            `json:"detail,omitempty"`
}

// Batch-level pattern names. These intentionally overlap with the
// real-time monitor's per-event patterns but use their own cutoffs; the
// two detector sets are maintained independently.
const (
	PatternFastExecution      = "suspiciously_fast_execution"
	PatternImpossiblePrecis   = "impossible_precision"
	PatternStaticErrors       = "static_error_patterns"
	PatternResourceAnomaly    = "resource_usage_anomaly"
	honeypotSelectorPrefix    = "#vx-probe-"
	honeypotExpectedNotFound  = "element_not_found"
	verificationKindHoneypot  = "honeypot"
	verificationKindCrossVal  = "cross_validation"
	verificationStatusPending = "pending"
	verificationStatusPassed  = "passed"
	verificationStatusFailed  = "failed"
)

// BehaviorSignature summarizes one analyzed event batch. Signatures are
// kept inside a 30-day window.
type BehaviorSignature struct {
	RecordedAt     time.Time `json:"recorded_at"`
	Operations     []string  `json:"operations"`
	EventCount     int       `json:"event_count"`
	MeanResponseMs float64   `json:"mean_response_ms"`
	ResponseCV     float64   `json:"response_cv"`
}

// VerificationEvent records one honeypot probe or cross-validation round.
type VerificationEvent struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Kind      string         `json:"kind"`
	TestType  string         `json:"test_type,omitempty"`
	Status    string         `json:"status"`
	Expected  string         `json:"expected,omitempty"`
	Observed  string         `json:"observed,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// BehavioralProfile is the durable per-agent trust record. Created
// lazily on first contact, mutated on every analysis pass, never
// deleted for the process lifetime.
type BehavioralProfile struct {
	AgentID             string              `json:"agent_id"`
	TrustScore          float64             `json:"trust_score"` // 0-100
	Tier                AuthorizationTier   `json:"tier"`
	BehaviorSignatures  []BehaviorSignature `json:"behavior_signatures"`
	RiskFactors         []string            `json:"risk_factors"`
	VerificationHistory []VerificationEvent `json:"verification_history"`
	FirstSeen           time.Time           `json:"first_seen"`
	LastAnalyzed        time.Time           `json:"last_analyzed"`
}

// TierFor maps a trust score to its authorization tier using the
// default tier floors.
func TierFor(trust float64) AuthorizationTier {
	return DefaultTunables().TierFor(trust)
}

// TierFor maps a trust score to its authorization tier using this
// tunable set's floors.
func (t Tunables) TierFor(trust float64) AuthorizationTier {
	switch {
	case trust >= t.TierFullAutonomyMin:
		return TierFullAutonomy
	case trust >= t.TierSupervisedMin:
		return TierSupervised
	case trust >= t.TierRestrictedMin:
		return TierRestricted
	default:
		return TierQuarantine
	}
}
