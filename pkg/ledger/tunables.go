package ledger

import "time"

// Tunables are the ledger's policy constants. The batch detector cutoffs
// intentionally differ from the real-time monitor's per-event cutoffs;
// the two rule sets are tuned and maintained independently.
type Tunables struct {
	// New agents start supervised, not trusted: they earn full autonomy.
	InitialTrust float64 `yaml:"initial_trust"`

	// Trust deductions per indicator, scaled by indicator confidence.
	DeductRevoke      float64 `yaml:"deduct_revoke"`
	DeductQuarantine  float64 `yaml:"deduct_quarantine"`
	DeductInvestigate float64 `yaml:"deduct_investigate"`

	// Trust recovery: per successful verification inside the window.
	RecoveryWindow     time.Duration `yaml:"recovery_window"`
	RecoveryPerSuccess float64       `yaml:"recovery_per_success"`

	// Behavior signatures are trimmed to this window.
	SignatureWindow time.Duration `yaml:"signature_window"`

	// Authorization tier floors. Scores below TierRestrictedMin land in
	// quarantine.
	TierFullAutonomyMin float64 `yaml:"tier_full_autonomy_min"`
	TierSupervisedMin   float64 `yaml:"tier_supervised_min"`
	TierRestrictedMin   float64 `yaml:"tier_restricted_min"`

	// Batch detector cutoffs.
	FastExecMaxAvgMs       float64 `yaml:"fast_exec_max_avg_ms"`
	FastExecMinEvents      int     `yaml:"fast_exec_min_events"`
	RoundDimensionFraction float64 `yaml:"round_dimension_fraction"`
	MinDimensionSamples    int     `yaml:"min_dimension_samples"`
	StaticErrorRepeat      int     `yaml:"static_error_repeat"`
	BatchHeavyMinCPU       float64 `yaml:"batch_heavy_min_cpu"`
	BatchHeavyMinMemory    float64 `yaml:"batch_heavy_min_memory"`
	BatchHeavyMinEvents    int     `yaml:"batch_heavy_min_events"`

	// Honeypot and cross-validation handling.
	HoneypotFailConfidence float64 `yaml:"honeypot_fail_confidence"`
	CrossValTolerancePx    float64 `yaml:"cross_val_tolerance_px"`
	CrossValPassFraction   float64 `yaml:"cross_val_pass_fraction"`
	CrossValFailPenalty    float64 `yaml:"cross_val_fail_penalty"`
}

// DefaultTunables returns the hand-tuned ledger constants.
func DefaultTunables() Tunables {
	return Tunables{
		InitialTrust: 70,

		DeductRevoke:      30,
		DeductQuarantine:  20,
		DeductInvestigate: 10,

		RecoveryWindow:     7 * 24 * time.Hour,
		RecoveryPerSuccess: 2,

		SignatureWindow: 30 * 24 * time.Hour,

		TierFullAutonomyMin: 80,
		TierSupervisedMin:   60,
		TierRestrictedMin:   40,

		FastExecMaxAvgMs:       10,
		FastExecMinEvents:      3,
		RoundDimensionFraction: 0.7,
		MinDimensionSamples:    8,
		StaticErrorRepeat:      3,
		BatchHeavyMinCPU:       0.5,
		BatchHeavyMinMemory:    2,
		BatchHeavyMinEvents:    3,

		HoneypotFailConfidence: 0.95,
		CrossValTolerancePx:    5,
		CrossValPassFraction:   0.66,
		CrossValFailPenalty:    15,
	}
}
