package confidence

// TimingProfile is the expected duration band for a tool, in milliseconds.
type TimingProfile struct {
	ExpectedMinMs float64 `json:"expected_min_ms" yaml:"expected_min_ms"`
	ExpectedMaxMs float64 `json:"expected_max_ms" yaml:"expected_max_ms"`
}

// DefaultTimingProfiles maps tool names to their expected duration bands.
// Unknown tools fall back to the "default" entry. Extend the table to add
// profiles; there is no dispatch beyond the lookup.
func DefaultTimingProfiles() map[string]TimingProfile {
	return map[string]TimingProfile{
		"default":            {ExpectedMinMs: 50, ExpectedMaxMs: 3000},
		"browser_navigate":   {ExpectedMinMs: 500, ExpectedMaxMs: 10000},
		"browser_click":      {ExpectedMinMs: 50, ExpectedMaxMs: 2000},
		"browser_type":       {ExpectedMinMs: 100, ExpectedMaxMs: 5000},
		"browser_screenshot": {ExpectedMinMs: 200, ExpectedMaxMs: 8000},
		"browser_evaluate":   {ExpectedMinMs: 20, ExpectedMaxMs: 4000},
		"measure_element":    {ExpectedMinMs: 30, ExpectedMaxMs: 2500},
		"wait_for_selector":  {ExpectedMinMs: 50, ExpectedMaxMs: 30000},
		"read_file":          {ExpectedMinMs: 5, ExpectedMaxMs: 1000},
		"http_request":       {ExpectedMinMs: 40, ExpectedMaxMs: 15000},
	}
}

// Tunables are the policy constants of the scorer. They are hand-tuned,
// not fitted; override them through config rather than editing code.
type Tunables struct {
	// Factor weights for the weighted sum. Must total 1.0.
	WeightTiming          float64 `yaml:"weight_timing"`
	WeightRichness        float64 `yaml:"weight_richness"`
	WeightConsistency     float64 `yaml:"weight_consistency"`
	WeightCrossValidation float64 `yaml:"weight_cross_validation"`
	WeightAuthenticity    float64 `yaml:"weight_authenticity"`

	// NoToolCallScore is the fixed timing score when no tools were used.
	NoToolCallScore float64 `yaml:"no_tool_call_score"`

	// FastTestDurationMs/FastTestMinCalls gate the too-fast-overall penalty.
	FastTestDurationMs  float64 `yaml:"fast_test_duration_ms"`
	FastTestMinCalls    int     `yaml:"fast_test_min_calls"`
	FastTestPenalty     float64 `yaml:"fast_test_penalty"`
	UniformCVThreshold  float64 `yaml:"uniform_cv_threshold"`
	UniformTimingDiscnt float64 `yaml:"uniform_timing_discount"`

	// Indicator score penalties, stacked additively before clamping.
	PenaltyCritical float64 `yaml:"penalty_critical"`
	PenaltyHigh     float64 `yaml:"penalty_high"`
	PenaltyMedium   float64 `yaml:"penalty_medium"`
	PenaltyOther    float64 `yaml:"penalty_other"`

	TimingProfiles map[string]TimingProfile `yaml:"timing_profiles"`
}

// DefaultTunables returns the hand-tuned scorer constants.
func DefaultTunables() Tunables {
	return Tunables{
		WeightTiming:          0.30,
		WeightRichness:        0.25,
		WeightConsistency:     0.20,
		WeightCrossValidation: 0.15,
		WeightAuthenticity:    0.10,

		NoToolCallScore: 0.3,

		FastTestDurationMs:  5000,
		FastTestMinCalls:    2,
		FastTestPenalty:     0.7,
		UniformCVThreshold:  0.05,
		UniformTimingDiscnt: 0.8,

		PenaltyCritical: 0.30,
		PenaltyHigh:     0.20,
		PenaltyMedium:   0.10,
		PenaltyOther:    0.05,

		TimingProfiles: DefaultTimingProfiles(),
	}
}

// Profile resolves the timing profile for a tool name, falling back to
// the default entry for unknown tools.
func (t Tunables) Profile(toolName string) TimingProfile {
	if p, ok := t.TimingProfiles[toolName]; ok {
		return p
	}
	if p, ok := t.TimingProfiles["default"]; ok {
		return p
	}
	return TimingProfile{ExpectedMinMs: 50, ExpectedMaxMs: 3000}
}
