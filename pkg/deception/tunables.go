package deception

import "time"

// Tunables are the monitor's policy constants. All thresholds are fixed,
// hand-tuned values; override through config, not code.
type Tunables struct {
	// MaxHistoryEvents bounds the per-agent rolling history; the oldest
	// events are trimmed first.
	MaxHistoryEvents int `yaml:"max_history_events"`

	// Timing-pattern detector.
	TimingMinPriorEvents int     `yaml:"timing_min_prior_events"`
	TimingWindow         int     `yaml:"timing_window"`
	ImpossiblyFastMs     float64 `yaml:"impossibly_fast_ms"`
	UniformStdDevMs      float64 `yaml:"uniform_stddev_ms"`
	UniformMinMeanMs     float64 `yaml:"uniform_min_mean_ms"`
	OutlierZScore        float64 `yaml:"outlier_z_score"`
	RoundBaseMs          float64 `yaml:"round_base_ms"`

	// Benford's-Law detector. Confidence is min(0.9, 2*deviation);
	// RoundClusterMinConfidence is the floor applied when the alert was
	// raised by the round-width cluster rather than the digit deviation,
	// which can otherwise be near zero.
	BenfordMinEvents          int     `yaml:"benford_min_events"`
	BenfordDeviation          float64 `yaml:"benford_deviation"`
	BenfordHighDeviation      float64 `yaml:"benford_high_deviation"`
	RoundClusterFraction      float64 `yaml:"round_cluster_fraction"`
	RoundClusterMinConfidence float64 `yaml:"round_cluster_min_confidence"`

	// Consistency-violation detector.
	ConsistencyWindow  time.Duration `yaml:"consistency_window"`
	MaxDimensionJumpPx float64       `yaml:"max_dimension_jump_px"`
	MaxPositionJumpPx  float64       `yaml:"max_position_jump_px"`

	// Resource-usage detector.
	HeavyOpMinCPU    float64 `yaml:"heavy_op_min_cpu"`
	HeavyOpMinMemory float64 `yaml:"heavy_op_min_memory"`

	// Cross-agent correlation detector.
	CorrelationThreshold float64 `yaml:"correlation_threshold"`
	CorrelationWindow    int     `yaml:"correlation_window"`
	CorrelationMinEvents int     `yaml:"correlation_min_events"`

	// Background drift scan.
	ScanInterval   time.Duration `yaml:"scan_interval"`
	DriftMinEvents int           `yaml:"drift_min_events"`
	DriftCVFloor   float64       `yaml:"drift_cv_floor"`

	// Per-agent alert delivery throttle (alerts/sec with burst). Ingest
	// return values are never throttled, only subscriber fan-out.
	AlertRatePerSecond float64 `yaml:"alert_rate_per_second"`
	AlertBurst         int     `yaml:"alert_burst"`
}

// DefaultTunables returns the hand-tuned monitor constants.
func DefaultTunables() Tunables {
	return Tunables{
		MaxHistoryEvents: 1000,

		TimingMinPriorEvents: 10,
		TimingWindow:         20,
		ImpossiblyFastMs:     10,
		UniformStdDevMs:      2,
		UniformMinMeanMs:     5,
		OutlierZScore:        3,
		RoundBaseMs:          10,

		BenfordMinEvents:          50,
		BenfordDeviation:          0.15,
		BenfordHighDeviation:      0.3,
		RoundClusterFraction:      0.7,
		RoundClusterMinConfidence: 0.7,

		ConsistencyWindow:  5 * time.Minute,
		MaxDimensionJumpPx: 100,
		MaxPositionJumpPx:  500,

		HeavyOpMinCPU:    1,
		HeavyOpMinMemory: 5,

		CorrelationThreshold: 0.8,
		CorrelationWindow:    20,
		CorrelationMinEvents: 10,

		ScanInterval:   60 * time.Second,
		DriftMinEvents: 40,
		DriftCVFloor:   0.05,

		AlertRatePerSecond: 5,
		AlertBurst:         20,
	}
}
