package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/veracity-labs/veracity/pkg/evidence"
	"github.com/veracity-labs/veracity/pkg/stats"
)

// Batch-level pattern detectors. These operate on a whole event batch,
// unlike the monitor's per-event rules, and carry their own cutoffs.

var batchHeavyOpPattern = regexp.MustCompile(`(?i)(screenshot|render|analyz|extract|batch|full_page)`)

// complexSelector reports whether a selector implies non-trivial DOM
// work: compound selectors, attribute matches, or long paths.
func complexSelector(sel string) bool {
	if len(sel) > 20 {
		return true
	}
	return strings.ContainsAny(sel, " >[~+")
}

// detectBatchPatterns runs every batch detector over one event batch.
// A panic in one detector must not prevent the others from reporting.
func detectBatchPatterns(t Tunables, events []evidence.MeasurementEvent) []DeceptionIndicator {
	var out []DeceptionIndicator
	for _, detect := range []func(Tunables, []evidence.MeasurementEvent) *DeceptionIndicator{
		detectFastExecution,
		detectImpossiblePrecision,
		detectStaticErrors,
		detectBatchResourceAnomaly,
	} {
		if ind := runBatchDetector(detect, t, events); ind != nil {
			out = append(out, *ind)
		}
	}
	return out
}

func runBatchDetector(detect func(Tunables, []evidence.MeasurementEvent) *DeceptionIndicator, t Tunables, events []evidence.MeasurementEvent) (ind *DeceptionIndicator) {
	defer func() {
		if recover() != nil {
			ind = nil
		}
	}()
	return detect(t, events)
}

// detectFastExecution flags batches whose complex-selector operations
// average implausibly fast response times.
func detectFastExecution(t Tunables, events []evidence.MeasurementEvent) *DeceptionIndicator {
	var times []float64
	for i := range events {
		if complexSelector(events[i].Selector) {
			times = append(times, events[i].ResponseTimeMs)
		}
	}
	if len(times) < t.FastExecMinEvents {
		return nil
	}
	avg := stats.Mean(times)
	if avg >= t.FastExecMaxAvgMs {
		return nil
	}
	return &DeceptionIndicator{
		Pattern:           PatternFastExecution,
		Confidence:        0.9,
		RecommendedAction: ActionQuarantine,
		Detail:            fmt.Sprintf("complex selectors averaged %.1fms across %d events", avg, len(times)),
	}
}

// detectImpossiblePrecision flags batches where reported geometry is
// overwhelmingly round on every axis. Organic layouts are messy.
func detectImpossiblePrecision(t Tunables, events []evidence.MeasurementEvent) *DeceptionIndicator {
	byAxis := make(map[string][]float64)
	total := 0
	for i := range events {
		for _, key := range evidence.DimensionKeys {
			if v, ok := events[i].Dimension(key); ok {
				byAxis[key] = append(byAxis[key], v)
				total++
			}
		}
	}
	if total < t.MinDimensionSamples || len(byAxis) == 0 {
		return nil
	}
	for _, values := range byAxis {
		if stats.RoundFraction(values, 10) <= t.RoundDimensionFraction {
			return nil
		}
	}
	return &DeceptionIndicator{
		Pattern:           PatternImpossiblePrecis,
		Confidence:        0.85,
		RecommendedAction: ActionRevokeTrust,
		Detail:            fmt.Sprintf("%d dimension samples round on every axis", total),
	}
}

// detectStaticErrors flags an identical error message repeated across
// the batch: real failures vary with context.
func detectStaticErrors(t Tunables, events []evidence.MeasurementEvent) *DeceptionIndicator {
	counts := make(map[string]int)
	for i := range events {
		if events[i].Result == nil {
			continue
		}
		if msg, ok := events[i].Result["error"].(string); ok && msg != "" {
			counts[msg]++
		}
	}
	for msg, n := range counts {
		if n > t.StaticErrorRepeat {
			return &DeceptionIndicator{
				Pattern:           PatternStaticErrors,
				Confidence:        0.75,
				RecommendedAction: ActionInvestigate,
				Detail:            fmt.Sprintf("error %q repeated %d times", msg, n),
			}
		}
	}
	return nil
}

// detectBatchResourceAnomaly is the batch form of the monitor's
// resource rule, with stricter averaged cutoffs.
func detectBatchResourceAnomaly(t Tunables, events []evidence.MeasurementEvent) *DeceptionIndicator {
	var cpu, mem []float64
	for i := range events {
		if batchHeavyOpPattern.MatchString(events[i].Operation) {
			cpu = append(cpu, events[i].SystemMetrics.CPUUsage)
			mem = append(mem, events[i].SystemMetrics.MemoryUsage)
		}
	}
	if len(cpu) < t.BatchHeavyMinEvents {
		return nil
	}
	if stats.Mean(cpu) >= t.BatchHeavyMinCPU || stats.Mean(mem) >= t.BatchHeavyMinMemory {
		return nil
	}
	return &DeceptionIndicator{
		Pattern:           PatternResourceAnomaly,
		Confidence:        0.8,
		RecommendedAction: ActionQuarantine,
		Detail:            fmt.Sprintf("%d heavy operations with near-zero resource usage", len(cpu)),
	}
}
