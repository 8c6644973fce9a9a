// Package stats provides the pure statistical primitives shared by the
// detection layers: summary statistics, Pearson correlation, and a
// Benford's-Law chi-square deviation used as a forgery signal.
package stats

import "math"

// Benford expected frequencies for leading digits 1..9.
var BenfordExpected = [9]float64{0.301, 0.176, 0.125, 0.097, 0.079, 0.067, 0.058, 0.051, 0.046}

// ChiSquareCritical8DF is the chi-square critical value at p=0.05 with
// 8 degrees of freedom, used to normalize Benford deviation to [0,1].
const ChiSquareCritical8DF = 15.507

// MinBenfordSamples is the minimum leading-digit sample count below which
// BenfordDeviation reports zero regardless of the distribution.
const MinBenfordSamples = 30

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation, or 0 for fewer than
// two samples.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// CoefficientOfVariation returns stdev/mean, or 0 when the mean is zero.
func CoefficientOfVariation(xs []float64) float64 {
	m := Mean(xs)
	if m == 0 {
		return 0
	}
	return StdDev(xs) / m
}

// Pearson returns the Pearson correlation coefficient of two equal-length
// series. Returns 0 when the series differ in length, have fewer than two
// points, or either has zero variance.
func Pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ma, mb := Mean(a), Mean(b)
	var cov, va, vb float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// LeadingDigit returns the leading decimal digit (1..9) of |x|, or 0 when
// x has no leading digit (zero, NaN, Inf).
func LeadingDigit(x float64) int {
	x = math.Abs(x)
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	for x >= 10 {
		x /= 10
	}
	for x < 1 {
		x *= 10
	}
	return int(x)
}

// BenfordDeviation computes how far a sample of values strays from
// Benford's expected leading-digit distribution. The chi-square statistic
// is normalized by ChiSquareCritical8DF and clamped to [0,1].
// Fewer than MinBenfordSamples eligible digits deterministically yields 0.
func BenfordDeviation(values []float64) float64 {
	var counts [9]int
	total := 0
	for _, v := range values {
		d := LeadingDigit(v)
		if d >= 1 && d <= 9 {
			counts[d-1]++
			total++
		}
	}
	if total < MinBenfordSamples {
		return 0
	}
	var chi2 float64
	for i := 0; i < 9; i++ {
		expected := BenfordExpected[i] * float64(total)
		if expected == 0 {
			continue
		}
		d := float64(counts[i]) - expected
		chi2 += d * d / expected
	}
	dev := chi2 / ChiSquareCritical8DF
	if dev > 1 {
		dev = 1
	}
	return dev
}

// RoundFraction returns the fraction of values that are positive exact
// multiples of the given base.
func RoundFraction(values []float64, base float64) float64 {
	if len(values) == 0 || base <= 0 {
		return 0
	}
	round := 0
	for _, v := range values {
		if v > 0 && math.Mod(v, base) == 0 {
			round++
		}
	}
	return float64(round) / float64(len(values))
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
