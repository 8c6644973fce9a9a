package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 3.0, Mean([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation(nil))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{100, 100, 100}))

	cv := CoefficientOfVariation([]float64{80, 100, 120})
	assert.Greater(t, cv, 0.1)
	assert.Less(t, cv, 0.3)
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}

	// Perfect positive correlation
	assert.InDelta(t, 1.0, Pearson(a, []float64{2, 4, 6, 8, 10}), 1e-9)

	// Perfect negative correlation
	assert.InDelta(t, -1.0, Pearson(a, []float64{10, 8, 6, 4, 2}), 1e-9)

	// Degenerate inputs
	assert.Equal(t, 0.0, Pearson(a, []float64{1, 2}))
	assert.Equal(t, 0.0, Pearson(a, []float64{7, 7, 7, 7, 7}))
	assert.Equal(t, 0.0, Pearson([]float64{1}, []float64{2}))
}

func TestLeadingDigit(t *testing.T) {
	cases := map[float64]int{
		1:      1,
		9:      9,
		42:     4,
		999.9:  9,
		0.0042: 4,
		-317:   3,
		0:      0,
	}
	for in, want := range cases {
		assert.Equal(t, want, LeadingDigit(in), "LeadingDigit(%v)", in)
	}
}

func TestBenfordDeviationInsufficientSamples(t *testing.T) {
	// 29 samples, all starting with 9 — wildly non-Benford, but below the
	// minimum sample floor the deviation must be exactly zero.
	values := make([]float64, 29)
	for i := range values {
		values[i] = 900 + float64(i)
	}
	assert.Equal(t, 0.0, BenfordDeviation(values))
}

func TestBenfordDeviationDetectsUniformDigits(t *testing.T) {
	// Every value leads with 5: far from the logarithmic distribution.
	values := make([]float64, 60)
	for i := range values {
		values[i] = 500 + float64(i)
	}
	dev := BenfordDeviation(values)
	require.Greater(t, dev, 0.15)
	assert.LessOrEqual(t, dev, 1.0)
}

func TestBenfordDeviationNearConformingSample(t *testing.T) {
	// Construct a sample matching Benford frequencies closely.
	var values []float64
	counts := []int{30, 18, 13, 10, 8, 7, 6, 5, 5}
	for digit, n := range counts {
		for i := 0; i < n; i++ {
			values = append(values, float64(digit+1)*100+float64(i))
		}
	}
	assert.Less(t, BenfordDeviation(values), 0.15)
}

func TestRoundFraction(t *testing.T) {
	assert.Equal(t, 0.0, RoundFraction(nil, 10))
	assert.Equal(t, 1.0, RoundFraction([]float64{10, 20, 300}, 10))
	assert.InDelta(t, 0.5, RoundFraction([]float64{10, 13, 20, 27}, 10), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
	assert.Equal(t, 1.0, Clamp(2, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}
