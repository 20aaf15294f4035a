package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelch(t *testing.T) {
	x := make([]float64, 32)
	for i := range x {
		x[i] = math.Cos(2 * math.Pi * 4 * float64(i) / 32)
	}
	psd := welch(x)
	require.Len(t, psd, 17)
	peak := 0
	for k := range psd {
		if psd[k] > psd[peak] {
			peak = k
		}
	}
	assert.Equal(t, 4, peak)

	for _, v := range welch([]float64{2, 2, 2, 2}) {
		assert.InDelta(t, 0.0, v, eps)
	}

	got := spktWelchDensity(make([]float64, 10), intGrid("coeff", 2, 5, 8))
	assert.InDelta(t, 0.0, got[0], eps)
	assert.True(t, math.IsNaN(got[2]), "coefficient past n/2")
}

func TestRicker(t *testing.T) {
	w := ricker(11, 2)
	assert.InDelta(t, 2/(math.Sqrt(6)*math.Pow(math.Pi, 0.25)), w[5], eps)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, w[i], w[10-i], eps)
	}
}

func TestConvolveSame(t *testing.T) {
	x := []float64{1, 2, 3}
	assert.Equal(t, x, convolveSame(x, []float64{0, 1, 0}))
	assert.Equal(t, []float64{1, 3, 5}, convolveSame(x, []float64{1, 1}))
}

func TestCWTCoefficients(t *testing.T) {
	x := []float64{0, 1, 4, 9, 16, 9, 4, 1, 0, 0, 0, 0}
	widths := []int{2, 5, 10, 20}
	ps := []Params{
		{{Key: "widths", Value: widths}, {Key: "coeff", Value: 4}, {Key: "w", Value: 5}},
		{{Key: "widths", Value: widths}, {Key: "coeff", Value: 14}, {Key: "w", Value: 2}},
	}
	got := cwtCoefficients(x, ps)
	assert.InDelta(t, convolveSame(x, ricker(min(50, len(x)), 5))[4], got[0], eps)
	assert.True(t, math.IsNaN(got[1]), "coefficient past the series")
}

func TestRidgePeaks(t *testing.T) {
	matrix := [][]float64{
		{0, 1, 0, 1, 0},
		{0, 2, 0, 0, 0},
	}
	widths := []int{1, 2}
	lines := ridgeLines(matrix, widths)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, countRidgePeaks(matrix, lines))

	assert.Equal(t, 0.0, numberCWTPeaks(make([]float64, 30), p1("n", 5)))
}
