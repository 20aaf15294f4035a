package features

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartialAutocorrelation(t *testing.T) {
	got := partialAutocorrelation(ramp, intGrid("lag", 0, 1, 2, 9))
	// unbiased autocovariances of 1..5 are 2, 1, -1/3
	assert.InDelta(t, 1.0, got[0], eps)
	assert.InDelta(t, 0.5, got[1], eps)
	assert.InDelta(t, -5.0/9.0, got[2], eps)
	assert.True(t, math.IsNaN(got[3]), "lag beyond n-1")

	single := partialAutocorrelation([]float64{3}, intGrid("lag", 0, 1))
	assert.True(t, math.IsNaN(single[0]))
	assert.True(t, math.IsNaN(single[1]))
}

func TestARCoefficient(t *testing.T) {
	// x_t = 2 + 0.5 x_{t-1}
	x := []float64{0}
	for i := 0; i < 7; i++ {
		x = append(x, 2+0.5*x[len(x)-1])
	}
	ps := []Params{
		{{Key: "coeff", Value: 0}, {Key: "k", Value: 1}},
		{{Key: "coeff", Value: 1}, {Key: "k", Value: 1}},
		{{Key: "coeff", Value: 2}, {Key: "k", Value: 1}},
	}
	got := arCoefficient(x, ps)
	assert.InDelta(t, 2.0, got[0], 1e-9)
	assert.InDelta(t, 0.5, got[1], 1e-9)
	assert.True(t, math.IsNaN(got[2]), "coefficient above the order")

	short := arCoefficient([]float64{1, 2, 3}, []Params{{{Key: "coeff", Value: 0}, {Key: "k", Value: 10}}})
	assert.True(t, math.IsNaN(short[0]))
}

func TestAggLinearTrend(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ps := []Params{
		{{Key: "attr", Value: "slope"}, {Key: "chunk_len", Value: 5}, {Key: "f_agg", Value: "mean"}},
		{{Key: "attr", Value: "intercept"}, {Key: "chunk_len", Value: 5}, {Key: "f_agg", Value: "mean"}},
		{{Key: "attr", Value: "slope"}, {Key: "chunk_len", Value: 5}, {Key: "f_agg", Value: "max"}},
		{{Key: "attr", Value: "slope"}, {Key: "chunk_len", Value: 5}, {Key: "f_agg", Value: "var"}},
		{{Key: "attr", Value: "rvalue"}, {Key: "chunk_len", Value: 50}, {Key: "f_agg", Value: "mean"}},
	}
	got := aggLinearTrend(x, ps)
	assert.InDelta(t, 5.0, got[0], eps)
	assert.InDelta(t, 3.0, got[1], eps)
	assert.InDelta(t, 5.0, got[2], eps)
	assert.InDelta(t, 0.0, got[3], eps)
	assert.True(t, math.IsNaN(got[4]), "chunk longer than the series")
}

func TestAggregateChunks(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, []float64{3, 6, 7}, aggregateChunks(x, "max", 3))
	v := aggregateChunks(x, "var", 3)
	assert.InDelta(t, 1.0, v[0], eps)
	assert.True(t, math.IsNaN(v[2]), "single-value chunk has no sample variance")
}

func TestMackinnonP(t *testing.T) {
	assert.Equal(t, 1.0, mackinnonp(3))
	assert.Equal(t, 0.0, mackinnonp(-20))
	assert.InDelta(t, 0.05, mackinnonp(-2.86), 0.002)
	assert.InDelta(t, mackinnonp(-1.6099), mackinnonp(-1.61), 5e-3, "approximations meet at the switch point")
}

func TestAugmentedDickeyFuller(t *testing.T) {
	ps := stringGrid("attr", "teststat", "pvalue", "usedlag")

	rng := rand.New(rand.NewSource(7))
	noise := make([]float64, 200)
	for i := range noise {
		noise[i] = rng.NormFloat64()
	}
	got := augmentedDickeyFuller(noise, ps)
	require.Len(t, got, 3)
	assert.Less(t, got[0], -3.5)
	assert.Less(t, got[1], 0.01)
	assert.GreaterOrEqual(t, got[2], 0.0)
	assert.LessOrEqual(t, got[2], 15.0)

	for _, v := range augmentedDickeyFuller(ramp, ps) {
		assert.True(t, math.IsNaN(v), "series shorter than the lag search")
	}
	for _, v := range augmentedDickeyFuller(append(append([]float64{}, noise...), math.Inf(1)), ps) {
		assert.True(t, math.IsNaN(v))
	}
}
