package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

var ramp = []float64{1, 2, 3, 4, 5}

func TestSimpleStatistics(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]float64) float64
		x    []float64
		want float64
	}{
		{"sum_values", sumValues, ramp, 15},
		{"abs_energy", absEnergy, ramp, 55},
		{"mean", mean, ramp, 3},
		{"median even", median, []float64{4, 1, 3, 2}, 2.5},
		{"variance", variance, ramp, 2},
		{"standard_deviation", stdDev, ramp, math.Sqrt2},
		{"length", length, ramp, 5},
		{"mean_abs_change", meanAbsChange, []float64{1, 3, 2}, 1.5},
		{"mean_change", meanChange, []float64{1, 3, 2}, 0.5},
		{"mean_second_derivative_central", meanSecondDerivativeCentral, ramp, 0},
		{"absolute_sum_of_changes", absoluteSumOfChanges, []float64{1, 3, 2}, 3},
		{"skewness symmetric", skewness, ramp, 0},
		{"kurtosis", kurtosis, ramp, -1.2},
		{"count_above_mean", countAboveMean, ramp, 2},
		{"count_below_mean", countBelowMean, ramp, 2},
		{"first_location_of_maximum", firstLocationOfMaximum, []float64{1, 3, 3, 2}, 0.25},
		{"last_location_of_maximum", lastLocationOfMaximum, []float64{1, 3, 3, 2}, 0.75},
		{"first_location_of_minimum", firstLocationOfMinimum, []float64{0, 3, 0, 2}, 0},
		{"last_location_of_minimum", lastLocationOfMinimum, []float64{0, 3, 0, 2}, 0.75},
		{"longest_strike_above_mean", longestStrikeAboveMean, []float64{5, 5, 0, 5, 0, 0}, 2},
		{"longest_strike_below_mean", longestStrikeBelowMean, []float64{5, 5, 0, 5, 0, 0}, 2},
		{"has_duplicate", hasDuplicate, []float64{1, 1, 2, 3}, 1},
		{"has_duplicate_max", hasDuplicateMax, []float64{1, 1, 2, 3}, 0},
		{"has_duplicate_min", hasDuplicateMin, []float64{1, 1, 2, 3}, 1},
		{"percentage_of_reoccurring_datapoints", percentageOfReoccurringDatapoints, []float64{1, 1, 2, 3}, 1.0 / 3.0},
		{"percentage_of_reoccurring_values", percentageOfReoccurringValues, []float64{1, 1, 2, 3}, 0.5},
		{"sum_of_reoccurring_values", sumOfReoccurringValues, []float64{1, 1, 2, 3}, 1},
		{"sum_of_reoccurring_data_points", sumOfReoccurringDataPoints, []float64{1, 1, 2, 3}, 2},
		{"ratio_value_number", ratioValueNumberToLength, []float64{1, 1, 2, 3}, 0.75},
		{"variance_larger_than_std", varianceLargerThanStd, []float64{0, 10}, 1},
		{"variation_coefficient", variationCoefficient, []float64{2, 4}, 1.0 / 3.0},
		{"sample_entropy one close pair", sampleEntropy, []float64{1, 1, 2, 3}, math.Log(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.fn(tt.x), eps)
		})
	}
}

func TestDegenerateInputsAreNonFinite(t *testing.T) {
	single := []float64{4}
	constant := []float64{2, 2, 2, 2, 2, 2}

	assert.True(t, math.IsNaN(meanChange(single)))
	assert.True(t, math.IsNaN(meanAbsChange(single)))
	assert.True(t, math.IsNaN(meanSecondDerivativeCentral([]float64{1, 2})))
	assert.True(t, math.IsNaN(skewness([]float64{1, 2})))
	assert.True(t, math.IsNaN(kurtosis([]float64{1, 2, 3})))
	assert.True(t, math.IsNaN(variationCoefficient([]float64{-1, 1})))
	assert.True(t, math.IsNaN(sampleEntropy(single)))
	assert.True(t, math.IsInf(sampleEntropy(constant), 1))
	assert.True(t, math.IsNaN(autocorrelation(constant, p1("lag", 1))))
	assert.True(t, math.IsNaN(autocorrelation(single, p1("lag", 3))))
	assert.True(t, math.IsNaN(maxLangevinFixedPoint(constant, Params{{Key: "m", Value: 3}, {Key: "r", Value: 30}})))

	for _, v := range friedrichCoefficients(constant, 3, 30) {
		assert.True(t, math.IsNaN(v))
	}
	for _, v := range linearTrend(single, stringGrid("attr", "slope", "pvalue")) {
		assert.True(t, math.IsNaN(v))
	}
}

func TestQuantile(t *testing.T) {
	got := quantiles(ramp, floatGrid("q", 0.1, 0.4, 0.9))
	assert.InDeltaSlice(t, []float64{1.4, 2.6, 4.6}, got, eps)
}

func TestAutocorrelation(t *testing.T) {
	assert.InDelta(t, 1.0, autocorrelation(ramp, p1("lag", 0)), eps)
	assert.InDelta(t, 0.5, autocorrelation(ramp, p1("lag", 1)), eps)
}

func TestAggAutocorrelation(t *testing.T) {
	ps := []Params{
		{{Key: "f_agg", Value: "mean"}, {Key: "maxlag", Value: 40}},
		{{Key: "f_agg", Value: "median"}, {Key: "maxlag", Value: 40}},
	}
	got := aggAutocorrelation(ramp, ps)
	// lags 1..4: 0.5, -1/6, -1, -2
	assert.InDelta(t, -2.0/3.0, got[0], eps)
	assert.InDelta(t, (-1.0/6.0-1.0)/2, got[1], eps)

	constant := aggAutocorrelation([]float64{3, 3, 3}, ps)
	assert.Equal(t, []float64{0, 0}, constant)
}

func TestNumberPeaks(t *testing.T) {
	x := []float64{1, 3, 1, 3, 1}
	assert.Equal(t, 2.0, numberPeaks(x, p1("n", 1)))
	assert.Equal(t, 0.0, numberPeaks(x, p1("n", 3)))
}

func TestC3AndTimeReversal(t *testing.T) {
	assert.InDelta(t, 30.0, c3(ramp, p1("lag", 1)), eps)
	assert.Equal(t, 0.0, c3(ramp, p1("lag", 3)))

	// i=0..2: x[i+2]^2*x[i+1] - x[i+1]*x[i]^2
	want := ((9*2 - 2*1) + (16*3 - 3*4) + (25*4 - 4*9)) / 3.0
	assert.InDelta(t, want, timeReversalAsymmetry(ramp, p1("lag", 1)), eps)
}

func TestIndexMassQuantile(t *testing.T) {
	got := indexMassQuantile([]float64{1, 1, 1, 1}, floatGrid("q", 0.1, 0.5, 0.9))
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 1.0}, got, eps)

	zero := indexMassQuantile([]float64{0, 0}, floatGrid("q", 0.5))
	assert.True(t, math.IsNaN(zero[0]))
}

func TestBinnedEntropy(t *testing.T) {
	assert.InDelta(t, 0.0, binnedEntropy([]float64{5, 5, 5}, p1("max_bins", 10)), eps)
	assert.InDelta(t, math.Ln2, binnedEntropy([]float64{0, 1}, p1("max_bins", 10)), eps)

	// 0.3 sits just below the float edge 3*0.1 and shares a bin with 0.29.
	assert.InDelta(t, 1.0397207708399179, binnedEntropy([]float64{0, 0.29, 0.3, 1}, p1("max_bins", 10)), eps)
}

func TestCountAndCrossing(t *testing.T) {
	x := []float64{-1, 0, 1}
	assert.Equal(t, 2.0, rangeCount(x, Params{{Key: "min", Value: -1}, {Key: "max", Value: 1}}))
	assert.Equal(t, 1.0, valueCount(x, p1("value", 0)))
	assert.Equal(t, 3.0, numberCrossingM([]float64{-1, 1, -1, 1}, p1("m", 0)))
	assert.InDelta(t, 0.4, ratioBeyondRSigma(ramp, p1("r", 1)), eps)
}

func TestChangeQuantiles(t *testing.T) {
	// corridor [1, 4] keeps the changes 1->3 and 3->2
	x := []float64{1, 3, 2, 10, 4, 0}
	param := func(isabs bool, agg string) Params {
		return Params{{Key: "ql", Value: 0.2}, {Key: "qh", Value: 0.8}, {Key: "isabs", Value: isabs}, {Key: "f_agg", Value: agg}}
	}
	assert.InDelta(t, 0.5, changeQuantiles(x, param(false, "mean")), eps)
	assert.InDelta(t, 1.5, changeQuantiles(x, param(true, "mean")), eps)
	assert.InDelta(t, 2.25, changeQuantiles(x, param(false, "var")), eps)
	assert.InDelta(t, 0.25, changeQuantiles(x, param(true, "var")), eps)
	assert.Equal(t, 0.0, changeQuantiles([]float64{2, 2, 2}, param(false, "mean")))
}

func TestApproximateEntropy(t *testing.T) {
	p := Params{{Key: "m", Value: 2}, {Key: "r", Value: 0.1}}
	want := math.Abs((3*math.Log(0.6)+2*math.Log(0.4))/5 - math.Log(0.5))
	assert.InDelta(t, want, approximateEntropy([]float64{1, 2, 1, 2, 1, 2}, p), eps)
	assert.Equal(t, 0.0, approximateEntropy([]float64{1, 2, 3}, p))
	assert.InDelta(t, 0.0, approximateEntropy([]float64{4, 4, 4, 4, 4}, p), eps)
}

func TestCidCE(t *testing.T) {
	assert.InDelta(t, 2.0, cidCE(ramp, p1("normalize", false)), eps)
	assert.InDelta(t, 2.0/math.Sqrt2, cidCE(ramp, p1("normalize", true)), eps)
	assert.Equal(t, 0.0, cidCE([]float64{1, 1}, p1("normalize", true)))
}

func TestLargeStdAndSymmetry(t *testing.T) {
	assert.Equal(t, 1.0, largeStandardDeviation(ramp, p1("r", 0.05)))
	assert.Equal(t, 0.0, largeStandardDeviation(ramp, p1("r", 0.95)))
	assert.Equal(t, 0.0, symmetryLooking(ramp, p1("r", 0.0)))
	assert.Equal(t, 1.0, symmetryLooking(ramp, p1("r", 0.05)))
}

func TestEnergyRatioByChunks(t *testing.T) {
	ps := []Params{
		{{Key: "num_segments", Value: 3}, {Key: "segment_focus", Value: 0}},
		{{Key: "num_segments", Value: 3}, {Key: "segment_focus", Value: 2}},
	}
	// chunks of [1,1,1,1,1] split 2,2,1
	got := energyRatioByChunks([]float64{1, 1, 1, 1, 1}, ps)
	assert.InDeltaSlice(t, []float64{0.4, 0.2}, got, eps)

	zero := energyRatioByChunks([]float64{0, 0}, ps)
	assert.True(t, math.IsNaN(zero[0]))
}

func TestFFTCoefficient(t *testing.T) {
	ps := []Params{
		{{Key: "attr", Value: "abs"}, {Key: "coeff", Value: 0}},
		{{Key: "attr", Value: "real"}, {Key: "coeff", Value: 2}},
		{{Key: "attr", Value: "angle"}, {Key: "coeff", Value: 1}},
		{{Key: "attr", Value: "abs"}, {Key: "coeff", Value: 3}},
	}
	got := fftCoefficient([]float64{1, 0, 0, 0}, ps)
	assert.InDelta(t, 1.0, got[0], eps)
	assert.InDelta(t, 1.0, got[1], eps)
	assert.InDelta(t, 0.0, got[2], eps)
	assert.True(t, math.IsNaN(got[3]), "coefficient beyond n/2 is undefined")

	// a unit impulse at t=1 rotates the first harmonic to -i
	shifted := fftCoefficient([]float64{0, 1, 0, 0}, []Params{
		{{Key: "coeff", Value: 1}, {Key: "attr", Value: "imag"}},
		{{Key: "coeff", Value: 1}, {Key: "attr", Value: "angle"}},
		{{Key: "coeff", Value: 1}, {Key: "attr", Value: "real"}},
		{{Key: "coeff", Value: 2}, {Key: "attr", Value: "real"}},
	})
	assert.InDelta(t, -1.0, shifted[0], eps)
	assert.InDelta(t, -90.0, shifted[1], 1e-6)
	assert.InDelta(t, 0.0, shifted[2], eps)
	assert.InDelta(t, -1.0, shifted[3], eps)
}

func TestFFTAggregated(t *testing.T) {
	got := fftAggregated([]float64{1, 0, 0, 0}, stringGrid("aggtype", "centroid", "variance", "skew"))
	// flat spectrum over bins 0,1,2
	assert.InDelta(t, 1.0, got[0], eps)
	assert.InDelta(t, 2.0/3.0, got[1], eps)
	assert.InDelta(t, 0.0, got[2], eps)
}

func TestLinearTrend(t *testing.T) {
	ps := stringGrid("attr", "pvalue", "rvalue", "intercept", "slope", "stderr")
	got := linearTrend([]float64{1, 3, 5, 7}, ps)

	assert.InDelta(t, 0.0, got[0], 1e-6)
	assert.InDelta(t, 1.0, got[1], eps)
	assert.InDelta(t, 1.0, got[2], eps)
	assert.InDelta(t, 2.0, got[3], eps)
	assert.InDelta(t, 0.0, got[4], eps)

	flat := linearTrend([]float64{2, 2, 2}, ps)
	assert.InDelta(t, 1.0, flat[0], eps)
	assert.Equal(t, 0.0, flat[1])
	assert.InDelta(t, 0.0, flat[3], eps)
}

func TestPolyfitAndRoots(t *testing.T) {
	var xs, ys []float64
	for i := 0; i < 10; i++ {
		x := float64(i)
		xs = append(xs, x)
		ys = append(ys, x*x*x-2*x+1)
	}
	coeffs, ok := polyfit(xs, ys, 3)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{1, 0, -2, 1}, coeffs, 1e-6)

	roots, ok := polyRoots([]float64{1, -6, 11, -6})
	require.True(t, ok)
	best := math.Inf(-1)
	for _, r := range roots {
		best = math.Max(best, real(r))
	}
	assert.InDelta(t, 3.0, best, 1e-9)

	_, ok = polyRoots([]float64{math.NaN(), 1})
	assert.False(t, ok)
}

func TestSplitBounds(t *testing.T) {
	var sizes []int
	for i := 0; i < 4; i++ {
		s, e := splitBounds(10, 4, i)
		sizes = append(sizes, e-s)
	}
	assert.Equal(t, []int{3, 3, 2, 2}, sizes)
}
