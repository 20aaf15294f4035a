package features

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// calculator is one entry of the statistic catalog. Simple calculators have
// no parameters and emit exactly one value; combiners emit one value per
// parameter combination, in order. keys, when set, fixes the order of the
// parameters in the output names.
type calculator struct {
	name     string
	simple   func(x []float64) float64
	single   func(x []float64, p Params) float64
	combiner func(x []float64, ps []Params) []float64
	params   []Params
	keys     []string
}

func (c calculator) suffix(p Params) string {
	if c.keys != nil {
		return p.SuffixOrdered(c.keys)
	}
	return p.Suffix()
}

func (c calculator) outputs() int {
	if c.simple != nil {
		return 1
	}
	return len(c.params)
}

func (c calculator) compute(x []float64, dst []float64) {
	switch {
	case c.simple != nil:
		dst[0] = c.simple(x)
	case c.single != nil:
		for i, p := range c.params {
			dst[i] = c.single(x, p)
		}
	default:
		copy(dst, c.combiner(x, c.params))
	}
}

func p1(key string, value any) Params {
	return Params{{Key: key, Value: value}}
}

func floatGrid(key string, values ...float64) []Params {
	out := make([]Params, len(values))
	for i, v := range values {
		out[i] = p1(key, v)
	}
	return out
}

func intGrid(key string, values ...int) []Params {
	out := make([]Params, len(values))
	for i, v := range values {
		out[i] = p1(key, v)
	}
	return out
}

func stringGrid(key string, values ...string) []Params {
	out := make([]Params, len(values))
	for i, v := range values {
		out[i] = p1(key, v)
	}
	return out
}

func steps(from, to int, step float64) []float64 {
	var out []float64
	for i := from; i < to; i++ {
		out = append(out, float64(i)*step)
	}
	return out
}

func rangeInts(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// catalog is the frozen statistic list: the tsfresh 0.12.0 comprehensive
// defaults with their naming. Changing it changes CatalogVersion and
// invalidates every trained model and cached vector.
var catalog = buildCatalog()

func buildCatalog() []calculator {
	var aggAuto []Params
	for _, f := range []string{"mean", "median", "var"} {
		aggAuto = append(aggAuto, Params{{Key: "f_agg", Value: f}, {Key: "maxlag", Value: 40}})
	}

	var cwtParams []Params
	widths := []int{2, 5, 10, 20}
	for coeff := 0; coeff < 15; coeff++ {
		for _, w := range widths {
			cwtParams = append(cwtParams, Params{{Key: "widths", Value: widths}, {Key: "coeff", Value: coeff}, {Key: "w", Value: w}})
		}
	}

	var arParams []Params
	for coeff := 0; coeff < 5; coeff++ {
		arParams = append(arParams, Params{{Key: "coeff", Value: coeff}, {Key: "k", Value: 10}})
	}

	var changeQ []Params
	for _, ql := range []float64{0, 0.2, 0.4, 0.6, 0.8} {
		for _, qh := range []float64{0.2, 0.4, 0.6, 0.8, 1} {
			if ql >= qh {
				continue
			}
			for _, isabs := range []bool{false, true} {
				for _, f := range []string{"mean", "var"} {
					changeQ = append(changeQ, Params{
						{Key: "ql", Value: ql}, {Key: "qh", Value: qh},
						{Key: "isabs", Value: isabs}, {Key: "f_agg", Value: f},
					})
				}
			}
		}
	}

	var energy []Params
	for i := 0; i < 10; i++ {
		energy = append(energy, Params{{Key: "num_segments", Value: 10}, {Key: "segment_focus", Value: i}})
	}

	var fftCoeff []Params
	for _, attr := range []string{"real", "imag", "abs", "angle"} {
		for k := 0; k < 100; k++ {
			fftCoeff = append(fftCoeff, Params{{Key: "coeff", Value: k}, {Key: "attr", Value: attr}})
		}
	}

	var apEn []Params
	for _, r := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		apEn = append(apEn, Params{{Key: "m", Value: 2}, {Key: "r", Value: r}})
	}

	var aggTrend []Params
	for _, attr := range []string{"rvalue", "intercept", "slope", "stderr"} {
		for _, chunk := range []int{5, 10, 50} {
			for _, f := range []string{"max", "min", "mean", "var"} {
				aggTrend = append(aggTrend, Params{{Key: "attr", Value: attr}, {Key: "chunk_len", Value: chunk}, {Key: "f_agg", Value: f}})
			}
		}
	}

	var friedrichParams []Params
	for k := 0; k < 4; k++ {
		friedrichParams = append(friedrichParams, Params{{Key: "coeff", Value: k}, {Key: "m", Value: 3}, {Key: "r", Value: 30}})
	}

	ratioSigma := []Params{
		p1("r", 0.5), p1("r", 1), p1("r", 1.5), p1("r", 2), p1("r", 2.5),
		p1("r", 3), p1("r", 5), p1("r", 6), p1("r", 7), p1("r", 10),
	}

	return []calculator{
		{name: "variance_larger_than_standard_deviation", simple: varianceLargerThanStd},
		{name: "has_duplicate_max", simple: hasDuplicateMax},
		{name: "has_duplicate_min", simple: hasDuplicateMin},
		{name: "has_duplicate", simple: hasDuplicate},
		{name: "sum_values", simple: sumValues},
		{name: "abs_energy", simple: absEnergy},
		{name: "mean_abs_change", simple: meanAbsChange},
		{name: "mean_change", simple: meanChange},
		{name: "mean_second_derivative_central", simple: meanSecondDerivativeCentral},
		{name: "median", simple: median},
		{name: "mean", simple: mean},
		{name: "length", simple: length},
		{name: "standard_deviation", simple: stdDev},
		{name: "variation_coefficient", simple: variationCoefficient},
		{name: "variance", simple: variance},
		{name: "skewness", simple: skewness},
		{name: "kurtosis", simple: kurtosis},
		{name: "absolute_sum_of_changes", simple: absoluteSumOfChanges},
		{name: "longest_strike_below_mean", simple: longestStrikeBelowMean},
		{name: "longest_strike_above_mean", simple: longestStrikeAboveMean},
		{name: "count_above_mean", simple: countAboveMean},
		{name: "count_below_mean", simple: countBelowMean},
		{name: "last_location_of_maximum", simple: lastLocationOfMaximum},
		{name: "first_location_of_maximum", simple: firstLocationOfMaximum},
		{name: "last_location_of_minimum", simple: lastLocationOfMinimum},
		{name: "first_location_of_minimum", simple: firstLocationOfMinimum},
		{name: "percentage_of_reoccurring_values_to_all_values", simple: percentageOfReoccurringValues},
		{name: "percentage_of_reoccurring_datapoints_to_all_datapoints", simple: percentageOfReoccurringDatapoints},
		{name: "sum_of_reoccurring_values", simple: sumOfReoccurringValues},
		{name: "sum_of_reoccurring_data_points", simple: sumOfReoccurringDataPoints},
		{name: "ratio_value_number_to_time_series_length", simple: ratioValueNumberToLength},
		{name: "sample_entropy", simple: sampleEntropy},
		{name: "maximum", simple: maximum},
		{name: "minimum", simple: minimum},
		{name: "time_reversal_asymmetry_statistic", single: timeReversalAsymmetry, params: intGrid("lag", 1, 2, 3)},
		{name: "c3", single: c3, params: intGrid("lag", 1, 2, 3)},
		{name: "cid_ce", single: cidCE, params: []Params{p1("normalize", true), p1("normalize", false)}},
		{name: "symmetry_looking", single: symmetryLooking, params: floatGrid("r", steps(0, 20, 0.05)...)},
		{name: "large_standard_deviation", single: largeStandardDeviation, params: floatGrid("r", steps(1, 20, 0.05)...)},
		{name: "quantile", combiner: quantiles, params: floatGrid("q", 0.1, 0.2, 0.3, 0.4, 0.6, 0.7, 0.8, 0.9)},
		{name: "autocorrelation", single: autocorrelation, params: intGrid("lag", rangeInts(0, 10)...)},
		{name: "agg_autocorrelation", combiner: aggAutocorrelation, params: aggAuto},
		{name: "partial_autocorrelation", combiner: partialAutocorrelation, params: intGrid("lag", rangeInts(0, 10)...)},
		{name: "number_cwt_peaks", single: numberCWTPeaks, params: intGrid("n", 1, 5)},
		{name: "number_peaks", single: numberPeaks, params: intGrid("n", 1, 3, 5, 10, 50)},
		{name: "binned_entropy", single: binnedEntropy, params: intGrid("max_bins", 10)},
		{name: "index_mass_quantile", combiner: indexMassQuantile, params: floatGrid("q", 0.1, 0.2, 0.3, 0.4, 0.6, 0.7, 0.8, 0.9)},
		{name: "cwt_coefficients", combiner: cwtCoefficients, params: cwtParams, keys: []string{"widths", "coeff", "w"}},
		{name: "spkt_welch_density", combiner: spktWelchDensity, params: intGrid("coeff", 2, 5, 8)},
		{name: "ar_coefficient", combiner: arCoefficient, params: arParams, keys: []string{"k", "coeff"}},
		{name: "change_quantiles", single: changeQuantiles, params: changeQ},
		{name: "fft_coefficient", combiner: fftCoefficient, params: fftCoeff, keys: []string{"coeff", "attr"}},
		{name: "fft_aggregated", combiner: fftAggregated, params: stringGrid("aggtype", "centroid", "variance", "skew", "kurtosis")},
		{name: "value_count", single: valueCount, params: intGrid("value", 0, 1, -1)},
		{name: "range_count", single: rangeCount, params: []Params{{{Key: "min", Value: -1}, {Key: "max", Value: 1}}}},
		{name: "approximate_entropy", single: approximateEntropy, params: apEn},
		{name: "friedrich_coefficients", combiner: friedrich, params: friedrichParams},
		{name: "max_langevin_fixed_point", single: maxLangevinFixedPoint, params: []Params{{{Key: "m", Value: 3}, {Key: "r", Value: 30}}}},
		{name: "linear_trend", combiner: linearTrend, params: stringGrid("attr", "pvalue", "rvalue", "intercept", "slope", "stderr")},
		{name: "agg_linear_trend", combiner: aggLinearTrend, params: aggTrend},
		{name: "augmented_dickey_fuller", combiner: augmentedDickeyFuller, params: stringGrid("attr", "teststat", "pvalue", "usedlag")},
		{name: "number_crossing_m", single: numberCrossingM, params: intGrid("m", 0, -1, 1)},
		{name: "energy_ratio_by_chunks", combiner: energyRatioByChunks, params: energy},
		{name: "ratio_beyond_r_sigma", single: ratioBeyondRSigma, params: ratioSigma},
	}
}

// channelSchema lists the per-channel feature suffixes in catalog order.
var channelSchema = buildChannelSchema()

func buildChannelSchema() []string {
	var names []string
	for _, c := range catalog {
		if c.simple != nil {
			names = append(names, c.name)
			continue
		}
		for _, p := range c.params {
			names = append(names, c.name+"__"+c.suffix(p))
		}
	}
	return names
}

// FeaturesPerChannel is the number of features emitted for every channel.
func FeaturesPerChannel() int {
	return len(channelSchema)
}

// Schema returns the raw feature names for the given channel count, in
// extraction order (channel-major, catalog order within a channel).
func Schema(channels int) []string {
	names := make([]string, 0, channels*len(channelSchema))
	for ch := 0; ch < channels; ch++ {
		for _, suffix := range channelSchema {
			names = append(names, channelPrefix(ch)+suffix)
		}
	}
	return names
}

func channelPrefix(ch int) string {
	return strconv.Itoa(ch) + "__"
}

// CatalogVersion fingerprints the catalog so cached vectors and model
// artifacts can be tied to the schema that produced them.
var CatalogVersion = func() string {
	sum := sha256.Sum256([]byte(strings.Join(channelSchema, "\n")))
	return hex.EncodeToString(sum[:6])
}()
