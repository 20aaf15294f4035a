package features

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Statistic conventions follow numpy/pandas: variance and standard deviation
// are population moments, skewness and kurtosis are the bias-corrected pandas
// estimators and quantiles interpolate linearly between order statistics.
// Every calculator receives a non-empty series.

var nan = math.NaN()

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func mean(x []float64) float64 {
	return stat.Mean(x, nil)
}

func variance(x []float64) float64 {
	_, v := stat.PopMeanVariance(x, nil)
	return v
}

func stdDev(x []float64) float64 {
	return math.Sqrt(variance(x))
}

func sortedCopy(x []float64) []float64 {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return s
}

// quantileSorted is numpy's default (linear) quantile on sorted data.
func quantileSorted(s []float64, q float64) float64 {
	if len(s) == 0 {
		return nan
	}
	pos := q * float64(len(s)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	l, h := s[int(lo)], s[int(hi)]
	return l + (h-l)*(pos-lo)
}

func median(x []float64) float64 {
	return quantileSorted(sortedCopy(x), 0.5)
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	d := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		d[i-1] = x[i] - x[i-1]
	}
	return d
}

// uniqueCounts returns the distinct values in ascending order with their counts.
func uniqueCounts(x []float64) ([]float64, []int) {
	s := sortedCopy(x)
	var values []float64
	var counts []int
	for i, v := range s {
		if i > 0 && v == s[i-1] {
			counts[len(counts)-1]++
			continue
		}
		values = append(values, v)
		counts = append(counts, 1)
	}
	return values, counts
}

// zeroFPErr mirrors pandas' clamp of tiny moment sums to zero.
func zeroFPErr(v float64) float64 {
	if math.Abs(v) < 1e-14 {
		return 0
	}
	return v
}

func sumValues(x []float64) float64 { return floats.Sum(x) }

func absEnergy(x []float64) float64 { return floats.Dot(x, x) }

func absoluteSumOfChanges(x []float64) float64 {
	s := 0.0
	for _, d := range diff(x) {
		s += math.Abs(d)
	}
	return s
}

func meanAbsChange(x []float64) float64 {
	d := diff(x)
	if len(d) == 0 {
		return nan
	}
	s := 0.0
	for _, v := range d {
		s += math.Abs(v)
	}
	return s / float64(len(d))
}

func meanChange(x []float64) float64 {
	if len(x) < 2 {
		return nan
	}
	return (x[len(x)-1] - x[0]) / float64(len(x)-1)
}

func meanSecondDerivativeCentral(x []float64) float64 {
	n := len(x)
	if n < 3 {
		return nan
	}
	return (x[n-1] - x[n-2] - x[1] + x[0]) / (2 * float64(n-2))
}

func countAboveMean(x []float64) float64 {
	m := mean(x)
	c := 0
	for _, v := range x {
		if v > m {
			c++
		}
	}
	return float64(c)
}

func countBelowMean(x []float64) float64 {
	m := mean(x)
	c := 0
	for _, v := range x {
		if v < m {
			c++
		}
	}
	return float64(c)
}

func longestStrike(x []float64, pred func(v, m float64) bool) float64 {
	m := mean(x)
	best, run := 0, 0
	for _, v := range x {
		if pred(v, m) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return float64(best)
}

func longestStrikeAboveMean(x []float64) float64 {
	return longestStrike(x, func(v, m float64) bool { return v > m })
}

func longestStrikeBelowMean(x []float64) float64 {
	return longestStrike(x, func(v, m float64) bool { return v < m })
}

func firstLocationOfMaximum(x []float64) float64 {
	return float64(floats.MaxIdx(x)) / float64(len(x))
}

func firstLocationOfMinimum(x []float64) float64 {
	return float64(floats.MinIdx(x)) / float64(len(x))
}

func lastLocationOfMaximum(x []float64) float64 {
	m := floats.Max(x)
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] == m {
			return float64(i+1) / float64(len(x))
		}
	}
	return nan
}

func lastLocationOfMinimum(x []float64) float64 {
	m := floats.Min(x)
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] == m {
			return float64(i+1) / float64(len(x))
		}
	}
	return nan
}

func hasDuplicate(x []float64) float64 {
	u, _ := uniqueCounts(x)
	return boolFloat(len(u) != len(x))
}

func countEqual(x []float64, target float64) int {
	c := 0
	for _, v := range x {
		if v == target {
			c++
		}
	}
	return c
}

func hasDuplicateMax(x []float64) float64 {
	return boolFloat(countEqual(x, floats.Max(x)) >= 2)
}

func hasDuplicateMin(x []float64) float64 {
	return boolFloat(countEqual(x, floats.Min(x)) >= 2)
}

func skewness(x []float64) float64 {
	n := float64(len(x))
	if len(x) < 3 {
		return nan
	}
	m := mean(x)
	var m2, m3 float64
	for _, v := range x {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	m2, m3 = zeroFPErr(m2), zeroFPErr(m3)
	if m2 == 0 {
		return 0
	}
	return (n * math.Sqrt(n-1) / (n - 2)) * (m3 / math.Pow(m2, 1.5))
}

func kurtosis(x []float64) float64 {
	n := float64(len(x))
	if len(x) < 4 {
		return nan
	}
	m := mean(x)
	var m2, m4 float64
	for _, v := range x {
		d := v - m
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	adj := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	num := zeroFPErr(n * (n + 1) * (n - 1) * m4)
	den := zeroFPErr((n - 2) * (n - 3) * m2 * m2)
	if den == 0 {
		return 0
	}
	return num/den - adj
}

func length(x []float64) float64 { return float64(len(x)) }

func maximum(x []float64) float64 { return floats.Max(x) }

func minimum(x []float64) float64 { return floats.Min(x) }

func percentageOfReoccurringDatapoints(x []float64) float64 {
	_, counts := uniqueCounts(x)
	if len(counts) == 0 {
		return 0
	}
	re := 0
	for _, c := range counts {
		if c > 1 {
			re++
		}
	}
	return float64(re) / float64(len(counts))
}

func percentageOfReoccurringValues(x []float64) float64 {
	_, counts := uniqueCounts(x)
	re := 0
	for _, c := range counts {
		if c > 1 {
			re += c
		}
	}
	return float64(re) / float64(len(x))
}

func sumOfReoccurringValues(x []float64) float64 {
	values, counts := uniqueCounts(x)
	s := 0.0
	for i, c := range counts {
		if c > 1 {
			s += values[i]
		}
	}
	return s
}

func sumOfReoccurringDataPoints(x []float64) float64 {
	values, counts := uniqueCounts(x)
	s := 0.0
	for i, c := range counts {
		if c > 1 {
			s += values[i] * float64(c)
		}
	}
	return s
}

func ratioValueNumberToLength(x []float64) float64 {
	u, _ := uniqueCounts(x)
	return float64(len(u)) / float64(len(x))
}

func varianceLargerThanStd(x []float64) float64 {
	v := variance(x)
	return boolFloat(v > math.Sqrt(v))
}

func variationCoefficient(x []float64) float64 {
	m := mean(x)
	if m == 0 {
		return nan
	}
	return stdDev(x) / m
}

func cidCE(x []float64, p Params) float64 {
	series := x
	if p.Bool("normalize") {
		s := stdDev(x)
		if s == 0 {
			return 0
		}
		m := mean(x)
		series = make([]float64, len(x))
		for i, v := range x {
			series[i] = (v - m) / s
		}
	}
	d := diff(series)
	return math.Sqrt(floats.Dot(d, d))
}

func largeStandardDeviation(x []float64, p Params) float64 {
	r := p.Float("r")
	return boolFloat(stdDev(x) > r*(floats.Max(x)-floats.Min(x)))
}

func symmetryLooking(x []float64, p Params) float64 {
	r := p.Float("r")
	return boolFloat(math.Abs(mean(x)-median(x)) < r*(floats.Max(x)-floats.Min(x)))
}

func quantiles(x []float64, ps []Params) []float64 {
	s := sortedCopy(x)
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = quantileSorted(s, p.Float("q"))
	}
	return out
}

func autocorrelation(x []float64, p Params) float64 {
	lag := p.Int("lag")
	n := len(x)
	if n < lag {
		return nan
	}
	m := mean(x)
	sum := 0.0
	for i := 0; i < n-lag; i++ {
		sum += (x[i] - m) * (x[i+lag] - m)
	}
	v := variance(x)
	if math.Abs(v) <= 1e-8 {
		return nan
	}
	return sum / (float64(n-lag) * v)
}

// acfUnbiased returns autocorrelations for lags 1..nlags (clipped to n-1),
// dividing each autocovariance by the number of overlapping pairs.
func acfUnbiased(x []float64, nlags int) []float64 {
	n := len(x)
	if nlags > n-1 {
		nlags = n - 1
	}
	m := mean(x)
	c0 := 0.0
	for _, v := range x {
		c0 += (v - m) * (v - m)
	}
	c0 /= float64(n)
	out := make([]float64, nlags)
	for k := 1; k <= nlags; k++ {
		s := 0.0
		for i := 0; i < n-k; i++ {
			s += (x[i] - m) * (x[i+k] - m)
		}
		out[k-1] = s / float64(n-k) / c0
	}
	return out
}

func aggAutocorrelation(x []float64, ps []Params) []float64 {
	maxLag := 0
	for _, p := range ps {
		if l := p.Int("maxlag"); l > maxLag {
			maxLag = l
		}
	}
	var acf []float64
	if math.Abs(variance(x)) < 1e-10 || len(x) == 1 {
		acf = make([]float64, len(x))
	} else {
		acf = acfUnbiased(x, maxLag)
	}

	out := make([]float64, len(ps))
	for i, p := range ps {
		a := acf
		if l := p.Int("maxlag"); l < len(a) {
			a = a[:l]
		}
		if len(a) == 0 {
			out[i] = nan
			continue
		}
		switch p.String("f_agg") {
		case "mean":
			out[i] = mean(a)
		case "median":
			out[i] = median(a)
		case "var":
			out[i] = variance(a)
		default:
			out[i] = nan
		}
	}
	return out
}

func numberPeaks(x []float64, p Params) float64 {
	support := p.Int("n")
	peaks := 0
	for i := support; i < len(x)-support; i++ {
		peak := true
		for j := 1; j <= support; j++ {
			if !(x[i] > x[i-j] && x[i] > x[i+j]) {
				peak = false
				break
			}
		}
		if peak {
			peaks++
		}
	}
	return float64(peaks)
}

func binnedEntropy(x []float64, p Params) float64 {
	bins := p.Int("max_bins")
	for _, v := range x {
		if math.IsNaN(v) {
			return nan
		}
	}
	lo, hi := floats.Min(x), floats.Max(x)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	// numpy.histogram: uniform edges, index from the scaled offset, then
	// nudged so every value lands between its own edges.
	width := (hi - lo) / float64(bins)
	edge := func(i int) float64 {
		if i == bins {
			return hi
		}
		return lo + float64(i)*width
	}
	norm := float64(bins) / (hi - lo)
	hist := make([]int, bins)
	for _, v := range x {
		idx := int((v - lo) * norm)
		if idx >= bins {
			idx = bins - 1
		}
		if v < edge(idx) {
			idx--
		} else if idx < bins-1 && v >= edge(idx+1) {
			idx++
		}
		hist[idx]++
	}
	h := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		pr := float64(c) / float64(len(x))
		h -= pr * math.Log(pr)
	}
	return h
}

func indexMassQuantile(x []float64, ps []Params) []float64 {
	out := make([]float64, len(ps))
	total := 0.0
	for _, v := range x {
		total += math.Abs(v)
	}
	if total == 0 {
		for i := range out {
			out[i] = nan
		}
		return out
	}
	mass := make([]float64, len(x))
	run := 0.0
	for i, v := range x {
		run += math.Abs(v)
		mass[i] = run / total
	}
	for i, p := range ps {
		q := p.Float("q")
		idx := 0
		for j, m := range mass {
			if m >= q {
				idx = j
				break
			}
		}
		out[i] = float64(idx+1) / float64(len(x))
	}
	return out
}

func c3(x []float64, p Params) float64 {
	lag := p.Int("lag")
	n := len(x)
	if 2*lag >= n {
		return 0
	}
	s := 0.0
	for i := 0; i < n-2*lag; i++ {
		s += x[i+2*lag] * x[i+lag] * x[i]
	}
	return s / float64(n-2*lag)
}

func timeReversalAsymmetry(x []float64, p Params) float64 {
	lag := p.Int("lag")
	n := len(x)
	if 2*lag >= n {
		return 0
	}
	s := 0.0
	for i := 0; i < n-2*lag; i++ {
		two, one := x[i+2*lag], x[i+lag]
		s += two*two*one - one*x[i]*x[i]
	}
	return s / float64(n-2*lag)
}

func numberCrossingM(x []float64, p Params) float64 {
	m := p.Float("m")
	crossings := 0
	for i := 1; i < len(x); i++ {
		if (x[i] > m) != (x[i-1] > m) {
			crossings++
		}
	}
	return float64(crossings)
}

func ratioBeyondRSigma(x []float64, p Params) float64 {
	r := p.Float("r")
	m, s := mean(x), stdDev(x)
	c := 0
	for _, v := range x {
		if math.Abs(v-m) > r*s {
			c++
		}
	}
	return float64(c) / float64(len(x))
}

func rangeCount(x []float64, p Params) float64 {
	lo, hi := p.Float("min"), p.Float("max")
	c := 0
	for _, v := range x {
		if v >= lo && v < hi {
			c++
		}
	}
	return float64(c)
}

func valueCount(x []float64, p Params) float64 {
	return float64(countEqual(x, p.Float("value")))
}

// splitBounds reproduces numpy.array_split: the first n%k chunks get one extra element.
func splitBounds(n, k, idx int) (int, int) {
	size, extra := n/k, n%k
	start := idx*size + min(idx, extra)
	end := start + size
	if idx < extra {
		end++
	}
	return start, end
}

func energyRatioByChunks(x []float64, ps []Params) []float64 {
	full := absEnergy(x)
	out := make([]float64, len(ps))
	for i, p := range ps {
		if full == 0 {
			out[i] = nan
			continue
		}
		start, end := splitBounds(len(x), p.Int("num_segments"), p.Int("segment_focus"))
		chunk := x[start:end]
		out[i] = floats.Dot(chunk, chunk) / full
	}
	return out
}

func rfft(x []float64) []complex128 {
	return fourier.NewFFT(len(x)).Coefficients(nil, x)
}

func fftCoefficient(x []float64, ps []Params) []float64 {
	coeffs := rfft(x)
	out := make([]float64, len(ps))
	for i, p := range ps {
		k := p.Int("coeff")
		if k >= len(coeffs) {
			out[i] = nan
			continue
		}
		c := coeffs[k]
		switch p.String("attr") {
		case "real":
			out[i] = real(c)
		case "imag":
			out[i] = imag(c)
		case "abs":
			out[i] = cmplx.Abs(c)
		case "angle":
			out[i] = cmplx.Phase(c) * 180 / math.Pi
		default:
			out[i] = nan
		}
	}
	return out
}

func fftAggregated(x []float64, ps []Params) []float64 {
	coeffs := rfft(x)
	y := make([]float64, len(coeffs))
	for i, c := range coeffs {
		y[i] = cmplx.Abs(c)
	}
	total := floats.Sum(y)
	moment := func(order float64) float64 {
		s := 0.0
		for i, v := range y {
			s += v * math.Pow(float64(i), order)
		}
		return s / total
	}
	centroid := moment(1)
	spread := moment(2) - centroid*centroid

	out := make([]float64, len(ps))
	for i, p := range ps {
		switch p.String("aggtype") {
		case "centroid":
			out[i] = centroid
		case "variance":
			out[i] = spread
		case "skew":
			if spread < 0.5 {
				out[i] = nan
			} else {
				out[i] = (moment(3) - 3*centroid*spread - math.Pow(centroid, 3)) / math.Pow(spread, 1.5)
			}
		case "kurtosis":
			if spread < 0.5 {
				out[i] = nan
			} else {
				out[i] = (moment(4) - 4*centroid*moment(3) + 6*moment(2)*centroid*centroid - 3*centroid) / (spread * spread)
			}
		default:
			out[i] = nan
		}
	}
	return out
}

// regression holds the scipy.stats.linregress outputs.
type regression struct {
	slope, intercept, rvalue, pvalue, stderr float64
}

func (r regression) attr(name string) float64 {
	switch name {
	case "pvalue":
		return r.pvalue
	case "rvalue":
		return r.rvalue
	case "intercept":
		return r.intercept
	case "slope":
		return r.slope
	case "stderr":
		return r.stderr
	}
	return nan
}

func linregress(t, y []float64) regression {
	n := len(y)
	if n < 2 {
		return regression{nan, nan, nan, nan, nan}
	}
	tm, ym := mean(t), mean(y)
	var ssxm, ssym, ssxym float64
	for i := range y {
		dt, dy := t[i]-tm, y[i]-ym
		ssxm += dt * dt
		ssym += dy * dy
		ssxym += dt * dy
	}
	r := 0.0
	if den := math.Sqrt(ssxm * ssym); den != 0 {
		r = math.Max(-1, math.Min(1, ssxym/den))
	}
	res := regression{slope: ssxym / ssxm, rvalue: r}
	res.intercept = ym - res.slope*tm

	if n == 2 {
		if y[0] == y[1] {
			res.pvalue = 1
		}
		return res
	}
	const tiny = 1e-20
	df := float64(n - 2)
	tStat := r * math.Sqrt(df/((1-r+tiny)*(1+r+tiny)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	res.pvalue = 2 * dist.Survival(math.Abs(tStat))
	res.stderr = math.Sqrt((1 - r*r) * ssym / ssxm / df)
	return res
}

func timeIndex(n int) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i)
	}
	return t
}

func linearTrend(x []float64, ps []Params) []float64 {
	fit := linregress(timeIndex(len(x)), x)
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = fit.attr(p.String("attr"))
	}
	return out
}

// sampleEntropy counts pairs of points closer than 0.2 standard deviations,
// over all n(n-1)/2 pairs.
func sampleEntropy(x []float64) float64 {
	n := len(x)
	tolerance := 0.2 * stdDev(x)
	matches := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(x[j]-x[i]) < tolerance {
				matches++
			}
		}
	}
	pairs := float64(n*(n-1)) / 2
	return -math.Log(float64(matches) / pairs)
}

func approximateEntropy(x []float64, p Params) float64 {
	m := p.Int("m")
	n := len(x)
	r := p.Float("r") * stdDev(x)
	if n <= m+1 {
		return 0
	}
	phi := func(w int) float64 {
		k := n - w + 1
		total := 0.0
		for i := 0; i < k; i++ {
			c := 0
			for j := 0; j < k; j++ {
				dist := 0.0
				for l := 0; l < w; l++ {
					dist = math.Max(dist, math.Abs(x[i+l]-x[j+l]))
				}
				if dist <= r {
					c++
				}
			}
			total += math.Log(float64(c) / float64(k))
		}
		return total / float64(k)
	}
	return math.Abs(phi(m) - phi(m+1))
}

// changeQuantiles aggregates the consecutive changes whose both endpoints lie
// inside the [ql, qh] quantile corridor.
func changeQuantiles(x []float64, p Params) float64 {
	s := sortedCopy(x)
	lo, hi := quantileSorted(s, p.Float("ql")), quantileSorted(s, p.Float("qh"))
	if !(hi > lo) {
		return 0
	}
	inside := func(v float64) bool { return v >= lo && v <= hi }
	isabs := p.Bool("isabs")

	var changes []float64
	for i := 1; i < len(x); i++ {
		if !inside(x[i-1]) || !inside(x[i]) {
			continue
		}
		d := x[i] - x[i-1]
		if isabs {
			d = math.Abs(d)
		}
		changes = append(changes, d)
	}
	if len(changes) == 0 {
		return 0
	}
	switch p.String("f_agg") {
	case "mean":
		return mean(changes)
	case "var":
		return variance(changes)
	}
	return nan
}
