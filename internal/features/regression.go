package features

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Least-squares fits go through the pseudo-inverse (singular values below
// 1e-15 of the largest are dropped), matching statsmodels OLS on rank
// deficient designs such as a constant series.

type olsFit struct {
	params  []float64
	covDiag []float64 // diagonal of pinv(X'X)
	ssr     float64
	rank    int
	nobs    int
}

func ols(design *mat.Dense, y []float64) olsFit {
	rows, cols := design.Dims()
	fit := olsFit{
		params:  make([]float64, cols),
		covDiag: make([]float64, cols),
		nobs:    rows,
	}

	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDThin) {
		for j := range fit.params {
			fit.params[j] = nan
			fit.covDiag[j] = nan
		}
		fit.ssr = nan
		return fit
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := 1e-15 * values[0]
	for k, s := range values {
		if s <= cutoff {
			continue
		}
		fit.rank++
		uty := 0.0
		for i := 0; i < rows; i++ {
			uty += u.At(i, k) * y[i]
		}
		for j := 0; j < cols; j++ {
			vj := v.At(j, k)
			fit.params[j] += vj * uty / s
			fit.covDiag[j] += vj * vj / (s * s)
		}
	}

	for i := 0; i < rows; i++ {
		r := y[i] - floats.Dot(design.RawRowView(i), fit.params)
		fit.ssr += r * r
	}
	return fit
}

// aic is the Gaussian log-likelihood criterion statsmodels reports for OLS.
func (f olsFit) aic() float64 {
	n := float64(f.nobs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(f.ssr/n) + 1)
	return -2*llf + 2*float64(f.rank)
}

func (f olsFit) tvalue(j int) float64 {
	scale := f.ssr / float64(f.nobs-f.rank)
	return f.params[j] / math.Sqrt(scale*f.covDiag[j])
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}

// autocovariance returns the unbiased estimates for lags 0..nlags.
func autocovariance(x []float64, nlags int) []float64 {
	n := len(x)
	m := mean(x)
	out := make([]float64, nlags+1)
	for k := range out {
		s := 0.0
		for i := 0; i < n-k; i++ {
			s += (x[i] - m) * (x[i+k] - m)
		}
		out[k] = s / float64(n-k)
	}
	return out
}

// levinsonDurbin returns the partial autocorrelations for lags 0..order of
// the autocovariance sequence s.
func levinsonDurbin(s []float64, order int) []float64 {
	if order == 0 {
		return []float64{1}
	}
	phi := make([][]float64, order+1)
	for i := range phi {
		phi[i] = make([]float64, order+1)
	}
	sig := make([]float64, order+1)

	phi[1][1] = s[1] / s[0]
	sig[1] = s[0] - phi[1][1]*s[1]
	for k := 2; k <= order; k++ {
		dot := 0.0
		for j := 1; j < k; j++ {
			dot += phi[j][k-1] * s[k-j]
		}
		phi[k][k] = (s[k] - dot) / sig[k-1]
		for j := 1; j < k; j++ {
			phi[j][k] = phi[j][k-1] - phi[k][k]*phi[k-j][k-1]
		}
		sig[k] = sig[k-1] * (1 - phi[k][k]*phi[k][k])
	}

	pacf := make([]float64, order+1)
	pacf[0] = 1
	for k := 1; k <= order; k++ {
		pacf[k] = phi[k][k]
	}
	return pacf
}

func partialAutocorrelation(x []float64, ps []Params) []float64 {
	maxLag := 0
	for _, p := range ps {
		maxLag = max(maxLag, p.Int("lag"))
	}
	n := len(x)
	if n <= 1 {
		return nanSlice(len(ps))
	}
	nlags := min(maxLag, n-1)
	pacf := levinsonDurbin(autocovariance(x, nlags), nlags)

	out := make([]float64, len(ps))
	for i, p := range ps {
		if lag := p.Int("lag"); lag <= nlags {
			out[i] = pacf[lag]
		} else {
			out[i] = nan
		}
	}
	return out
}

// arFit fits x_t = c + a_1 x_{t-1} + ... + a_k x_{t-k} by conditional least
// squares and returns [c, a_1, ..., a_k]. An unfittable series yields k NaNs.
func arFit(x []float64, k int) []float64 {
	n := len(x)
	if n <= k || !finite(x) {
		return nanSlice(k)
	}
	rows := n - k
	design := mat.NewDense(rows, k+1, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := r + k
		design.Set(r, 0, 1)
		for lag := 1; lag <= k; lag++ {
			design.Set(r, lag, x[t-lag])
		}
		y[r] = x[t]
	}
	return ols(design, y).params
}

func arCoefficient(x []float64, ps []Params) []float64 {
	fits := make(map[int][]float64)
	out := make([]float64, len(ps))
	for i, p := range ps {
		k, coeff := p.Int("k"), p.Int("coeff")
		params, ok := fits[k]
		if !ok {
			params = arFit(x, k)
			fits[k] = params
		}
		switch {
		case coeff > k:
			out[i] = nan
		case coeff < len(params):
			out[i] = params[coeff]
		default:
			out[i] = 0
		}
	}
	return out
}

// aggregateChunks applies agg to consecutive chunks of chunkLen values; the
// last chunk may be shorter. "var" is the sample variance.
func aggregateChunks(x []float64, agg string, chunkLen int) []float64 {
	out := make([]float64, (len(x)+chunkLen-1)/chunkLen)
	for i := range out {
		chunk := x[i*chunkLen : min((i+1)*chunkLen, len(x))]
		switch agg {
		case "max":
			out[i] = floats.Max(chunk)
		case "min":
			out[i] = floats.Min(chunk)
		case "mean":
			out[i] = mean(chunk)
		case "var":
			if len(chunk) < 2 {
				out[i] = nan
			} else {
				out[i] = stat.Variance(chunk, nil)
			}
		default:
			out[i] = nan
		}
	}
	return out
}

func aggLinearTrend(x []float64, ps []Params) []float64 {
	fits := make(map[string]regression)
	out := make([]float64, len(ps))
	for i, p := range ps {
		chunkLen, agg := p.Int("chunk_len"), p.String("f_agg")
		if chunkLen >= len(x) {
			out[i] = nan
			continue
		}
		key := agg + "/" + strconv.Itoa(chunkLen)
		fit, ok := fits[key]
		if !ok {
			y := aggregateChunks(x, agg, chunkLen)
			fit = linregress(timeIndex(len(y)), y)
			fits[key] = fit
		}
		out[i] = fit.attr(p.String("attr"))
	}
	return out
}

// adfDesign regresses dx[t] on the level x[t], `lags` lagged differences and
// an intercept, for t in [start, len(dx)).
func adfDesign(x, dx []float64, start, lags int) (*mat.Dense, []float64) {
	rows := len(dx) - start
	design := mat.NewDense(rows, lags+2, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := start + r
		design.Set(r, 0, x[t])
		for l := 1; l <= lags; l++ {
			design.Set(r, l, dx[t-l])
		}
		design.Set(r, lags+1, 1)
		y[r] = dx[t]
	}
	return design, y
}

// adfuller runs the augmented Dickey-Fuller test with an intercept, picking
// the lag order by AIC up to Schwert's 12*(n/100)^(1/4).
func adfuller(x []float64) (teststat, pvalue, usedLag float64) {
	if !finite(x) {
		return nan, nan, nan
	}
	maxLag := int(math.Ceil(12 * math.Pow(float64(len(x))/100, 0.25)))
	dx := diff(x)
	if maxLag >= len(dx) {
		return nan, nan, nan
	}

	best, bestAIC := 0, math.Inf(1)
	for lags := 0; lags <= maxLag; lags++ {
		design, y := adfDesign(x, dx, maxLag, lags)
		if aic := ols(design, y).aic(); lags == 0 || aic < bestAIC {
			best, bestAIC = lags, aic
		}
	}

	design, y := adfDesign(x, dx, best, best)
	teststat = ols(design, y).tvalue(0)
	return teststat, mackinnonp(teststat), float64(best)
}

// mackinnonp approximates the p-value of an ADF statistic with a constant
// term and one series (MacKinnon 1994).
func mackinnonp(teststat float64) float64 {
	const maxStat, minStat, starStat = 2.74, -18.83, -1.61
	if teststat > maxStat {
		return 1
	}
	if teststat < minStat {
		return 0
	}
	coef := []float64{1.7339, 0.93202, -0.12745, -0.010368}
	if teststat <= starStat {
		coef = []float64{2.1659, 1.4412, 0.038269}
	}
	z := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		z = z*teststat + coef[i]
	}
	return distuv.UnitNormal.CDF(z)
}

func augmentedDickeyFuller(x []float64, ps []Params) []float64 {
	teststat, pvalue, usedLag := adfuller(x)
	out := make([]float64, len(ps))
	for i, p := range ps {
		switch p.String("attr") {
		case "teststat":
			out[i] = teststat
		case "pvalue":
			out[i] = pvalue
		case "usedlag":
			out[i] = usedLag
		default:
			out[i] = nan
		}
	}
	return out
}
