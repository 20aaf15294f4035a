package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// friedrichCoefficients fits a degree-m polynomial to the mean increment of
// the series per quantile bin of its level (r bins). Coefficients are ordered
// from the highest power down. Any degenerate step yields m+1 NaNs.
func friedrichCoefficients(x []float64, m, r int) []float64 {
	failed := func() []float64 {
		out := make([]float64, m+1)
		for i := range out {
			out[i] = nan
		}
		return out
	}
	if len(x) < 2 {
		return failed()
	}

	signal := x[:len(x)-1]
	delta := diff(x)

	edges, ok := quantileEdges(signal, r)
	if !ok {
		return failed()
	}

	sumX := make([]float64, r)
	sumY := make([]float64, r)
	count := make([]int, r)
	for i, s := range signal {
		b := binOf(edges, s)
		sumX[b] += s
		sumY[b] += delta[i]
		count[b]++
	}

	var xs, ys []float64
	for b := 0; b < r; b++ {
		if count[b] == 0 {
			continue
		}
		xs = append(xs, sumX[b]/float64(count[b]))
		ys = append(ys, sumY[b]/float64(count[b]))
	}
	if len(xs) == 0 {
		return failed()
	}

	coeffs, ok := polyfit(xs, ys, m)
	if !ok {
		return failed()
	}
	return coeffs
}

// quantileEdges returns r+1 strictly increasing bin edges at evenly spaced
// quantiles. Repeated edges mean the bins cannot be formed.
func quantileEdges(x []float64, r int) ([]float64, bool) {
	s := sortedCopy(x)
	edges := make([]float64, r+1)
	for i := 0; i <= r; i++ {
		edges[i] = quantileSorted(s, float64(i)/float64(r))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, false
		}
	}
	return edges, true
}

// binOf maps v to its right-closed bin (e[i], e[i+1]]; the first bin also
// holds the lowest edge.
func binOf(edges []float64, v float64) int {
	i := sort.SearchFloat64s(edges, v) - 1
	if i < 0 {
		i = 0
	}
	if i > len(edges)-2 {
		i = len(edges) - 2
	}
	return i
}

// polyfit solves the least squares polynomial fit of degree deg, returning
// coefficients highest power first.
func polyfit(x, y []float64, deg int) ([]float64, bool) {
	rows, cols := len(x), deg+1
	a := mat.NewDense(rows, cols, nil)
	for i, xv := range x {
		for j := 0; j < cols; j++ {
			a.Set(i, j, math.Pow(xv, float64(deg-j)))
		}
	}
	b := mat.NewVecDense(rows, append([]float64(nil), y...))

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, false
	}
	out := make([]float64, cols)
	for j := range out {
		out[j] = sol.AtVec(j)
		if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
			return nil, false
		}
	}
	return out, true
}

// polyRoots returns the complex roots of the polynomial with coefficients
// highest power first, via the eigenvalues of its companion matrix.
func polyRoots(coeffs []float64) ([]complex128, bool) {
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, false
		}
	}
	start, end := 0, len(coeffs)
	for start < end && coeffs[start] == 0 {
		start++
	}
	trailingZeros := 0
	for end > start && coeffs[end-1] == 0 {
		end--
		trailingZeros++
	}
	p := coeffs[start:end]

	var roots []complex128
	if deg := len(p) - 1; deg >= 1 {
		companion := mat.NewDense(deg, deg, nil)
		for j := 0; j < deg; j++ {
			companion.Set(0, j, -p[j+1]/p[0])
		}
		for i := 1; i < deg; i++ {
			companion.Set(i, i-1, 1)
		}
		var eig mat.Eigen
		if ok := eig.Factorize(companion, mat.EigenNone); !ok {
			return nil, false
		}
		roots = eig.Values(nil)
	}
	for i := 0; i < trailingZeros; i++ {
		roots = append(roots, 0)
	}
	return roots, true
}

func friedrich(x []float64, ps []Params) []float64 {
	out := make([]float64, len(ps))
	fits := make(map[[2]int][]float64)
	for i, p := range ps {
		m, r := p.Int("m"), p.Int("r")
		key := [2]int{m, r}
		coeffs, ok := fits[key]
		if !ok {
			coeffs = friedrichCoefficients(x, m, r)
			fits[key] = coeffs
		}
		if k := p.Int("coeff"); k < len(coeffs) {
			out[i] = coeffs[k]
		} else {
			out[i] = nan
		}
	}
	return out
}

func maxLangevinFixedPoint(x []float64, p Params) float64 {
	coeffs := friedrichCoefficients(x, p.Int("m"), p.Int("r"))
	roots, ok := polyRoots(coeffs)
	if !ok || len(roots) == 0 {
		return nan
	}
	best := math.Inf(-1)
	for _, root := range roots {
		best = math.Max(best, real(root))
	}
	return best
}
