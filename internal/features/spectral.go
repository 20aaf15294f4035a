package features

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// welch estimates the one-sided power spectral density with a periodic Hann
// window, segments of up to 256 points overlapping by half, constant
// detrending and density scaling at unit sampling rate.
func welch(x []float64) []float64 {
	n := len(x)
	nperseg := min(256, n)
	noverlap := nperseg / 2
	step := nperseg - noverlap

	window := make([]float64, nperseg)
	for k := range window {
		window[k] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(nperseg))
	}
	if nperseg == 1 {
		window[0] = 1
	}
	scale := 1 / floats.Dot(window, window)

	fft := fourier.NewFFT(nperseg)
	psd := make([]float64, nperseg/2+1)
	seg := make([]float64, nperseg)
	var coeffs []complex128
	segments := (n - noverlap) / step
	for s := 0; s < segments; s++ {
		chunk := x[s*step : s*step+nperseg]
		m := mean(chunk)
		for i, v := range chunk {
			seg[i] = (v - m) * window[i]
		}
		coeffs = fft.Coefficients(coeffs, seg)
		for k, c := range coeffs {
			psd[k] += (real(c)*real(c) + imag(c)*imag(c)) * scale
		}
	}

	last := len(psd) - 1
	for k := range psd {
		psd[k] /= float64(segments)
		if k > 0 && (nperseg%2 == 1 || k < last) {
			psd[k] *= 2
		}
	}
	return psd
}

func spktWelchDensity(x []float64, ps []Params) []float64 {
	psd := welch(x)
	out := make([]float64, len(ps))
	for i, p := range ps {
		if k := p.Int("coeff"); k < len(psd) {
			out[i] = psd[k]
		} else {
			out[i] = nan
		}
	}
	return out
}

// ricker is the Mexican hat wavelet sampled at `points` positions.
func ricker(points int, a float64) []float64 {
	amp := 2 / (math.Sqrt(3*a) * math.Pow(math.Pi, 0.25))
	wsq := a * a
	out := make([]float64, points)
	for i := range out {
		v := float64(i) - float64(points-1)/2
		xsq := v * v
		out[i] = amp * (1 - xsq/wsq) * math.Exp(-xsq/(2*wsq))
	}
	return out
}

// convolveSame returns the centre len(x) values of the full convolution.
func convolveSame(x, w []float64) []float64 {
	n, m := len(x), len(w)
	start := (m - 1) / 2
	out := make([]float64, n)
	for i := range out {
		k := i + start
		s := 0.0
		for j := max(0, k-m+1); j <= min(k, n-1); j++ {
			s += x[j] * w[k-j]
		}
		out[i] = s
	}
	return out
}

// cwt is the continuous wavelet transform with a Ricker wavelet, one row per
// width.
func cwt(x []float64, widths []int) [][]float64 {
	out := make([][]float64, len(widths))
	for i, w := range widths {
		out[i] = convolveSame(x, ricker(min(10*w, len(x)), float64(w)))
	}
	return out
}

func cwtCoefficients(x []float64, ps []Params) []float64 {
	transforms := make(map[string][][]float64)
	out := make([]float64, len(ps))
	for i, p := range ps {
		widths := p.Ints("widths")
		key := formatParamValue(widths)
		rows, ok := transforms[key]
		if !ok {
			rows = cwt(x, widths)
			transforms[key] = rows
		}
		coeff := p.Int("coeff")
		row := slices.Index(widths, p.Int("w"))
		if row < 0 || coeff >= len(x) {
			out[i] = nan
			continue
		}
		out[i] = rows[row][coeff]
	}
	return out
}

type ridge struct {
	rows, cols []int
	gap        int
}

// relativeMaxima returns the interior indices strictly greater than both
// neighbours.
func relativeMaxima(row []float64) []int {
	var idx []int
	for i := 1; i < len(row)-1; i++ {
		if row[i] > row[i-1] && row[i] > row[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}

// ridgeLines links relative maxima of the wavelet transform from the widest
// scale down to the narrowest. A maximum joins the ridge whose latest column
// is closest when within widths[row]/4; ridges that miss more than
// widths[0] consecutive rows are closed.
func ridgeLines(matrix [][]float64, widths []int) []*ridge {
	maxima := make([][]int, len(matrix))
	start := -1
	for r, row := range matrix {
		maxima[r] = relativeMaxima(row)
		if len(maxima[r]) > 0 {
			start = r
		}
	}
	if start < 0 {
		return nil
	}

	gapThresh := widths[0]
	var active, closed []*ridge
	for _, c := range maxima[start] {
		active = append(active, &ridge{rows: []int{start}, cols: []int{c}})
	}
	for r := start - 1; r >= 0; r-- {
		for _, l := range active {
			l.gap++
		}
		prev := make([]int, len(active))
		for i, l := range active {
			prev[i] = l.cols[len(l.cols)-1]
		}
		maxDist := float64(widths[r]) / 4
		for _, c := range maxima[r] {
			var line *ridge
			if len(prev) > 0 {
				closest := 0
				for i := range prev {
					if absInt(c-prev[i]) < absInt(c-prev[closest]) {
						closest = i
					}
				}
				if float64(absInt(c-prev[closest])) <= maxDist {
					line = active[closest]
				}
			}
			if line != nil {
				line.rows = append(line.rows, r)
				line.cols = append(line.cols, c)
				line.gap = 0
			} else {
				active = append(active, &ridge{rows: []int{r}, cols: []int{c}})
			}
		}
		for i := len(active) - 1; i >= 0; i-- {
			if active[i].gap > gapThresh {
				closed = append(closed, active[i])
				active = append(active[:i], active[i+1:]...)
			}
		}
	}
	return append(closed, active...)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// countRidgePeaks keeps ridges spanning at least a quarter of the scales
// whose narrowest-scale response is no weaker than the local noise floor (the
// 10th percentile of the first row over a window of n/20 points).
func countRidgePeaks(matrix [][]float64, lines []*ridge) int {
	first := matrix[0]
	points := len(first)
	minLength := math.Ceil(float64(len(matrix)) / 4)
	window := int(math.Ceil(float64(points) / 20))
	half, odd := window/2, window%2

	noise := make([]float64, points)
	for i := range first {
		lo, hi := max(i-half, 0), min(i+half+odd, points)
		noise[i] = quantileSorted(sortedCopy(first[lo:hi]), 0.1)
	}

	count := 0
	for _, l := range lines {
		if float64(len(l.rows)) < minLength {
			continue
		}
		row, col := l.rows[len(l.rows)-1], l.cols[len(l.cols)-1]
		if snr := math.Abs(matrix[row][col] / noise[col]); snr < 1 {
			continue
		}
		count++
	}
	return count
}

func numberCWTPeaks(x []float64, p Params) float64 {
	widths := rangeInts(1, p.Int("n")+1)
	matrix := cwt(x, widths)
	return float64(countRidgePeaks(matrix, ridgeLines(matrix, widths)))
}
