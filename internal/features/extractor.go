package features

import (
	"fmt"
	"math"
	"time"
)

// Extractor computes the raw feature vector of a multichannel series. It is
// stateless apart from its metrics hook and safe for concurrent use.
type Extractor struct {
	channels int
	metrics  MetricsTracker
}

// NewExtractor creates an extractor for series with the given channel count.
func NewExtractor(channels int, metrics MetricsTracker) *Extractor {
	return &Extractor{channels: channels, metrics: metrics}
}

// Channels returns the expected series width.
func (e *Extractor) Channels() int {
	return e.channels
}

// Schema returns the raw feature names this extractor always produces.
func (e *Extractor) Schema() []string {
	return Schema(e.channels)
}

// Extract runs the catalog over every channel. Rows are taken in order as the
// time axis of a single entity. Statistics that are undefined for the input
// come back as NaN or ±Inf; only a malformed series is an error.
func (e *Extractor) Extract(series [][]float64) (Vector, error) {
	start := time.Now()

	columns := make([][]float64, e.channels)
	for ch := range columns {
		columns[ch] = make([]float64, len(series))
	}
	for i, row := range series {
		if len(row) != e.channels {
			return Vector{}, fmt.Errorf("row %d has %d values, expected %d", i, len(row), e.channels)
		}
		for ch, v := range row {
			columns[ch][i] = v
		}
	}

	per := len(channelSchema)
	out := Vector{
		Names:  Schema(e.channels),
		Values: make([]float64, e.channels*per),
	}
	for ch, col := range columns {
		dst := out.Values[ch*per : (ch+1)*per]
		if len(col) == 0 {
			for i := range dst {
				dst[i] = math.NaN()
			}
			continue
		}
		off := 0
		for _, c := range catalog {
			n := c.outputs()
			c.compute(col, dst[off:off+n])
			off += n
		}
	}

	if e.metrics != nil {
		e.metrics.FeatureCalcDuration(time.Since(start))
		e.metrics.FeatureSampleCount(len(series))
		for _, v := range out.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				e.metrics.FeatureErrorsInc()
			}
		}
	}

	return out, nil
}
