// Package features turns a raw multichannel time series into the fixed-schema
// feature vector the gesture classifier was fit on.
//
// Extraction runs a frozen catalog of time-series statistics over every channel
// and names each output "<channel>__<calculator>[__<param>_<value>...]". The
// Filter then imputes non-finite values, sorts the columns by name and drops
// the denylisted unstable statistics. Downstream code matches features by name,
// never by position, so the naming convention is part of the contract.
package features

import (
	"fmt"
	"time"
)

// MetricsTracker receives extraction telemetry. A nil tracker is allowed.
type MetricsTracker interface {
	FeatureErrorsInc()
	FeatureCalcDuration(duration time.Duration)
	FeatureSampleCount(count int)
}

// Vector is an ordered mapping from feature name to value.
type Vector struct {
	Names  []string
	Values []float64
}

// Len returns the number of features.
func (v Vector) Len() int {
	return len(v.Names)
}

// Get returns the value stored under name.
func (v Vector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Index builds a name → position lookup.
func (v Vector) Index() map[string]int {
	idx := make(map[string]int, len(v.Names))
	for i, n := range v.Names {
		idx[n] = i
	}
	return idx
}

func (v Vector) validate() error {
	if len(v.Names) != len(v.Values) {
		return fmt.Errorf("vector has %d names but %d values", len(v.Names), len(v.Values))
	}
	return nil
}
