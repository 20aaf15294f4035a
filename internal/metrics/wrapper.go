package metrics

import "time"

// MetricsWrapper adapts Metrics to the narrow hook interfaces of the
// features, ml and evaluation packages.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

func (w *MetricsWrapper) MLTimeoutsInc() {
	w.m.MLTimeouts.Inc()
}

func (w *MetricsWrapper) FeatureErrorsInc() {
	w.m.FeatureErrors.Inc()
}

func (w *MetricsWrapper) FeatureCalcDuration(d time.Duration) {
	w.m.FeatureCalcDuration.Observe(d.Seconds())
}

func (w *MetricsWrapper) FeatureSampleCount(rows int) {
	w.m.SeriesLength.Observe(float64(rows))
}

// SampleDone records the outcome of one sample.
func (w *MetricsWrapper) SampleDone(status string) {
	w.m.SamplesTotal.WithLabelValues(status).Inc()
}

// SampleFailed records a failed sample and the stage it failed in.
func (w *MetricsWrapper) SampleFailed(stage string) {
	w.m.SamplesTotal.WithLabelValues(StatusFailed).Inc()
	w.m.FailuresTotal.WithLabelValues(stage).Inc()
}

func (w *MetricsWrapper) StageObserve(stage string, d time.Duration) {
	w.m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (w *MetricsWrapper) CacheHit() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMiss() {
	w.m.CacheMisses.Inc()
}

func (w *MetricsWrapper) CachedVectorsSet(n int) {
	w.m.CachedVectors.Set(float64(n))
}

func (w *MetricsWrapper) RunFinished(accuracy float64, d time.Duration) {
	w.m.Accuracy.Set(accuracy)
	w.m.RunDuration.Set(d.Seconds())
}
