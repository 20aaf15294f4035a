// Package metrics provides Prometheus metrics for evaluation runs.
// A batch run has no scrape endpoint, so the registry is written once as a
// node-exporter textfile when the run ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sample outcomes recorded in SamplesTotal.
const (
	StatusCorrect   = "correct"
	StatusIncorrect = "incorrect"
	StatusFailed    = "failed"
)

// Metrics holds all Prometheus metrics for an evaluation run.
type Metrics struct {
	// Evaluation metrics
	SamplesTotal  *prometheus.CounterVec   // Samples processed, by outcome
	FailuresTotal *prometheus.CounterVec   // Failed samples, by pipeline stage
	StageDuration *prometheus.HistogramVec // Per-sample stage latency
	Accuracy      prometheus.Gauge         // Accuracy of the last run in percent
	RunDuration   prometheus.Gauge         // Wall time of the last run in seconds
	CacheHits     prometheus.Counter       // Feature vectors served from the cache
	CacheMisses   prometheus.Counter       // Feature vectors that had to be extracted
	CachedVectors prometheus.Gauge         // Vectors held by the cache after the run

	// ML and prediction metrics
	MLPredictions prometheus.Counter   // Total number of successful predictions
	MLFailures    prometheus.Counter   // Total number of prediction failures
	MLModelAge    prometheus.Gauge     // Age of the model artifact in seconds
	MLLatency     prometheus.Histogram // Prediction latency in seconds
	MLTimeouts    prometheus.Counter   // Total number of prediction timeouts

	// Feature calculation metrics
	FeatureErrors       prometheus.Counter   // Non-finite statistics produced by extraction
	FeatureCalcDuration prometheus.Histogram // Extraction time per sample
	SeriesLength        prometheus.Histogram // Rows per sample
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		SamplesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gesture_eval_samples_total",
			Help: "Samples processed, by outcome",
		}, []string{"status"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gesture_eval_failures_total",
			Help: "Failed samples, by pipeline stage",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gesture_eval_stage_duration_seconds",
			Help:    "Per-sample duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"stage"}),
		Accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gesture_eval_accuracy_percent",
			Help: "Classification accuracy of the last run in percent",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gesture_eval_run_duration_seconds",
			Help: "Wall time of the last run in seconds",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gesture_eval_cache_hits_total",
			Help: "Feature vectors served from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "gesture_eval_cache_misses_total",
			Help: "Feature vectors extracted because the cache had no entry",
		}),
		CachedVectors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gesture_eval_cached_vectors",
			Help: "Feature vectors held by the cache",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of ML prediction failures",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the current ML model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of ML prediction timeouts",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of non-finite feature values",
		}),
		FeatureCalcDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_calc_duration_seconds",
			Help:    "Feature extraction time per sample in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		SeriesLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_series_length",
			Help:    "Rows per extracted sample",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10),
		}),
	}
}

// WriteTextfile writes everything gathered from g in the text exposition
// format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
