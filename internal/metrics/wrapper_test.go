package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_MLMethods(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.MLPredictionsInc()
	if v := testutil.ToFloat64(metrics.MLPredictions); v != 1 {
		t.Errorf("Expected 1 ML prediction, got %f", v)
	}

	wrapper.MLFailuresInc()
	if v := testutil.ToFloat64(metrics.MLFailures); v != 1 {
		t.Errorf("Expected 1 ML failure, got %f", v)
	}

	wrapper.MLTimeoutsInc()
	if v := testutil.ToFloat64(metrics.MLTimeouts); v != 1 {
		t.Errorf("Expected 1 ML timeout, got %f", v)
	}

	wrapper.MLModelAgeSet(3600.0)
	if v := testutil.ToFloat64(metrics.MLModelAge); v != 3600.0 {
		t.Errorf("Expected model age 3600.0, got %f", v)
	}

	wrapper.MLLatencyObserve(0.25)
	if n := testutil.CollectAndCount(metrics.MLLatency); n != 1 {
		t.Errorf("Expected 1 latency series, got %d", n)
	}
}

func TestMetricsWrapper_FeatureMethods(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.FeatureErrorsInc()
	wrapper.FeatureErrorsInc()
	if v := testutil.ToFloat64(metrics.FeatureErrors); v != 2 {
		t.Errorf("Expected 2 feature errors, got %f", v)
	}

	wrapper.FeatureCalcDuration(20 * time.Millisecond)
	wrapper.FeatureSampleCount(50)
}

func TestMetricsWrapper_SampleOutcomes(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.SampleDone(StatusCorrect)
	wrapper.SampleDone(StatusCorrect)
	wrapper.SampleDone(StatusIncorrect)
	wrapper.SampleFailed("load")
	wrapper.SampleFailed("classify")
	wrapper.SampleFailed("classify")

	tests := []struct {
		status string
		want   float64
	}{
		{StatusCorrect, 2},
		{StatusIncorrect, 1},
		{StatusFailed, 3},
	}
	for _, tt := range tests {
		if v := testutil.ToFloat64(metrics.SamplesTotal.WithLabelValues(tt.status)); v != tt.want {
			t.Errorf("status %s: expected %f, got %f", tt.status, tt.want, v)
		}
	}
	if v := testutil.ToFloat64(metrics.FailuresTotal.WithLabelValues("classify")); v != 2 {
		t.Errorf("Expected 2 classify failures, got %f", v)
	}
}

func TestMetricsWrapper_RunAndCache(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.CacheHit()
	wrapper.CacheMiss()
	wrapper.CacheMiss()
	wrapper.CachedVectorsSet(7)
	wrapper.StageObserve("extract", 5*time.Millisecond)
	wrapper.RunFinished(50.0, 2*time.Second)

	if v := testutil.ToFloat64(metrics.CacheHits); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.CacheMisses); v != 2 {
		t.Errorf("Expected 2 cache misses, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.CachedVectors); v != 7 {
		t.Errorf("Expected 7 cached vectors, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Accuracy); v != 50.0 {
		t.Errorf("Expected accuracy 50, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RunDuration); v != 2.0 {
		t.Errorf("Expected run duration 2, got %f", v)
	}
}

func TestWriteTextfile(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	NewWrapper(metrics).RunFinished(83.5, time.Second)

	path := filepath.Join(t.TempDir(), "gesture_eval.prom")
	if err := WriteTextfile(path, registry); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "gesture_eval_accuracy_percent 83.5") {
		t.Errorf("Expected accuracy sample in textfile, got:\n%s", data)
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.MLPredictionsInc()
				wrapper.MLLatencyObserve(0.01)
				wrapper.FeatureErrorsInc()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	expected := 1000.0
	if v := testutil.ToFloat64(metrics.MLPredictions); v != expected {
		t.Errorf("Expected %f predictions after concurrent access, got %f", expected, v)
	}
	if v := testutil.ToFloat64(metrics.FeatureErrors); v != expected {
		t.Errorf("Expected %f feature errors after concurrent access, got %f", expected, v)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	wrapper := &MetricsWrapper{m: nil}

	// NewWrapper never builds a wrapper without metrics
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.MLPredictionsInc()
}

func BenchmarkMetricsWrapper_MLPredictionsInc(b *testing.B) {
	wrapper := NewWrapper(NewWithRegistry(prometheus.NewRegistry()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.MLPredictionsInc()
	}
}

func BenchmarkMetricsWrapper_SampleDone(b *testing.B) {
	wrapper := NewWrapper(NewWithRegistry(prometheus.NewRegistry()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.SampleDone(StatusCorrect)
	}
}
