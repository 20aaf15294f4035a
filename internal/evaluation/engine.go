// Package evaluation runs a gesture classifier over a directory of samples
// and reports per-sample predictions and overall accuracy.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gesture-eval/internal/cfg"
	"gesture-eval/internal/features"
	"gesture-eval/internal/metrics"
	"gesture-eval/internal/ml"
	"gesture-eval/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Pipeline stages a sample can fail in.
const (
	StageLoad     = "load"
	StageLabel    = "label"
	StageExtract  = "extract"
	StageClassify = "classify"
)

// Classifier predicts the gesture number of a filtered vector.
type Classifier interface {
	Classify(ctx context.Context, v features.Vector) (int, error)
}

// VectorCache stores raw feature vectors between runs.
type VectorCache interface {
	LoadVector(key string) ([]float64, bool, error)
	SaveVector(key, sample string, rows int, values []float64) error
	PruneVectors(catalogVersion string) (int, error)
	VectorCount() (int, error)
}

// Recorder receives run metrics.
type Recorder interface {
	SampleDone(status string)
	SampleFailed(stage string)
	StageObserve(stage string, d time.Duration)
	CacheHit()
	CacheMiss()
	CachedVectorsSet(n int)
	RunFinished(accuracy float64, d time.Duration)
}

// NoSamplesError reports a run in which no sample could be evaluated, so
// accuracy is undefined.
type NoSamplesError struct {
	Dir    string
	Listed int
	Failed int
}

func (e *NoSamplesError) Error() string {
	return fmt.Sprintf("no samples evaluated in %s (%d listed, %d failed)", e.Dir, e.Listed, e.Failed)
}

// Result is the outcome of one sample. Failed samples carry Stage and Err.
type Result struct {
	Filename  string `json:"filename"`
	Predicted int    `json:"predicted,omitempty"`
	True      int    `json:"true,omitempty"`
	Correct   bool   `json:"correct"`
	Stage     string `json:"stage,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Failed reports whether the sample was excluded from accuracy.
func (r Result) Failed() bool {
	return r.Stage != ""
}

// Report holds the outcome of one run.
type Report struct {
	RunID     string       `json:"run_id"`
	StartedAt time.Time    `json:"started_at"`
	Model     ml.ModelInfo `json:"model"`
	Results   []Result     `json:"results"`
	Failures  []Result     `json:"failures"`
	Correct   int          `json:"correct"`
	Total     int          `json:"total"`
	Accuracy  float64      `json:"accuracy"`
}

// Engine represents the batch evaluator
type Engine struct {
	config     *cfg.Settings
	extractor  *features.Extractor
	filter     *features.Filter
	classifier Classifier
	cache      VectorCache
	metrics    Recorder
	schema     []string
}

// NewEngine creates a new evaluator. The classifier must be safe for
// concurrent use when config.Workers > 1.
func NewEngine(config *cfg.Settings, extractor *features.Extractor, filter *features.Filter, classifier Classifier) *Engine {
	return &Engine{
		config:     config,
		extractor:  extractor,
		filter:     filter,
		classifier: classifier,
		schema:     extractor.Schema(),
	}
}

// SetCache enables the raw vector cache.
func (e *Engine) SetCache(cache VectorCache) {
	e.cache = cache
}

// SetMetrics enables run metrics.
func (e *Engine) SetMetrics(m Recorder) {
	e.metrics = m
}

// Run evaluates every sample in dir. Per-sample failures are recorded in the
// report; a bad directory, a schema mismatch, cancellation or an empty
// evaluation set abort the run.
func (e *Engine) Run(ctx context.Context, dir string) (*Report, error) {
	start := time.Now()

	names, err := ListSamples(dir, e.config.Extensions)
	if err != nil {
		return nil, err
	}

	if err := e.filter.CheckSchema(e.schema); err != nil {
		return nil, err
	}

	if e.cache != nil {
		removed, err := e.cache.PruneVectors(features.CatalogVersion)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prune vector cache")
		} else if removed > 0 {
			log.Info().Int("removed", removed).Msg("Pruned stale cached vectors")
		}
	}

	log.Info().
		Str("dir", dir).
		Int("samples", len(names)).
		Int("workers", e.config.Workers).
		Msg("Starting evaluation")

	results := make([]Result, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, name := range names {
		i, name := i, name
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.evaluate(gctx, filepath.Join(dir, name))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
	}
	for _, res := range results {
		if res.Failed() {
			report.Failures = append(report.Failures, res)
			continue
		}
		report.Results = append(report.Results, res)
		report.Total++
		if res.Correct {
			report.Correct++
		}
	}

	if report.Total == 0 {
		return nil, &NoSamplesError{Dir: dir, Listed: len(names), Failed: len(report.Failures)}
	}
	report.Accuracy = 100 * float64(report.Correct) / float64(report.Total)

	if e.cache != nil && e.metrics != nil {
		if n, err := e.cache.VectorCount(); err == nil {
			e.metrics.CachedVectorsSet(n)
		}
	}
	if e.metrics != nil {
		e.metrics.RunFinished(report.Accuracy, time.Since(start))
	}

	log.Info().
		Int("correct", report.Correct).
		Int("total", report.Total).
		Int("failed", len(report.Failures)).
		Float64("accuracy", report.Accuracy).
		Dur("elapsed", time.Since(start)).
		Msg("Evaluation completed")

	return report, nil
}

// evaluate runs one sample through the pipeline. Only systemic errors are
// returned; everything else becomes a failed Result.
func (e *Engine) evaluate(ctx context.Context, path string) (Result, error) {
	name := filepath.Base(path)

	t := time.Now()
	sample, err := LoadSample(path, e.config.LabelIndex, e.extractor.Channels())
	e.observe(StageLoad, t)
	if err != nil {
		var labelErr *LabelError
		if errors.As(err, &labelErr) {
			return e.fail(name, StageLabel, err), nil
		}
		return e.fail(name, StageLoad, err), nil
	}

	t = time.Now()
	raw, err := e.rawVector(sample)
	if err != nil {
		e.observe(StageExtract, t)
		return e.fail(name, StageExtract, err), nil
	}
	vec, err := e.filter.Apply(raw)
	e.observe(StageExtract, t)
	if err != nil {
		var schemaErr *features.SchemaError
		if errors.As(err, &schemaErr) {
			return Result{}, fmt.Errorf("filter %s: %w", name, err)
		}
		return e.fail(name, StageExtract, err), nil
	}

	t = time.Now()
	predicted, err := e.classifier.Classify(ctx, vec)
	e.observe(StageClassify, t)
	if err != nil {
		var schemaErr *features.SchemaError
		if errors.As(err, &schemaErr) {
			return Result{}, fmt.Errorf("classify %s: %w", name, err)
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return e.fail(name, StageClassify, err), nil
	}

	res := Result{
		Filename:  name,
		Predicted: predicted,
		True:      sample.Label,
		Correct:   predicted == sample.Label,
	}

	log.Debug().
		Str("sample", name).
		Int("predicted", predicted).
		Int("true", sample.Label).
		Msg("Sample classified")

	if e.metrics != nil {
		if res.Correct {
			e.metrics.SampleDone(metrics.StatusCorrect)
		} else {
			e.metrics.SampleDone(metrics.StatusIncorrect)
		}
	}
	return res, nil
}

// rawVector extracts the raw vector of a sample, going through the cache
// when one is configured.
func (e *Engine) rawVector(sample *Sample) (features.Vector, error) {
	if e.cache == nil {
		return e.extractor.Extract(sample.Series)
	}

	key := storage.VectorKey(features.CatalogVersion, e.extractor.Channels(), sample.Content)
	values, found, err := e.cache.LoadVector(key)
	if err != nil {
		log.Warn().Err(err).Str("sample", sample.ID).Msg("Vector cache read failed")
	}
	if found && len(values) == len(e.schema) {
		if e.metrics != nil {
			e.metrics.CacheHit()
		}
		return features.Vector{Names: e.schema, Values: values}, nil
	}
	if e.metrics != nil {
		e.metrics.CacheMiss()
	}

	raw, err := e.extractor.Extract(sample.Series)
	if err != nil {
		return features.Vector{}, err
	}
	if err := e.cache.SaveVector(key, sample.ID, len(sample.Series), raw.Values); err != nil {
		log.Warn().Err(err).Str("sample", sample.ID).Msg("Vector cache write failed")
	}
	return raw, nil
}

func (e *Engine) fail(name, stage string, err error) Result {
	log.Warn().Err(err).Str("sample", name).Str("stage", stage).Msg("Sample failed")
	if e.metrics != nil {
		e.metrics.SampleFailed(stage)
	}
	return Result{Filename: name, Stage: stage, Err: err.Error()}
}

func (e *Engine) observe(stage string, start time.Time) {
	if e.metrics != nil {
		e.metrics.StageObserve(stage, time.Since(start))
	}
}
