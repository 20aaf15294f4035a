// Package ml adapts a pretrained gesture classifier to the evaluator.
//
// A model is an opaque predict capability: it receives a filtered feature
// vector and answers with a class name such as "Three". Three backends exist
// and Load picks one from the model location: a native random-forest export
// (.json), a remote inference endpoint (http/https) and a persistent Python
// worker for pickled or ONNX artifacts. The Classifier maps class names to
// the numeric labels used in file names.
package ml

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gesture-eval/internal/features"
)

// MetricsInterface defines metrics methods needed by the classifier.
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLTimeoutsInc()
}

// Model answers with the class name of one filtered feature vector.
type Model interface {
	Predict(ctx context.Context, v features.Vector) (string, error)
	Name() string
	Close() error
}

// LoadOptions selects and configures a model backend.
type LoadOptions struct {
	Location   string
	PythonPath string
	Timeout    time.Duration
	Metrics    MetricsInterface
}

// ModelLoadError reports that the model could not be opened. It is fatal
// for the run.
type ModelLoadError struct {
	Location string
	Err      error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Location, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// UnknownClassLabelError reports a prediction outside the known classes.
type UnknownClassLabelError struct {
	Label string
}

func (e *UnknownClassLabelError) Error() string {
	return fmt.Sprintf("unknown class label %q", e.Label)
}

// Load opens the model once for the whole run.
func Load(ctx context.Context, opts LoadOptions) (Model, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	loc := opts.Location

	var (
		m   Model
		err error
	)
	switch {
	case strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://"):
		m, err = NewRemoteModel(ctx, loc, opts.Timeout)
	case strings.HasSuffix(strings.ToLower(loc), ".json"):
		m, err = LoadForest(loc)
	default:
		m, err = NewScriptModel(ctx, loc, opts.PythonPath, opts.Timeout, opts.Metrics)
	}
	if err != nil {
		return nil, &ModelLoadError{Location: loc, Err: err}
	}

	if opts.Metrics != nil {
		if info, err := os.Stat(loc); err == nil {
			opts.Metrics.MLModelAgeSet(time.Since(info.ModTime()).Seconds())
		}
	}

	log.Info().Str("model_path", loc).Str("backend", m.Name()).Msg("Model loaded")
	return m, nil
}
