package ml

import (
	"context"
	"time"

	"gesture-eval/internal/common"
	"gesture-eval/internal/features"
)

// Classifier turns model class names into gesture numbers 1..6.
type Classifier struct {
	model   Model
	metrics MetricsInterface
}

// NewClassifier wraps a loaded model. metrics may be nil.
func NewClassifier(model Model, metrics MetricsInterface) *Classifier {
	return &Classifier{model: model, metrics: metrics}
}

// Classify predicts the gesture number for one filtered vector.
func (c *Classifier) Classify(ctx context.Context, v features.Vector) (int, error) {
	start := time.Now()
	label, err := c.model.Predict(ctx, v)
	if c.metrics != nil {
		c.metrics.MLLatencyObserve(time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.MLFailuresInc()
		}
		return 0, err
	}

	id, err := LabelToClass(label)
	if err != nil {
		if c.metrics != nil {
			c.metrics.MLFailuresInc()
		}
		return 0, err
	}
	if c.metrics != nil {
		c.metrics.MLPredictionsInc()
	}
	return id, nil
}

// LabelToClass maps "One".."Six" to 1..6.
func LabelToClass(label string) (int, error) {
	id, ok := common.ClassLabels[label]
	if !ok {
		return 0, &UnknownClassLabelError{Label: label}
	}
	return id, nil
}
