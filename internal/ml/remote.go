package ml

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"gesture-eval/internal/features"
)

// RemoteModel delegates prediction to an inference service:
//
//	GET  {base}/health  -> 200
//	POST {base}/predict {"names": [...], "values": [...]} -> {"label": "Two"}
//
// A 422 response is treated as a feature schema mismatch.
type RemoteModel struct {
	base string
	rest *resty.Client
}

type predictRequest struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

type predictResponse struct {
	Label string `json:"label"`
	Error string `json:"error,omitempty"`
}

// NewRemoteModel creates the client and checks the service health once.
func NewRemoteModel(ctx context.Context, base string, timeout time.Duration) (*RemoteModel, error) {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	m := &RemoteModel{base: strings.TrimRight(base, "/"), rest: r}

	resp, err := m.rest.R().SetContext(ctx).Get(m.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("health check: status %d", resp.StatusCode())
	}
	return m, nil
}

// Name implements Model.
func (m *RemoteModel) Name() string { return "remote" }

// Close implements Model.
func (m *RemoteModel) Close() error { return nil }

// Predict implements Model.
func (m *RemoteModel) Predict(ctx context.Context, v features.Vector) (string, error) {
	out := &predictResponse{}
	resp, err := m.rest.R().
		SetContext(ctx).
		SetBody(predictRequest{Names: v.Names, Values: v.Values}).
		SetResult(out).
		SetError(out).
		Post(m.base + "/predict")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnprocessableEntity:
		return "", &features.SchemaError{Reason: "inference service rejected features: " + out.Error}
	case resp.StatusCode() != http.StatusOK:
		return "", fmt.Errorf("inference service: status %d, body: %s", resp.StatusCode(), resp.String())
	case out.Error != "":
		return "", fmt.Errorf("inference service: %s", out.Error)
	case out.Label == "":
		return "", errors.New("inference service returned no label")
	}
	return out.Label, nil
}
