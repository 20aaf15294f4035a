package ml

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gesture-eval/internal/features"
)

var errWorkerKilled = errors.New("worker killed")

const (
	scriptName         = "gesture_inference.py"
	embeddedScriptName = "gesture_inference_embedded.py"
	stderrTail         = 4096
)

// ScriptModel keeps one Python worker alive for the whole run and talks to
// it with one JSON document per line. The worker is not reentrant, so calls
// are serialized.
type ScriptModel struct {
	modelPath  string
	pythonPath string
	scriptPath string
	timeout    time.Duration
	metrics    MetricsInterface

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	stdoutW *io.PipeWriter
	stderr  *tailBuffer
}

type workerRequest struct {
	Op     string    `json:"op"`
	Names  []string  `json:"names,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

type workerResponse struct {
	Ready bool   `json:"ready,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Label string `json:"label,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// NewScriptModel starts the worker and runs a health check. An empty
// pythonPath triggers interpreter discovery.
func NewScriptModel(ctx context.Context, modelPath, pythonPath string, timeout time.Duration, metrics MetricsInterface) (*ScriptModel, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, err
	}

	if pythonPath == "" {
		var err error
		if pythonPath, err = findPython(workerModules(modelPath)...); err != nil {
			return nil, err
		}
	}

	scriptPath, err := resolveScript(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference script: %w", err)
	}

	m := &ScriptModel{
		modelPath:  modelPath,
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		timeout:    timeout,
		metrics:    metrics,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.start(ctx); err != nil {
		return nil, err
	}
	if err := m.healthCheck(ctx); err != nil {
		m.kill()
		return nil, fmt.Errorf("model health check failed: %w", err)
	}
	return m, nil
}

// workerModules lists what the inference worker imports for the artifact.
// Pickled forests need scikit-learn to unpickle; joblib is optional.
func workerModules(modelPath string) []string {
	if strings.HasSuffix(strings.ToLower(modelPath), ".onnx") {
		return []string{"numpy", "onnxruntime"}
	}
	return []string{"numpy", "sklearn"}
}

// resolveScript prefers a standalone script next to the model, then one in a
// sibling scripts directory, and finally writes the embedded one.
func resolveScript(modelPath string) (string, error) {
	dir := filepath.Dir(modelPath)
	candidates := []string{
		filepath.Join(dir, scriptName),
		filepath.Join(filepath.Dir(dir), "scripts", scriptName),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	path := filepath.Join(dir, embeddedScriptName)
	if err := createInferenceScript(path); err == nil {
		return path, nil
	}
	path = filepath.Join(os.TempDir(), embeddedScriptName)
	if err := createInferenceScript(path); err != nil {
		return "", err
	}
	return path, nil
}

// Name implements Model.
func (m *ScriptModel) Name() string { return "python" }

// Predict implements Model. A worker that died or timed out is restarted on
// the next call.
func (m *ScriptModel) Predict(ctx context.Context, v features.Vector) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd == nil {
		log.Warn().Str("model_path", m.modelPath).Msg("Restarting inference worker")
		if err := m.start(ctx); err != nil {
			return "", err
		}
	}

	resp, err := m.roundTrip(ctx, &workerRequest{Op: "predict", Names: v.Names, Values: v.Values})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		if resp.Kind == "schema" {
			return "", &features.SchemaError{Reason: resp.Error}
		}
		return "", fmt.Errorf("python inference error: %s", resp.Error)
	}
	if resp.Label == "" {
		return "", errors.New("python inference returned no label")
	}
	return resp.Label, nil
}

// Close stops the worker.
func (m *ScriptModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil {
		return nil
	}

	_ = m.stdin.Close()
	done := make(chan error, 1)
	cmd := m.cmd
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(m.timeout):
		_ = cmd.Process.Kill()
		<-done
	}
	_ = m.stdoutW.Close()
	m.cmd = nil
	return nil
}

func (m *ScriptModel) start(ctx context.Context) error {
	cmd := exec.Command(m.pythonPath, m.scriptPath, m.modelPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	// stdout goes through a pipe we own so a pending read can be released
	// before Wait.
	stdout, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW
	m.stderr = &tailBuffer{limit: stderrTail}
	cmd.Stderr = m.stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		return fmt.Errorf("start python worker: %w", err)
	}
	m.cmd = cmd
	m.stdin = stdin
	m.stdout = bufio.NewReader(stdout)
	m.stdoutW = stdoutW

	resp, err := m.roundTrip(ctx, nil)
	if err != nil {
		return fmt.Errorf("python worker did not start: %w", err)
	}
	if !resp.Ready {
		m.kill()
		return fmt.Errorf("python worker failed to load model: %s", resp.Error)
	}
	return nil
}

func (m *ScriptModel) healthCheck(ctx context.Context) error {
	resp, err := m.roundTrip(ctx, &workerRequest{Op: "health"})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("worker unhealthy: %s", resp.Error)
	}
	return nil
}

// roundTrip sends req (nil only reads) and waits for one response line.
// Any transport failure leaves the worker killed. Callers hold m.mu.
func (m *ScriptModel) roundTrip(ctx context.Context, req *workerRequest) (workerResponse, error) {
	var line []byte
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return workerResponse{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		line = append(b, '\n')
	}

	type result struct {
		resp workerResponse
		err  error
	}
	ch := make(chan result, 1)
	stdin, stdout := m.stdin, m.stdout
	go func() {
		var r result
		if line != nil {
			if _, err := stdin.Write(line); err != nil {
				r.err = fmt.Errorf("write to worker: %w", err)
				ch <- r
				return
			}
		}
		out, err := stdout.ReadBytes('\n')
		if err != nil {
			r.err = fmt.Errorf("read from worker: %w", err)
			ch <- r
			return
		}
		if err := json.Unmarshal(out, &r.resp); err != nil {
			r.err = fmt.Errorf("failed to parse response: %w, stdout: %s", err, bytes.TrimSpace(out))
		}
		ch <- r
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			log.Error().
				Err(r.err).
				Str("python_path", m.pythonPath).
				Str("script_path", m.scriptPath).
				Str("model_path", m.modelPath).
				Str("stderr", m.stderr.String()).
				Msg("Python inference worker failed")
			m.kill()
			return workerResponse{}, fmt.Errorf("%w, stderr: %s", r.err, m.stderr.String())
		}
		return r.resp, nil
	case <-timer.C:
		m.kill()
		<-ch
		if m.metrics != nil {
			m.metrics.MLTimeoutsInc()
		}
		return workerResponse{}, fmt.Errorf("prediction timeout after %v (model may be overloaded)", m.timeout)
	case <-ctx.Done():
		m.kill()
		<-ch
		return workerResponse{}, ctx.Err()
	}
}

// kill stops the worker and unblocks any roundTrip reader still waiting on
// it, then reaps the process.
func (m *ScriptModel) kill() {
	if m.cmd == nil {
		return
	}
	_ = m.cmd.Process.Kill()
	_ = m.stdoutW.CloseWithError(errWorkerKilled)
	_ = m.cmd.Wait()
	m.cmd = nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// findPython looks for a Python 3 interpreter that can import modules,
// preferring virtual environments.
func findPython(modules ...string) (string, error) {
	module := strings.Join(modules, ", ")
	check := fmt.Sprintf("import sys, %s; print('Python', sys.version)", module)
	usable := func(path string) bool {
		out, err := exec.Command(path, "-c", check).Output()
		return err == nil && strings.Contains(string(out), "Python 3")
	}

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates := []string{
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
			filepath.Join(venvPath, "Scripts", "python3.exe"),
		}
		for _, venvPython := range candidates {
			if _, err := os.Stat(venvPython); err == nil && usable(venvPython) {
				log.Info().Str("python_path", venvPython).Msg("Using virtual environment Python")
				return venvPython, nil
			}
		}
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir), filepath.Dir(filepath.Dir(execDir))} {
			venvCandidates := []string{
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, "venv", "bin", "python"),
				filepath.Join(root, ".venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python"),
				filepath.Join(root, "venv", "Scripts", "python.exe"),
			}
			for _, venvPython := range venvCandidates {
				if _, err := os.Stat(venvPython); err == nil && usable(venvPython) {
					log.Info().Str("python_path", venvPython).Msg("Using project virtual environment Python")
					return venvPython, nil
				}
			}
		}
	}

	candidates := []string{"python3", "python", "python3.12", "python3.11", "python3.10", "python3.9", "python3.8"}
	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil && usable(path) {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}

	return "", fmt.Errorf("no Python 3 interpreter with %s found; set PYTHON_PATH", module)
}

func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""
Gesture classifier inference worker (embedded version).

Reads one JSON request per line from stdin and answers with one JSON line:
  {"op": "health"}                                  -> {"ok": true}
  {"op": "predict", "names": [...], "values": [...]} -> {"label": "Two"}
"""
import sys
import json


def emit(obj):
    sys.stdout.write(json.dumps(obj) + "\n")
    sys.stdout.flush()


class SchemaMismatch(Exception):
    pass


def load(path):
    import numpy as np

    if path.lower().endswith(".onnx"):
        import onnxruntime as ort

        session = ort.InferenceSession(path)
        input_name = session.get_inputs()[0].name

        def predict(names, values):
            outputs = session.run(None, {input_name: np.array([values], dtype=np.float32)})
            return str(outputs[0][0])

        return predict

    try:
        import joblib

        model = joblib.load(path)
    except ImportError:
        import pickle

        with open(path, "rb") as f:
            model = pickle.load(f)

    expected = [str(n) for n in getattr(model, "feature_names_in_", [])]

    def predict(names, values):
        if expected:
            index = dict(zip(names, values))
            missing = [n for n in expected if n not in index]
            if missing or len(index) != len(expected):
                raise SchemaMismatch("%d model features missing (first: %s), %d given, %d expected"
                                     % (len(missing), missing[:1], len(index), len(expected)))
            row = [index[n] for n in expected]
        else:
            n_features = getattr(model, "n_features_in_", len(values))
            if n_features != len(values):
                raise SchemaMismatch("model expects %d features, got %d" % (n_features, len(values)))
            row = values
        return str(model.predict(np.array([row], dtype=np.float64))[0])

    return predict


def main():
    if len(sys.argv) != 2:
        emit({"error": "Usage: gesture_inference.py <model_path>"})
        sys.exit(1)

    try:
        predict = load(sys.argv[1])
    except Exception as e:
        emit({"error": "%s: %s" % (type(e).__name__, e)})
        sys.exit(1)

    emit({"ready": True})

    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            request = json.loads(line)
            op = request.get("op")
            if op == "health":
                emit({"ok": True})
            elif op == "predict":
                emit({"label": predict(request["names"], request["values"])})
            else:
                emit({"error": "unknown op %r" % op})
        except SchemaMismatch as e:
            emit({"error": str(e), "kind": "schema"})
        except Exception as e:
            emit({"error": "%s: %s" % (type(e).__name__, e)})


if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0755)
}
