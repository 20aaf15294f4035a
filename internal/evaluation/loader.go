package evaluation

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gesture-eval/internal/common"
)

// Sample is one recording: a rows × channels series and its true gesture.
type Sample struct {
	ID      string
	Path    string
	Label   int
	Series  [][]float64
	Content []byte // raw file bytes, used for cache keys
}

// PathError reports an unusable sample directory.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid sample directory %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// LoadError reports a sample whose content is not a numeric table.
type LoadError struct {
	Sample string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Sample, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LabelError reports a sample name that does not encode a gesture 1..6.
type LabelError struct {
	Sample string
	Index  int
	Reason string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("label of %s at position %d: %s", e.Sample, e.Index, e.Reason)
}

// ListSamples returns the names of the regular files in dir whose extension
// is one of exts, sorted ascending.
func ListSamples(dir string, exts []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &PathError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Path: dir, Err: errors.New("not a directory")}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &PathError{Path: dir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !hasExtension(entry.Name(), exts) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// DecodeLabel reads the gesture number stored at byte labelIndex of name.
func DecodeLabel(name string, labelIndex int) (int, error) {
	if labelIndex < 0 || labelIndex >= len(name) {
		return 0, &LabelError{Sample: name, Index: labelIndex, Reason: "name too short"}
	}
	c := name[labelIndex]
	if c < '0'+common.MinClassID || c > '0'+common.MaxClassID {
		return 0, &LabelError{Sample: name, Index: labelIndex, Reason: fmt.Sprintf("%q is not a gesture number", c)}
	}
	return int(c - '0'), nil
}

// LoadSample decodes the label from the file name and then parses the file as
// a header-less comma-separated table with exactly channels columns.
func LoadSample(path string, labelIndex, channels int) (*Sample, error) {
	name := filepath.Base(path)
	label, err := DecodeLabel(name, labelIndex)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Sample: name, Err: err}
	}

	series, err := parseSeries(content, channels)
	if err != nil {
		return nil, &LoadError{Sample: name, Err: err}
	}

	return &Sample{
		ID:      name,
		Path:    path,
		Label:   label,
		Series:  series,
		Content: content,
	}, nil
}

func parseSeries(content []byte, channels int) ([][]float64, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = channels
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var series [][]float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := make([]float64, channels)
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, _ := reader.FieldPos(i)
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		series = append(series, row)
	}

	if len(series) == 0 {
		return nil, errors.New("no rows")
	}
	return series, nil
}
