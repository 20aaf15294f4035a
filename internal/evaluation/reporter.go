package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gesture-eval/internal/common"
	"gesture-eval/internal/features"

	"github.com/rs/zerolog/log"
)

// Reporter writes evaluation reports
type Reporter struct {
	report      *Report
	accuracyRow string
}

// NewReporter creates a new reporter. accuracyRow is common.AccuracyFirstRow
// or common.AccuracyTrailer.
func NewReporter(report *Report, accuracyRow string) *Reporter {
	return &Reporter{
		report:      report,
		accuracyRow: accuracyRow,
	}
}

// AccuracyString renders the accuracy the way the results file shows it,
// e.g. "50.0%".
func (r *Reporter) AccuracyString() string {
	return features.FormatFloat(r.report.Accuracy) + "%"
}

// WriteCSV writes one Filename,Predicted,True,Accuracy row per evaluated
// sample. The accuracy goes on the first row or on a trailing ACCURACY row.
func (r *Reporter) WriteCSV(path string) error {
	return writeFile(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)

		if err := writer.Write([]string{"Filename", "Predicted", "True", "Accuracy"}); err != nil {
			return err
		}

		for i, res := range r.report.Results {
			accuracy := ""
			if i == 0 && r.accuracyRow != common.AccuracyTrailer {
				accuracy = r.AccuracyString()
			}
			record := []string{
				res.Filename,
				strconv.Itoa(res.Predicted),
				strconv.Itoa(res.True),
				accuracy,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}

		if r.accuracyRow == common.AccuracyTrailer {
			if err := writer.Write([]string{"ACCURACY", "", "", r.AccuracyString()}); err != nil {
				return err
			}
		}

		writer.Flush()
		return writer.Error()
	})
}

// WriteFailures writes a Filename,Stage,Error row per failed sample. Nothing
// is written when every sample was evaluated.
func (r *Reporter) WriteFailures(path string) error {
	if len(r.report.Failures) == 0 {
		return nil
	}

	return writeFile(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"Filename", "Stage", "Error"}); err != nil {
			return err
		}
		for _, res := range r.report.Failures {
			if err := writer.Write([]string{res.Filename, res.Stage, res.Err}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// WriteJSON writes the whole report as indented JSON.
func (r *Reporter) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r.report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// PrintSummary prints the accuracy line and counts.
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Accuracy: %s %%\n", features.FormatFloat(r.report.Accuracy))
	fmt.Fprintf(w, "Correct: %d / %d\n", r.report.Correct, r.report.Total)
	if n := len(r.report.Failures); n > 0 {
		fmt.Fprintf(w, "Failed: %d\n", n)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	log.Info().Str("file", path).Msg("Report written")
	return nil
}
