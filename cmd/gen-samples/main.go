package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// gen-samples writes synthetic 8-channel recordings named gestureN_XXXX.txt,
// so the gesture number sits at the default label position 7.
func main() {
	var (
		outDir   = flag.String("out", "samples", "Output directory")
		perClass = flag.Int("per-class", 5, "Recordings per gesture")
		rows     = flag.Int("rows", 100, "Rows per recording")
		seed     = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Printf("Generating sample recordings...\n")
	fmt.Printf("  Per gesture: %d\n", *perClass)
	fmt.Printf("  Rows: %d\n", *rows)
	fmt.Printf("  Output: %s\n", *outDir)

	n, err := generateSamples(*outDir, *perClass, *rows, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate samples")
	}

	fmt.Printf("✓ Generated %d recordings\n", n)
}

func generateSamples(dir string, perClass, rows int, rng *rand.Rand) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	count := 0
	for gesture := 1; gesture <= 6; gesture++ {
		for i := 0; i < perClass; i++ {
			name := fmt.Sprintf("gesture%d_%04d.txt", gesture, i)
			if err := writeRecording(filepath.Join(dir, name), gesture, rows, rng); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// writeRecording simulates an EMG-like signal: every channel oscillates at a
// gesture-dependent frequency with a per-channel phase, plus a mean-reverting
// noise term.
func writeRecording(path string, gesture, rows int, rng *rand.Rand) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)

	const (
		channels      = 8
		noise         = 2.0
		meanReversion = 0.3
	)
	freq := 0.05 * float64(gesture)
	amplitude := 10.0 + 4*float64(gesture)
	drift := make([]float64, channels)

	for r := 0; r < rows; r++ {
		for ch := 0; ch < channels; ch++ {
			drift[ch] += -meanReversion*drift[ch] + noise*rng.NormFloat64()
			phase := float64(ch) * math.Pi / channels
			v := math.Round(amplitude*math.Sin(2*math.Pi*freq*float64(r)+phase) + drift[ch])
			if ch > 0 {
				w.WriteByte(',')
			}
			w.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
