package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gesture-eval/internal/evaluation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSamples(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")

	n, err := generateSamples(dir, 2, 20, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	names, err := evaluation.ListSamples(dir, []string{".txt"})
	require.NoError(t, err)
	require.Len(t, names, 12)

	for _, name := range names {
		sample, err := evaluation.LoadSample(filepath.Join(dir, name), 7, 8)
		require.NoError(t, err, name)
		assert.Len(t, sample.Series, 20)
		assert.Equal(t, int(name[7]-'0'), sample.Label)
	}
}

func TestGenerateSamples_Reproducible(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	_, err := generateSamples(a, 1, 10, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	_, err = generateSamples(b, 1, 10, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	for g := 1; g <= 6; g++ {
		name := "gesture" + string(rune('0'+g)) + "_0000.txt"
		x, err := os.ReadFile(filepath.Join(a, name))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, name))
		require.NoError(t, err)
		assert.Equal(t, x, y)
	}
}
