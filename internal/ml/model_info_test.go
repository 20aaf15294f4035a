package ml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.pkl")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	info, err := DescribeModel(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", info.SHA256)
	assert.Equal(t, int64(3), info.SizeBytes)
	assert.False(t, info.ModifiedAt.IsZero())

	remote, err := DescribeModel("https://models.local/gesture")
	require.NoError(t, err)
	assert.Empty(t, remote.SHA256)

	_, err = DescribeModel(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
