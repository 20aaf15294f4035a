package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"
)

// ModelInfo identifies the artifact a report was produced with.
type ModelInfo struct {
	Location   string    `json:"location"`
	SHA256     string    `json:"sha256,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// DescribeModel fingerprints a local model file. Remote locations are
// returned as is.
func DescribeModel(location string) (ModelInfo, error) {
	info := ModelInfo{Location: location}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return info, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return info, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return info, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return info, err
	}
	info.SHA256 = hex.EncodeToString(h.Sum(nil))
	info.SizeBytes = st.Size()
	info.ModifiedAt = st.ModTime().UTC()
	return info, nil
}
