package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"
)

// VectorRecord is a cached raw feature vector. Values are packed as
// little-endian float64 so NaN and ±Inf survive the round trip.
type VectorRecord struct {
	Sample   string    `json:"sample"`
	Rows     int       `json:"rows"`
	Values   []byte    `json:"values"`
	StoredAt time.Time `json:"stored_at"`
}

// VectorKey derives the cache key of a sample from the catalog version, the
// channel count and the sample file content.
func VectorKey(catalogVersion string, channels int, content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%s_%d_%s", catalogVersion, channels, hex.EncodeToString(sum[:]))
}

// SaveVector stores the raw values extracted from a sample.
func (s *Store) SaveVector(key, sample string, rows int, values []float64) error {
	packed := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(packed[8*i:], math.Float64bits(v))
	}
	data, err := json.Marshal(VectorRecord{Sample: sample, Rows: rows, Values: packed, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(vectorsBucket)).Put([]byte(key), data)
	})
}

// LoadVector returns the cached values for key. A missing or unreadable
// entry is a miss.
func (s *Store) LoadVector(key string) ([]float64, bool, error) {
	var values []float64
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(vectorsBucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		var rec VectorRecord
		if err := json.Unmarshal(data, &rec); err != nil || len(rec.Values)%8 != 0 {
			return nil
		}
		values = make([]float64, len(rec.Values)/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(rec.Values[8*i:]))
		}
		found = true
		return nil
	})

	return values, found, err
}

// PruneVectors deletes cached vectors whose key does not start with the
// given catalog version and returns how many were removed.
func (s *Store) PruneVectors(catalogVersion string) (int, error) {
	prefix := []byte(catalogVersion + "_")
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(vectorsBucket))
		var stale [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if !bytes.HasPrefix(k, prefix) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})

	return removed, err
}

// VectorCount returns the number of cached vectors.
func (s *Store) VectorCount() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(vectorsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
