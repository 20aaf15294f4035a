// Package storage persists evaluator state in BoltDB: extracted feature
// vectors keyed by sample content and catalog version, and a history of run
// summaries per model.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	vectorsBucket = "vectors" // Bucket name for cached raw feature vectors
	runsBucket    = "runs"    // Bucket name for run summaries

	// DBFile is the database file created inside the data directory.
	DBFile = "gesture-eval.db"
)

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(vectorsBucket)); err != nil {
			return fmt.Errorf("create vectors bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// RunRecord summarizes one evaluation run.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	Model     string    `json:"model"`
	ModelSHA  string    `json:"model_sha256,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Correct   int       `json:"correct"`
	Total     int       `json:"total"`
	Failed    int       `json:"failed"`
	Accuracy  float64   `json:"accuracy"`
}

// StoreRun stores a run summary under "model_timestamp" so runs of one model
// can be scanned by time.
func (s *Store) StoreRun(run RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}

		return b.Put(runKey(run.Model, run.StartedAt), data)
	})
}

// GetRuns retrieves the runs of a model within a time range, oldest first.
// The range is inclusive of both start and end.
func (s *Store) GetRuns(model string, start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		prefix := []byte(model + "_")
		endKey := runKey(model, end)

		for k, v := c.Seek(runKey(model, start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// runKey zero-pads the timestamp so byte order matches time order.
func runKey(model string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", model, ts.UnixNano()))
}
