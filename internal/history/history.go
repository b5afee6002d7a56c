// Package history persists a record of completed and failed uploads in a
// small embedded bbolt store, grounded on the teacher's session-registry
// CRUD shape but keyed by file hash and kept only for completed work
// (in-progress sessions live in internal/uploadserver's in-memory
// registry).
package history

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("uploads")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("history: record not found")

// Record describes one completed or failed upload.
type Record struct {
	FileHash  string        `json:"file_hash"`
	FileName  string        `json:"file_name"`
	FileSize  int64         `json:"file_size"`
	Succeeded bool          `json:"succeeded"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Store wraps a bbolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put records (or overwrites) a record keyed by its file hash.
func (s *Store) Put(r Record) error {
	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(r.FileHash), buf)
	})
}

// Get retrieves a record by file hash.
func (s *Store) Get(fileHash string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(bucketName).Get([]byte(fileHash))
		if buf == nil {
			return ErrNotFound
		}
		return json.Unmarshal(buf, &rec)
	})
	return rec, err
}

// List returns every stored record, newest-finished first.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	return out, nil
}
