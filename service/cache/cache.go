// Package cache provides the durable, content-addressed store of raw
// transaction responses. One record per signature, written verbatim, never
// evicted: a re-run of the same sweep serves everything already fetched
// without touching the network, which is what makes long sweeps resumable.
package cache

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get when no record exists for a signature.
// A miss is an expected outcome, not a failure.
var ErrNotFound = errors.New("cache: not found")

// ErrStopIteration can be returned from a ForEach callback to end iteration
// early without ForEach reporting an error.
var ErrStopIteration = errors.New("cache: stop iteration")

const (
	// dbFileMode is the file mode for the database file (read-write for owner only)
	dbFileMode = 0600
	// bucketName is the BoltDB bucket holding raw transaction records
	bucketName = "rawtxns"
)

// Store is a BoltDB-backed key-value store keyed by transaction signature.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, dbFileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has reports whether a record exists for the given signature.
func (s *Store) Has(signature string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		found = b.Get([]byte(signature)) != nil
		return nil
	})
	return found, err
}

// Get returns the verbatim raw record for the given signature, or ErrNotFound.
func (s *Store) Get(signature string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		v := b.Get([]byte(signature))
		if v == nil {
			return ErrNotFound
		}
		// The slice is only valid inside the transaction.
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores the raw record for the given signature. Idempotent and
// last-write-wins: concurrent writers of the same signature produce the same
// content, so whichever lands last is fine.
func (s *Store) Put(signature string, raw []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.Put([]byte(signature), raw)
	})
}

// Len returns the number of cached records.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// ForEach calls fn for every cached record. Used by the CLI cache inspector;
// iteration stops on the first error, and ErrStopIteration ends it cleanly.
func (s *Store) ForEach(fn func(signature string, raw []byte) error) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
	if errors.Is(err, ErrStopIteration) {
		return nil
	}
	return err
}
