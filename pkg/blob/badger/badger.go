// Package badger implements BadgerDB-backed blob storage for Marble.
//
// BadgerDB is an embedded key-value store, which makes this backend a good
// fit for single-node deployments that want persistence without running an
// object-store service next to the server. Keys are the canonical
// "/.hash/<digest>" blob keys.
package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/marble/pkg/blob"
)

// BadgerBlobStore implements blob.Store on top of a BadgerDB database.
//
// Thread Safety:
// BadgerDB transactions provide isolation; the store is safe for concurrent
// use. Concurrent Puts of the same digest write identical values, so the
// last-write-wins conflict resolution is harmless.
type BadgerBlobStore struct {
	db *badger.DB
}

// BadgerBlobStoreConfig contains configuration for the Badger blob store.
type BadgerBlobStoreConfig struct {
	// Path is the directory holding the BadgerDB files
	Path string

	// InMemory runs BadgerDB without touching disk. Used in tests.
	InMemory bool
}

// NewBadgerBlobStore opens (or creates) a BadgerDB database at cfg.Path.
//
// The returned store owns the database handle; call Close when done.
func NewBadgerBlobStore(ctx context.Context, cfg BadgerBlobStoreConfig) (*BadgerBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger blob store: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerBlobStore{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *BadgerBlobStore) Close() error {
	return s.db.Close()
}

// Put stores data under the digest if not already present.
func (s *BadgerBlobStore) Put(ctx context.Context, digest blob.Digest, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(digest.Key())

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			// Deduplication: the digest already maps to these bytes.
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write blob to badger: %w", err)
	}

	return nil
}

// Get returns the bytes stored under the digest.
func (s *BadgerBlobStore) Get(ctx context.Context, digest blob.Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(digest.Key()))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read blob from badger: %w", err)
	}

	return data, nil
}

// Exists checks whether a blob with the given digest is stored.
func (s *BadgerBlobStore) Exists(ctx context.Context, digest blob.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(digest.Key()))
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return true, nil
}
