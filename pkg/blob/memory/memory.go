// Package memory implements an in-memory blob store.
//
// Intended for tests and local development; blobs do not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/marble/pkg/blob"
)

// MemoryBlobStore implements blob.Store with a map guarded by a RWMutex.
//
// Thread Safety:
// Safe for concurrent use. Stored slices are copied on the way in and on
// the way out so callers can never alias the internal buffers.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[blob.Digest][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[blob.Digest][]byte),
	}
}

// Put stores data under the digest if not already present.
func (s *MemoryBlobStore) Put(ctx context.Context, digest blob.Digest, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[digest]; ok {
		return nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[digest] = buf

	return nil
}

// Get returns a copy of the bytes stored under the digest.
func (s *MemoryBlobStore) Get(ctx context.Context, digest blob.Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[digest]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Exists checks whether a blob with the given digest is stored.
func (s *MemoryBlobStore) Exists(ctx context.Context, digest blob.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[digest]
	return ok, nil
}

// Len returns the number of stored blobs. Test helper.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
