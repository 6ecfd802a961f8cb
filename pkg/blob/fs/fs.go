// Package fs implements filesystem-backed blob storage for Marble.
//
// Blobs live as regular files under <root>/.hash/, one file per digest.
// Writes go through a temporary file plus rename so that a crashed write
// never leaves a truncated blob under a valid digest name.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/marble/pkg/blob"
)

// FSBlobStore implements blob.Store using the local filesystem.
//
// Thread Safety:
// Safe for concurrent use. Concurrent Puts of the same digest race on the
// final rename, which is harmless: both temporary files hold identical
// bytes, and rename is atomic on POSIX filesystems.
type FSBlobStore struct {
	hashDir string
}

// NewFSBlobStore creates a filesystem blob store rooted at basePath.
//
// The reserved .hash directory is created if it does not exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Root directory of the object store
//
// Returns:
//   - *FSBlobStore: Initialized store
//   - error: Directory creation failure or context cancellation
func NewFSBlobStore(ctx context.Context, basePath string) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hashDir := filepath.Join(basePath, ".hash")
	if err := os.MkdirAll(hashDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create hash directory: %w", err)
	}

	return &FSBlobStore{hashDir: hashDir}, nil
}

func (s *FSBlobStore) blobPath(digest blob.Digest) string {
	return filepath.Join(s.hashDir, string(digest))
}

// Put stores data under the digest if not already present.
func (s *FSBlobStore) Put(ctx context.Context, digest blob.Digest, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.blobPath(digest)

	// Deduplication: an existing blob with this digest already holds these bytes.
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat blob: %w", err)
	}

	tmp, err := os.CreateTemp(s.hashDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary blob: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish blob: %w", err)
	}

	return nil
}

// Get returns the bytes stored under the digest.
func (s *FSBlobStore) Get(ctx context.Context, digest blob.Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	return data, nil
}

// Exists checks whether a blob with the given digest is stored.
func (s *FSBlobStore) Exists(ctx context.Context, digest blob.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return true, nil
}
