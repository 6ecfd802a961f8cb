package blob

import (
	"context"
	"errors"
)

// ============================================================================
// Blob Store Interface
// ============================================================================

// Store provides content-addressable storage for immutable byte sequences.
//
// Blobs are keyed by the digest of their content (see Digest). A given digest
// always maps to the same bytes: once written, a blob is never mutated. The
// store holds no ownership information; which tenant references which blob
// lives exclusively in the metadata layer.
//
// Separation of Concerns:
//
// The blob store manages only raw bytes. It does NOT manage:
//   - File paths and folder hierarchy → handled by the metadata store
//   - Tenant ownership and access control → handled by the storage facade
//   - Digest computation → handled by the Hasher service
//
// Deduplication falls out of the keying scheme: two writers storing identical
// bytes produce identical digests, and Put of an existing digest is a no-op.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent Puts of the same digest are safe because the bytes are, by
// construction, identical.
type Store interface {
	// Put stores data under the given digest if it is not already present.
	//
	// Put is idempotent: writing a digest that already exists succeeds
	// without touching the stored bytes. Callers are expected to pass a
	// digest actually computed from data (the Hasher does this); the store
	// itself does not re-verify.
	Put(ctx context.Context, digest Digest, data []byte) error

	// Get returns the exact bytes stored under the digest.
	//
	// Returns an error wrapping ErrBlobNotFound if no blob with this digest
	// exists.
	Get(ctx context.Context, digest Digest) ([]byte, error)

	// Exists reports whether a blob with the given digest is stored.
	Exists(ctx context.Context, digest Digest) (bool, error)
}

// ============================================================================
// Standard Blob Store Errors
// ============================================================================

// Implementations wrap these sentinels with context so callers can branch
// with errors.Is while logs keep the backend detail:
//
//	if !found {
//	    return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
//	}
var (
	// ErrBlobNotFound indicates no blob exists for the requested digest.
	//
	// Protocol Mapping:
	//   - WebDAV/HTTP: 404 Not Found (when surfaced through a file read)
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidDigest indicates the digest is malformed (wrong length or
	// alphabet) and cannot name any blob.
	//
	// Protocol Mapping:
	//   - WebDAV/HTTP: 400 Bad Request
	ErrInvalidDigest = errors.New("invalid blob digest")
)
