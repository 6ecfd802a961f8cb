package blob

import (
	"context"
	"fmt"
)

// Hasher mediates blob writes and reads, computing digests in-process and
// delegating I/O to a Store.
//
// Its purpose is to keep digest computation in exactly one place and to
// avoid recomputing when an upstream caller already holds the digest
// (PutWithDigest). The storage facade's COPY and MOVE do not go through
// the Hasher at all: they reuse the stored digest in metadata.
type Hasher struct {
	store Store
}

// NewHasher creates a Hasher backed by the given store.
//
// Panics if store is nil (programmer error).
func NewHasher(store Store) *Hasher {
	if store == nil {
		panic("blob store cannot be nil")
	}
	return &Hasher{store: store}
}

// Put hashes content, stores it under the resulting digest and returns the
// digest. Storing bytes that are already present is a no-op.
func (h *Hasher) Put(ctx context.Context, content []byte) (Digest, error) {
	digest := ComputeDigest(content)
	if err := h.store.Put(ctx, digest, content); err != nil {
		return "", fmt.Errorf("put blob %s: %w", digest, err)
	}
	return digest, nil
}

// PutWithDigest stores content under a digest the caller already computed.
//
// The digest must have been produced by ComputeDigest over the same bytes;
// passing a mismatched digest corrupts the content address space.
func (h *Hasher) PutWithDigest(ctx context.Context, digest Digest, content []byte) error {
	if !digest.Valid() {
		return fmt.Errorf("digest %q: %w", digest, ErrInvalidDigest)
	}
	return h.store.Put(ctx, digest, content)
}

// Get returns the bytes stored under digest.
func (h *Hasher) Get(ctx context.Context, digest Digest) ([]byte, error) {
	return h.store.Get(ctx, digest)
}

// Exists reports whether the digest is stored.
func (h *Hasher) Exists(ctx context.Context, digest Digest) (bool, error) {
	return h.store.Exists(ctx, digest)
}
