package blob

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Digest is the content address of a blob: the BLAKE2b-256 hash of its
// bytes, base64url-encoded without padding.
//
// The encoding is stable across implementations: two systems writing
// identical bytes produce identical digests, which is what makes
// cross-tenant deduplication possible.
type Digest string

// digestBytes is the raw hash length (32 bytes = 256 bits).
const digestBytes = 32

// encodedDigestLength is the length of a base64url encoding of digestBytes
// bytes without padding.
const encodedDigestLength = 43

// keyPrefix is the reserved object-store namespace for blobs. Tenant paths
// never start with "/.hash/", so blob keys cannot collide with user content.
const keyPrefix = "/.hash/"

// ComputeDigest hashes content and returns its digest.
func ComputeDigest(content []byte) Digest {
	sum := blake2b.Sum256(content)
	return Digest(base64.RawURLEncoding.EncodeToString(sum[:]))
}

// Valid reports whether the digest has the expected length and alphabet.
func (d Digest) Valid() bool {
	if len(d) != encodedDigestLength {
		return false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(string(d))
	return err == nil && len(decoded) == digestBytes
}

// Key returns the object-store key for the digest.
//
// Format: /.hash/{digest}
func (d Digest) Key() string {
	return keyPrefix + string(d)
}

// DigestFromKey extracts the digest from an object-store key.
//
// The key must be in the format /.hash/{digest}.
func DigestFromKey(key string) (Digest, error) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", fmt.Errorf("key %q is not a blob key: %w", key, ErrInvalidDigest)
	}
	d := Digest(rest)
	if !d.Valid() {
		return "", fmt.Errorf("key %q: %w", key, ErrInvalidDigest)
	}
	return d, nil
}
