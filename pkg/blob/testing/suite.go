// Package testing provides a reusable conformance suite for blob.Store
// implementations.
package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/marble/pkg/blob"
)

// StoreTestSuite exercises the blob.Store interface contract, not
// implementation details, so it is reusable across backends (memory,
// filesystem, badger, S3).
//
// Usage:
//
//	func TestFSBlobStore(t *testing.T) {
//	    suite := &blobtesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) blob.Store {
//	            store, err := fs.NewFSBlobStore(context.Background(), t.TempDir())
//	            require.NoError(t, err)
//	            return store
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh store instance per test for isolation.
	NewStore func(t *testing.T) blob.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGetRoundtrip", suite.testPutGetRoundtrip)
	t.Run("GetMissing", suite.testGetMissing)
	t.Run("Exists", suite.testExists)
	t.Run("PutIdempotent", suite.testPutIdempotent)
	t.Run("DistinctContent", suite.testDistinctContent)
	t.Run("EmptyContent", suite.testEmptyContent)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testPutGetRoundtrip(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	content := []byte("hello\n")
	digest := blob.ComputeDigest(content)

	require.NoError(t, store.Put(ctx, digest, content))

	got, err := store.Get(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	digest := blob.ComputeDigest([]byte("never stored"))

	_, err := store.Get(ctx, digest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, blob.ErrBlobNotFound), "expected ErrBlobNotFound, got %v", err)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	content := []byte("present")
	digest := blob.ComputeDigest(content)

	exists, err := store.Exists(ctx, digest)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, digest, content))

	exists, err = store.Exists(ctx, digest)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testPutIdempotent(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	content := []byte("stored twice")
	digest := blob.ComputeDigest(content)

	require.NoError(t, store.Put(ctx, digest, content))
	require.NoError(t, store.Put(ctx, digest, content))

	got, err := store.Get(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func (suite *StoreTestSuite) testDistinctContent(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	first := []byte("first")
	second := []byte("second")
	firstDigest := blob.ComputeDigest(first)
	secondDigest := blob.ComputeDigest(second)

	require.NotEqual(t, firstDigest, secondDigest)

	require.NoError(t, store.Put(ctx, firstDigest, first))
	require.NoError(t, store.Put(ctx, secondDigest, second))

	gotFirst, err := store.Get(ctx, firstDigest)
	require.NoError(t, err)
	gotSecond, err := store.Get(ctx, secondDigest)
	require.NoError(t, err)

	assert.Equal(t, first, gotFirst)
	assert.Equal(t, second, gotSecond)
}

func (suite *StoreTestSuite) testEmptyContent(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	digest := blob.ComputeDigest(nil)

	require.NoError(t, store.Put(ctx, digest, nil))

	got, err := store.Get(ctx, digest)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.NewStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	content := []byte("cancelled")
	digest := blob.ComputeDigest(content)

	assert.Error(t, store.Put(ctx, digest, content))

	_, err := store.Get(ctx, digest)
	assert.Error(t, err)
}
