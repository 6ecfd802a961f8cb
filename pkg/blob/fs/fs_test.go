package fs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/marble/pkg/blob"
	blobtesting "github.com/marmos91/marble/pkg/blob/testing"
)

// TestFSBlobStore runs the blob store conformance suite against the
// filesystem implementation.
func TestFSBlobStore(t *testing.T) {
	suite := &blobtesting.StoreTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			store, err := NewFSBlobStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}

	suite.Run(t)
}
