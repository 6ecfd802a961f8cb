package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/marble/pkg/blob"
	"github.com/marmos91/marble/pkg/blob/memory"
	"github.com/marmos91/marble/pkg/db"
)

type testEnv struct {
	storage  *TenantStorage
	database *db.Database
	blobs    *memory.MemoryBlobStore
	alice    string
	bob      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	blobs := memory.NewMemoryBlobStore()

	env := &testEnv{
		storage:  NewTenantStorage(database, blob.NewHasher(blobs)),
		database: database,
		blobs:    blobs,
	}
	env.alice = env.createUser(t, "alice")
	env.bob = env.createUser(t, "bob")

	return env
}

func (env *testEnv) createUser(t *testing.T, username string) string {
	t.Helper()

	user := &db.User{
		UUID:         uuid.New().String(),
		Username:     username,
		PasswordHash: "unused",
	}
	require.NoError(t, env.database.Users.Create(context.Background(), user))

	return user.UUID
}

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, code, storageErr.Code)
}

func TestReadYourWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.storage.Write(ctx, env.alice, "/note.md", []byte("hello"), "")
	require.NoError(t, err)
	assert.True(t, created)

	data, err := env.storage.Read(ctx, env.alice, "/note.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/secret.md", []byte("classified"), "")
	require.NoError(t, err)

	_, err = env.storage.Read(ctx, env.bob, "/secret.md")
	assertCode(t, err, ErrNotFound)

	exists, err := env.storage.Exists(ctx, env.bob, "/secret.md")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUnknownTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Read(ctx, uuid.New().String(), "/anything.md")
	assertCode(t, err, ErrUnknownTenant)
}

func TestTombstoneAndResurrect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/f.md", []byte("v1"), "")
	require.NoError(t, err)

	require.NoError(t, env.storage.Delete(ctx, env.alice, "/f.md"))

	exists, err := env.storage.Exists(ctx, env.alice, "/f.md")
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := env.storage.Write(ctx, env.alice, "/f.md", []byte("v2"), "")
	require.NoError(t, err)
	assert.True(t, created)

	data, err := env.storage.Read(ctx, env.alice, "/f.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestOverwriteIsNotCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.storage.Write(ctx, env.alice, "/f.md", []byte("v1"), "")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.storage.Write(ctx, env.alice, "/f.md", []byte("v2"), "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDedupAcrossTenants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	content := []byte("hello\n")

	_, err := env.storage.Write(ctx, env.alice, "/note.md", content, "")
	require.NoError(t, err)
	_, err = env.storage.Write(ctx, env.bob, "/other.md", content, "")
	require.NoError(t, err)

	aliceMeta, err := env.storage.Metadata(ctx, env.alice, "/note.md")
	require.NoError(t, err)
	bobMeta, err := env.storage.Metadata(ctx, env.bob, "/other.md")
	require.NoError(t, err)

	assert.Equal(t, aliceMeta.ContentHash, bobMeta.ContentHash)
	assert.Equal(t, 1, env.blobs.Len())
}

func TestSharedBlobSurvivesDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	content := []byte("shared")

	_, err := env.storage.Write(ctx, env.alice, "/a.md", content, "")
	require.NoError(t, err)
	_, err = env.storage.Write(ctx, env.bob, "/b.md", content, "")
	require.NoError(t, err)

	require.NoError(t, env.storage.Delete(ctx, env.alice, "/a.md"))

	data, err := env.storage.Read(ctx, env.bob, "/b.md")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestWriteCreatesAncestors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/a/b/c.txt", []byte("deep"), "")
	require.NoError(t, err)

	for _, dir := range []string{"/a", "/a/b"} {
		meta, err := env.storage.Metadata(ctx, env.alice, dir)
		require.NoError(t, err)
		assert.True(t, meta.IsDirectory)
	}

	names, err := env.storage.List(ctx, env.alice, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, names)
}

func TestWriteOntoFolderFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/d"))

	_, err := env.storage.Write(ctx, env.alice, "/d", []byte("x"), "")
	assertCode(t, err, ErrIsDirectory)
}

func TestReadFolderFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/d"))

	_, err := env.storage.Read(ctx, env.alice, "/d")
	assertCode(t, err, ErrIsDirectory)
}

func TestCreateDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/x/y/z"))

	// Idempotent on an existing folder.
	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/x/y/z"))

	exists, err := env.storage.Exists(ctx, env.alice, "/x/y")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateDirectoryOverFileFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/f", []byte("x"), "")
	require.NoError(t, err)

	err = env.storage.CreateDirectory(ctx, env.alice, "/f")
	assertCode(t, err, ErrNotDirectory)
}

func TestRecursiveDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/d/a.txt", []byte("a"), "")
	require.NoError(t, err)
	_, err = env.storage.Write(ctx, env.alice, "/d/sub/b.txt", []byte("b"), "")
	require.NoError(t, err)

	require.NoError(t, env.storage.Delete(ctx, env.alice, "/d"))

	for _, path := range []string{"/d", "/d/a.txt", "/d/sub", "/d/sub/b.txt"} {
		exists, err := env.storage.Exists(ctx, env.alice, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}
}

func TestListRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/b.txt", []byte("b"), "")
	require.NoError(t, err)
	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/a"))
	_, err = env.storage.Write(ctx, env.bob, "/bobs.txt", []byte("x"), "")
	require.NoError(t, err)

	names, err := env.storage.List(ctx, env.alice, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.txt"}, names)
}

func TestListImmediateChildrenOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/d/top.txt", []byte("1"), "")
	require.NoError(t, err)
	_, err = env.storage.Write(ctx, env.alice, "/d/sub/deep.txt", []byte("2"), "")
	require.NoError(t, err)

	names, err := env.storage.List(ctx, env.alice, "/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "top.txt"}, names)
}

func TestListMissingFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.List(ctx, env.alice, "/nope")
	assertCode(t, err, ErrNotFound)
}

func TestMetadataWithoutBlobRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/m.md", []byte("hello"), "text/markdown")
	require.NoError(t, err)

	meta, err := env.storage.Metadata(ctx, env.alice, "/m.md")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "text/markdown", meta.ContentType)
	assert.False(t, meta.IsDirectory)
	assert.Equal(t, blob.ComputeDigest([]byte("hello")), meta.ContentHash)
	assert.False(t, meta.LastModified.IsZero())
}

func TestMetadataRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	meta, err := env.storage.Metadata(ctx, env.alice, "/")
	require.NoError(t, err)
	assert.True(t, meta.IsDirectory)
}

func TestContentTypeFallbacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		path     string
		data     []byte
		explicit string
		want     string
	}{
		{"explicit wins", "/a.md", []byte("x"), "text/custom", "text/custom"},
		{"extension guess", "/b.json", []byte("{}"), "", "application/json"},
		{"sniffed fallback", "/c", []byte("plain text content"), "", "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.storage.Write(ctx, env.alice, tt.path, tt.data, tt.explicit)
			require.NoError(t, err)

			meta, err := env.storage.Metadata(ctx, env.alice, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, meta.ContentType)
		})
	}
}

func TestMovePreservesHashes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/x.md", []byte("data"), "")
	require.NoError(t, err)
	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/y"))

	digest := blob.ComputeDigest([]byte("data"))

	created, err := env.storage.Move(ctx, env.alice, "/x.md", "/y/x.md", false)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = env.storage.Read(ctx, env.alice, "/x.md")
	assertCode(t, err, ErrNotFound)

	meta, err := env.storage.Metadata(ctx, env.alice, "/y/x.md")
	require.NoError(t, err)
	assert.Equal(t, digest, meta.ContentHash)

	data, err := env.storage.Read(ctx, env.alice, "/y/x.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestMoveFolderTree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/src/a.txt", []byte("a"), "")
	require.NoError(t, err)
	_, err = env.storage.Write(ctx, env.alice, "/src/sub/b.txt", []byte("b"), "")
	require.NoError(t, err)

	_, err = env.storage.Move(ctx, env.alice, "/src", "/dst", false)
	require.NoError(t, err)

	for _, path := range []string{"/src", "/src/a.txt", "/src/sub/b.txt"} {
		exists, err := env.storage.Exists(ctx, env.alice, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}

	data, err := env.storage.Read(ctx, env.alice, "/dst/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)

	names, err := env.storage.List(ctx, env.alice, "/dst")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub"}, names)
}

func TestMoveDestinationParentMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/x.md", []byte("x"), "")
	require.NoError(t, err)

	_, err = env.storage.Move(ctx, env.alice, "/x.md", "/missing/x.md", false)
	assertCode(t, err, ErrConflict)
}

func TestMoveOverwriteSemantics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/src.md", []byte("new"), "")
	require.NoError(t, err)
	_, err = env.storage.Write(ctx, env.alice, "/dst.md", []byte("old"), "")
	require.NoError(t, err)

	_, err = env.storage.Move(ctx, env.alice, "/src.md", "/dst.md", false)
	assertCode(t, err, ErrAlreadyExists)

	created, err := env.storage.Move(ctx, env.alice, "/src.md", "/dst.md", true)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := env.storage.Read(ctx, env.alice, "/dst.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestCopySharesBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/orig.md", []byte("content"), "")
	require.NoError(t, err)

	created, err := env.storage.Copy(ctx, env.alice, "/orig.md", "/copy.md", false)
	require.NoError(t, err)
	assert.True(t, created)

	origMeta, err := env.storage.Metadata(ctx, env.alice, "/orig.md")
	require.NoError(t, err)
	copyMeta, err := env.storage.Metadata(ctx, env.alice, "/copy.md")
	require.NoError(t, err)

	assert.Equal(t, origMeta.ContentHash, copyMeta.ContentHash)
	assert.Equal(t, 1, env.blobs.Len())

	// The copy is independent: deleting the original keeps it readable.
	require.NoError(t, env.storage.Delete(ctx, env.alice, "/orig.md"))
	data, err := env.storage.Read(ctx, env.alice, "/copy.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestCopyFolderTree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.storage.Write(ctx, env.alice, "/src/sub/f.txt", []byte("f"), "")
	require.NoError(t, err)

	_, err = env.storage.Copy(ctx, env.alice, "/src", "/dst", false)
	require.NoError(t, err)

	for _, path := range []string{"/src/sub/f.txt", "/dst/sub/f.txt"} {
		data, err := env.storage.Read(ctx, env.alice, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("f"), data, path)
	}
}

func TestCopyIntoItselfFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.storage.CreateDirectory(ctx, env.alice, "/d"))

	_, err := env.storage.Copy(ctx, env.alice, "/d", "/d/inner", false)
	assertCode(t, err, ErrConflict)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/", "/", false},
		{"/a", "/a", false},
		{"/a/b.txt", "/a/b.txt", false},
		{"/a/", "/a", false},
		{"", "", true},
		{"a/b", "", true},
		{"/a//b", "", true},
		{"/a/./b", "", true},
		{"/a/../b", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizePath(tt.in)
		if tt.wantErr {
			assertCode(t, err, ErrInvalidPath)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "/", ParentPath("/"))
	assert.Equal(t, "/", ParentPath("/a"))
	assert.Equal(t, "/a", ParentPath("/a/b"))
	assert.Equal(t, "/a/b", ParentPath("/a/b/c.txt"))
}
