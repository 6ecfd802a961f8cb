package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	database, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}

func createTestUser(t *testing.T, database *Database, username string) *User {
	t.Helper()

	user := &User{
		UUID:         uuid.New().String(),
		Username:     username,
		PasswordHash: "$2a$10$fakefakefakefakefakefu",
	}
	require.NoError(t, database.Users.Create(context.Background(), user))
	require.NotZero(t, user.ID)

	return user
}

func TestUserRepository(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()

	user := createTestUser(t, database, "alice")

	t.Run("FindByID", func(t *testing.T) {
		found, err := database.Users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", found.Username)
		assert.Equal(t, user.UUID, found.UUID)
		assert.Nil(t, found.LastLogin)
	})

	t.Run("FindByUsername", func(t *testing.T) {
		found, err := database.Users.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("FindByUUID", func(t *testing.T) {
		found, err := database.Users.FindByUUID(ctx, user.UUID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := database.Users.FindByUsername(ctx, "nobody")
		assert.True(t, errors.Is(err, ErrUserNotFound))
	})

	t.Run("RecordLogin", func(t *testing.T) {
		require.NoError(t, database.Users.RecordLogin(ctx, user.ID))

		found, err := database.Users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, found.LastLogin)
	})
}

func TestFolderRepository(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, database, "alice")

	t.Run("CreateAndFind", func(t *testing.T) {
		folder := &Folder{UserID: user.ID, Path: "/docs"}
		require.NoError(t, database.Folders.Create(ctx, folder))

		found, err := database.Folders.FindByPath(ctx, user.ID, "/docs")
		require.NoError(t, err)
		assert.Equal(t, folder.ID, found.ID)
		assert.Nil(t, found.ParentID)
		assert.Equal(t, "docs", found.Name())
	})

	t.Run("DuplicateLivePath", func(t *testing.T) {
		err := database.Folders.Create(ctx, &Folder{UserID: user.ID, Path: "/docs"})
		assert.True(t, errors.Is(err, ErrDuplicatePath))
	})

	t.Run("TombstoneFreesPath", func(t *testing.T) {
		folder, err := database.Folders.FindByPath(ctx, user.ID, "/docs")
		require.NoError(t, err)

		require.NoError(t, database.Folders.MarkDeleted(ctx, user.ID, folder.ID))

		_, err = database.Folders.FindByPath(ctx, user.ID, "/docs")
		assert.True(t, errors.Is(err, ErrFolderNotFound))

		// The tombstone does not block a new live row at the same path.
		fresh := &Folder{UserID: user.ID, Path: "/docs"}
		require.NoError(t, database.Folders.Create(ctx, fresh))
	})

	t.Run("RestoreConflict", func(t *testing.T) {
		// /docs now has a live row; restoring the tombstoned one collides.
		deleted, err := database.Folders.FindByID(ctx, 1)
		require.NoError(t, err)
		require.True(t, deleted.IsDeleted)

		err = database.Folders.Restore(ctx, user.ID, deleted.ID)
		assert.True(t, errors.Is(err, ErrDuplicatePath))
	})

	t.Run("ChildrenAndList", func(t *testing.T) {
		parent, err := database.Folders.FindByPath(ctx, user.ID, "/docs")
		require.NoError(t, err)

		child := &Folder{UserID: user.ID, Path: "/docs/notes", ParentID: &parent.ID}
		require.NoError(t, database.Folders.Create(ctx, child))

		children, err := database.Folders.GetChildren(ctx, user.ID, parent.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "/docs/notes", children[0].Path)

		hasChildren, err := database.Folders.HasChildren(ctx, user.ID, parent.ID)
		require.NoError(t, err)
		assert.True(t, hasChildren)

		hasChildren, err = database.Folders.HasChildren(ctx, user.ID, child.ID)
		require.NoError(t, err)
		assert.False(t, hasChildren)

		topLevel, err := database.Folders.List(ctx, user.ID, nil, false)
		require.NoError(t, err)
		require.Len(t, topLevel, 1)
		assert.Equal(t, "/docs", topLevel[0].Path)
	})
}

func TestChildPatternEscapesWildcards(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, database, "alice")

	createFile := func(path string) {
		t.Helper()
		require.NoError(t, database.Files.Create(ctx, &File{
			UserID: user.ID, Path: path, ContentHash: "h", ContentType: "text/plain", Size: 1,
		}))
	}

	t.Run("PercentInFolderName", func(t *testing.T) {
		folder := &Folder{UserID: user.ID, Path: "/50%off"}
		require.NoError(t, database.Folders.Create(ctx, folder))

		// A file outside the folder must not count as a descendant even
		// though "%" would match it as a bare LIKE wildcard.
		createFile("/50-nothing-off/decoy.md")

		hasChildren, err := database.Folders.HasChildren(ctx, user.ID, folder.ID)
		require.NoError(t, err)
		assert.False(t, hasChildren)

		createFile("/50%off/deal.md")

		hasChildren, err = database.Folders.HasChildren(ctx, user.ID, folder.ID)
		require.NoError(t, err)
		assert.True(t, hasChildren)

		files, err := database.Files.ListByFolderPath(ctx, user.ID, "/50%off", false)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "/50%off/deal.md", files[0].Path)
	})

	t.Run("UnderscoreInFolderName", func(t *testing.T) {
		folder := &Folder{UserID: user.ID, Path: "/a_b"}
		require.NoError(t, database.Folders.Create(ctx, folder))

		createFile("/aXb/decoy.md")

		hasChildren, err := database.Folders.HasChildren(ctx, user.ID, folder.ID)
		require.NoError(t, err)
		assert.False(t, hasChildren)

		files, err := database.Files.ListByFolderPath(ctx, user.ID, "/a_b", false)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestFolderTenantIsolation(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()

	alice := createTestUser(t, database, "alice")
	bob := createTestUser(t, database, "bob")

	require.NoError(t, database.Folders.Create(ctx, &Folder{UserID: alice.ID, Path: "/shared"}))

	// Same path under a different tenant is a distinct row, not a conflict.
	require.NoError(t, database.Folders.Create(ctx, &Folder{UserID: bob.ID, Path: "/shared"}))

	_, err := database.Folders.FindByPath(ctx, bob.ID, "/shared")
	require.NoError(t, err)

	aliceFolder, err := database.Folders.FindByPath(ctx, alice.ID, "/shared")
	require.NoError(t, err)

	// Bob cannot tombstone Alice's folder.
	require.NoError(t, database.Folders.MarkDeleted(ctx, bob.ID, aliceFolder.ID))
	found, err := database.Folders.FindByPath(ctx, alice.ID, "/shared")
	require.NoError(t, err)
	assert.False(t, found.IsDeleted)
}

func TestFileRepository(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, database, "alice")

	file := &File{
		UserID:      user.ID,
		Path:        "/notes/todo.md",
		ContentHash: "abc123",
		ContentType: "text/markdown",
		Size:        42,
	}

	t.Run("CreateAndFind", func(t *testing.T) {
		require.NoError(t, database.Files.Create(ctx, file))

		found, err := database.Files.FindByPath(ctx, user.ID, "/notes/todo.md")
		require.NoError(t, err)
		assert.Equal(t, "abc123", found.ContentHash)
		assert.Equal(t, int64(42), found.Size)
		assert.Equal(t, "todo.md", found.Name())
		assert.Equal(t, "/notes", found.FolderPath())
	})

	t.Run("DuplicateLivePath", func(t *testing.T) {
		err := database.Files.Create(ctx, &File{
			UserID: user.ID, Path: "/notes/todo.md", ContentHash: "x", ContentType: "text/plain",
		})
		assert.True(t, errors.Is(err, ErrDuplicatePath))
	})

	t.Run("UpdateContent", func(t *testing.T) {
		file.ContentHash = "def456"
		file.Size = 100
		require.NoError(t, database.Files.Update(ctx, file))

		found, err := database.Files.FindByPath(ctx, user.ID, "/notes/todo.md")
		require.NoError(t, err)
		assert.Equal(t, "def456", found.ContentHash)
		assert.Equal(t, int64(100), found.Size)
	})

	t.Run("FindByContentHash", func(t *testing.T) {
		other := &File{
			UserID: user.ID, Path: "/copy.md", ContentHash: "def456", ContentType: "text/markdown", Size: 100,
		}
		require.NoError(t, database.Files.Create(ctx, other))

		files, err := database.Files.FindByContentHash(ctx, "def456")
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("ListByFolderPath", func(t *testing.T) {
		files, err := database.Files.ListByFolderPath(ctx, user.ID, "/notes", false)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "/notes/todo.md", files[0].Path)

		all, err := database.Files.ListByFolderPath(ctx, user.ID, "/", false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("TombstoneAndRestore", func(t *testing.T) {
		require.NoError(t, database.Files.MarkDeleted(ctx, user.ID, file.ID))

		_, err := database.Files.FindByPath(ctx, user.ID, "/notes/todo.md")
		assert.True(t, errors.Is(err, ErrFileNotFound))

		deleted, err := database.Files.FindDeletedByPath(ctx, user.ID, "/notes/todo.md")
		require.NoError(t, err)
		assert.Equal(t, file.ID, deleted.ID)

		require.NoError(t, database.Files.Restore(ctx, user.ID, file.ID))

		restored, err := database.Files.FindByPath(ctx, user.ID, "/notes/todo.md")
		require.NoError(t, err)
		assert.Equal(t, file.ID, restored.ID)
	})

	t.Run("CountByUser", func(t *testing.T) {
		count, err := database.Files.CountByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestInTxRollsBackOnError(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, database, "alice")

	sentinel := errors.New("boom")
	err := database.InTx(ctx, func(repos *Repositories) error {
		if err := repos.Folders.Create(ctx, &Folder{UserID: user.ID, Path: "/tx"}); err != nil {
			return err
		}
		return sentinel
	})
	require.True(t, errors.Is(err, sentinel))

	_, err = database.Folders.FindByPath(ctx, user.ID, "/tx")
	assert.True(t, errors.Is(err, ErrFolderNotFound))
}

func TestInTxCommits(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	user := createTestUser(t, database, "alice")

	err := database.InTx(ctx, func(repos *Repositories) error {
		return repos.Folders.Create(ctx, &Folder{UserID: user.ID, Path: "/tx"})
	})
	require.NoError(t, err)

	_, err = database.Folders.FindByPath(ctx, user.ID, "/tx")
	require.NoError(t, err)
}
