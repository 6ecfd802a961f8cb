// Package storage implements the tenant storage facade for Marble.
//
// The facade presents a per-tenant filesystem view on top of the metadata
// store and the blob store. Every call takes the tenant UUID explicitly,
// translates it to the internal user id once, and performs the operation
// with tenant isolation enforced end to end: a call with tenant A can
// never observe or mutate rows owned by tenant B.
//
// Paths handed to the facade must already be normalized (see
// NormalizePath); URL decoding and percent-encoding belong to the HTTP
// boundary.
package storage

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/marmos91/marble/pkg/blob"
	"github.com/marmos91/marble/pkg/db"
)

// FileMetadata describes an entry without loading its blob.
type FileMetadata struct {
	// Path is the normalized tenant-relative path
	Path string

	// Size is the content length in bytes (0 for folders)
	Size int64

	// ContentType is the stored MIME type (empty for folders)
	ContentType string

	// IsDirectory is true for folder entries and the root
	IsDirectory bool

	// LastModified is the entry's updated_at timestamp
	LastModified time.Time

	// ContentHash is the blob digest (empty for folders)
	ContentHash blob.Digest
}

// TenantStorage combines the metadata and blob layers into a per-tenant
// filesystem view.
//
// Thread Safety:
// Safe for concurrent use. Multi-row changes run inside database
// transactions; the (user_id, path) uniqueness constraints resolve
// double-create races (losers observe ErrAlreadyExists).
type TenantStorage struct {
	database *db.Database
	blobs    *blob.Hasher
}

// NewTenantStorage creates the facade over an open database and a blob
// hasher.
func NewTenantStorage(database *db.Database, blobs *blob.Hasher) *TenantStorage {
	if database == nil {
		panic("storage: database is required")
	}
	if blobs == nil {
		panic("storage: blob hasher is required")
	}
	return &TenantStorage{database: database, blobs: blobs}
}

// resolveUser translates the external tenant UUID to the internal user
// row. Every facade operation starts here.
func (t *TenantStorage) resolveUser(ctx context.Context, tenantUUID string) (*db.User, error) {
	user, err := t.database.Users.FindByUUID(ctx, tenantUUID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, unknownTenant(tenantUUID)
		}
		return nil, backendError("failed to resolve tenant", "")
	}
	return user, nil
}

// Read returns the content bytes of the file at path.
func (t *TenantStorage) Read(ctx context.Context, tenantUUID, path string) ([]byte, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return nil, err
	}

	file, err := t.database.Files.FindByPath(ctx, user.ID, path)
	if err != nil {
		if errors.Is(err, db.ErrFileNotFound) {
			if t.folderExists(ctx, user.ID, path) {
				return nil, isDirectory(path)
			}
			return nil, notFound(path)
		}
		return nil, backendError("failed to look up file", path)
	}

	data, err := t.blobs.Get(ctx, blob.Digest(file.ContentHash))
	if err != nil {
		// A live row pointing at a missing blob is an internal
		// inconsistency, not a client-visible 404.
		return nil, backendError("failed to read content", path)
	}

	return data, nil
}

// Write stores data at path, creating the file row and any missing
// ancestor folders, or updating the existing row in place. A tombstoned
// row at the path is resurrected rather than duplicated.
//
// contentType may be empty; it then falls back to a guess from the path's
// extension and finally to content sniffing.
//
// Returns:
//   - bool: true if the path had no live file before (HTTP 201 vs 204)
//   - error: ErrIsDirectory if a folder occupies path, or backend errors
func (t *TenantStorage) Write(ctx context.Context, tenantUUID, path string, data []byte, contentType string) (bool, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return false, err
	}
	if path == "/" {
		return false, isDirectory(path)
	}

	// The blob goes in before the metadata transaction. If the
	// transaction fails the orphan blob costs storage, not correctness.
	digest, err := t.blobs.Put(ctx, data)
	if err != nil {
		return false, backendError("failed to store content", path)
	}

	resolvedType := resolveContentType(path, data, contentType)

	var created bool
	err = t.database.InTx(ctx, func(repos *db.Repositories) error {
		if _, err := repos.Folders.FindByPath(ctx, user.ID, path); err == nil {
			return isDirectory(path)
		} else if !errors.Is(err, db.ErrFolderNotFound) {
			return backendError("failed to look up folder", path)
		}

		if _, err := ensureAncestors(ctx, repos, user.ID, path); err != nil {
			return err
		}

		file, err := repos.Files.FindByPath(ctx, user.ID, path)
		switch {
		case err == nil:
			file.ContentHash = string(digest)
			file.ContentType = resolvedType
			file.Size = int64(len(data))
			if err := repos.Files.Update(ctx, file); err != nil {
				return backendError("failed to update file", path)
			}
			return nil

		case errors.Is(err, db.ErrFileNotFound):
			created = true

			deleted, err := repos.Files.FindDeletedByPath(ctx, user.ID, path)
			if err == nil {
				deleted.ContentHash = string(digest)
				deleted.ContentType = resolvedType
				deleted.Size = int64(len(data))
				deleted.IsDeleted = false
				if err := repos.Files.Update(ctx, deleted); err != nil {
					return backendError("failed to resurrect file", path)
				}
				return nil
			}
			if !errors.Is(err, db.ErrFileNotFound) {
				return backendError("failed to look up tombstone", path)
			}

			file = &db.File{
				UserID:      user.ID,
				Path:        path,
				ContentHash: string(digest),
				ContentType: resolvedType,
				Size:        int64(len(data)),
			}
			if err := repos.Files.Create(ctx, file); err != nil {
				if errors.Is(err, db.ErrDuplicatePath) {
					return alreadyExists(path)
				}
				return backendError("failed to create file", path)
			}
			return nil

		default:
			return backendError("failed to look up file", path)
		}
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

// Exists reports whether a live file or folder occupies path.
func (t *TenantStorage) Exists(ctx context.Context, tenantUUID, path string) (bool, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return false, err
	}
	if path == "/" {
		return true, nil
	}

	_, err = t.database.Files.FindByPath(ctx, user.ID, path)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, db.ErrFileNotFound) {
		return false, backendError("failed to look up file", path)
	}

	_, err = t.database.Folders.FindByPath(ctx, user.ID, path)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, db.ErrFolderNotFound) {
		return false, backendError("failed to look up folder", path)
	}

	return false, nil
}

// Delete tombstones the entry at path. Folders are deleted recursively
// with all contained files and subfolders, atomically.
func (t *TenantStorage) Delete(ctx context.Context, tenantUUID, path string) error {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return err
	}
	if path == "/" {
		return invalidPath(path)
	}

	file, err := t.database.Files.FindByPath(ctx, user.ID, path)
	if err == nil {
		if err := t.database.Files.MarkDeleted(ctx, user.ID, file.ID); err != nil {
			return backendError("failed to delete file", path)
		}
		return nil
	}
	if !errors.Is(err, db.ErrFileNotFound) {
		return backendError("failed to look up file", path)
	}

	return t.database.InTx(ctx, func(repos *db.Repositories) error {
		folder, err := repos.Folders.FindByPath(ctx, user.ID, path)
		if err != nil {
			if errors.Is(err, db.ErrFolderNotFound) {
				return notFound(path)
			}
			return backendError("failed to look up folder", path)
		}
		return deleteFolderTree(ctx, repos, user.ID, folder)
	})
}

// List returns the names of the immediate children of a live folder,
// sorted. The root "/" lists the tenant's top-level entries.
func (t *TenantStorage) List(ctx context.Context, tenantUUID, dirPath string) ([]string, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return nil, err
	}

	var names []string

	if dirPath == "/" {
		folders, err := t.database.Folders.List(ctx, user.ID, nil, false)
		if err != nil {
			return nil, backendError("failed to list folders", dirPath)
		}
		for _, folder := range folders {
			names = append(names, folder.Name())
		}
	} else {
		folder, err := t.database.Folders.FindByPath(ctx, user.ID, dirPath)
		if err != nil {
			if !errors.Is(err, db.ErrFolderNotFound) {
				return nil, backendError("failed to look up folder", dirPath)
			}
			if t.fileExists(ctx, user.ID, dirPath) {
				return nil, notDirectory(dirPath)
			}
			return nil, notFound(dirPath)
		}

		children, err := t.database.Folders.GetChildren(ctx, user.ID, folder.ID)
		if err != nil {
			return nil, backendError("failed to list folders", dirPath)
		}
		for _, child := range children {
			names = append(names, child.Name())
		}
	}

	files, err := t.database.Files.ListByFolderPath(ctx, user.ID, dirPath, false)
	if err != nil {
		return nil, backendError("failed to list files", dirPath)
	}
	for _, file := range files {
		if file.FolderPath() == dirPath {
			names = append(names, file.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

// CreateDirectory creates the folder at path, recursively creating any
// missing ancestors. Idempotent on an existing folder; fails with
// ErrNotDirectory if a file occupies path.
func (t *TenantStorage) CreateDirectory(ctx context.Context, tenantUUID, path string) error {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return err
	}
	if path == "/" {
		return nil
	}

	return t.database.InTx(ctx, func(repos *db.Repositories) error {
		if t.fileExistsIn(ctx, repos, user.ID, path) {
			return notDirectory(path)
		}

		if _, err := repos.Folders.FindByPath(ctx, user.ID, path); err == nil {
			return nil
		} else if !errors.Is(err, db.ErrFolderNotFound) {
			return backendError("failed to look up folder", path)
		}

		parentID, err := ensureAncestors(ctx, repos, user.ID, path)
		if err != nil {
			return err
		}

		folder := &db.Folder{UserID: user.ID, Path: path, ParentID: parentID}
		if err := repos.Folders.Create(ctx, folder); err != nil {
			if errors.Is(err, db.ErrDuplicatePath) {
				return alreadyExists(path)
			}
			return backendError("failed to create folder", path)
		}
		return nil
	})
}

// Metadata returns the entry's metadata without reading its blob.
func (t *TenantStorage) Metadata(ctx context.Context, tenantUUID, path string) (*FileMetadata, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return nil, err
	}

	if path == "/" {
		return &FileMetadata{
			Path:         "/",
			IsDirectory:  true,
			LastModified: user.CreatedAt,
		}, nil
	}

	file, err := t.database.Files.FindByPath(ctx, user.ID, path)
	if err == nil {
		return &FileMetadata{
			Path:         file.Path,
			Size:         file.Size,
			ContentType:  file.ContentType,
			LastModified: file.UpdatedAt,
			ContentHash:  blob.Digest(file.ContentHash),
		}, nil
	}
	if !errors.Is(err, db.ErrFileNotFound) {
		return nil, backendError("failed to look up file", path)
	}

	folder, err := t.database.Folders.FindByPath(ctx, user.ID, path)
	if err == nil {
		return &FileMetadata{
			Path:         folder.Path,
			IsDirectory:  true,
			LastModified: folder.UpdatedAt,
		}, nil
	}
	if !errors.Is(err, db.ErrFolderNotFound) {
		return nil, backendError("failed to look up folder", path)
	}

	return nil, notFound(path)
}

// FileCount returns the number of live files the tenant owns.
func (t *TenantStorage) FileCount(ctx context.Context, tenantUUID string) (int64, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return 0, err
	}

	count, err := t.database.Files.CountByUser(ctx, user.ID)
	if err != nil {
		return 0, backendError("failed to count files", "")
	}
	return count, nil
}

func (t *TenantStorage) folderExists(ctx context.Context, userID int64, path string) bool {
	_, err := t.database.Folders.FindByPath(ctx, userID, path)
	return err == nil
}

func (t *TenantStorage) fileExists(ctx context.Context, userID int64, path string) bool {
	_, err := t.database.Files.FindByPath(ctx, userID, path)
	return err == nil
}

func (t *TenantStorage) fileExistsIn(ctx context.Context, repos *db.Repositories, userID int64, path string) bool {
	_, err := repos.Files.FindByPath(ctx, userID, path)
	return err == nil
}

// ensureAncestors creates any missing folders above path and returns the
// id of the direct parent (nil when the parent is the root).
func ensureAncestors(ctx context.Context, repos *db.Repositories, userID int64, path string) (*int64, error) {
	var parentID *int64

	for _, ancestor := range ancestorPaths(path) {
		folder, err := repos.Folders.FindByPath(ctx, userID, ancestor)
		if err == nil {
			parentID = &folder.ID
			continue
		}
		if !errors.Is(err, db.ErrFolderNotFound) {
			return nil, backendError("failed to look up folder", ancestor)
		}

		if _, err := repos.Files.FindByPath(ctx, userID, ancestor); err == nil {
			return nil, notDirectory(ancestor)
		} else if !errors.Is(err, db.ErrFileNotFound) {
			return nil, backendError("failed to look up file", ancestor)
		}

		created := &db.Folder{UserID: userID, Path: ancestor, ParentID: parentID}
		if err := repos.Folders.Create(ctx, created); err != nil {
			return nil, backendError("failed to create folder", ancestor)
		}
		parentID = &created.ID
	}

	return parentID, nil
}

// deleteFolderTree tombstones a folder, its subfolders and all contained
// files. Runs inside the caller's transaction.
func deleteFolderTree(ctx context.Context, repos *db.Repositories, userID int64, folder *db.Folder) error {
	files, err := repos.Files.ListByFolderPath(ctx, userID, folder.Path, false)
	if err != nil {
		return backendError("failed to list files", folder.Path)
	}
	for _, file := range files {
		if err := repos.Files.MarkDeleted(ctx, userID, file.ID); err != nil {
			return backendError("failed to delete file", file.Path)
		}
	}

	var tombstone func(f *db.Folder) error
	tombstone = func(f *db.Folder) error {
		children, err := repos.Folders.GetChildren(ctx, userID, f.ID)
		if err != nil {
			return backendError("failed to list folders", f.Path)
		}
		for _, child := range children {
			if err := tombstone(child); err != nil {
				return err
			}
		}
		if err := repos.Folders.MarkDeleted(ctx, userID, f.ID); err != nil {
			return backendError("failed to delete folder", f.Path)
		}
		return nil
	}

	return tombstone(folder)
}

// resolveContentType picks the MIME type for a write: the caller's
// explicit type, then the path extension, then content sniffing.
func resolveContentType(path string, data []byte, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return mimetype.Detect(data).String()
}
