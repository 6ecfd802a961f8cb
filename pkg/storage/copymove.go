package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/marble/pkg/db"
)

// Copy duplicates the entry at src to dst within the tenant. File copies
// share the source's content hash; no blob bytes move. Folder copies are
// recursive. The whole copy runs in one transaction.
//
// The destination parent must already exist. With overwrite false an
// existing destination fails with ErrAlreadyExists; with overwrite true
// it is tombstoned first.
//
// Returns:
//   - bool: true if the destination had no live entry before (201 vs 204)
//   - error: Typed facade error
func (t *TenantStorage) Copy(ctx context.Context, tenantUUID, src, dst string, overwrite bool) (bool, error) {
	return t.copyOrMove(ctx, tenantUUID, src, dst, overwrite, false)
}

// Move renames the entry at src to dst within the tenant. File and folder
// rows are rewritten in place; content hashes are preserved for all
// descendants. The whole move runs in one transaction.
//
// Destination semantics match Copy.
func (t *TenantStorage) Move(ctx context.Context, tenantUUID, src, dst string, overwrite bool) (bool, error) {
	return t.copyOrMove(ctx, tenantUUID, src, dst, overwrite, true)
}

func (t *TenantStorage) copyOrMove(ctx context.Context, tenantUUID, src, dst string, overwrite, move bool) (bool, error) {
	user, err := t.resolveUser(ctx, tenantUUID)
	if err != nil {
		return false, err
	}

	if src == "/" || dst == "/" {
		return false, invalidPath(dst)
	}
	if src == dst {
		return false, invalidPath(dst)
	}
	if strings.HasPrefix(dst, src+"/") {
		return false, conflict("destination is inside source", dst)
	}

	var created bool
	err = t.database.InTx(ctx, func(repos *db.Repositories) error {
		srcFile, srcFolder, err := findEntry(ctx, repos, user.ID, src)
		if err != nil {
			return err
		}
		if srcFile == nil && srcFolder == nil {
			return notFound(src)
		}

		destParentID, err := requireParent(ctx, repos, user.ID, dst)
		if err != nil {
			return err
		}

		destFile, destFolder, err := findEntry(ctx, repos, user.ID, dst)
		if err != nil {
			return err
		}
		destExists := destFile != nil || destFolder != nil
		created = !destExists

		if destExists {
			if !overwrite {
				return alreadyExists(dst)
			}
			if destFile != nil {
				if err := repos.Files.MarkDeleted(ctx, user.ID, destFile.ID); err != nil {
					return backendError("failed to replace file", dst)
				}
			}
			if destFolder != nil {
				if err := deleteFolderTree(ctx, repos, user.ID, destFolder); err != nil {
					return err
				}
			}
		}

		if srcFile != nil {
			if move {
				return moveFile(ctx, repos, user.ID, srcFile, dst)
			}
			return copyFile(ctx, repos, user.ID, srcFile, dst)
		}
		if move {
			return moveFolderTree(ctx, repos, user.ID, srcFolder, dst, destParentID)
		}
		return copyFolderTree(ctx, repos, user.ID, srcFolder, dst, destParentID)
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

// findEntry returns the live file and folder rows at path (at most one of
// the two is non-nil).
func findEntry(ctx context.Context, repos *db.Repositories, userID int64, path string) (*db.File, *db.Folder, error) {
	file, err := repos.Files.FindByPath(ctx, userID, path)
	if err == nil {
		return file, nil, nil
	}
	if !errors.Is(err, db.ErrFileNotFound) {
		return nil, nil, backendError("failed to look up file", path)
	}

	folder, err := repos.Folders.FindByPath(ctx, userID, path)
	if err == nil {
		return nil, folder, nil
	}
	if !errors.Is(err, db.ErrFolderNotFound) {
		return nil, nil, backendError("failed to look up folder", path)
	}

	return nil, nil, nil
}

// requireParent resolves the destination's parent folder id, failing with
// ErrConflict when the parent does not exist. Returns nil for the root.
func requireParent(ctx context.Context, repos *db.Repositories, userID int64, path string) (*int64, error) {
	parent := ParentPath(path)
	if parent == "/" {
		return nil, nil
	}

	folder, err := repos.Folders.FindByPath(ctx, userID, parent)
	if err != nil {
		if errors.Is(err, db.ErrFolderNotFound) {
			return nil, conflict("destination parent does not exist", parent)
		}
		return nil, backendError("failed to look up folder", parent)
	}

	return &folder.ID, nil
}

func copyFile(ctx context.Context, repos *db.Repositories, userID int64, src *db.File, dst string) error {
	file := &db.File{
		UserID:      userID,
		Path:        dst,
		ContentHash: src.ContentHash,
		ContentType: src.ContentType,
		Size:        src.Size,
	}
	if err := repos.Files.Create(ctx, file); err != nil {
		return backendError("failed to copy file", dst)
	}
	return nil
}

func moveFile(ctx context.Context, repos *db.Repositories, userID int64, src *db.File, dst string) error {
	src.Path = dst
	if err := repos.Files.Update(ctx, src); err != nil {
		return backendError("failed to move file", dst)
	}
	return nil
}

// copyFolderTree creates folder rows mirroring the source tree below dst,
// then file rows sharing the source hashes.
func copyFolderTree(ctx context.Context, repos *db.Repositories, userID int64, src *db.Folder, dst string, destParentID *int64) error {
	var duplicate func(from *db.Folder, toPath string, parentID *int64) error
	duplicate = func(from *db.Folder, toPath string, parentID *int64) error {
		folder := &db.Folder{UserID: userID, Path: toPath, ParentID: parentID}
		if err := repos.Folders.Create(ctx, folder); err != nil {
			return backendError("failed to copy folder", toPath)
		}

		children, err := repos.Folders.GetChildren(ctx, userID, from.ID)
		if err != nil {
			return backendError("failed to list folders", from.Path)
		}
		for _, child := range children {
			if err := duplicate(child, rewritePath(child.Path, src.Path, dst), &folder.ID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := duplicate(src, dst, destParentID); err != nil {
		return err
	}

	files, err := repos.Files.ListByFolderPath(ctx, userID, src.Path, false)
	if err != nil {
		return backendError("failed to list files", src.Path)
	}
	for _, file := range files {
		if err := copyFile(ctx, repos, userID, file, rewritePath(file.Path, src.Path, dst)); err != nil {
			return err
		}
	}

	return nil
}

// moveFolderTree rewrites the source tree's paths in place. Only the top
// folder changes parent; descendants keep their parent rows, whose ids do
// not move.
func moveFolderTree(ctx context.Context, repos *db.Repositories, userID int64, src *db.Folder, dst string, destParentID *int64) error {
	srcPath := src.Path

	var descend func(folder *db.Folder) error
	descend = func(folder *db.Folder) error {
		children, err := repos.Folders.GetChildren(ctx, userID, folder.ID)
		if err != nil {
			return backendError("failed to list folders", folder.Path)
		}
		for _, child := range children {
			child.Path = rewritePath(child.Path, srcPath, dst)
			if err := repos.Folders.Update(ctx, child); err != nil {
				return backendError("failed to move folder", child.Path)
			}
			if err := descend(child); err != nil {
				return err
			}
		}
		return nil
	}

	// Descendants are listed before the top folder's path changes; the
	// parent_id walk does not depend on paths.
	files, err := repos.Files.ListByFolderPath(ctx, userID, srcPath, false)
	if err != nil {
		return backendError("failed to list files", srcPath)
	}

	if err := descend(src); err != nil {
		return err
	}

	src.Path = dst
	src.ParentID = destParentID
	if err := repos.Folders.Update(ctx, src); err != nil {
		return backendError("failed to move folder", dst)
	}

	for _, file := range files {
		file.Path = rewritePath(file.Path, srcPath, dst)
		if err := repos.Files.Update(ctx, file); err != nil {
			return backendError("failed to move file", file.Path)
		}
	}

	return nil
}

func rewritePath(path, oldPrefix, newPrefix string) string {
	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}
