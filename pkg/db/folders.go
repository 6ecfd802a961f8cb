package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FolderRepository provides CRUD and tree queries over folder rows.
//
// All path-taking operations filter by user id. Lookups return live rows
// only unless the operation says otherwise.
type FolderRepository struct {
	q Querier
}

const folderColumns = "id, user_id, path, parent_id, created_at, updated_at, is_deleted"

func scanFolder(row *sql.Row) (*Folder, error) {
	var f Folder
	var parentID sql.NullInt64
	err := row.Scan(&f.ID, &f.UserID, &f.Path, &parentID, &f.CreatedAt, &f.UpdatedAt, &f.IsDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to scan folder: %w", err)
	}
	if parentID.Valid {
		f.ParentID = &parentID.Int64
	}
	return &f, nil
}

func scanFolders(rows *sql.Rows) ([]*Folder, error) {
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		var f Folder
		var parentID sql.NullInt64
		err := rows.Scan(&f.ID, &f.UserID, &f.Path, &parentID, &f.CreatedAt, &f.UpdatedAt, &f.IsDeleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		if parentID.Valid {
			f.ParentID = &parentID.Int64
		}
		folders = append(folders, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}

	return folders, nil
}

// FindByID returns the folder with the given id, deleted or not.
func (r *FolderRepository) FindByID(ctx context.Context, id int64) (*Folder, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE id = ?", id)
	return scanFolder(row)
}

// FindByPath returns the live folder at (userID, path).
func (r *FolderRepository) FindByPath(ctx context.Context, userID int64, path string) (*Folder, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE user_id = ? AND path = ? AND is_deleted = 0",
		userID, path)
	return scanFolder(row)
}

// List returns the folders owned by userID with the given parent, ordered
// by path. parentID nil selects top-level folders.
func (r *FolderRepository) List(ctx context.Context, userID int64, parentID *int64, includeDeleted bool) ([]*Folder, error) {
	query := "SELECT " + folderColumns + " FROM folders WHERE user_id = ?"
	args := []any{userID}

	if parentID != nil {
		query += " AND parent_id = ?"
		args = append(args, *parentID)
	} else {
		query += " AND parent_id IS NULL"
	}
	if !includeDeleted {
		query += " AND is_deleted = 0"
	}
	query += " ORDER BY path"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return scanFolders(rows)
}

// Create inserts a new live folder row and fills in its generated id and
// timestamps. Returns ErrDuplicatePath if a live folder already occupies
// (user_id, path).
func (r *FolderRepository) Create(ctx context.Context, folder *Folder) error {
	now := time.Now().UTC()

	var parentID sql.NullInt64
	if folder.ParentID != nil {
		parentID = sql.NullInt64{Int64: *folder.ParentID, Valid: true}
	}

	res, err := r.q.ExecContext(ctx,
		"INSERT INTO folders (user_id, path, parent_id, created_at, updated_at, is_deleted) VALUES (?, ?, ?, ?, ?, 0)",
		folder.UserID, folder.Path, parentID, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %s: %w", folder.Path, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to create folder %s: %w", folder.Path, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get folder id: %w", err)
	}

	folder.ID = id
	folder.CreatedAt = now
	folder.UpdatedAt = now
	return nil
}

// Update rewrites path and parent of the folder row and bumps updated_at.
func (r *FolderRepository) Update(ctx context.Context, folder *Folder) error {
	now := time.Now().UTC()

	var parentID sql.NullInt64
	if folder.ParentID != nil {
		parentID = sql.NullInt64{Int64: *folder.ParentID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx,
		"UPDATE folders SET path = ?, parent_id = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		folder.Path, parentID, now, folder.ID, folder.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %s: %w", folder.Path, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to update folder %d: %w", folder.ID, err)
	}

	folder.UpdatedAt = now
	return nil
}

// MarkDeleted sets the tombstone on the folder row.
func (r *FolderRepository) MarkDeleted(ctx context.Context, userID, id int64) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		"UPDATE folders SET is_deleted = 1, updated_at = ? WHERE id = ? AND user_id = ?",
		now, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark folder %d deleted: %w", id, err)
	}
	return nil
}

// Restore clears the tombstone. Returns ErrDuplicatePath if a live folder
// has taken the path in the meantime.
func (r *FolderRepository) Restore(ctx context.Context, userID, id int64) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		"UPDATE folders SET is_deleted = 0, updated_at = ? WHERE id = ? AND user_id = ?",
		now, id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %d: %w", id, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to restore folder %d: %w", id, err)
	}
	return nil
}

// HasChildren reports whether any live folder or file exists below the
// folder's path.
func (r *FolderRepository) HasChildren(ctx context.Context, userID, id int64) (bool, error) {
	folder, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}

	var count int
	row := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM folders WHERE user_id = ? AND parent_id = ? AND is_deleted = 0",
		userID, id)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count child folders: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	row = r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE user_id = ? AND path LIKE ? ESCAPE '\' AND is_deleted = 0`,
		userID, childPattern(folder.Path))
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count descendant files: %w", err)
	}

	return count > 0, nil
}

// GetChildren returns the live immediate subfolders of the folder, ordered
// by path.
func (r *FolderRepository) GetChildren(ctx context.Context, userID, id int64) ([]*Folder, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE user_id = ? AND parent_id = ? AND is_deleted = 0 ORDER BY path",
		userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get child folders: %w", err)
	}
	return scanFolders(rows)
}

// DeletePermanently removes the folder row entirely. Administrative
// escape hatch; the WebDAV surface only ever tombstones.
func (r *FolderRepository) DeletePermanently(ctx context.Context, userID, id int64) error {
	_, err := r.q.ExecContext(ctx,
		"DELETE FROM folders WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete folder %d: %w", id, err)
	}
	return nil
}

// childPattern builds the LIKE pattern matching all descendants of a
// folder path. Wildcard characters in the path itself are escaped with
// backslash; queries using the pattern must carry ESCAPE '\'.
func childPattern(folderPath string) string {
	if folderPath == "/" {
		return "/%"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(folderPath)
	return escaped + "/%"
}
