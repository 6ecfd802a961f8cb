package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FileRepository provides CRUD and content-hash queries over file rows.
//
// All path-taking operations filter by user id. Lookups return live rows
// only unless the operation says otherwise.
type FileRepository struct {
	q Querier
}

const fileColumns = "id, user_id, path, content_hash, content_type, size, created_at, updated_at, is_deleted"

func scanFile(row *sql.Row) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.UserID, &f.Path, &f.ContentHash, &f.ContentType,
		&f.Size, &f.CreatedAt, &f.UpdatedAt, &f.IsDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return &f, nil
}

func scanFiles(rows *sql.Rows) ([]*File, error) {
	defer rows.Close()

	var files []*File
	for rows.Next() {
		var f File
		err := rows.Scan(&f.ID, &f.UserID, &f.Path, &f.ContentHash, &f.ContentType,
			&f.Size, &f.CreatedAt, &f.UpdatedAt, &f.IsDeleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	return files, nil
}

// FindByID returns the file with the given id, deleted or not.
func (r *FileRepository) FindByID(ctx context.Context, id int64) (*File, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	return scanFile(row)
}

// FindByPath returns the live file at (userID, path).
func (r *FileRepository) FindByPath(ctx context.Context, userID int64, path string) (*File, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE user_id = ? AND path = ? AND is_deleted = 0",
		userID, path)
	return scanFile(row)
}

// FindDeletedByPath returns the most recent tombstoned file at
// (userID, path), used for resurrecting rows on rewrite.
func (r *FileRepository) FindDeletedByPath(ctx context.Context, userID int64, path string) (*File, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE user_id = ? AND path = ? AND is_deleted = 1 ORDER BY updated_at DESC LIMIT 1",
		userID, path)
	return scanFile(row)
}

// FindByContentHash returns all live files across tenants sharing a
// content hash, ordered by path. Administrative query; callers must gate
// access to other tenants' rows.
func (r *FileRepository) FindByContentHash(ctx context.Context, contentHash string) ([]*File, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE content_hash = ? AND is_deleted = 0 ORDER BY user_id, path",
		contentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find files by content hash: %w", err)
	}
	return scanFiles(rows)
}

// ListByFolderPath returns the files below folderPath (recursively),
// ordered by path. folderPath "/" lists every file the user owns.
func (r *FileRepository) ListByFolderPath(ctx context.Context, userID int64, folderPath string, includeDeleted bool) ([]*File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE user_id = ? AND path LIKE ? ESCAPE '\\'"
	args := []any{userID, childPattern(folderPath)}

	if !includeDeleted {
		query += " AND is_deleted = 0"
	}
	query += " ORDER BY path"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files in %s: %w", folderPath, err)
	}
	return scanFiles(rows)
}

// Create inserts a new live file row and fills in its generated id and
// timestamps. Returns ErrDuplicatePath if a live file already occupies
// (user_id, path).
func (r *FileRepository) Create(ctx context.Context, file *File) error {
	now := time.Now().UTC()

	res, err := r.q.ExecContext(ctx,
		"INSERT INTO files (user_id, path, content_hash, content_type, size, created_at, updated_at, is_deleted) VALUES (?, ?, ?, ?, ?, ?, ?, 0)",
		file.UserID, file.Path, file.ContentHash, file.ContentType, file.Size, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %s: %w", file.Path, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to create file %s: %w", file.Path, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get file id: %w", err)
	}

	file.ID = id
	file.CreatedAt = now
	file.UpdatedAt = now
	return nil
}

// Update rewrites the mutable fields of the file row and bumps updated_at.
// Path, content hash, content type and size are all rewritable; moves and
// content updates go through the same statement.
func (r *FileRepository) Update(ctx context.Context, file *File) error {
	now := time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		"UPDATE files SET path = ?, content_hash = ?, content_type = ?, size = ?, is_deleted = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		file.Path, file.ContentHash, file.ContentType, file.Size, file.IsDeleted, now, file.ID, file.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %s: %w", file.Path, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to update file %d: %w", file.ID, err)
	}

	file.UpdatedAt = now
	return nil
}

// MarkDeleted sets the tombstone on the file row.
func (r *FileRepository) MarkDeleted(ctx context.Context, userID, id int64) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		"UPDATE files SET is_deleted = 1, updated_at = ? WHERE id = ? AND user_id = ?",
		now, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark file %d deleted: %w", id, err)
	}
	return nil
}

// Restore clears the tombstone. Returns ErrDuplicatePath if a live file
// has taken the path in the meantime.
func (r *FileRepository) Restore(ctx context.Context, userID, id int64) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		"UPDATE files SET is_deleted = 0, updated_at = ? WHERE id = ? AND user_id = ?",
		now, id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %d: %w", id, ErrDuplicatePath)
		}
		return fmt.Errorf("failed to restore file %d: %w", id, err)
	}
	return nil
}

// DeletePermanently removes the file row entirely. Administrative escape
// hatch; the WebDAV surface only ever tombstones.
func (r *FileRepository) DeletePermanently(ctx context.Context, userID, id int64) error {
	_, err := r.q.ExecContext(ctx,
		"DELETE FROM files WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete file %d: %w", id, err)
	}
	return nil
}

// CountByUser returns the number of live files the user owns.
func (r *FileRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	row := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE user_id = ? AND is_deleted = 0", userID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count files for user %d: %w", userID, err)
	}
	return count, nil
}
