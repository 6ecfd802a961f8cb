package db

import (
	"path"
	"time"
)

// User is a tenant account. The numeric id is the foreign-key target for
// folders and files; the UUID is the stable external identifier handed out
// by authentication.
type User struct {
	ID           int64
	UUID         string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Folder is a directory entry in a tenant's namespace. Paths are absolute,
// forward-slash separated, with no trailing slash except the root "/".
type Folder struct {
	ID        int64
	UserID    int64
	Path      string
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
}

// Name returns the last path segment.
func (f *Folder) Name() string {
	return path.Base(f.Path)
}

// File is a file entry pointing at an immutable blob by digest. Several
// rows may share a content hash; the blob carries no ownership.
type File struct {
	ID          int64
	UserID      int64
	Path        string
	ContentHash string
	ContentType string
	Size        int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
}

// Name returns the last path segment.
func (f *File) Name() string {
	return path.Base(f.Path)
}

// FolderPath returns the path of the containing folder ("/" for top-level
// files).
func (f *File) FolderPath() string {
	dir := path.Dir(f.Path)
	if dir == "." {
		return "/"
	}
	return dir
}
