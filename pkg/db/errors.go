package db

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by the repositories. Callers match with
// errors.Is; the facade translates them to its own error codes.
var (
	// ErrUserNotFound indicates no user row matched the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrFolderNotFound indicates no live folder row matched the lookup.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFileNotFound indicates no live file row matched the lookup.
	ErrFileNotFound = errors.New("file not found")

	// ErrDuplicatePath indicates a live row already exists at (user_id, path).
	ErrDuplicatePath = errors.New("path already exists")
)

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure, which the live-row partial indexes raise on duplicate paths.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
