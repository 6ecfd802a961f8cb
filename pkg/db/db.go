// Package db implements the Marble metadata store on SQLite.
//
// The package exposes one repository per aggregate (users, folders, files)
// over a shared relational schema. Every operation that takes a path is
// scoped to a user id; tenant isolation is enforced here, in SQL, not in
// the callers.
//
// Multi-row changes that must be atomic (folder subtree deletes, moves)
// run through InTx, which rebinds the repositories to a transaction.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marmos91/marble/pkg/db/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories are written against it so the same code serves both
// autocommit and transactional use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories bundles the three metadata repositories bound to a single
// Querier. The facade receives one of these per transaction.
type Repositories struct {
	Users   *UserRepository
	Folders *FolderRepository
	Files   *FileRepository
}

func newRepositories(q Querier) *Repositories {
	return &Repositories{
		Users:   &UserRepository{q: q},
		Folders: &FolderRepository{q: q},
		Files:   &FileRepository{q: q},
	}
}

// Database owns the SQLite connection and the autocommit repositories.
//
// Thread Safety:
// *sql.DB is safe for concurrent use; so are the repositories.
type Database struct {
	db *sql.DB
	*Repositories
}

// Open opens (or creates) the SQLite database at path and applies any
// pending schema migrations. path may be ":memory:" for tests.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: SQLite database file path or ":memory:"
//
// Returns:
//   - *Database: Ready-to-use metadata store
//   - error: Connection, PRAGMA, or migration failure
func Open(ctx context.Context, path string) (*Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	conn, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{
		db:           conn,
		Repositories: newRepositories(conn),
	}, nil
}

// OpenConnection opens and configures a SQLite connection without running
// migrations. Exported for tools and tests that manage the schema
// themselves.
func OpenConnection(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Each pooled connection to ":memory:" would see its own empty
	// database, so in-memory databases are pinned to one connection.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	return conn, nil
}

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (d *Database) InTx(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DB exposes the underlying connection for migration status checks.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}
