package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserRepository provides CRUD over tenant accounts.
type UserRepository struct {
	q Querier
}

const userColumns = "id, uuid, username, password_hash, created_at, last_login"

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.UUID, &u.Username, &u.PasswordHash, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

// FindByID returns the user with the given internal id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// FindByUsername returns the user with the given username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return scanUser(row)
}

// FindByUUID returns the user with the given external UUID.
func (r *UserRepository) FindByUUID(ctx context.Context, uuid string) (*User, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE uuid = ?", uuid)
	return scanUser(row)
}

// List returns all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.UUID, &u.Username, &u.PasswordHash, &u.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if lastLogin.Valid {
			u.LastLogin = &lastLogin.Time
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Create inserts a new user and fills in its generated id and timestamp.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()

	res, err := r.q.ExecContext(ctx,
		"INSERT INTO users (uuid, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.UUID, user.Username, user.PasswordHash, now)
	if err != nil {
		return fmt.Errorf("failed to create user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	return nil
}

// Update rewrites the mutable fields of the user row.
func (r *UserRepository) Update(ctx context.Context, user *User) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE users SET username = ?, password_hash = ? WHERE id = ?",
		user.Username, user.PasswordHash, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return nil
}

// RecordLogin stamps last_login with the current time.
func (r *UserRepository) RecordLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("failed to record login for user %d: %w", id, err)
	}
	return nil
}

// Delete removes the user row. Fails while folders or files still
// reference it.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return nil
}
