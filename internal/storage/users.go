package storage

import (
	"context"
	"fmt"
	"strings"

	"dotproduct/internal/core"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at`

// CreateUser inserts u. A taken username or email yields an error wrapping
// core.ErrDuplicate whose message names the column.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.NewUser) (core.User, error) {
	createdAt := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, formatTimestamp(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			field := "username"
			if strings.Contains(err.Error(), "users.email") {
				field = "email"
			}
			return core.User{}, fmt.Errorf("create user: %w: %s", core.ErrDuplicate, field)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}

	return core.User{
		ID:           id,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    parsedNow(createdAt),
	}, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, notFound(err))
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", notFound(err))
	}
	return u, nil
}

func (r *SQLiteRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
}

func (r *SQLiteRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
}

func (r *SQLiteRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return found, nil
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &createdAt); err != nil {
		return core.User{}, err
	}
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}
