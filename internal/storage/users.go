package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hamyon/internal/core"
)

const userColumns = `id, username, email, password_hash, phone_number, address, avatar_url, created_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.PhoneNumber, &u.Address, &u.AvatarURL, &created); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// CreateUser inserts u and returns it with ID and CreatedAt set.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, phone_number, address, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, strings.ToLower(u.Email), u.PasswordHash, u.PhoneNumber, u.Address, u.AvatarURL, toMillis(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("create user %q: %w", u.Username, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}
	u.ID = id
	u.Email = strings.ToLower(u.Email)
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// UpdateUserProfile stores the editable profile fields of u.
func (r *Repository) UpdateUserProfile(ctx context.Context, u core.User) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, phone_number = ?, address = ?, avatar_url = ? WHERE id = ?`,
		u.Username, strings.ToLower(u.Email), u.PhoneNumber, u.Address, u.AvatarURL, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %d: %w", u.ID, core.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res, "user", u.ID)
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(res, "user", userID)
}

// DeleteUser removes the user; wallets, categories, transactions and
// transfers go with it through foreign keys.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res, "user", id)
}

// expectOne turns "no rows affected" into core.ErrNotFound.
func expectOne(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, core.ErrNotFound)
	}
	return nil
}
