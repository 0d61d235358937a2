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

const categoryColumns = `id, user_id, name, type, created_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c       core.Category
		typ     string
		created int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &created); err != nil {
		return core.Category{}, err
	}
	c.Type = core.EntryType(typ)
	c.CreatedAt = fromMillis(created)
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Name = strings.TrimSpace(c.Name)
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.Name, string(c.Type), toMillis(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, core.ErrConflict)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: last insert id: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// GetOrCreateCategory finds the user's category by name and type, creating it
// when missing.
func (r *Repository) GetOrCreateCategory(ctx context.Context, userID int64, name string, typ core.EntryType) (core.Category, bool, error) {
	name = strings.TrimSpace(name)
	find := func() (core.Category, error) {
		row := r.q.QueryRowContext(ctx,
			`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ? AND type = ?`,
			userID, name, string(typ))
		return scanCategory(row)
	}

	c, err := find()
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, fmt.Errorf("find category %q: %w", name, err)
	}

	c, err = r.CreateCategory(ctx, core.Category{UserID: userID, Name: name, Type: typ})
	if errors.Is(err, core.ErrConflict) {
		// lost a race with a concurrent insert
		c, err = find()
		if err != nil {
			return core.Category{}, false, fmt.Errorf("find category %q: %w", name, err)
		}
		return c, false, nil
	}
	if err != nil {
		return core.Category{}, false, err
	}
	return c, true, nil
}

// ListCategories returns the user's categories, optionally of one type only.
func (r *Repository) ListCategories(ctx context.Context, userID int64, typ core.EntryType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY type, name`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ? WHERE id = ? AND user_id = ?`,
		strings.TrimSpace(c.Name), string(c.Type), c.ID, c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update category %q: %w", c.Name, core.ErrConflict)
		}
		return fmt.Errorf("update category: %w", err)
	}
	return expectOne(res, "category", c.ID)
}

// DeleteCategory removes the category; its transactions keep existing
// without one.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res, "category", id)
}

func (r *Repository) CategoryInUse(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("category %d usage: %w", id, err)
	}
	return n > 0, nil
}
