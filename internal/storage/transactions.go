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

const transactionSelect = `SELECT t.id, t.user_id, t.wallet_id, t.category_id, COALESCE(c.name, ''),
	t.type, t.amount_cents, t.description, t.created_at
	FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t          core.Transaction
		categoryID sql.NullInt64
		typ        string
		amount     int64
		created    int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &categoryID, &t.CategoryName, &typ, &amount, &t.Description, &created); err != nil {
		return core.Transaction{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	t.Type = core.EntryType(typ)
	t.Amount = core.Money{Cents: amount}
	t.CreatedAt = fromMillis(created)
	return t, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO transactions (user_id, wallet_id, category_id, type, amount_cents, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.WalletID, nullableID(t.CategoryID), string(t.Type), t.Amount.Cents, t.Description, toMillis(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: last insert id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.q.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction rewrites every mutable column; created_at is kept.
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE transactions SET wallet_id = ?, category_id = ?, type = ?, amount_cents = ?, description = ?
		 WHERE id = ? AND user_id = ?`,
		t.WalletID, nullableID(t.CategoryID), string(t.Type), t.Amount.Cents, t.Description, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOne(res, "transaction", t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, "transaction", id)
}

func transactionWhere(userID int64, f core.TransactionFilter) (string, []any) {
	conds := []string{"t.user_id = ?"}
	args := []any{userID}
	if f.WalletID != 0 {
		conds = append(conds, "t.wallet_id = ?")
		args = append(args, f.WalletID)
	}
	if f.CategoryID != 0 {
		conds = append(conds, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		conds = append(conds, "t.created_at >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.created_at < ?")
		args = append(args, toMillis(f.To))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTransactions returns one page of the user's transactions, newest
// first, and the total number of matching rows.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, int, error) {
	f = f.Normalize()
	where, args := transactionWhere(userID, f)

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.q.QueryContext(ctx,
		transactionSelect+where+` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, total, nil
}

// RecentTransactions returns the user's n newest transactions.
func (r *Repository) RecentTransactions(ctx context.Context, userID int64, n int) ([]core.Transaction, error) {
	out, _, err := r.ListTransactions(ctx, userID, core.TransactionFilter{Limit: n})
	return out, err
}
