package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hamyon/internal/core"
)

const transferColumns = `id, user_id, from_wallet_id, to_wallet_id, amount_cents, created_at`

func scanTransfer(row interface{ Scan(...any) error }) (core.Transfer, error) {
	var (
		t       core.Transfer
		amount  int64
		created int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.FromWalletID, &t.ToWalletID, &amount, &created); err != nil {
		return core.Transfer{}, err
	}
	t.Amount = core.Money{Cents: amount}
	t.CreatedAt = fromMillis(created)
	return t, nil
}

func (r *Repository) CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO transfers (user_id, from_wallet_id, to_wallet_id, amount_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.FromWalletID, t.ToWalletID, t.Amount.Cents, toMillis(t.CreatedAt))
	if err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: last insert id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (r *Repository) GetTransfer(ctx context.Context, userID, id int64) (core.Transfer, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transfer{}, fmt.Errorf("transfer %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transfer{}, fmt.Errorf("get transfer: %w", err)
	}
	return t, nil
}

// ListTransfers returns a page of the user's transfers, newest first.
// A non-zero walletID keeps only transfers touching that wallet.
func (r *Repository) ListTransfers(ctx context.Context, userID, walletID int64, page, limit int) ([]core.Transfer, int, error) {
	f := core.TransactionFilter{Page: page, Limit: limit}.Normalize()
	where := ` WHERE user_id = ?`
	args := []any{userID}
	if walletID != 0 {
		where += ` AND (from_wallet_id = ? OR to_wallet_id = ?)`
		args = append(args, walletID, walletID)
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, total, nil
}

func (r *Repository) DeleteTransfer(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transfers WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	return expectOne(res, "transfer", id)
}

// TransferNetByCounterpart returns, for every wallet that exchanged money with
// walletID, the net amount that wallet gained from those transfers.
func (r *Repository) TransferNetByCounterpart(ctx context.Context, walletID int64) (map[int64]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT to_wallet_id, amount_cents FROM transfers WHERE from_wallet_id = ?
		 UNION ALL
		 SELECT from_wallet_id, -amount_cents FROM transfers WHERE to_wallet_id = ?`,
		walletID, walletID)
	if err != nil {
		return nil, fmt.Errorf("transfer counterparts of wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	net := make(map[int64]int64)
	for rows.Next() {
		var id, cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, fmt.Errorf("scan transfer counterpart: %w", err)
		}
		net[id] += cents
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer counterparts: %w", err)
	}
	return net, nil
}
