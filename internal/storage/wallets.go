package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hamyon/internal/core"
)

const walletColumns = `id, user_id, name, type, currency, balance_cents, opening_cents, created_at`

func scanWallet(row interface{ Scan(...any) error }) (core.Wallet, error) {
	var (
		w                core.Wallet
		typ, currency    string
		balance, opening int64
		created          int64
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &typ, &currency, &balance, &opening, &created); err != nil {
		return core.Wallet{}, err
	}
	w.Type = core.WalletType(typ)
	w.Currency = core.Currency(currency)
	w.Balance = core.Money{Cents: balance}
	w.Opening = core.Money{Cents: opening}
	w.CreatedAt = fromMillis(created)
	return w, nil
}

// forUpdate locks selected rows on MySQL when running inside a transaction.
// SQLite already serializes writers on its single connection.
func (r *Repository) forUpdate() string {
	if r.inTx && r.driver == DriverMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// CreateWallet inserts w with its opening balance as the running balance.
func (r *Repository) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	w.Balance = w.Opening
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO wallets (user_id, name, type, currency, balance_cents, opening_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.UserID, w.Name, string(w.Type), string(w.Currency), w.Balance.Cents, w.Opening.Cents, toMillis(w.CreatedAt))
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: last insert id: %w", err)
	}
	w.ID = id
	return w, nil
}

// GetWallet returns the wallet only if it belongs to userID.
func (r *Repository) GetWallet(ctx context.Context, userID, id int64) (core.Wallet, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = ? AND user_id = ?`+r.forUpdate(), id, userID)
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, fmt.Errorf("wallet %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

func (r *Repository) ListWallets(ctx context.Context, userID int64) ([]core.Wallet, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()
	return collectWallets(rows)
}

// ListAllWallets walks every wallet of every user; used by reconciliation.
func (r *Repository) ListAllWallets(ctx context.Context) ([]core.Wallet, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all wallets: %w", err)
	}
	defer rows.Close()
	return collectWallets(rows)
}

func collectWallets(rows *sql.Rows) ([]core.Wallet, error) {
	var out []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return out, nil
}

// UpdateWallet stores name, type and currency. Balances change only through
// AdjustBalance, CorrectBalance and AbsorbIntoOpening.
func (r *Repository) UpdateWallet(ctx context.Context, w core.Wallet) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE wallets SET name = ?, type = ?, currency = ? WHERE id = ? AND user_id = ?`,
		w.Name, string(w.Type), string(w.Currency), w.ID, w.UserID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return expectOne(res, "wallet", w.ID)
}

// DeleteWallet removes the wallet together with its transactions and transfers.
func (r *Repository) DeleteWallet(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM wallets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return expectOne(res, "wallet", id)
}

// AdjustBalance adds delta (which may be negative) to the running balance.
// It fails with core.ErrInsufficientFunds instead of going below zero.
func (r *Repository) AdjustBalance(ctx context.Context, userID, walletID, delta int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + ?
		 WHERE id = ? AND user_id = ? AND balance_cents + ? >= 0`,
		delta, walletID, userID, delta)
	if err != nil {
		return fmt.Errorf("adjust wallet %d balance: %w", walletID, err)
	}
	return r.balanceUpdated(ctx, res, userID, walletID)
}

// CorrectBalance is a manual balance edit: opening and running balance move
// together so the ledger stays consistent.
func (r *Repository) CorrectBalance(ctx context.Context, userID, walletID, delta int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + ?, opening_cents = opening_cents + ?
		 WHERE id = ? AND user_id = ? AND balance_cents + ? >= 0`,
		delta, delta, walletID, userID, delta)
	if err != nil {
		return fmt.Errorf("correct wallet %d balance: %w", walletID, err)
	}
	return r.balanceUpdated(ctx, res, userID, walletID)
}

// AbsorbIntoOpening moves delta into the opening balance without touching the
// running balance. Used when ledger rows disappear with a deleted wallet.
func (r *Repository) AbsorbIntoOpening(ctx context.Context, walletID, delta int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE wallets SET opening_cents = opening_cents + ? WHERE id = ?`, delta, walletID)
	if err != nil {
		return fmt.Errorf("absorb into wallet %d opening: %w", walletID, err)
	}
	return expectOne(res, "wallet", walletID)
}

// ShiftBalance moves the running balance by delta without touching the
// opening balance; reconciliation repair only. The result may not go below
// zero.
func (r *Repository) ShiftBalance(ctx context.Context, walletID, delta int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + ?
		 WHERE id = ? AND balance_cents + ? >= 0`,
		delta, walletID, delta)
	if err != nil {
		return fmt.Errorf("shift wallet %d balance: %w", walletID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("wallet %d: rows affected: %w", walletID, err)
	}
	if n == 0 {
		return fmt.Errorf("shift wallet %d balance: %w", walletID, core.ErrNegativeBalance)
	}
	return nil
}

func (r *Repository) balanceUpdated(ctx context.Context, res sql.Result, userID, walletID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("wallet %d: rows affected: %w", walletID, err)
	}
	if n > 0 {
		return nil
	}
	// Either the wallet is gone or the guard refused the update.
	if _, err := r.GetWallet(ctx, userID, walletID); err != nil {
		return err
	}
	return fmt.Errorf("wallet %d: %w", walletID, core.ErrInsufficientFunds)
}

// WalletHasActivity reports whether any transaction or transfer references the wallet.
func (r *Repository) WalletHasActivity(ctx context.Context, walletID int64) (bool, error) {
	var n int64
	err := r.q.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM transactions WHERE wallet_id = ?)
		      + (SELECT COUNT(*) FROM transfers WHERE from_wallet_id = ? OR to_wallet_id = ?)`,
		walletID, walletID, walletID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("wallet %d activity: %w", walletID, err)
	}
	return n > 0, nil
}
