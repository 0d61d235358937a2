package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hamyon/internal/core"
)

const dayMillis = 24 * 60 * 60 * 1000

func rangeConds(alias string, from, to time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, alias+".created_at >= ?")
		args = append(args, toMillis(from))
	}
	if !to.IsZero() {
		conds = append(conds, alias+".created_at < ?")
		args = append(args, toMillis(to))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conds, " AND "), args
}

// TotalsByCurrency sums the user's income and outcome per wallet currency in
// [from, to). Zero times leave that side open.
func (r *Repository) TotalsByCurrency(ctx context.Context, userID int64, from, to time.Time) ([]core.CurrencyTotal, error) {
	cond, condArgs := rangeConds("t", from, to)
	rows, err := r.q.QueryContext(ctx,
		`SELECT w.currency, t.type, COALESCE(SUM(t.amount_cents), 0)
		 FROM transactions t JOIN wallets w ON w.id = t.wallet_id
		 WHERE t.user_id = ?`+cond+`
		 GROUP BY w.currency, t.type`,
		append([]any{userID}, condArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("totals by currency: %w", err)
	}
	defer rows.Close()

	byCurrency := make(map[core.Currency]*core.CurrencyTotal)
	for rows.Next() {
		var (
			currency, typ string
			cents         int64
		)
		if err := rows.Scan(&currency, &typ, &cents); err != nil {
			return nil, fmt.Errorf("scan currency total: %w", err)
		}
		c := core.Currency(currency)
		tot, ok := byCurrency[c]
		if !ok {
			tot = &core.CurrencyTotal{Currency: c}
			byCurrency[c] = tot
		}
		if core.EntryType(typ) == core.Income {
			tot.Income = core.Money{Cents: cents}
		} else {
			tot.Outcome = core.Money{Cents: cents}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency totals: %w", err)
	}

	out := make([]core.CurrencyTotal, 0, len(byCurrency))
	for _, t := range byCurrency {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// TotalsByCategory groups the user's transactions of typ (both types when
// empty) by category and currency, largest first.
func (r *Repository) TotalsByCategory(ctx context.Context, userID int64, typ core.EntryType, from, to time.Time) ([]core.CategoryAmount, error) {
	cond, condArgs := rangeConds("t", from, to)
	args := []any{userID}
	if typ != "" {
		cond += " AND t.type = ?"
		condArgs = append(condArgs, string(typ))
	}
	args = append(args, condArgs...)

	rows, err := r.q.QueryContext(ctx,
		`SELECT COALESCE(t.category_id, 0), COALESCE(c.name, ''), t.type, w.currency,
		        COALESCE(SUM(t.amount_cents), 0), COUNT(*)
		 FROM transactions t
		 JOIN wallets w ON w.id = t.wallet_id
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ?`+cond+`
		 GROUP BY COALESCE(t.category_id, 0), COALESCE(c.name, ''), t.type, w.currency
		 ORDER BY SUM(t.amount_cents) DESC, COALESCE(c.name, '')`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			ca            core.CategoryAmount
			typ, currency string
			cents         int64
		)
		if err := rows.Scan(&ca.CategoryID, &ca.Name, &typ, &currency, &cents, &ca.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ca.Type = core.EntryType(typ)
		ca.Currency = core.Currency(currency)
		ca.Amount = core.Money{Cents: cents}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// BalancesByCurrency sums the running balance of every wallet per currency.
func (r *Repository) BalancesByCurrency(ctx context.Context, userID int64) (map[core.Currency]core.Money, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT currency, COALESCE(SUM(balance_cents), 0) FROM wallets WHERE user_id = ? GROUP BY currency`, userID)
	if err != nil {
		return nil, fmt.Errorf("balances by currency: %w", err)
	}
	defer rows.Close()

	out := make(map[core.Currency]core.Money)
	for rows.Next() {
		var (
			currency string
			cents    int64
		)
		if err := rows.Scan(&currency, &cents); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out[core.Currency(currency)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

// WalletLedger collects the sums that make up a wallet's balance. Inside a
// transaction on MySQL the wallet row stays locked until commit.
func (r *Repository) WalletLedger(ctx context.Context, walletID int64) (core.WalletLedger, error) {
	var l core.WalletLedger
	var balance, opening, income, outcome, in, out int64
	err := r.q.QueryRowContext(ctx,
		`SELECT w.id, w.user_id, w.balance_cents, w.opening_cents,
		   (SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE wallet_id = w.id AND type = 'income'),
		   (SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE wallet_id = w.id AND type = 'outcome'),
		   (SELECT COALESCE(SUM(amount_cents), 0) FROM transfers WHERE to_wallet_id = w.id),
		   (SELECT COALESCE(SUM(amount_cents), 0) FROM transfers WHERE from_wallet_id = w.id)
		 FROM wallets w WHERE w.id = ?`+r.forUpdate(), walletID).
		Scan(&l.WalletID, &l.UserID, &balance, &opening, &income, &outcome, &in, &out)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WalletLedger{}, fmt.Errorf("wallet %d: %w", walletID, core.ErrNotFound)
	}
	if err != nil {
		return core.WalletLedger{}, fmt.Errorf("wallet %d ledger: %w", walletID, err)
	}
	l.Balance = core.Money{Cents: balance}
	l.Opening = core.Money{Cents: opening}
	l.Income = core.Money{Cents: income}
	l.Outcome = core.Money{Cents: outcome}
	l.TransfersIn = core.Money{Cents: in}
	l.TransfersOut = core.Money{Cents: out}
	return l, nil
}

// dayBucket is integer days since the epoch (UTC) for a millisecond column.
func (r *Repository) dayBucket(col string) string {
	if r.driver == DriverMySQL {
		return col + " DIV " + fmt.Sprint(dayMillis)
	}
	return col + " / " + fmt.Sprint(dayMillis)
}

// DailyTotals returns per-day income and outcome sums for wallets in currency.
func (r *Repository) DailyTotals(ctx context.Context, userID int64, currency core.Currency, from, to time.Time) ([]core.DailyAmount, error) {
	cond, condArgs := rangeConds("t", from, to)
	bucket := r.dayBucket("t.created_at")
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+bucket+` AS day, t.type, COALESCE(SUM(t.amount_cents), 0)
		 FROM transactions t JOIN wallets w ON w.id = t.wallet_id
		 WHERE t.user_id = ? AND w.currency = ?`+cond+`
		 GROUP BY `+bucket+`, t.type
		 ORDER BY day`,
		append([]any{userID, string(currency)}, condArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var out []core.DailyAmount
	for rows.Next() {
		var (
			day   int64
			typ   string
			cents int64
		)
		if err := rows.Scan(&day, &typ, &cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		out = append(out, core.DailyAmount{
			Day:    fromMillis(day * dayMillis),
			Type:   core.EntryType(typ),
			Amount: core.Money{Cents: cents},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily totals: %w", err)
	}
	return out, nil
}
