package core

import (
	"errors"
	"time"
)

// Period selects a reporting window relative to now.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

var ErrInvalidPeriod = errors.New("invalid period: must be day, week, month, year or all")

// ParsePeriod maps a query value to a Period; empty means all time.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodAll, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return p, nil
	}
	return "", Invalid("period", ErrInvalidPeriod)
}

// Range returns the half-open interval [from, to) covered by the period.
// Both are zero for PeriodAll. The week window is today plus the seven days
// before it, eight calendar days in all.
func (p Period) Range(now time.Time) (from, to time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	switch p {
	case PeriodDay:
		return today, today.AddDate(0, 0, 1)
	case PeriodWeek:
		return today.AddDate(0, 0, -7), today.AddDate(0, 0, 1)
	case PeriodMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case PeriodYear:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	}
	return time.Time{}, time.Time{}
}

// CategoryAmount represents an amount aggregated by category name.
// Uncategorized transactions are reported with an empty name and ID 0.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Type       EntryType
	Currency   Currency
	Amount     Money
	Count      int
}

// CurrencyTotal sums income and outcome for one currency.
type CurrencyTotal struct {
	Currency Currency
	Income   Money
	Outcome  Money
}

// Net is income minus outcome.
func (t CurrencyTotal) Net() Money {
	return t.Income.Sub(t.Outcome)
}

// DailyAmount is one point of a per-day series.
type DailyAmount struct {
	Day    time.Time
	Type   EntryType
	Amount Money
}

// WalletLedger breaks a wallet balance down into its ledger components.
type WalletLedger struct {
	WalletID     int64
	UserID       int64
	Balance      Money
	Opening      Money
	Income       Money
	Outcome      Money
	TransfersIn  Money
	TransfersOut Money
}

// Expected is the balance the ledger rows account for.
func (l WalletLedger) Expected() Money {
	return l.Opening.Add(l.Income).Sub(l.Outcome).Add(l.TransfersIn).Sub(l.TransfersOut)
}

// Drift is how far the stored balance is from Expected.
func (l WalletLedger) Drift() Money {
	return l.Balance.Sub(l.Expected())
}

// Dashboard is the landing overview of a user's money.
type Dashboard struct {
	Wallets  []Wallet
	Balances map[Currency]Money
	// Month holds this calendar month's income and outcome per currency.
	Month  []CurrencyTotal
	Recent []Transaction
}

// Statistics aggregates transactions over a period.
type Statistics struct {
	Period     Period
	From, To   time.Time
	Totals     []CurrencyTotal
	ByCategory []CategoryAmount
	Count      int
}

// TransactionFilter narrows transaction listings. Zero values mean no filter.
type TransactionFilter struct {
	WalletID   int64
	CategoryID int64
	Type       EntryType
	From, To   time.Time
	Page       int
	Limit      int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Normalize clamps paging to sane values.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

// Offset is the row offset for the current page.
func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
