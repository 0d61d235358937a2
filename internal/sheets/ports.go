package sheets

import (
	"context"
	"time"

	"hamyon/internal/core"
)

// LedgerRow is one exported ledger movement.
type LedgerRow struct {
	EventID     string
	Kind        string
	OccurredAt  time.Time
	UserID      int64
	EntityID    int64
	WalletID    int64
	ToWalletID  int64
	EntryType   string
	Category    string
	Amount      core.Money
	Currency    string
	Description string
}

// Header names the exported columns in order.
var Header = []any{
	"Date", "Kind", "User", "Entity", "Wallet", "To wallet",
	"Type", "Category", "Amount", "Currency", "Description", "Event",
}

// Values renders the row in Header order. Zero IDs become empty cells and
// user-supplied text is forced to stay text.
func (r LedgerRow) Values() []any {
	return []any{
		r.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
		r.Kind,
		r.UserID,
		r.EntityID,
		optionalID(r.WalletID),
		optionalID(r.ToWalletID),
		r.EntryType,
		PlainText(r.Category),
		r.Amount.String(),
		r.Currency,
		PlainText(r.Description),
		r.EventID,
	}
}

// PlainText prefixes s with an apostrophe when the sheet would otherwise
// parse it as a formula.
func PlainText(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func optionalID(id int64) any {
	if id == 0 {
		return ""
	}
	return id
}

// Ports for outbound adapters.
type (
	LedgerExporter interface {
		// AppendRows writes rows after the last used row and returns a
		// reference to the written range.
		AppendRows(ctx context.Context, rows []LedgerRow) (rowRef string, err error)
	}
)
