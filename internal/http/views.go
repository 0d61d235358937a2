package http

import (
	"sort"
	"time"

	"hamyon/internal/core"
)

// JSON shapes of the API. Amounts are decimal strings with two places.

type userView struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Address     string    `json:"address"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func newUserView(u core.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

type tokenView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

type walletView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	Balance   string    `json:"balance"`
	Display   string    `json:"balance_display"`
	CreatedAt time.Time `json:"created_at"`
}

func newWalletView(w core.Wallet) walletView {
	return walletView{
		ID:        w.ID,
		Name:      w.Name,
		Type:      string(w.Type),
		Currency:  string(w.Currency),
		Balance:   w.Balance.String(),
		Display:   core.FormatMoney(w.Balance, w.Currency),
		CreatedAt: w.CreatedAt,
	}
}

func newWalletViews(ws []core.Wallet) []walletView {
	out := make([]walletView, 0, len(ws))
	for _, w := range ws {
		out = append(out, newWalletView(w))
	}
	return out
}

type categoryView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Type: string(c.Type), CreatedAt: c.CreatedAt}
}

type transactionView struct {
	ID           int64     `json:"id"`
	WalletID     int64     `json:"wallet_id"`
	CategoryID   *int64    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:           t.ID,
		WalletID:     t.WalletID,
		CategoryID:   t.CategoryID,
		CategoryName: t.CategoryName,
		Type:         string(t.Type),
		Amount:       t.Amount.String(),
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}

func newTransactionViews(ts []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTransactionView(t))
	}
	return out
}

type transferView struct {
	ID           int64     `json:"id"`
	FromWalletID int64     `json:"from_wallet_id"`
	ToWalletID   int64     `json:"to_wallet_id"`
	Amount       string    `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTransferView(t core.Transfer) transferView {
	return transferView{
		ID:           t.ID,
		FromWalletID: t.FromWalletID,
		ToWalletID:   t.ToWalletID,
		Amount:       t.Amount.String(),
		CreatedAt:    t.CreatedAt,
	}
}

type totalView struct {
	Currency string `json:"currency"`
	Income   string `json:"income"`
	Outcome  string `json:"outcome"`
	Net      string `json:"net"`
}

func newTotalViews(ts []core.CurrencyTotal) []totalView {
	out := make([]totalView, 0, len(ts))
	for _, t := range ts {
		out = append(out, totalView{
			Currency: string(t.Currency),
			Income:   t.Income.String(),
			Outcome:  t.Outcome.String(),
			Net:      t.Net().String(),
		})
	}
	return out
}

type balanceView struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Display  string `json:"balance_display"`
}

// newBalanceViews orders balances by currency code.
func newBalanceViews(m map[core.Currency]core.Money) []balanceView {
	out := make([]balanceView, 0, len(m))
	for c, b := range m {
		out = append(out, balanceView{Currency: string(c), Balance: b.String(), Display: core.FormatMoney(b, c)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

type dashboardView struct {
	Wallets  []walletView      `json:"wallets"`
	Balances []balanceView     `json:"balances"`
	Month    []totalView       `json:"month"`
	Recent   []transactionView `json:"recent"`
}

func newDashboardView(d core.Dashboard) dashboardView {
	return dashboardView{
		Wallets:  newWalletViews(d.Wallets),
		Balances: newBalanceViews(d.Balances),
		Month:    newTotalViews(d.Month),
		Recent:   newTransactionViews(d.Recent),
	}
}

type categoryAmountView struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	Count      int    `json:"count"`
}

type statisticsView struct {
	Period     string               `json:"period"`
	From       *time.Time           `json:"from,omitempty"`
	To         *time.Time           `json:"to,omitempty"`
	Totals     []totalView          `json:"totals"`
	ByCategory []categoryAmountView `json:"by_category"`
	Count      int                  `json:"count"`
}

func newStatisticsView(s core.Statistics) statisticsView {
	v := statisticsView{
		Period:     string(s.Period),
		Totals:     newTotalViews(s.Totals),
		ByCategory: make([]categoryAmountView, 0, len(s.ByCategory)),
		Count:      s.Count,
	}
	if !s.From.IsZero() {
		from := s.From
		v.From = &from
	}
	if !s.To.IsZero() {
		to := s.To
		v.To = &to
	}
	for _, c := range s.ByCategory {
		v.ByCategory = append(v.ByCategory, categoryAmountView{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Type:       string(c.Type),
			Currency:   string(c.Currency),
			Amount:     c.Amount.String(),
			Count:      c.Count,
		})
	}
	return v
}
