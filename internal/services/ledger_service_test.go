package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"hamyon/internal/amqp"
	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, ev amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) kinds() []amqp.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventKind, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "hamyon.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func newLedger(t *testing.T) (*LedgerService, *storage.Repository, *fakePublisher) {
	t.Helper()
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	return NewLedgerService(repo, pub, testLogger()), repo, pub
}

func seedUser(t *testing.T, repo *storage.Repository, name string) int64 {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func money(c int64) core.Money { return core.Money{Cents: c} }

func moneyPtr(c int64) *core.Money {
	m := money(c)
	return &m
}

func mustWallet(t *testing.T, s *LedgerService, userID int64, typ core.WalletType, cur core.Currency, balance int64) core.Wallet {
	t.Helper()
	w, err := s.CreateWallet(context.Background(), userID, WalletInput{
		Name:     string(typ) + " " + string(cur),
		Type:     typ,
		Currency: cur,
		Balance:  moneyPtr(balance),
	})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func balanceOf(t *testing.T, s *LedgerService, userID, walletID int64) int64 {
	t.Helper()
	w, err := s.GetWallet(context.Background(), userID, walletID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	return w.Balance.Cents
}

func assertConsistent(t *testing.T, repo *storage.Repository, walletID int64) {
	t.Helper()
	l, err := repo.WalletLedger(context.Background(), walletID)
	if err != nil {
		t.Fatalf("wallet ledger: %v", err)
	}
	if l.Drift().Cents != 0 {
		t.Fatalf("wallet %d drifted by %d (ledger %+v)", walletID, l.Drift().Cents, l)
	}
}

func TestCreateWalletRejectsVisaUZS(t *testing.T) {
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")

	_, err := s.CreateWallet(context.Background(), uid, WalletInput{
		Name: "card", Type: core.WalletVisa, Currency: core.CurrencyUZS,
	})
	if !errors.Is(err, core.ErrVisaUZS) {
		t.Fatalf("expected ErrVisaUZS, got %v", err)
	}
	if !core.IsValidation(err) {
		t.Fatalf("expected a validation error, got %T", err)
	}
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()
	s, repo, pub := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	w := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 10000)

	var changedFor []int64
	s.OnChange(func(userID int64) { changedFor = append(changedFor, userID) })

	income, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID:        w.ID,
		NewCategoryName: "Salary",
		Type:            core.Income,
		Amount:          money(5000),
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if income.CategoryName != "Salary" || !income.HasCategory() {
		t.Fatalf("expected new category to be attached, got %+v", income)
	}
	if got := balanceOf(t, s, uid, w.ID); got != 15000 {
		t.Fatalf("balance after income = %d, want 15000", got)
	}

	food, err := s.CreateCategory(ctx, uid, "Food", core.Outcome)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, CategoryID: food.ID, Type: core.Outcome, Amount: money(4000),
	}); err != nil {
		t.Fatalf("create outcome: %v", err)
	}
	if got := balanceOf(t, s, uid, w.ID); got != 11000 {
		t.Fatalf("balance after outcome = %d, want 11000", got)
	}

	_, err = s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, CategoryID: food.ID, Type: core.Outcome, Amount: money(11001),
	})
	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := balanceOf(t, s, uid, w.ID); got != 11000 {
		t.Fatalf("balance changed by a refused outcome: %d", got)
	}
	_, total, err := s.ListTransactions(ctx, uid, core.TransactionFilter{WalletID: w.ID})
	if err != nil || total != 2 {
		t.Fatalf("expected 2 transactions after refused outcome, got %d (%v)", total, err)
	}

	assertConsistent(t, repo, w.ID)

	kinds := pub.kinds()
	if len(kinds) != 3 || kinds[1] != amqp.TransactionCreated || kinds[2] != amqp.TransactionCreated {
		t.Fatalf("unexpected events %v", kinds)
	}
	if len(changedFor) == 0 || changedFor[0] != uid {
		t.Fatalf("change hook not called for user: %v", changedFor)
	}
}

func TestCreateTransactionCategoryRules(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	other := seedUser(t, repo, "bekzod")
	w := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 10000)

	salary, _ := s.CreateCategory(ctx, uid, "Salary", core.Income)
	foreign, _ := s.CreateCategory(ctx, other, "Food", core.Outcome)

	tests := []struct {
		name    string
		in      TransactionInput
		wantErr error
	}{
		{
			name:    "no category",
			in:      TransactionInput{WalletID: w.ID, Type: core.Outcome, Amount: money(100)},
			wantErr: core.ErrCategoryRequired,
		},
		{
			name:    "type mismatch",
			in:      TransactionInput{WalletID: w.ID, CategoryID: salary.ID, Type: core.Outcome, Amount: money(100)},
			wantErr: core.ErrCategoryType,
		},
		{
			name:    "category of another user",
			in:      TransactionInput{WalletID: w.ID, CategoryID: foreign.ID, Type: core.Outcome, Amount: money(100)},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "zero amount",
			in:      TransactionInput{WalletID: w.ID, CategoryID: salary.ID, Type: core.Income},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "bad type",
			in:      TransactionInput{WalletID: w.ID, CategoryID: salary.ID, Type: "gift", Amount: money(100)},
			wantErr: core.ErrInvalidEntryType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTransaction(ctx, uid, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !core.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	// new name wins over an id and reuses an existing category of that type
	t1, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, CategoryID: salary.ID, NewCategoryName: "Salary", Type: core.Income, Amount: money(100),
	})
	if err != nil {
		t.Fatalf("create with new name: %v", err)
	}
	if *t1.CategoryID != salary.ID {
		t.Fatalf("expected existing category %d to be reused, got %d", salary.ID, *t1.CategoryID)
	}
}

func TestTransactionOnForeignWallet(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	other := seedUser(t, repo, "bekzod")
	w := mustWallet(t, s, other, core.WalletCash, core.CurrencyUZS, 10000)

	_, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, NewCategoryName: "Gift", Type: core.Income, Amount: money(100),
	})
	if !errors.Is(err, core.ErrNotFound) || !core.IsValidation(err) {
		t.Fatalf("expected wallet validation error, got %v", err)
	}
	if got := balanceOf(t, s, other, w.ID); got != 10000 {
		t.Fatalf("foreign wallet balance changed: %d", got)
	}
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	a := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 10000)
	b := mustWallet(t, s, uid, core.WalletUzcard, core.CurrencyUZS, 0)

	tx, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: a.ID, NewCategoryName: "Food", Type: core.Outcome, Amount: money(3000),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// same wallet, larger outcome: only the difference must be available
	if _, err := s.UpdateTransaction(ctx, uid, tx.ID, TransactionInput{
		WalletID: a.ID, NewCategoryName: "Food", Type: core.Outcome, Amount: money(10000),
	}); err != nil {
		t.Fatalf("grow outcome: %v", err)
	}
	if got := balanceOf(t, s, uid, a.ID); got != 0 {
		t.Fatalf("balance a = %d, want 0", got)
	}

	// move to wallet b as an income
	updated, err := s.UpdateTransaction(ctx, uid, tx.ID, TransactionInput{
		WalletID: b.ID, NewCategoryName: "Gift", Type: core.Income, Amount: money(2500), Description: "moved",
	})
	if err != nil {
		t.Fatalf("move transaction: %v", err)
	}
	if updated.WalletID != b.ID || updated.CategoryName != "Gift" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if got := balanceOf(t, s, uid, a.ID); got != 10000 {
		t.Fatalf("balance a = %d, want 10000", got)
	}
	if got := balanceOf(t, s, uid, b.ID); got != 2500 {
		t.Fatalf("balance b = %d, want 2500", got)
	}

	// turning it into an outcome larger than b holds fails and changes nothing
	_, err = s.UpdateTransaction(ctx, uid, tx.ID, TransactionInput{
		WalletID: b.ID, NewCategoryName: "Food", Type: core.Outcome, Amount: money(1),
	})
	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := balanceOf(t, s, uid, b.ID); got != 2500 {
		t.Fatalf("balance b changed by failed update: %d", got)
	}

	assertConsistent(t, repo, a.ID)
	assertConsistent(t, repo, b.ID)
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	w := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUSD, 0)

	income, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, NewCategoryName: "Salary", Type: core.Income, Amount: money(5000),
	})
	if err != nil {
		t.Fatalf("income: %v", err)
	}
	outcome, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, NewCategoryName: "Rent", Type: core.Outcome, Amount: money(4000),
	})
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}

	if err := s.DeleteTransaction(ctx, uid, income.ID); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("deleting spent income: expected ErrInsufficientFunds, got %v", err)
	}

	if err := s.DeleteTransaction(ctx, uid, outcome.ID); err != nil {
		t.Fatalf("delete outcome: %v", err)
	}
	if got := balanceOf(t, s, uid, w.ID); got != 5000 {
		t.Fatalf("balance = %d, want 5000", got)
	}
	if err := s.DeleteTransaction(ctx, uid, income.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}
	if got := balanceOf(t, s, uid, w.ID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	if err := s.DeleteTransaction(ctx, uid, income.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	assertConsistent(t, repo, w.ID)
}

func TestTransfers(t *testing.T) {
	ctx := context.Background()
	s, repo, pub := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	cash := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUSD, 10000)
	visa := mustWallet(t, s, uid, core.WalletVisa, core.CurrencyUSD, 0)
	som := mustWallet(t, s, uid, core.WalletUzcard, core.CurrencyUZS, 50000)

	tests := []struct {
		name    string
		in      TransferInput
		wantErr error
	}{
		{"same wallet", TransferInput{FromWalletID: cash.ID, ToWalletID: cash.ID, Amount: money(1)}, core.ErrSameWallet},
		{"currency mismatch", TransferInput{FromWalletID: cash.ID, ToWalletID: som.ID, Amount: money(1)}, core.ErrCurrencyMismatch},
		{"insufficient", TransferInput{FromWalletID: cash.ID, ToWalletID: visa.ID, Amount: money(10001)}, core.ErrInsufficientFunds},
		{"zero amount", TransferInput{FromWalletID: cash.ID, ToWalletID: visa.ID}, core.ErrInvalidAmount},
		{"unknown wallet", TransferInput{FromWalletID: cash.ID, ToWalletID: 9999, Amount: money(1)}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateTransfer(ctx, uid, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if balanceOf(t, s, uid, cash.ID) != 10000 || balanceOf(t, s, uid, visa.ID) != 0 {
		t.Fatal("refused transfers moved money")
	}

	tr, err := s.CreateTransfer(ctx, uid, TransferInput{FromWalletID: cash.ID, ToWalletID: visa.ID, Amount: money(7000)})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if balanceOf(t, s, uid, cash.ID) != 3000 || balanceOf(t, s, uid, visa.ID) != 7000 {
		t.Fatal("transfer did not move money")
	}

	// the receiver spends part of it; reversing is then refused
	if _, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: visa.ID, NewCategoryName: "Travel", Type: core.Outcome, Amount: money(6000),
	}); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if err := s.DeleteTransfer(ctx, uid, tr.ID); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds on reversal, got %v", err)
	}

	second, err := s.CreateTransfer(ctx, uid, TransferInput{FromWalletID: cash.ID, ToWalletID: visa.ID, Amount: money(1000)})
	if err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	if err := s.DeleteTransfer(ctx, uid, second.ID); err != nil {
		t.Fatalf("delete transfer: %v", err)
	}
	if balanceOf(t, s, uid, cash.ID) != 3000 || balanceOf(t, s, uid, visa.ID) != 1000 {
		t.Fatal("reversal did not restore balances")
	}

	list, total, err := s.ListTransfers(ctx, uid, visa.ID, 1, 10)
	if err != nil || total != 1 || len(list) != 1 || list[0].ID != tr.ID {
		t.Fatalf("list transfers: %v total=%d err=%v", list, total, err)
	}

	for _, id := range []int64{cash.ID, visa.ID, som.ID} {
		assertConsistent(t, repo, id)
	}

	var sawCreated, sawDeleted bool
	for _, k := range pub.kinds() {
		sawCreated = sawCreated || k == amqp.TransferCreated
		sawDeleted = sawDeleted || k == amqp.TransferDeleted
	}
	if !sawCreated || !sawDeleted {
		t.Fatalf("missing transfer events in %v", pub.kinds())
	}
}

func TestDeleteWalletKeepsCounterpartBalance(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	a := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 10000)
	b := mustWallet(t, s, uid, core.WalletUzcard, core.CurrencyUZS, 5000)

	if _, err := s.CreateTransfer(ctx, uid, TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: money(4000)}); err != nil {
		t.Fatalf("transfer a->b: %v", err)
	}
	if _, err := s.CreateTransfer(ctx, uid, TransferInput{FromWalletID: b.ID, ToWalletID: a.ID, Amount: money(1000)}); err != nil {
		t.Fatalf("transfer b->a: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: a.ID, NewCategoryName: "Food", Type: core.Outcome, Amount: money(500),
	}); err != nil {
		t.Fatalf("outcome: %v", err)
	}

	if err := s.DeleteWallet(ctx, uid, a.ID); err != nil {
		t.Fatalf("delete wallet: %v", err)
	}
	if _, err := s.GetWallet(ctx, uid, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("wallet still present: %v", err)
	}
	if got := balanceOf(t, s, uid, b.ID); got != 8000 {
		t.Fatalf("counterpart balance = %d, want 8000", got)
	}
	assertConsistent(t, repo, b.ID)

	_, total, err := s.ListTransfers(ctx, uid, 0, 1, 10)
	if err != nil || total != 0 {
		t.Fatalf("transfers survived wallet deletion: %d %v", total, err)
	}
}

func TestUpdateWallet(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	w := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 1000)

	// no activity yet: currency may still change
	w, err := s.UpdateWallet(ctx, uid, w.ID, WalletInput{Name: "Pocket", Type: core.WalletCash, Currency: core.CurrencyUSD})
	if err != nil {
		t.Fatalf("change currency: %v", err)
	}
	if w.Name != "Pocket" || w.Currency != core.CurrencyUSD || w.Balance.Cents != 1000 {
		t.Fatalf("unexpected wallet %+v", w)
	}

	if _, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, NewCategoryName: "Gift", Type: core.Income, Amount: money(500),
	}); err != nil {
		t.Fatalf("income: %v", err)
	}

	_, err = s.UpdateWallet(ctx, uid, w.ID, WalletInput{Name: "Pocket", Type: core.WalletCash, Currency: core.CurrencyUZS})
	if !errors.Is(err, core.ErrWalletInUse) {
		t.Fatalf("expected ErrWalletInUse, got %v", err)
	}

	_, err = s.UpdateWallet(ctx, uid, w.ID, WalletInput{Name: "Pocket", Type: core.WalletVisa, Currency: core.CurrencyUZS})
	if !errors.Is(err, core.ErrVisaUZS) {
		t.Fatalf("expected ErrVisaUZS, got %v", err)
	}

	// manual balance edit stays consistent with the ledger
	w, err = s.UpdateWallet(ctx, uid, w.ID, WalletInput{Name: "Pocket", Type: core.WalletVisa, Currency: core.CurrencyUSD, Balance: moneyPtr(200)})
	if err != nil {
		t.Fatalf("edit balance: %v", err)
	}
	if w.Balance.Cents != 200 || w.Opening.Cents != -300 {
		t.Fatalf("balance/opening = %d/%d, want 200/-300", w.Balance.Cents, w.Opening.Cents)
	}
	assertConsistent(t, repo, w.ID)

	if _, err := s.UpdateWallet(ctx, uid, w.ID, WalletInput{Name: "Pocket", Type: core.WalletVisa, Currency: core.CurrencyUSD, Balance: moneyPtr(-1)}); !errors.Is(err, core.ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	w := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 1000)

	food, err := s.CreateCategory(ctx, uid, "  Food ", core.Outcome)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if food.Name != "Food" {
		t.Fatalf("name not trimmed: %q", food.Name)
	}
	if _, err := s.CreateCategory(ctx, uid, "Food", core.Outcome); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.CreateCategory(ctx, uid, "", core.Outcome); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	// unused: type may change
	if _, err := s.UpdateCategory(ctx, uid, food.ID, "Food", core.Income); err != nil {
		t.Fatalf("change unused type: %v", err)
	}
	food, _ = s.UpdateCategory(ctx, uid, food.ID, "Food", core.Outcome)

	tx, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, CategoryID: food.ID, Type: core.Outcome, Amount: money(100),
	})
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if _, err := s.UpdateCategory(ctx, uid, food.ID, "Food", core.Income); !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if _, err := s.UpdateCategory(ctx, uid, food.ID, "Groceries", core.Outcome); err != nil {
		t.Fatalf("rename used category: %v", err)
	}

	list, err := s.ListCategories(ctx, uid, core.Outcome)
	if err != nil || len(list) != 1 || list[0].Name != "Groceries" {
		t.Fatalf("list outcome categories: %+v %v", list, err)
	}
	if _, err := s.ListCategories(ctx, uid, "bogus"); !errors.Is(err, core.ErrInvalidEntryType) {
		t.Fatalf("expected ErrInvalidEntryType, got %v", err)
	}

	if err := s.DeleteCategory(ctx, uid, food.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.GetTransaction(ctx, uid, tx.ID)
	if err != nil {
		t.Fatalf("transaction lost with its category: %v", err)
	}
	if got.HasCategory() {
		t.Fatalf("expected category to be cleared, got %v", *got.CategoryID)
	}
}

func TestUpdateUncategorizedTransaction(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newLedger(t)
	uid := seedUser(t, repo, "aziz")
	w := mustWallet(t, s, uid, core.WalletCash, core.CurrencyUZS, 1000)

	tx, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, NewCategoryName: "Food", Type: core.Outcome, Amount: money(100),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteCategory(ctx, uid, *tx.CategoryID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	got, err := s.UpdateTransaction(ctx, uid, tx.ID, TransactionInput{
		WalletID: w.ID, Type: core.Outcome, Amount: money(150), Description: "lunch",
	})
	if err != nil {
		t.Fatalf("update uncategorized: %v", err)
	}
	if got.HasCategory() {
		t.Fatalf("expected no category, got %v", *got.CategoryID)
	}
	if got.Description != "lunch" || got.Amount.Cents != money(150).Cents {
		t.Fatalf("update not applied: %+v", got)
	}
	assertConsistent(t, repo, w.ID)

	// a categorized transaction still needs one
	cat, err := s.CreateTransaction(ctx, uid, TransactionInput{
		WalletID: w.ID, NewCategoryName: "Taxi", Type: core.Outcome, Amount: money(10),
	})
	if err != nil {
		t.Fatalf("create categorized: %v", err)
	}
	_, err = s.UpdateTransaction(ctx, uid, cat.ID, TransactionInput{
		WalletID: w.ID, Type: core.Outcome, Amount: money(10),
	})
	if !errors.Is(err, core.ErrCategoryRequired) {
		t.Fatalf("expected ErrCategoryRequired, got %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pub := &fakePublisher{err: errors.New("broker down")}
	s := NewLedgerService(repo, pub, testLogger())
	uid := seedUser(t, repo, "aziz")

	if _, err := s.CreateWallet(ctx, uid, WalletInput{Name: "cash", Type: core.WalletCash, Currency: core.CurrencyUZS}); err != nil {
		t.Fatalf("write failed because of publisher: %v", err)
	}

	noPub := NewLedgerService(repo, nil, testLogger())
	if _, err := noPub.CreateWallet(ctx, uid, WalletInput{Name: "cash 2", Type: core.WalletCash, Currency: core.CurrencyUZS}); err != nil {
		t.Fatalf("write without publisher: %v", err)
	}
}
