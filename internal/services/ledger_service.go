package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hamyon/internal/amqp"
	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/storage"
)

// EventPublisher sends ledger events after a write has committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error
}

// WalletInput carries the editable wallet fields. A nil Balance leaves the
// balance alone on update and means zero on create.
type WalletInput struct {
	Name     string
	Type     core.WalletType
	Currency core.Currency
	Balance  *core.Money
}

// TransactionInput describes an income or outcome. Either CategoryID or
// NewCategoryName must be set; a new name wins and is created on demand.
type TransactionInput struct {
	WalletID        int64
	CategoryID      int64
	NewCategoryName string
	Type            core.EntryType
	Amount          core.Money
	Description     string
}

type TransferInput struct {
	FromWalletID int64
	ToWalletID   int64
	Amount       core.Money
}

// LedgerService owns every operation that moves money: wallet balances,
// transactions and transfers change together inside one database
// transaction.
type LedgerService struct {
	repo      *storage.Repository
	publisher EventPublisher
	logger    *log.Logger
	entries   *log.StructuredLogger
	onChange  []func(userID int64)
}

func NewLedgerService(repo *storage.Repository, publisher EventPublisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		entries:   log.NewStructuredLogger(logger),
	}
}

// OnChange registers fn to run after any committed write for a user.
func (s *LedgerService) OnChange(fn func(userID int64)) {
	s.onChange = append(s.onChange, fn)
}

func (s *LedgerService) changed(ctx context.Context, userID int64, ev amqp.LedgerEvent) {
	for _, fn := range s.onChange {
		fn(userID)
	}
	publishEvent(ctx, s.publisher, s.logger, ev)
}

// publishEvent never fails the caller: the write is already committed.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *log.Logger, ev amqp.LedgerEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishLedgerEvent(ctx, ev); err != nil {
		logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldEventID, ev.ID,
			log.FieldEventKind, ev.Kind,
			log.FieldUserID, ev.UserID,
			log.FieldError, err)
	}
}

// ---- wallets ----

func (s *LedgerService) CreateWallet(ctx context.Context, userID int64, in WalletInput) (core.Wallet, error) {
	w := core.Wallet{
		UserID:   userID,
		Name:     strings.TrimSpace(in.Name),
		Type:     in.Type,
		Currency: in.Currency,
	}
	if in.Balance != nil {
		w.Opening = *in.Balance
		w.Balance = *in.Balance
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}

	w, err := s.repo.CreateWallet(ctx, w)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}

	s.logger.InfoContext(ctx, "Wallet created",
		log.FieldUserID, userID,
		log.FieldWalletID, w.ID,
		log.FieldCurrency, w.Currency)

	s.changed(ctx, userID, walletEvent(amqp.WalletCreated, w))
	return w, nil
}

func (s *LedgerService) GetWallet(ctx context.Context, userID, id int64) (core.Wallet, error) {
	return s.repo.GetWallet(ctx, userID, id)
}

func (s *LedgerService) ListWallets(ctx context.Context, userID int64) ([]core.Wallet, error) {
	return s.repo.ListWallets(ctx, userID)
}

// UpdateWallet edits name, type, currency and optionally the balance. The
// currency is frozen once money has moved through the wallet; a balance
// edit is booked as a correction of the opening balance.
func (s *LedgerService) UpdateWallet(ctx context.Context, userID, id int64, in WalletInput) (core.Wallet, error) {
	var updated core.Wallet
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		w, err := tx.GetWallet(ctx, userID, id)
		if err != nil {
			return err
		}

		next := w
		next.Name = strings.TrimSpace(in.Name)
		next.Type = in.Type
		next.Currency = in.Currency
		if in.Balance != nil {
			next.Balance = *in.Balance
		}
		if err := next.Validate(); err != nil {
			return err
		}

		if next.Currency != w.Currency {
			active, err := tx.WalletHasActivity(ctx, id)
			if err != nil {
				return err
			}
			if active {
				return core.Invalid("currency", core.ErrWalletInUse)
			}
		}

		if err := tx.UpdateWallet(ctx, next); err != nil {
			return err
		}
		if delta := next.Balance.Cents - w.Balance.Cents; delta != 0 {
			if err := tx.CorrectBalance(ctx, userID, id, delta); err != nil {
				return err
			}
		}

		updated, err = tx.GetWallet(ctx, userID, id)
		return err
	})
	if err != nil {
		return core.Wallet{}, fmt.Errorf("update wallet: %w", err)
	}

	s.changed(ctx, userID, walletEvent(amqp.WalletUpdated, updated))
	return updated, nil
}

// DeleteWallet removes a wallet with its transactions and transfers. Wallets
// on the other side of those transfers keep their balance: what they gained
// or lost through the vanished transfers moves into their opening balance.
func (s *LedgerService) DeleteWallet(ctx context.Context, userID, id int64) error {
	var deleted core.Wallet
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		w, err := tx.GetWallet(ctx, userID, id)
		if err != nil {
			return err
		}
		deleted = w

		net, err := tx.TransferNetByCounterpart(ctx, id)
		if err != nil {
			return err
		}
		for counterpart, gained := range net {
			if gained == 0 {
				continue
			}
			if err := tx.AbsorbIntoOpening(ctx, counterpart, gained); err != nil {
				return err
			}
		}
		return tx.DeleteWallet(ctx, userID, id)
	})
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}

	s.logger.InfoContext(ctx, "Wallet deleted", log.FieldUserID, userID, log.FieldWalletID, id)
	s.changed(ctx, userID, walletEvent(amqp.WalletDeleted, deleted))
	return nil
}

func walletEvent(kind amqp.EventKind, w core.Wallet) amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(kind, w.UserID, w.ID)
	ev.WalletID = w.ID
	ev.AmountCents = w.Balance.Cents
	ev.Currency = string(w.Currency)
	ev.Description = w.Name
	return ev
}

// ---- categories ----

func (s *LedgerService) CreateCategory(ctx context.Context, userID int64, name string, typ core.EntryType) (core.Category, error) {
	c := core.Category{UserID: userID, Name: strings.TrimSpace(name), Type: typ}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c, err := s.repo.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.notify(userID)
	return c, nil
}

func (s *LedgerService) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return s.repo.GetCategory(ctx, userID, id)
}

func (s *LedgerService) ListCategories(ctx context.Context, userID int64, typ core.EntryType) ([]core.Category, error) {
	if typ != "" && !typ.Valid() {
		return nil, core.Invalid("type", core.ErrInvalidEntryType)
	}
	return s.repo.ListCategories(ctx, userID, typ)
}

// UpdateCategory renames a category. Its type may only change while no
// transaction uses it.
func (s *LedgerService) UpdateCategory(ctx context.Context, userID, id int64, name string, typ core.EntryType) (core.Category, error) {
	var updated core.Category
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		c, err := tx.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		next := c
		next.Name = strings.TrimSpace(name)
		next.Type = typ
		if err := next.Validate(); err != nil {
			return err
		}
		if next.Type != c.Type {
			used, err := tx.CategoryInUse(ctx, id)
			if err != nil {
				return err
			}
			if used {
				return core.Invalid("type", core.ErrCategoryInUse)
			}
		}
		if err := tx.UpdateCategory(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.notify(userID)
	return updated, nil
}

// DeleteCategory removes the category; its transactions stay, uncategorized.
func (s *LedgerService) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteCategory(ctx, userID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.notify(userID)
	return nil
}

func (s *LedgerService) notify(userID int64) {
	for _, fn := range s.onChange {
		fn(userID)
	}
}

// ---- transactions ----

func (s *LedgerService) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, userID, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, core.Invalid("type", core.ErrInvalidEntryType)
	}
	if f.WalletID != 0 {
		if _, err := s.repo.GetWallet(ctx, userID, f.WalletID); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.ListTransactions(ctx, userID, f)
}

// CreateTransaction records an income or outcome and moves the wallet
// balance in the same database transaction.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID int64, in TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		UserID:      userID,
		WalletID:    in.WalletID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var wallet core.Wallet
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		w, err := usableWallet(ctx, tx, userID, in.WalletID, "wallet_id")
		if err != nil {
			return err
		}
		wallet = w

		c, err := resolveCategory(ctx, tx, userID, in)
		if err != nil {
			return err
		}
		t.CategoryID = &c.ID
		t.CategoryName = c.Name

		if err := tx.AdjustBalance(ctx, userID, w.ID, t.Signed()); err != nil {
			return fundsError(err, w)
		}
		created, err := tx.CreateTransaction(ctx, t)
		if err != nil {
			return err
		}
		created.CategoryName = c.Name
		t = created
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.entries.LogEntry(ctx, "Transaction recorded", userID, wallet.ID, string(t.Type), t.Amount.Cents, string(wallet.Currency))
	s.changed(ctx, userID, transactionEvent(amqp.TransactionCreated, t, wallet.Currency))
	return t, nil
}

// UpdateTransaction replaces a transaction, undoing its old effect and
// applying the new one, possibly on another wallet. An uncategorized
// transaction can be edited without picking a category.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id int64, in TransactionInput) (core.Transaction, error) {
	next := core.Transaction{
		ID:          id,
		UserID:      userID,
		WalletID:    in.WalletID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
	}
	if err := next.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var wallet core.Wallet
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		old, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		next.CreatedAt = old.CreatedAt

		w, err := usableWallet(ctx, tx, userID, in.WalletID, "wallet_id")
		if err != nil {
			return err
		}
		wallet = w

		// a transaction whose category was deleted may stay uncategorized
		if !(old.CategoryID == nil && in.CategoryID == 0 && strings.TrimSpace(in.NewCategoryName) == "") {
			c, err := resolveCategory(ctx, tx, userID, in)
			if err != nil {
				return err
			}
			next.CategoryID = &c.ID
			next.CategoryName = c.Name
		}

		if old.WalletID == w.ID {
			if err := tx.AdjustBalance(ctx, userID, w.ID, next.Signed()-old.Signed()); err != nil {
				return fundsError(err, w)
			}
		} else {
			if err := tx.AdjustBalance(ctx, userID, old.WalletID, -old.Signed()); err != nil {
				if errors.Is(err, core.ErrInsufficientFunds) {
					return fmt.Errorf("moving the transaction would overdraw wallet %d: %w", old.WalletID, err)
				}
				return err
			}
			if err := tx.AdjustBalance(ctx, userID, w.ID, next.Signed()); err != nil {
				return fundsError(err, w)
			}
		}
		return tx.UpdateTransaction(ctx, next)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.changed(ctx, userID, transactionEvent(amqp.TransactionUpdated, next, wallet.Currency))
	return next, nil
}

// DeleteTransaction removes a transaction and reverts its balance effect.
// Deleting an income that has already been spent is refused.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	var (
		old    core.Transaction
		wallet core.Wallet
	)
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		t, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		old = t
		w, err := tx.GetWallet(ctx, userID, t.WalletID)
		if err != nil {
			return err
		}
		wallet = w
		if err := tx.AdjustBalance(ctx, userID, t.WalletID, -t.Signed()); err != nil {
			return fundsError(err, w)
		}
		return tx.DeleteTransaction(ctx, userID, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.changed(ctx, userID, transactionEvent(amqp.TransactionDeleted, old, wallet.Currency))
	return nil
}

// usableWallet loads a wallet that may take part in a new ledger row.
func usableWallet(ctx context.Context, tx *storage.Repository, userID, walletID int64, field string) (core.Wallet, error) {
	if walletID == 0 {
		return core.Wallet{}, core.Invalid(field, errors.New("wallet is required"))
	}
	w, err := tx.GetWallet(ctx, userID, walletID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Wallet{}, core.Invalid(field, err)
	}
	if err != nil {
		return core.Wallet{}, err
	}
	if err := core.CheckWalletCurrency(w.Type, w.Currency); err != nil {
		return core.Wallet{}, core.Invalid(field, err)
	}
	return w, nil
}

// resolveCategory picks the transaction's category: a new name is looked up
// or created with the transaction's type, otherwise the given ID must be one
// of the user's categories of the same type.
func resolveCategory(ctx context.Context, tx *storage.Repository, userID int64, in TransactionInput) (core.Category, error) {
	if name := strings.TrimSpace(in.NewCategoryName); name != "" {
		candidate := core.Category{UserID: userID, Name: name, Type: in.Type}
		if err := candidate.Validate(); err != nil {
			return core.Category{}, core.Invalid("new_category_name", errors.Unwrap(err))
		}
		c, _, err := tx.GetOrCreateCategory(ctx, userID, name, in.Type)
		return c, err
	}
	if in.CategoryID == 0 {
		return core.Category{}, core.Invalid("category", core.ErrCategoryRequired)
	}
	c, err := tx.GetCategory(ctx, userID, in.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, core.Invalid("category", err)
	}
	if err != nil {
		return core.Category{}, err
	}
	if c.Type != in.Type {
		return core.Category{}, core.Invalid("category", core.ErrCategoryType)
	}
	return c, nil
}

// fundsError adds the available amount to insufficient-funds errors.
func fundsError(err error, w core.Wallet) error {
	if errors.Is(err, core.ErrInsufficientFunds) {
		return fmt.Errorf("%w: available %s", core.ErrInsufficientFunds, core.FormatMoney(w.Balance, w.Currency))
	}
	return err
}

func transactionEvent(kind amqp.EventKind, t core.Transaction, currency core.Currency) amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(kind, t.UserID, t.ID)
	ev.WalletID = t.WalletID
	ev.Category = t.CategoryName
	ev.EntryType = string(t.Type)
	ev.AmountCents = t.Amount.Cents
	ev.Currency = string(currency)
	ev.Description = t.Description
	if !t.CreatedAt.IsZero() {
		ev.OccurredAt = t.CreatedAt
	}
	return ev
}

// ---- transfers ----

func (s *LedgerService) GetTransfer(ctx context.Context, userID, id int64) (core.Transfer, error) {
	return s.repo.GetTransfer(ctx, userID, id)
}

func (s *LedgerService) ListTransfers(ctx context.Context, userID, walletID int64, page, limit int) ([]core.Transfer, int, error) {
	return s.repo.ListTransfers(ctx, userID, walletID, page, limit)
}

// CreateTransfer moves money between two wallets of the same user and
// currency. Debit, credit and the transfer row commit together.
func (s *LedgerService) CreateTransfer(ctx context.Context, userID int64, in TransferInput) (core.Transfer, error) {
	t := core.Transfer{
		UserID:       userID,
		FromWalletID: in.FromWalletID,
		ToWalletID:   in.ToWalletID,
		Amount:       in.Amount,
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}

	var from core.Wallet
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		var to core.Wallet
		var err error
		// lock in id order so concurrent opposite transfers cannot deadlock
		if t.FromWalletID < t.ToWalletID {
			if from, err = usableWallet(ctx, tx, userID, t.FromWalletID, "from_wallet"); err != nil {
				return err
			}
			if to, err = usableWallet(ctx, tx, userID, t.ToWalletID, "to_wallet"); err != nil {
				return err
			}
		} else {
			if to, err = usableWallet(ctx, tx, userID, t.ToWalletID, "to_wallet"); err != nil {
				return err
			}
			if from, err = usableWallet(ctx, tx, userID, t.FromWalletID, "from_wallet"); err != nil {
				return err
			}
		}
		if from.Currency != to.Currency {
			return core.Invalid("to_wallet", core.ErrCurrencyMismatch)
		}

		if err := tx.AdjustBalance(ctx, userID, from.ID, -t.Amount.Cents); err != nil {
			return fundsError(err, from)
		}
		if err := tx.AdjustBalance(ctx, userID, to.ID, t.Amount.Cents); err != nil {
			return err
		}
		created, err := tx.CreateTransfer(ctx, t)
		if err != nil {
			return err
		}
		t = created
		return nil
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}

	s.logger.InfoContext(ctx, "Transfer recorded",
		log.FieldUserID, userID,
		log.FieldTransferID, t.ID,
		log.FieldWalletID, t.FromWalletID,
		log.FieldToWalletID, t.ToWalletID,
		log.FieldAmountCents, t.Amount.Cents,
		log.FieldCurrency, from.Currency)
	s.changed(ctx, userID, transferEvent(amqp.TransferCreated, t, from.Currency))
	return t, nil
}

// DeleteTransfer reverses a transfer. It is refused when the receiving
// wallet no longer holds the amount.
func (s *LedgerService) DeleteTransfer(ctx context.Context, userID, id int64) error {
	var (
		t        core.Transfer
		currency core.Currency
	)
	err := s.repo.WithTx(ctx, func(tx *storage.Repository) error {
		var err error
		if t, err = tx.GetTransfer(ctx, userID, id); err != nil {
			return err
		}
		to, err := tx.GetWallet(ctx, userID, t.ToWalletID)
		if err != nil {
			return err
		}
		currency = to.Currency
		if err := tx.AdjustBalance(ctx, userID, t.ToWalletID, -t.Amount.Cents); err != nil {
			return fundsError(err, to)
		}
		if err := tx.AdjustBalance(ctx, userID, t.FromWalletID, t.Amount.Cents); err != nil {
			return err
		}
		return tx.DeleteTransfer(ctx, userID, id)
	})
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}

	s.changed(ctx, userID, transferEvent(amqp.TransferDeleted, t, currency))
	return nil
}

func transferEvent(kind amqp.EventKind, t core.Transfer, currency core.Currency) amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(kind, t.UserID, t.ID)
	ev.WalletID = t.FromWalletID
	ev.ToWalletID = t.ToWalletID
	ev.AmountCents = t.Amount.Cents
	ev.Currency = string(currency)
	if kind == amqp.TransferCreated {
		ev.OccurredAt = t.CreatedAt
	} else {
		ev.OccurredAt = time.Now().UTC()
	}
	return ev
}
