package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	WalletCash   WalletType = "cash"
	WalletUzcard WalletType = "uzcard"
	WalletVisa   WalletType = "visa"

	CurrencyUZS Currency = "UZS"
	CurrencyUSD Currency = "USD"

	Income  EntryType = "income"
	Outcome EntryType = "outcome"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	minPasswordLength    = 8
)

type (
	WalletType string
	Currency   string
	EntryType  string

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		PhoneNumber  string
		Address      string
		AvatarURL    string
		CreatedAt    time.Time
	}

	Wallet struct {
		ID       int64
		UserID   int64
		Name     string
		Type     WalletType
		Currency Currency
		// Balance is the running balance. Opening is the part of it not
		// explained by ledger rows (initial amount plus manual corrections).
		Balance   Money
		Opening   Money
		CreatedAt time.Time
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Type      EntryType
		CreatedAt time.Time
	}

	Transaction struct {
		ID         int64
		UserID     int64
		WalletID   int64
		CategoryID *int64 // nil once the category was deleted
		// CategoryName is filled on reads.
		CategoryName string
		Type         EntryType
		Amount       Money
		Description  string
		CreatedAt    time.Time
	}

	Transfer struct {
		ID           int64
		UserID       int64
		FromWalletID int64
		ToWalletID   int64
		Amount       Money
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 100 characters)")
	ErrInvalidWalletType  = errors.New("invalid wallet type")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidEntryType   = errors.New("invalid type: must be income or outcome")
	ErrVisaUZS            = errors.New("visa wallets cannot hold UZS")
	ErrNegativeBalance    = errors.New("balance cannot be negative")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrCurrencyMismatch   = errors.New("wallets have different currencies")
	ErrSameWallet         = errors.New("source and destination wallet must differ")
	ErrCategoryRequired   = errors.New("select a category or enter a new one")
	ErrCategoryType       = errors.New("category type does not match transaction type")
	ErrWalletInUse        = errors.New("wallet currency cannot change once it has activity")
	ErrCategoryInUse      = errors.New("category type cannot change once it is used")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ValidationError ties a validation failure to the input field that caused it.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (t WalletType) Valid() bool {
	switch t {
	case WalletCash, WalletUzcard, WalletVisa:
		return true
	}
	return false
}

func (c Currency) Valid() bool {
	return c == CurrencyUZS || c == CurrencyUSD
}

func (t EntryType) Valid() bool {
	return t == Income || t == Outcome
}

// Sign is +1 for income and -1 for outcome.
func (t EntryType) Sign() int64 {
	if t == Outcome {
		return -1
	}
	return 1
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed is the delta this transaction applies to its wallet balance.
func (t Transaction) Signed() int64 {
	return t.Type.Sign() * t.Amount.Cents
}

// HasCategory reports whether the transaction still points to a category.
func (t Transaction) HasCategory() bool {
	return t.CategoryID != nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// CheckWalletCurrency rejects type/currency combinations that cannot exist.
func CheckWalletCurrency(t WalletType, c Currency) error {
	if t == WalletVisa && c == CurrencyUZS {
		return ErrVisaUZS
	}
	return nil
}

func (w Wallet) Validate() error {
	if err := validateName(w.Name); err != nil {
		return Invalid("name", err)
	}
	if !w.Type.Valid() {
		return Invalid("type", ErrInvalidWalletType)
	}
	if !w.Currency.Valid() {
		return Invalid("currency", ErrInvalidCurrency)
	}
	if err := CheckWalletCurrency(w.Type, w.Currency); err != nil {
		return Invalid("currency", err)
	}
	if w.Balance.Cents < 0 {
		return Invalid("balance", ErrNegativeBalance)
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return Invalid("name", err)
	}
	if !c.Type.Valid() {
		return Invalid("type", ErrInvalidEntryType)
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return Invalid("type", ErrInvalidEntryType)
	}
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLength {
		return Invalid("description", errors.New("description too long (max 1000 characters)"))
	}
	return nil
}

func (t Transfer) Validate() error {
	if t.FromWalletID == t.ToWalletID {
		return Invalid("to_wallet", ErrSameWallet)
	}
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	return nil
}

// Validate checks the profile fields of a user; the password is checked separately.
func (u User) Validate() error {
	name := strings.TrimSpace(u.Username)
	if name == "" || utf8.RuneCountInString(name) > 150 || strings.ContainsAny(name, " \t\r\n") {
		return Invalid("username", ErrInvalidUsername)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || strings.ContainsAny(u.Email, "<> ") {
		return Invalid("email", ErrInvalidEmail)
	}
	if utf8.RuneCountInString(u.PhoneNumber) > 13 {
		return Invalid("phone_number", errors.New("phone number too long (max 13 characters)"))
	}
	if utf8.RuneCountInString(u.Address) > 255 {
		return Invalid("address", errors.New("address too long (max 255 characters)"))
	}
	return nil
}

// ValidatePassword checks a new password and its confirmation.
func ValidatePassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return Invalid("password1", ErrWeakPassword)
	}
	if password != confirm {
		return Invalid("password2", ErrPasswordMismatch)
	}
	return nil
}
