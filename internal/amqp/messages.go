package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened in the ledger.
type EventKind string

const (
	UserRegistered     EventKind = "user.registered"
	UserDeleted        EventKind = "user.deleted"
	WalletCreated      EventKind = "wallet.created"
	WalletUpdated      EventKind = "wallet.updated"
	WalletDeleted      EventKind = "wallet.deleted"
	TransactionCreated EventKind = "transaction.created"
	TransactionUpdated EventKind = "transaction.updated"
	TransactionDeleted EventKind = "transaction.deleted"
	TransferCreated    EventKind = "transfer.created"
	TransferDeleted    EventKind = "transfer.deleted"
)

func (k EventKind) Valid() bool {
	switch k {
	case UserRegistered, UserDeleted, WalletCreated, WalletUpdated, WalletDeleted,
		TransactionCreated, TransactionUpdated, TransactionDeleted,
		TransferCreated, TransferDeleted:
		return true
	}
	return false
}

// LedgerEvent is published after a ledger write commits. It carries a
// snapshot of the row so consumers never need to read the database.
type LedgerEvent struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	UserID      int64     `json:"user_id"`
	EntityID    int64     `json:"entity_id"`
	WalletID    int64     `json:"wallet_id,omitempty"`
	ToWalletID  int64     `json:"to_wallet_id,omitempty"`
	Category    string    `json:"category,omitempty"`
	EntryType   string    `json:"entry_type,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Description string    `json:"description,omitempty"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewLedgerEvent stamps a fresh event ID and the current time.
func NewLedgerEvent(kind EventKind, userID, entityID int64) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and sanity-checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode ledger event: %w", err)
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return nil, fmt.Errorf("ledger event id %q: %w", e.ID, err)
	}
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("ledger event kind %q: %w", e.Kind, errUnknownKind)
	}
	return &e, nil
}

var errUnknownKind = errors.New("unknown kind")
