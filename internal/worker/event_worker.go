package worker

import (
	"context"
	"fmt"

	"hamyon/internal/amqp"
	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/notify"
	"hamyon/internal/sheets"
)

// EventWorker reacts to ledger events: money movements are exported to the
// spreadsheet ledger and new users get a welcome mail. Either side may be
// disabled by passing nil.
type EventWorker struct {
	exporter sheets.LedgerExporter
	mailer   notify.Mailer
	logger   *log.Logger
}

func NewEventWorker(exporter sheets.LedgerExporter, mailer notify.Mailer, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		exporter: exporter,
		mailer:   mailer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerEvent processes a single event from AMQP. A returned error
// asks the consumer to redeliver.
func (w *EventWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventID, ev.ID,
		log.FieldEventKind, ev.Kind,
		log.FieldUserID, ev.UserID)

	switch ev.Kind {
	case amqp.UserRegistered:
		return w.welcome(ctx, ev)
	case amqp.TransactionCreated, amqp.TransactionUpdated, amqp.TransactionDeleted,
		amqp.TransferCreated, amqp.TransferDeleted:
		return w.export(ctx, ev)
	default:
		w.logger.DebugContext(ctx, "Ignoring ledger event", log.FieldEventKind, ev.Kind)
		return nil
	}
}

func (w *EventWorker) welcome(ctx context.Context, ev *amqp.LedgerEvent) error {
	if w.mailer == nil {
		w.logger.DebugContext(ctx, "No mailer configured, skipping welcome mail", log.FieldUserID, ev.UserID)
		return nil
	}
	if ev.Email == "" {
		w.logger.WarnContext(ctx, "Registration event without email", log.FieldEventID, ev.ID)
		return nil
	}
	if err := w.mailer.Send(ctx, notify.WelcomeMessage(ev.Username, ev.Email)); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}
	return nil
}

func (w *EventWorker) export(ctx context.Context, ev *amqp.LedgerEvent) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No exporter configured, skipping export", log.FieldEventID, ev.ID)
		return nil
	}
	ref, err := w.exporter.AppendRows(ctx, []sheets.LedgerRow{RowFromEvent(ev)})
	if err != nil {
		return fmt.Errorf("export ledger row: %w", err)
	}
	w.logger.InfoContext(ctx, "Exported ledger event",
		log.FieldEventID, ev.ID,
		log.FieldAmountCents, ev.AmountCents,
		"sheets_ref", ref)
	return nil
}

// RowFromEvent flattens an event into a spreadsheet row.
func RowFromEvent(ev *amqp.LedgerEvent) sheets.LedgerRow {
	return sheets.LedgerRow{
		EventID:     ev.ID,
		Kind:        string(ev.Kind),
		OccurredAt:  ev.OccurredAt,
		UserID:      ev.UserID,
		EntityID:    ev.EntityID,
		WalletID:    ev.WalletID,
		ToWalletID:  ev.ToWalletID,
		EntryType:   ev.EntryType,
		Category:    ev.Category,
		Amount:      core.Money{Cents: ev.AmountCents},
		Currency:    ev.Currency,
		Description: ev.Description,
	}
}
