package backend

import (
	"context"

	"hamyon/internal/amqp"
	"hamyon/internal/sheets"
	"hamyon/internal/storage"
)

// CleanupFunc releases whatever a factory opened.
type CleanupFunc func() error

// BackendResult holds the opened store and the optional broker client.
// Broker is nil when AMQP is not configured or the broker was unreachable.
type BackendResult struct {
	Repo    *storage.Repository
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Factory opens the persistence and messaging backends for a process.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateExporter returns the Google Sheets exporter when a spreadsheet is
	// configured and the in-memory one otherwise.
	CreateExporter(ctx context.Context, config Config) (sheets.LedgerExporter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Driver storage.Driver

	SQLiteDBPath string
	MySQLDSN     string

	// AMQP is optional; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireBroker turns a failed broker connection into an error instead
	// of a warning. The worker cannot run without one.
	RequireBroker bool

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}
