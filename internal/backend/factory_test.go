package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"hamyon/internal/config"
	"hamyon/internal/log"
	"hamyon/internal/sheets/memory"
	"hamyon/internal/storage"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{Driver: storage.DriverSQLite, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Driver: storage.DriverSQLite}, true},
		{"mysql", Config{Driver: storage.DriverMySQL, MySQLDSN: "u:p@tcp(db)/hamyon"}, false},
		{"mysql without dsn", Config{Driver: storage.DriverMySQL}, true},
		{"unknown driver", Config{Driver: "postgres", SQLiteDBPath: "x.db"}, true},
		{"broker required", Config{Driver: storage.DriverSQLite, SQLiteDBPath: "x.db", RequireBroker: true}, true},
		{"sheet without credentials", Config{Driver: storage.DriverSQLite, SQLiteDBPath: "x.db", GoogleSpreadsheetID: "s"}, true},
		{"sheet with credentials", Config{Driver: storage.DriverSQLite, SQLiteDBPath: "x.db", GoogleSpreadsheetID: "s", GoogleCredentialsJSON: "{}"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	c, err := FromAppConfig(&config.Config{DBDriver: "sqlite", SQLiteDBPath: "data/hamyon.db", AMQPExchange: "hamyon"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if c.Driver != storage.DriverSQLite || c.SQLiteDBPath != "data/hamyon.db" || c.AMQPExchange != "hamyon" {
		t.Fatalf("unexpected config %+v", c)
	}
}

func TestCreateBackendSQLite(t *testing.T) {
	f := NewFactory(quietLogger())
	res, err := f.CreateBackend(context.Background(), Config{
		Driver:       storage.DriverSQLite,
		SQLiteDBPath: filepath.Join(t.TempDir(), "hamyon.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if res.Repo == nil {
		t.Fatal("expected a repository")
	}
	if res.Broker != nil {
		t.Fatal("broker must be nil without an AMQP URL")
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
}

func TestCreateBackendInvalidDriver(t *testing.T) {
	f := NewFactory(quietLogger())
	if _, err := f.CreateBackend(context.Background(), Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestCreateExporterFallsBackToMemory(t *testing.T) {
	f := NewFactory(quietLogger())
	exp, err := f.CreateExporter(context.Background(), Config{})
	if err != nil {
		t.Fatalf("CreateExporter() error = %v", err)
	}
	if _, ok := exp.(*memory.Store); !ok {
		t.Fatalf("expected memory exporter, got %T", exp)
	}
}
