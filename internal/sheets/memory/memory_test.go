package memory

import (
	"context"
	"testing"
	"time"

	"hamyon/internal/core"
	ports "hamyon/internal/sheets"
)

func TestMemoryStoreAppendRows(t *testing.T) {
	s := New()
	ref, err := s.AppendRows(context.Background(), []ports.LedgerRow{
		{Kind: "transaction.created", Amount: core.Money{Cents: 123}},
		{Kind: "transfer.created", Amount: core.Money{Cents: 456}},
	})
	if err != nil || ref != "mem:1-2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, _ = s.AppendRows(context.Background(), []ports.LedgerRow{{Kind: "transaction.deleted"}})
	if ref != "mem:3-3" {
		t.Fatalf("unexpected ref %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 3 || rows[1].Amount.Cents != 456 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	rows[0].Kind = "changed"
	if s.Rows()[0].Kind == "changed" {
		t.Fatal("Rows must return a copy")
	}
}

func TestLedgerRowValues(t *testing.T) {
	r := ports.LedgerRow{
		EventID:    "e1",
		Kind:       "transfer.created",
		OccurredAt: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		UserID:     1,
		EntityID:   9,
		WalletID:   2,
		Amount:     core.Money{Cents: 150050},
		Currency:   "UZS",
	}
	v := r.Values()
	if len(v) != len(ports.Header) {
		t.Fatalf("values has %d columns, header %d", len(v), len(ports.Header))
	}
	if v[0] != "2025-03-04 05:06:07" || v[5] != "" || v[8] != "1500.50" {
		t.Fatalf("unexpected values %v", v)
	}
}
