package memory

import (
	"context"
	"fmt"
	"sync"

	ports "hamyon/internal/sheets"
)

// Store keeps exported rows in memory; used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
}

var _ ports.LedgerExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendRows stores the rows and returns a synthetic row reference.
func (s *Store) AppendRows(_ context.Context, rows []ports.LedgerRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", start, len(s.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (s *Store) Rows() []ports.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LedgerRow(nil), s.rows...)
}
