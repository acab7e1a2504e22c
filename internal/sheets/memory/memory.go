// Package memory is an in-process ledger used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/sheets"
)

var _ sheets.LedgerWriter = (*Ledger)(nil)

type Ledger struct {
	mu      sync.Mutex
	entries []sheets.LedgerEntry
	// failNext makes the next n appends fail; used to exercise retries.
	failNext int
}

func New() *Ledger { return &Ledger{} }

// Append stores the entry and returns a synthetic row reference.
func (l *Ledger) Append(_ context.Context, e sheets.LedgerEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext > 0 {
		l.failNext--
		return "", fmt.Errorf("ledger unavailable")
	}
	l.entries = append(l.entries, e)
	return fmt.Sprintf("mem:%d", len(l.entries)), nil
}

// Entries returns a copy of everything appended so far.
func (l *Ledger) Entries() []sheets.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sheets.LedgerEntry(nil), l.entries...)
}

// FailNext makes the next n appends return an error.
func (l *Ledger) FailNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = n
}
