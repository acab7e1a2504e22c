// Package sheets defines the spreadsheet ledger the worker mirrors
// transactions into.
package sheets

import (
	"context"
	"errors"
	"strings"

	"finboard/internal/core"
)

// Kind tells apart a booked expense from the row that cancels it.
type Kind string

const (
	KindExpense  Kind = "expense"
	KindReversal Kind = "reversal"
)

// LedgerEntry is one row of the yearly ledger sheet.
type LedgerEntry struct {
	Date          core.Date
	Category      string
	Description   string
	Amount        core.Money
	Kind          Kind
	TransactionID string
}

func (e LedgerEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.TransactionID) == "" {
		return errors.New("ledger entry without transaction id")
	}
	switch e.Kind {
	case KindExpense:
		if !e.Amount.IsPositive() {
			return core.ErrInvalidAmount
		}
	case KindReversal:
		if !e.Amount.IsNegative() {
			return core.ErrInvalidAmount
		}
	default:
		return errors.New("unknown ledger entry kind")
	}
	return nil
}

// Row renders the entry in column order: date, category, description,
// amount, kind, transaction id.
func (e LedgerEntry) Row() []any {
	return []any{
		e.Date.String(),
		e.Category,
		e.Description,
		e.Amount.Float64(),
		string(e.Kind),
		e.TransactionID,
	}
}

// LedgerWriter appends entries to the ledger.
type LedgerWriter interface {
	Append(ctx context.Context, e LedgerEntry) (rowRef string, err error)
}
