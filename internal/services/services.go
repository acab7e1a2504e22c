// Package services holds the business rules that sit between the HTTP layer
// and the data backends: category ownership, budget year rules, transaction
// placement and preference defaults.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/core"
)

var (
	ErrPastYear          = errors.New("cannot create budgets for past years")
	ErrNextYearEarly     = errors.New("can only create next year budgets in December")
	ErrTooFarAhead       = errors.New("cannot create budgets more than one year ahead")
	ErrCategoryInUse     = fmt.Errorf("expense type is used by budget items: %w", core.ErrConflict)
	ErrHasTransactions   = fmt.Errorf("budget has existing transactions: %w", core.ErrConflict)
	ErrItemHasTransacted = fmt.Errorf("budget item with transactions cannot be removed: %w", core.ErrConflict)
	ErrItemMismatch      = errors.New("budget item does not match the transaction")
	ErrDuplicateSlot     = errors.New("expense type already has an item with this schedule")
)

// EventPublisher delivers transaction events. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.TransactionEvent) error
}

// SpendingInvalidator drops cached spending after a write.
type SpendingInvalidator interface {
	Invalidate(email string, year, month int)
}

// Clock returns the current time.
type Clock func() time.Time

func invalid(field string, err error) error {
	return &core.ValidationError{Field: field, Err: err}
}
