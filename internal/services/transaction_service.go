package services

import (
	"context"
	"fmt"
	"log/slog"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
)

// TransactionService records expenses against budget items. Writes are
// saved first; the event publish and cache invalidation that follow never
// fail the request.
type TransactionService struct {
	transactions ports.TransactionStore
	budgets      ports.BudgetStore
	publisher    EventPublisher
	invalidator  SpendingInvalidator
}

// NewTransactionService accepts a nil publisher; events are then skipped.
func NewTransactionService(transactions ports.TransactionStore, budgets ports.BudgetStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		budgets:      budgets,
		publisher:    publisher,
	}
}

// OnWrite registers the cache to invalidate after each write.
func (s *TransactionService) OnWrite(inv SpendingInvalidator) {
	s.invalidator = inv
}

func (s *TransactionService) List(ctx context.Context, sess auth.Session, f core.TransactionFilter) (core.TransactionPage, error) {
	if f.Page < 0 {
		return core.TransactionPage{}, invalid("page", fmt.Errorf("must be >= 0"))
	}
	if f.PageSize < 0 || f.PageSize > core.MaxPageSize {
		return core.TransactionPage{}, invalid("pageSize", fmt.Errorf("must be between 1 and %d", core.MaxPageSize))
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate.Time) {
		return core.TransactionPage{}, invalid("endDate", fmt.Errorf("before start date"))
	}
	return s.transactions.ListTransactions(ctx, sess, f.Normalize())
}

func (s *TransactionService) Get(ctx context.Context, sess auth.Session, id string) (core.Transaction, error) {
	return s.transactions.GetTransaction(ctx, sess, id)
}

func (s *TransactionService) Create(ctx context.Context, sess auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := s.check(ctx, sess, t); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.transactions.CreateTransaction(ctx, sess, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.afterWrite(ctx, sess, amqp.TransactionCreated, created)
	return created, nil
}

func (s *TransactionService) Update(ctx context.Context, sess auth.Session, t core.Transaction) (core.Transaction, error) {
	previous, err := s.transactions.GetTransaction(ctx, sess, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.check(ctx, sess, t); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.transactions.UpdateTransaction(ctx, sess, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	// A moved transaction changes the spending of both months.
	if previous.Date.Period() != updated.Date.Period() {
		s.invalidate(sess, previous)
	}
	s.afterWrite(ctx, sess, amqp.TransactionUpdated, updated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, sess auth.Session, id string) error {
	existing, err := s.transactions.GetTransaction(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := s.transactions.DeleteTransaction(ctx, sess, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.afterWrite(ctx, sess, amqp.TransactionDeleted, existing)
	return nil
}

// check validates t and that its budget item belongs to the budget of the
// transaction's year, has the same expense type and applies to its month.
func (s *TransactionService) check(ctx context.Context, sess auth.Session, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	year, month := t.Date.Year(), t.Date.Month()
	b, err := s.budgets.GetBudget(ctx, sess, year)
	if err != nil {
		return fmt.Errorf("budget for %d: %w", year, err)
	}
	for _, it := range b.Items {
		if it.ID != t.BudgetItemID {
			continue
		}
		if it.Category.ID != t.CategoryID {
			return invalid("expenseTypeId", ErrItemMismatch)
		}
		if !it.AppliesTo(month) {
			return invalid("transactionDate", fmt.Errorf("%w: item only applies to month %d", ErrItemMismatch, it.ApplicableMonth))
		}
		return nil
	}
	return invalid("budgetItemId", fmt.Errorf("budget item %s is not part of the %d budget", t.BudgetItemID, year))
}

func (s *TransactionService) afterWrite(ctx context.Context, sess auth.Session, typ amqp.EventType, t core.Transaction) {
	s.invalidate(sess, t)

	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher, skipping transaction event", "type", typ, "id", t.ID)
		return
	}
	event := amqp.NewTransactionEvent(typ, t.ID, sess.Email, t.Date.Year(), t.Date.Month())
	event.CategoryID = t.CategoryID
	event.Amount = t.Amount.String()
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"type", typ,
			"id", t.ID,
			"error", err)
	}
}

func (s *TransactionService) invalidate(sess auth.Session, t core.Transaction) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(sess.Email, t.Date.Year(), t.Date.Month())
	}
}
