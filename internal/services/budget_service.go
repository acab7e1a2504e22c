package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
)

// BudgetService enforces the yearly budget rules on top of a backend.
type BudgetService struct {
	budgets      ports.BudgetStore
	categories   ports.CategoryStore
	transactions ports.TransactionStore
	now          Clock
}

func NewBudgetService(budgets ports.BudgetStore, categories ports.CategoryStore, transactions ports.TransactionStore) *BudgetService {
	return &BudgetService{
		budgets:      budgets,
		categories:   categories,
		transactions: transactions,
		now:          time.Now,
	}
}

// WithClock replaces the time source used by the year rules.
func (s *BudgetService) WithClock(now Clock) *BudgetService {
	s.now = now
	return s
}

func (s *BudgetService) List(ctx context.Context, sess auth.Session) ([]core.Budget, error) {
	return s.budgets.ListBudgets(ctx, sess)
}

func (s *BudgetService) Get(ctx context.Context, sess auth.Session, year int) (core.Budget, error) {
	return s.budgets.GetBudget(ctx, sess, year)
}

// CheckYear applies the creation rules: never a past year, the next year only
// during December, and never further ahead than that.
func (s *BudgetService) CheckYear(year int) error {
	now := s.now()
	current := now.Year()
	switch {
	case year < current:
		return invalid("year", ErrPastYear)
	case year > current+1:
		return invalid("year", ErrTooFarAhead)
	case year == current+1 && now.Month() != time.December:
		return invalid("year", ErrNextYearEarly)
	}
	return nil
}

func (s *BudgetService) Create(ctx context.Context, sess auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	if err := s.CheckYear(year); err != nil {
		return core.Budget{}, err
	}
	if err := s.checkDuplicate(ctx, sess, year); err != nil {
		return core.Budget{}, err
	}
	if err := s.checkItems(ctx, sess, items); err != nil {
		return core.Budget{}, err
	}

	b, err := s.budgets.CreateBudget(ctx, sess, year, items)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget %d: %w", year, err)
	}
	slog.InfoContext(ctx, "Budget created", "year", year, "items", len(b.Items))
	return b, nil
}

// Replace swaps the budget's items. Items that already carry transactions
// must keep their ID, which only the first item of each slot (same expense
// type and schedule) does.
func (s *BudgetService) Replace(ctx context.Context, sess auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	current, err := s.budgets.GetBudget(ctx, sess, year)
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.checkItems(ctx, sess, items); err != nil {
		return core.Budget{}, err
	}

	reuse := core.ReusableIDs(current.Items)
	kept := make(map[string]bool, len(items))
	for _, in := range items {
		if id, ok := reuse[in.Slot()]; ok {
			kept[id] = true
		}
	}
	for _, it := range current.Items {
		if kept[it.ID] {
			continue
		}
		has, err := s.transactions.AllocationHasTransactions(ctx, sess, it.ID)
		if err != nil {
			return core.Budget{}, fmt.Errorf("check budget item %s: %w", it.ID, err)
		}
		if has {
			return core.Budget{}, fmt.Errorf("%s: %w", it.Category.Name, ErrItemHasTransacted)
		}
	}

	b, err := s.budgets.ReplaceAllocations(ctx, sess, year, items)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", year, err)
	}
	slog.InfoContext(ctx, "Budget updated", "year", year, "items", len(b.Items))
	return b, nil
}

// Delete refuses while any item of the budget has transactions.
func (s *BudgetService) Delete(ctx context.Context, sess auth.Session, year int) error {
	b, err := s.budgets.GetBudget(ctx, sess, year)
	if err != nil {
		return err
	}
	for _, it := range b.Items {
		has, err := s.transactions.AllocationHasTransactions(ctx, sess, it.ID)
		if err != nil {
			return fmt.Errorf("check budget item %s: %w", it.ID, err)
		}
		if has {
			return ErrHasTransactions
		}
	}
	return s.budgets.DeleteBudget(ctx, sess, year)
}

// Copy creates toYear with the items of fromYear. The target year follows
// the creation rules.
func (s *BudgetService) Copy(ctx context.Context, sess auth.Session, fromYear, toYear int) (core.Budget, error) {
	if err := s.CheckYear(toYear); err != nil {
		return core.Budget{}, err
	}
	source, err := s.budgets.GetBudget(ctx, sess, fromYear)
	if err != nil {
		return core.Budget{}, fmt.Errorf("source budget %d: %w", fromYear, err)
	}
	if err := s.checkDuplicate(ctx, sess, toYear); err != nil {
		return core.Budget{}, err
	}

	if copier, ok := s.budgets.(ports.BudgetCopier); ok {
		return copier.CopyBudget(ctx, sess, fromYear, toYear)
	}

	items := make([]core.AllocationInput, 0, len(source.Items))
	for _, it := range source.Items {
		items = append(items, it.Input())
	}
	b, err := s.budgets.CreateBudget(ctx, sess, toYear, items)
	if err != nil {
		return core.Budget{}, fmt.Errorf("copy budget %d to %d: %w", fromYear, toYear, err)
	}
	slog.InfoContext(ctx, "Budget copied", "from_year", fromYear, "year", toYear, "items", len(b.Items))
	return b, nil
}

func (s *BudgetService) checkDuplicate(ctx context.Context, sess auth.Session, year int) error {
	_, err := s.budgets.GetBudget(ctx, sess, year)
	switch {
	case err == nil:
		return fmt.Errorf("budget for year %d already exists: %w", year, core.ErrConflict)
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return err
	}
}

// checkItems validates every item, that no two items share a slot and that
// each expense type belongs to the user.
func (s *BudgetService) checkItems(ctx context.Context, sess auth.Session, items []core.AllocationInput) error {
	seen := make(map[string]bool, len(items))
	slots := make(map[string]bool, len(items))
	for i, in := range items {
		if err := in.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		if slots[in.Slot()] {
			return invalid(fmt.Sprintf("items[%d]", i), ErrDuplicateSlot)
		}
		slots[in.Slot()] = true
		if seen[in.CategoryID] {
			continue
		}
		seen[in.CategoryID] = true
		if _, err := s.categories.GetCategory(ctx, sess, in.CategoryID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return invalid(fmt.Sprintf("items[%d].expenseTypeId", i), fmt.Errorf("expense type %s not found", in.CategoryID))
			}
			return err
		}
	}
	return nil
}
