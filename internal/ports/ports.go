// Package ports declares the outbound interfaces the services and dashboard
// depend on. Every call carries the caller's session explicitly; backends
// scope all data to Session.Email.
package ports

import (
	"context"

	"finboard/internal/auth"
	"finboard/internal/core"
)

type (
	CategoryStore interface {
		ListCategories(ctx context.Context, s auth.Session) ([]core.ExpenseCategory, error)
		// GetCategory returns core.ErrNotFound for unknown or foreign IDs.
		GetCategory(ctx context.Context, s auth.Session, id string) (core.ExpenseCategory, error)
		CreateCategory(ctx context.Context, s auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error)
		UpdateCategory(ctx context.Context, s auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error)
		DeleteCategory(ctx context.Context, s auth.Session, id string) error
		// CategoryInUse reports whether any budget allocation references id.
		CategoryInUse(ctx context.Context, s auth.Session, id string) (bool, error)
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context, s auth.Session) ([]core.Budget, error)
		// GetBudget returns core.ErrNotFound when the user has no budget for year.
		GetBudget(ctx context.Context, s auth.Session, year int) (core.Budget, error)
		CreateBudget(ctx context.Context, s auth.Session, year int, items []core.AllocationInput) (core.Budget, error)
		// ReplaceAllocations swaps the budget's allocations for items.
		ReplaceAllocations(ctx context.Context, s auth.Session, year int, items []core.AllocationInput) (core.Budget, error)
		DeleteBudget(ctx context.Context, s auth.Session, year int) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, s auth.Session, f core.TransactionFilter) (core.TransactionPage, error)
		GetTransaction(ctx context.Context, s auth.Session, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, s auth.Session, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, s auth.Session, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, s auth.Session, id string) error
		// AllocationHasTransactions reports whether any transaction is
		// booked against the budget allocation.
		AllocationHasTransactions(ctx context.Context, s auth.Session, allocationID string) (bool, error)
	}

	// SpendingReader provides aggregated spending.
	SpendingReader interface {
		SpendingByCategory(ctx context.Context, s auth.Session, period core.YearMonth) ([]core.CategorySpending, error)
		MonthlySummary(ctx context.Context, s auth.Session, period core.YearMonth) (core.MonthlySummary, error)
		YearlySummary(ctx context.Context, s auth.Session, year int) (core.YearlySummary, error)
	}

	PreferencesStore interface {
		// GetPreferences returns core.ErrNotFound when nothing was saved yet.
		GetPreferences(ctx context.Context, s auth.Session) (core.Preferences, error)
		SavePreferences(ctx context.Context, s auth.Session, p core.Preferences) (core.Preferences, error)
	}

	// Backend is the full set of ports a data backend provides.
	Backend interface {
		CategoryStore
		BudgetStore
		TransactionStore
		SpendingReader
		PreferencesStore
	}

	// BudgetCopier is implemented by backends with a native copy operation.
	BudgetCopier interface {
		CopyBudget(ctx context.Context, s auth.Session, fromYear, toYear int) (core.Budget, error)
	}

	// Pinger is implemented by backends that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
