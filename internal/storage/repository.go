package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"

	_ "modernc.org/sqlite"
)

var _ ports.Backend = (*SQLiteRepository)(nil)

// SQLiteRepository stores every entity in a single SQLite file. Amounts are
// kept as integer cents.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Expense types

const categoryColumns = `et.id, et.user_email, et.name, et.icon, et.is_mandatory, et.accumulate, et.created_at, et.updated_at,
	EXISTS (SELECT 1 FROM budget_items bi WHERE bi.expense_type_id = et.id)`

func scanCategory(sc interface{ Scan(...any) error }) (core.ExpenseCategory, error) {
	var (
		c                    core.ExpenseCategory
		mandatory, acc, used int
		created, updated     string
	)
	if err := sc.Scan(&c.ID, &c.UserEmail, &c.Name, &c.Icon, &mandatory, &acc, &created, &updated, &used); err != nil {
		return core.ExpenseCategory{}, err
	}
	c.IsMandatory = mandatory != 0
	c.Accumulate = acc != 0
	c.CanDelete = used == 0
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, s auth.Session) ([]core.ExpenseCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM expense_types et WHERE et.user_email = ? ORDER BY et.name COLLATE NOCASE, et.id`,
		s.Email)
	if err != nil {
		return nil, fmt.Errorf("list expense types: %w", err)
	}
	defer rows.Close()

	out := make([]core.ExpenseCategory, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense type: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, s auth.Session, id string) (core.ExpenseCategory, error) {
	return r.getCategory(ctx, r.db, s.Email, id)
}

func (r *SQLiteRepository) getCategory(ctx context.Context, q querier, email, id string) (core.ExpenseCategory, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM expense_types et WHERE et.id = ? AND et.user_email = ?`, id, email)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("get expense type: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, s auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	now := formatTime(r.now())
	c.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_types (id, user_email, name, icon, is_mandatory, accumulate, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, s.Email, c.Name, c.Icon, boolInt(c.IsMandatory), boolInt(c.Accumulate), now, now)
	if isUniqueViolation(err) {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %q already exists: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("create expense type: %w", err)
	}

	slog.InfoContext(ctx, "Expense type saved to SQLite", "id", c.ID, "name", c.Name)
	return r.GetCategory(ctx, s, c.ID)
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, s auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_types SET name = ?, icon = ?, is_mandatory = ?, accumulate = ?, updated_at = ?
		 WHERE id = ? AND user_email = ?`,
		c.Name, c.Icon, boolInt(c.IsMandatory), boolInt(c.Accumulate), formatTime(r.now()), c.ID, s.Email)
	if isUniqueViolation(err) {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %q already exists: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("update expense type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %s: %w", c.ID, core.ErrNotFound)
	}
	return r.GetCategory(ctx, s, c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, s auth.Session, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		c, err := r.getCategory(ctx, tx, s.Email, id)
		if err != nil {
			return err
		}
		if !c.CanDelete {
			return fmt.Errorf("expense type %q is used by a budget: %w", c.Name, core.ErrConflict)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_types WHERE id = ? AND user_email = ?`, id, s.Email); err != nil {
			return fmt.Errorf("delete expense type: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) CategoryInUse(ctx context.Context, s auth.Session, id string) (bool, error) {
	var used int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM budget_items bi JOIN budgets b ON b.id = bi.budget_id
			WHERE bi.expense_type_id = ? AND b.user_email = ?)`, id, s.Email).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check expense type usage: %w", err)
	}
	return used != 0, nil
}

// Budgets

type budgetRow struct {
	id, email        string
	year             int
	created, updated string
}

func (r *SQLiteRepository) budgetRows(ctx context.Context, q querier, email string, year int) ([]budgetRow, error) {
	query := `SELECT id, user_email, year, created_at, updated_at FROM budgets WHERE user_email = ?`
	args := []any{email}
	if year != 0 {
		query += ` AND year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []budgetRow
	for rows.Next() {
		var b budgetRow
		if err := rows.Scan(&b.id, &b.email, &b.year, &b.created, &b.updated); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) budgetItems(ctx context.Context, q querier, budgetID string) ([]core.BudgetAllocation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT bi.id, bi.budget_id, bi.amount_cents, bi.is_one_time, COALESCE(bi.applicable_month, 0), bi.created_at, bi.updated_at,
		        `+categoryColumns+`
		   FROM budget_items bi JOIN expense_types et ON et.id = bi.expense_type_id
		  WHERE bi.budget_id = ?
		  ORDER BY bi.position, bi.id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("query budget items: %w", err)
	}
	defer rows.Close()

	out := make([]core.BudgetAllocation, 0)
	for rows.Next() {
		var (
			a                                        core.BudgetAllocation
			cents                                    int64
			oneTime, mandatory, acc, used            int
			created, updated, catCreated, catUpdated string
		)
		if err := rows.Scan(&a.ID, &a.BudgetID, &cents, &oneTime, &a.ApplicableMonth, &created, &updated,
			&a.Category.ID, &a.Category.UserEmail, &a.Category.Name, &a.Category.Icon,
			&mandatory, &acc, &catCreated, &catUpdated, &used); err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		a.Amount = core.MoneyFromCents(cents)
		a.IsOneTime = oneTime != 0
		a.CreatedAt, a.UpdatedAt = parseTime(created), parseTime(updated)
		a.Category.IsMandatory = mandatory != 0
		a.Category.Accumulate = acc != 0
		a.Category.CanDelete = used == 0
		a.Category.CreatedAt, a.Category.UpdatedAt = parseTime(catCreated), parseTime(catUpdated)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadBudget(ctx context.Context, q querier, b budgetRow) (core.Budget, error) {
	items, err := r.budgetItems(ctx, q, b.id)
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		ID:        b.id,
		UserEmail: b.email,
		Year:      b.year,
		Items:     items,
		CreatedAt: parseTime(b.created),
		UpdatedAt: parseTime(b.updated),
	}, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, s auth.Session) ([]core.Budget, error) {
	rows, err := r.budgetRows(ctx, r.db, s.Email, 0)
	if err != nil {
		return nil, err
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		b, err := r.loadBudget(ctx, r.db, row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *SQLiteRepository) findBudget(ctx context.Context, q querier, email string, year int) (budgetRow, error) {
	rows, err := r.budgetRows(ctx, q, email, year)
	if err != nil {
		return budgetRow{}, err
	}
	if len(rows) == 0 {
		return budgetRow{}, fmt.Errorf("budget %d: %w", year, core.ErrNotFound)
	}
	return rows[0], nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, s auth.Session, year int) (core.Budget, error) {
	row, err := r.findBudget(ctx, r.db, s.Email, year)
	if err != nil {
		return core.Budget{}, err
	}
	return r.loadBudget(ctx, r.db, row)
}

func (r *SQLiteRepository) insertItems(ctx context.Context, tx *sql.Tx, email, budgetID string, items []core.AllocationInput, reuse map[string]string, now string) error {
	for i, in := range items {
		if err := in.Validate(); err != nil {
			return err
		}
		var owned int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM expense_types WHERE id = ? AND user_email = ?`, in.CategoryID, email).Scan(&owned); err != nil {
			return fmt.Errorf("check expense type: %w", err)
		}
		if owned == 0 {
			return fmt.Errorf("expense type %s: %w", in.CategoryID, core.ErrNotFound)
		}

		id, ok := reuse[in.Slot()]
		if ok {
			delete(reuse, in.Slot())
		} else {
			id = uuid.NewString()
		}
		var month any
		if in.IsOneTime {
			month = in.ApplicableMonth
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budget_items (id, budget_id, expense_type_id, amount_cents, is_one_time, applicable_month, position, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, budgetID, in.CategoryID, in.Amount.Cents(), boolInt(in.IsOneTime), month, i, now, now); err != nil {
			return fmt.Errorf("insert budget item: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, s auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	var out core.Budget
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(r.now())
		row := budgetRow{id: uuid.NewString(), email: s.Email, year: year, created: now, updated: now}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (id, user_email, year, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			row.id, row.email, row.year, now, now)
		if isUniqueViolation(err) {
			return fmt.Errorf("budget %d already exists: %w", year, core.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("create budget: %w", err)
		}
		if err := r.insertItems(ctx, tx, s.Email, row.id, items, nil, now); err != nil {
			return err
		}
		out, err = r.loadBudget(ctx, tx, row)
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}

	slog.InfoContext(ctx, "Budget saved to SQLite", "year", year, "items", len(out.Items))
	return out, nil
}

func (r *SQLiteRepository) ReplaceAllocations(ctx context.Context, s auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	var out core.Budget
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row, err := r.findBudget(ctx, tx, s.Email, year)
		if err != nil {
			return err
		}
		existing, err := r.budgetItems(ctx, tx, row.id)
		if err != nil {
			return err
		}
		reuse := core.ReusableIDs(existing)

		if _, err := tx.ExecContext(ctx, `DELETE FROM budget_items WHERE budget_id = ?`, row.id); err != nil {
			return fmt.Errorf("clear budget items: %w", err)
		}
		now := formatTime(r.now())
		if err := r.insertItems(ctx, tx, s.Email, row.id, items, reuse, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE budgets SET updated_at = ? WHERE id = ?`, now, row.id); err != nil {
			return fmt.Errorf("touch budget: %w", err)
		}
		row.updated = now
		out, err = r.loadBudget(ctx, tx, row)
		return err
	})
	return out, err
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, s auth.Session, year int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		row, err := r.findBudget(ctx, tx, s.Email, year)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM budget_items WHERE budget_id = ?`, row.id); err != nil {
			return fmt.Errorf("delete budget items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, row.id); err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		return nil
	})
}

// Transactions

const transactionColumns = `id, user_email, budget_item_id, expense_type_id, amount_cents, description, transaction_date, created_at, updated_at`

func scanTransaction(sc interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                      core.Transaction
		cents                  int64
		date, created, updated string
	)
	if err := sc.Scan(&t.ID, &t.UserEmail, &t.BudgetItemID, &t.CategoryID, &cents, &t.Description, &date, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s has bad date %q: %w", t.ID, date, err)
	}
	t.Date = d
	t.Amount = core.MoneyFromCents(cents)
	t.CreatedAt, t.UpdatedAt = parseTime(created), parseTime(updated)
	return t, nil
}

func transactionWhere(email string, f core.TransactionFilter) (string, []any) {
	clauses := []string{"user_email = ?"}
	args := []any{email}
	if !f.StartDate.IsZero() {
		clauses = append(clauses, "transaction_date >= ?")
		args = append(args, f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		clauses = append(clauses, "transaction_date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.CategoryID != "" {
		clauses = append(clauses, "expense_type_id = ?")
		args = append(args, f.CategoryID)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, s auth.Session, f core.TransactionFilter) (core.TransactionPage, error) {
	f = f.Normalize()
	where, args := transactionWhere(s.Email, f)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return core.TransactionPage{}, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions`+where+
			` ORDER BY transaction_date DESC, created_at DESC LIMIT ? OFFSET ?`,
		append(args, f.PageSize, f.Page*f.PageSize)...)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var content []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return core.TransactionPage{}, err
		}
		content = append(content, t)
	}
	if err := rows.Err(); err != nil {
		return core.TransactionPage{}, err
	}
	return core.NewTransactionPage(content, f, total), nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, s auth.Session, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_email = ?`, id, s.Email)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, s auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := formatTime(r.now())
	t.ID = uuid.NewString()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, s.Email, t.BudgetItemID, t.CategoryID, t.Amount.Cents(), t.Description, t.Date.String(), now, now); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"amount_cents", t.Amount.Cents(),
		"date", t.Date.String())
	return r.GetTransaction(ctx, s, t.ID)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, s auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET budget_item_id = ?, expense_type_id = ?, amount_cents = ?, description = ?, transaction_date = ?, updated_at = ?
		  WHERE id = ? AND user_email = ?`,
		t.BudgetItemID, t.CategoryID, t.Amount.Cents(), t.Description, t.Date.String(), formatTime(r.now()), t.ID, s.Email)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	return r.GetTransaction(ctx, s, t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, s auth.Session, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_email = ?`, id, s.Email)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) AllocationHasTransactions(ctx context.Context, s auth.Session, allocationID string) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE budget_item_id = ? AND user_email = ?)`,
		allocationID, s.Email).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check budget item transactions: %w", err)
	}
	return found != 0, nil
}

// Spending

func (r *SQLiteRepository) SpendingByCategory(ctx context.Context, s auth.Session, period core.YearMonth) ([]core.CategorySpending, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT expense_type_id, SUM(amount_cents) FROM transactions
		  WHERE user_email = ? AND transaction_date BETWEEN ? AND ?
		  GROUP BY expense_type_id ORDER BY expense_type_id`,
		s.Email, period.FirstDay().String(), period.LastDay().String())
	if err != nil {
		return nil, fmt.Errorf("spending by expense type: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategorySpending, 0)
	for rows.Next() {
		var (
			cs    core.CategorySpending
			cents int64
		)
		if err := rows.Scan(&cs.CategoryID, &cents); err != nil {
			return nil, fmt.Errorf("scan spending: %w", err)
		}
		cs.Total = core.MoneyFromCents(cents)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MonthlySummary(ctx context.Context, s auth.Session, period core.YearMonth) (core.MonthlySummary, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}
	var cents, count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions
		  WHERE user_email = ? AND transaction_date BETWEEN ? AND ?`,
		s.Email, period.FirstDay().String(), period.LastDay().String()).Scan(&cents, &count)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("monthly summary: %w", err)
	}
	return core.MonthlySummary{
		Year:             period.Year,
		Month:            period.Month,
		TotalExpenses:    core.MoneyFromCents(cents),
		TransactionCount: count,
	}, nil
}

func (r *SQLiteRepository) YearlySummary(ctx context.Context, s auth.Session, year int) (core.YearlySummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(substr(transaction_date, 6, 2) AS INTEGER) AS m, SUM(amount_cents) FROM transactions
		  WHERE user_email = ? AND transaction_date BETWEEN ? AND ?
		  GROUP BY m ORDER BY m`,
		s.Email, core.NewDate(year, 1, 1).String(), core.NewDate(year, 12, 31).String())
	if err != nil {
		return core.YearlySummary{}, fmt.Errorf("yearly summary: %w", err)
	}
	defer rows.Close()

	sum := core.YearlySummary{Year: year, MonthlyTotals: map[int]core.Money{}, YearlyTotal: core.Zero}
	for rows.Next() {
		var (
			month int
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return core.YearlySummary{}, fmt.Errorf("scan yearly summary: %w", err)
		}
		amt := core.MoneyFromCents(cents)
		sum.MonthlyTotals[month] = amt
		sum.YearlyTotal = sum.YearlyTotal.Add(amt)
	}
	return sum, rows.Err()
}

// Preferences

func (r *SQLiteRepository) GetPreferences(ctx context.Context, s auth.Session) (core.Preferences, error) {
	var (
		p                core.Preferences
		salary, saved    int64
		created, updated string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT email, currency, emergency_fund_months, monthly_salary_cents, emergency_fund_saved_cents, avatar_url, created_at, updated_at
		   FROM user_preferences WHERE email = ?`, s.Email).
		Scan(&p.Email, &p.Currency, &p.EmergencyFundMonths, &salary, &saved, &p.AvatarURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Preferences{}, fmt.Errorf("preferences for %s: %w", s.Email, core.ErrNotFound)
	}
	if err != nil {
		return core.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	p.MonthlySalary = core.MoneyFromCents(salary)
	p.EmergencyFundSaved = core.MoneyFromCents(saved)
	p.CreatedAt, p.UpdatedAt = parseTime(created), parseTime(updated)
	return p, nil
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, s auth.Session, p core.Preferences) (core.Preferences, error) {
	if err := p.Validate(); err != nil {
		return core.Preferences{}, err
	}
	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (email, currency, emergency_fund_months, monthly_salary_cents, emergency_fund_saved_cents, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET
		   currency = excluded.currency,
		   emergency_fund_months = excluded.emergency_fund_months,
		   monthly_salary_cents = excluded.monthly_salary_cents,
		   emergency_fund_saved_cents = excluded.emergency_fund_saved_cents,
		   avatar_url = excluded.avatar_url,
		   updated_at = excluded.updated_at`,
		s.Email, p.Currency, p.EmergencyFundMonths, p.MonthlySalary.Cents(), p.EmergencyFundSaved.Cents(), p.AvatarURL, now, now)
	if err != nil {
		return core.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return r.GetPreferences(ctx, s)
}
