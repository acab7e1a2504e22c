package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
)

var (
	_ ports.Backend      = (*Client)(nil)
	_ ports.BudgetCopier = (*Client)(nil)
)

type expenseTypeRequest struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	IsMandatory bool   `json:"isMandatory"`
	Accumulate  bool   `json:"accumulate"`
}

type createBudgetRequest struct {
	Budget struct {
		Year int `json:"year"`
	} `json:"budget"`
	Items []core.AllocationInput `json:"items"`
}

type transactionRequest struct {
	BudgetItemID    string     `json:"budgetItemId"`
	ExpenseTypeID   string     `json:"expenseTypeId"`
	Amount          core.Money `json:"amount"`
	Description     string     `json:"description,omitempty"`
	TransactionDate core.Date  `json:"transactionDate"`
}

func newTransactionRequest(t core.Transaction) transactionRequest {
	return transactionRequest{
		BudgetItemID:    t.BudgetItemID,
		ExpenseTypeID:   t.CategoryID,
		Amount:          t.Amount,
		Description:     t.Description,
		TransactionDate: t.Date,
	}
}

func periodQuery(p core.YearMonth) url.Values {
	return url.Values{
		"year":  {strconv.Itoa(p.Year)},
		"month": {strconv.Itoa(p.Month)},
	}
}

// Expense types

func (c *Client) ListCategories(ctx context.Context, s auth.Session) ([]core.ExpenseCategory, error) {
	var out []core.ExpenseCategory
	if _, err := c.do(ctx, s, budgetService, http.MethodGet, "/api/v1/expense-types", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.ExpenseCategory{}
	}
	return out, nil
}

func (c *Client) GetCategory(ctx context.Context, s auth.Session, id string) (core.ExpenseCategory, error) {
	var out core.ExpenseCategory
	found, err := c.do(ctx, s, budgetService, http.MethodGet, "/api/v1/expense-types/"+url.PathEscape(id), nil, nil, &out)
	if err := notFoundIfEmpty(found, err, "expense type "+id); err != nil {
		return core.ExpenseCategory{}, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, s auth.Session, cat core.ExpenseCategory) (core.ExpenseCategory, error) {
	cat = cat.Normalize()
	if err := cat.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	req := expenseTypeRequest{Name: cat.Name, Icon: cat.Icon, IsMandatory: cat.IsMandatory, Accumulate: cat.Accumulate}
	var out core.ExpenseCategory
	if _, err := c.do(ctx, s, budgetService, http.MethodPost, "/api/v1/expense-types", nil, req, &out); err != nil {
		return core.ExpenseCategory{}, err
	}
	return out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, s auth.Session, cat core.ExpenseCategory) (core.ExpenseCategory, error) {
	cat = cat.Normalize()
	if err := cat.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	req := expenseTypeRequest{Name: cat.Name, Icon: cat.Icon, IsMandatory: cat.IsMandatory, Accumulate: cat.Accumulate}
	var out core.ExpenseCategory
	if _, err := c.do(ctx, s, budgetService, http.MethodPut, "/api/v1/expense-types/"+url.PathEscape(cat.ID), nil, req, &out); err != nil {
		return core.ExpenseCategory{}, err
	}
	return out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, s auth.Session, id string) error {
	_, err := c.do(ctx, s, budgetService, http.MethodDelete, "/api/v1/expense-types/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// CategoryInUse relies on the upstream canDelete flag.
func (c *Client) CategoryInUse(ctx context.Context, s auth.Session, id string) (bool, error) {
	cat, err := c.GetCategory(ctx, s, id)
	if err != nil {
		return false, err
	}
	return !cat.CanDelete, nil
}

// Budgets

func (c *Client) ListBudgets(ctx context.Context, s auth.Session) ([]core.Budget, error) {
	var out []core.Budget
	if _, err := c.do(ctx, s, budgetService, http.MethodGet, "/api/v1/budgets", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Budget{}
	}
	return out, nil
}

func (c *Client) GetBudget(ctx context.Context, s auth.Session, year int) (core.Budget, error) {
	var out core.Budget
	found, err := c.do(ctx, s, budgetService, http.MethodGet, "/api/v1/budgets/"+strconv.Itoa(year), nil, nil, &out)
	if err := notFoundIfEmpty(found, err, fmt.Sprintf("budget %d", year)); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}

func (c *Client) CreateBudget(ctx context.Context, s auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	var req createBudgetRequest
	req.Budget.Year = year
	req.Items = items
	if req.Items == nil {
		req.Items = []core.AllocationInput{}
	}
	var out core.Budget
	if _, err := c.do(ctx, s, budgetService, http.MethodPost, "/api/v1/budgets", nil, req, &out); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}

func (c *Client) ReplaceAllocations(ctx context.Context, s auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	if items == nil {
		items = []core.AllocationInput{}
	}
	var out core.Budget
	if _, err := c.do(ctx, s, budgetService, http.MethodPut, "/api/v1/budgets/"+strconv.Itoa(year), nil, items, &out); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}

func (c *Client) DeleteBudget(ctx context.Context, s auth.Session, year int) error {
	_, err := c.do(ctx, s, budgetService, http.MethodDelete, "/api/v1/budgets/"+strconv.Itoa(year), nil, nil, nil)
	return err
}

// Transactions

func (c *Client) ListTransactions(ctx context.Context, s auth.Session, f core.TransactionFilter) (core.TransactionPage, error) {
	f = f.Normalize()
	q := url.Values{
		"page":     {strconv.Itoa(f.Page)},
		"pageSize": {strconv.Itoa(f.PageSize)},
	}
	if !f.StartDate.IsZero() {
		q.Set("startDate", f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		q.Set("endDate", f.EndDate.String())
	}
	if f.CategoryID != "" {
		q.Set("expenseTypeId", f.CategoryID)
	}

	var out core.TransactionPage
	if _, err := c.do(ctx, s, transactionService, http.MethodGet, "/api/v1/transactions", q, nil, &out); err != nil {
		return core.TransactionPage{}, err
	}
	if out.Content == nil {
		out.Content = []core.Transaction{}
	}
	return out, nil
}

func (c *Client) GetTransaction(ctx context.Context, s auth.Session, id string) (core.Transaction, error) {
	var out core.Transaction
	found, err := c.do(ctx, s, transactionService, http.MethodGet, "/api/v1/transactions/"+url.PathEscape(id), nil, nil, &out)
	if err := notFoundIfEmpty(found, err, "transaction "+id); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, s auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	if _, err := c.do(ctx, s, transactionService, http.MethodPost, "/api/v1/transactions", nil, newTransactionRequest(t), &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, s auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	if _, err := c.do(ctx, s, transactionService, http.MethodPut, "/api/v1/transactions/"+url.PathEscape(t.ID), nil, newTransactionRequest(t), &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, s auth.Session, id string) error {
	_, err := c.do(ctx, s, transactionService, http.MethodDelete, "/api/v1/transactions/"+url.PathEscape(id), nil, nil, nil)
	return err
}

func (c *Client) AllocationHasTransactions(ctx context.Context, s auth.Session, allocationID string) (bool, error) {
	var has bool
	_, err := c.do(ctx, s, transactionService, http.MethodGet, "/api/v1/transactions/check-budget-item/"+url.PathEscape(allocationID), nil, nil, &has)
	return has, err
}

// Spending

func (c *Client) SpendingByCategory(ctx context.Context, s auth.Session, period core.YearMonth) ([]core.CategorySpending, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	var out []core.CategorySpending
	if _, err := c.do(ctx, s, transactionService, http.MethodGet, "/api/v1/transactions/summary/by-type", periodQuery(period), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.CategorySpending{}
	}
	return out, nil
}

func (c *Client) MonthlySummary(ctx context.Context, s auth.Session, period core.YearMonth) (core.MonthlySummary, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}
	out := core.MonthlySummary{Year: period.Year, Month: period.Month}
	if _, err := c.do(ctx, s, transactionService, http.MethodGet, "/api/v1/transactions/summary/monthly", periodQuery(period), nil, &out); err != nil {
		return core.MonthlySummary{}, err
	}
	return out, nil
}

func (c *Client) YearlySummary(ctx context.Context, s auth.Session, year int) (core.YearlySummary, error) {
	out := core.YearlySummary{Year: year}
	q := url.Values{"year": {strconv.Itoa(year)}}
	if _, err := c.do(ctx, s, transactionService, http.MethodGet, "/api/v1/transactions/summary/yearly", q, nil, &out); err != nil {
		return core.YearlySummary{}, err
	}
	if out.MonthlyTotals == nil {
		out.MonthlyTotals = map[int]core.Money{}
	}
	return out, nil
}

// Preferences

func (c *Client) GetPreferences(ctx context.Context, s auth.Session) (core.Preferences, error) {
	var out core.Preferences
	found, err := c.do(ctx, s, userService, http.MethodGet, "/api/v1/users/preferences", nil, nil, &out)
	if err := notFoundIfEmpty(found, err, "preferences for "+s.Email); err != nil {
		return core.Preferences{}, err
	}
	return out, nil
}

func (c *Client) SavePreferences(ctx context.Context, s auth.Session, p core.Preferences) (core.Preferences, error) {
	if err := p.Validate(); err != nil {
		return core.Preferences{}, err
	}
	var out core.Preferences
	if _, err := c.do(ctx, s, userService, http.MethodPost, "/api/v1/users/preferences", nil, p, &out); err != nil {
		return core.Preferences{}, err
	}
	return out, nil
}

// CopyBudget uses the upstream copy endpoint so the copy is one atomic call.
func (c *Client) CopyBudget(ctx context.Context, s auth.Session, fromYear, toYear int) (core.Budget, error) {
	q := url.Values{
		"fromYear": {strconv.Itoa(fromYear)},
		"toYear":   {strconv.Itoa(toYear)},
	}
	var out core.Budget
	if _, err := c.do(ctx, s, budgetService, http.MethodPost, "/api/v1/budgets/copy", q, nil, &out); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}
