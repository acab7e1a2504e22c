package core

// CategorySpending is the summed transaction amount of one category in a month.
type CategorySpending struct {
	CategoryID string `json:"expenseTypeId"`
	Total      Money  `json:"totalAmount"`
}

// MonthlySummary is the total spent in a month and the number of transactions.
type MonthlySummary struct {
	Year             int   `json:"year"`
	Month            int   `json:"month"`
	TotalExpenses    Money `json:"totalExpenses"`
	TransactionCount int64 `json:"transactionCount"`
}

// YearlySummary breaks a year's spending down by month.
type YearlySummary struct {
	Year          int           `json:"year"`
	MonthlyTotals map[int]Money `json:"monthlyTotals"`
	YearlyTotal   Money         `json:"yearlyTotal"`
}

// SpendingTotals indexes per-category spending by category ID.
func SpendingTotals(rows []CategorySpending) map[string]Money {
	out := make(map[string]Money, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = out[r.CategoryID].Add(r.Total)
	}
	return out
}

// TransactionFilter narrows a transaction listing. Zero values mean "no filter".
type TransactionFilter struct {
	StartDate  Date
	EndDate    Date
	CategoryID string
	Page       int
	PageSize   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging values into the accepted range.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Matches reports whether t passes the date and category filters.
func (f TransactionFilter) Matches(t Transaction) bool {
	if !f.StartDate.IsZero() && t.Date.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsZero() && t.Date.After(f.EndDate.Time) {
		return false
	}
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	return true
}

// TransactionPage is one page of a filtered transaction listing.
type TransactionPage struct {
	Content       []Transaction `json:"content"`
	Page          int           `json:"page"`
	PageSize      int           `json:"pageSize"`
	TotalElements int64         `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
}

// NewTransactionPage computes the page count for a listing.
func NewTransactionPage(content []Transaction, f TransactionFilter, total int64) TransactionPage {
	pages := 0
	if f.PageSize > 0 {
		pages = int((total + int64(f.PageSize) - 1) / int64(f.PageSize))
	}
	if content == nil {
		content = []Transaction{}
	}
	return TransactionPage{
		Content:       content,
		Page:          f.Page,
		PageSize:      f.PageSize,
		TotalElements: total,
		TotalPages:    pages,
	}
}
