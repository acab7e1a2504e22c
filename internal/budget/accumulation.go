package budget

import (
	"errors"
	"fmt"
	"strings"

	"finboard/internal/core"
)

// MissingDataPolicy decides how a month whose spending could not be fetched
// affects the accumulation pool.
type MissingDataPolicy int

const (
	// FailOpen treats an unavailable month as zero spend, so its full
	// allocation carries forward.
	FailOpen MissingDataPolicy = iota
	// FailClosed treats an unavailable past month as fully spent (no carry).
	FailClosed
	// Strict refuses to compute when any month is unavailable.
	Strict
)

var policyNames = map[MissingDataPolicy]string{
	FailOpen:   "fail-open",
	FailClosed: "fail-closed",
	Strict:     "strict",
}

func (p MissingDataPolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy converts a configuration value to a policy. The empty string
// selects FailOpen.
func ParsePolicy(s string) (MissingDataPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FailOpen, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return FailOpen, fmt.Errorf("unknown missing-data policy %q (want fail-open, fail-closed or strict)", s)
}

// ErrMonthUnavailable is recorded for months with no spending lookup at all.
var ErrMonthUnavailable = errors.New("spending data unavailable")

// MonthSpending is the outcome of fetching one month's per-category spending.
type MonthSpending struct {
	Totals map[string]core.Money
	Err    error
}

// Available reports whether the fetch succeeded.
func (m MonthSpending) Available() bool { return m.Err == nil }

// SpendingByMonth maps month (1..12) to its fetch outcome. A month absent from
// the map is treated as unavailable.
type SpendingByMonth map[int]MonthSpending

func (s SpendingByMonth) lookup(month int) MonthSpending {
	ms, ok := s[month]
	if !ok {
		return MonthSpending{Err: ErrMonthUnavailable}
	}
	return ms
}

// Unavailable lists the months in 1..through whose data is missing.
func (s SpendingByMonth) Unavailable(through int) []int {
	var out []int
	for m := 1; m <= through; m++ {
		if !s.lookup(m).Available() {
			out = append(out, m)
		}
	}
	return out
}

// MissingMonthError is returned under Strict when a month has no data.
type MissingMonthError struct {
	Month int
	Err   error
}

func (e *MissingMonthError) Error() string {
	return fmt.Sprintf("spending for month %d unavailable: %v", e.Month, e.Err)
}

func (e *MissingMonthError) Unwrap() error { return e.Err }

// AccumulationResult is the carry-forward pool of one category for a month.
type AccumulationResult struct {
	CategoryID     string     `json:"expenseTypeId"`
	CategoryName   string     `json:"expenseTypeName"`
	Icon           string     `json:"icon"`
	MonthlyBudget  core.Money `json:"monthlyBudget"`
	Accumulated    core.Money `json:"accumulated"`
	SpentThisMonth core.Money `json:"spentThisMonth"`
	Remaining      core.Money `json:"remaining"`
}

// UsagePercent is the share of the pool already spent, capped at 100.
func (r AccumulationResult) UsagePercent() float64 {
	pct := r.SpentThisMonth.PercentOf(r.Accumulated)
	if pct > 100 {
		return 100
	}
	return pct
}

// Accumulate computes the carry-forward pool for every recurring allocation
// whose category accumulates, as of target month (1..12).
//
// For each such category with monthly amount A:
//
//	accumulated = sum over months 1..target-1 of max(0, A - spend(month)) + A
//	remaining   = accumulated - spend(target)
//
// Overspending in a month is not carried as debt. Allocations sharing a
// category are merged. Results are ordered by category name.
func Accumulate(items []core.BudgetAllocation, target int, spending SpendingByMonth, policy MissingDataPolicy) ([]AccumulationResult, error) {
	if !core.ValidMonth(target) {
		return nil, fmt.Errorf("target month %d: %w", target, core.ErrInvalidMonth)
	}
	if policy == Strict {
		if missing := spending.Unavailable(target); len(missing) > 0 {
			m := missing[0]
			return nil, &MissingMonthError{Month: m, Err: spending.lookup(m).Err}
		}
	}

	groups := groupByCategory(AccumulatingAllocations(items))
	results := make([]AccumulationResult, 0, len(groups))
	for _, g := range groups {
		accumulated := core.Zero
		for m := 1; m < target; m++ {
			ms := spending.lookup(m)
			if !ms.Available() {
				if policy == FailOpen {
					accumulated = accumulated.Add(g.amount)
				}
				continue
			}
			accumulated = accumulated.Add(g.amount.Sub(ms.Totals[g.category.ID]).MaxZero())
		}
		accumulated = accumulated.Add(g.amount)

		spent := core.Zero
		if ms := spending.lookup(target); ms.Available() {
			spent = ms.Totals[g.category.ID]
		}

		results = append(results, AccumulationResult{
			CategoryID:     g.category.ID,
			CategoryName:   g.category.Name,
			Icon:           g.category.Icon,
			MonthlyBudget:  g.amount,
			Accumulated:    accumulated,
			SpentThisMonth: spent,
			Remaining:      accumulated.Sub(spent),
		})
	}
	return results, nil
}
