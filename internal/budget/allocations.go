// Package budget computes the derived figures shown on the dashboard:
// burn rate, carry-forward accumulation, spending distribution, budget vs
// actual comparison and emergency-fund progress.
//
// Every function here is a pure transform over budget allocations and
// spending totals; fetching the inputs is the caller's job.
package budget

import (
	"sort"

	"finboard/internal/core"
)

// ApplicableAllocations returns the allocations in effect for month: every
// recurring allocation plus the one-time allocations scheduled for it.
func ApplicableAllocations(items []core.BudgetAllocation, month int) []core.BudgetAllocation {
	out := make([]core.BudgetAllocation, 0, len(items))
	for _, it := range items {
		if it.AppliesTo(month) {
			out = append(out, it)
		}
	}
	return out
}

// AccumulatingAllocations returns the recurring allocations whose category
// carries unspent budget forward. One-time allocations never accumulate.
func AccumulatingAllocations(items []core.BudgetAllocation) []core.BudgetAllocation {
	out := make([]core.BudgetAllocation, 0, len(items))
	for _, it := range items {
		if it.Category.Accumulate && !it.IsOneTime {
			out = append(out, it)
		}
	}
	return out
}

// BudgetedFor sums the allocations in effect for month.
func BudgetedFor(items []core.BudgetAllocation, month int) core.Money {
	total := core.Zero
	for _, it := range ApplicableAllocations(items, month) {
		total = total.Add(it.Amount)
	}
	return total
}

// categoryGroup is the per-category view of one or more allocations.
type categoryGroup struct {
	category core.ExpenseCategory
	amount   core.Money
}

// groupByCategory merges allocations sharing a category, summing amounts.
// The result is ordered by category name, then ID.
func groupByCategory(items []core.BudgetAllocation) []categoryGroup {
	index := make(map[string]int, len(items))
	var groups []categoryGroup
	for _, it := range items {
		if i, ok := index[it.Category.ID]; ok {
			groups[i].amount = groups[i].amount.Add(it.Amount)
			continue
		}
		index[it.Category.ID] = len(groups)
		groups = append(groups, categoryGroup{category: it.Category, amount: it.Amount})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].category.Name != groups[j].category.Name {
			return groups[i].category.Name < groups[j].category.Name
		}
		return groups[i].category.ID < groups[j].category.ID
	})
	return groups
}
