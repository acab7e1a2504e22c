package budget

import (
	"sort"

	"finboard/internal/core"
)

// DistributionSlice is one category's share of a month's spending.
type DistributionSlice struct {
	CategoryID   string     `json:"expenseTypeId"`
	CategoryName string     `json:"expenseTypeName"`
	Icon         string     `json:"icon"`
	Amount       core.Money `json:"amount"`
	Share        float64    `json:"share"`
}

// UnknownCategoryName labels spending whose category no longer exists.
const UnknownCategoryName = "Other"

// Distribution splits a month's spending by category. Zero totals are
// skipped; slices are ordered by descending amount, then name.
func Distribution(spending []core.CategorySpending, categories []core.ExpenseCategory) []DistributionSlice {
	byID := make(map[string]core.ExpenseCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	totals := core.SpendingTotals(spending)
	grand := core.Zero
	for _, amt := range totals {
		grand = grand.Add(amt)
	}

	out := make([]DistributionSlice, 0, len(totals))
	for id, amt := range totals {
		if !amt.IsPositive() {
			continue
		}
		slice := DistributionSlice{
			CategoryID:   id,
			CategoryName: UnknownCategoryName,
			Icon:         core.DefaultCategoryIcon,
			Amount:       amt,
			Share:        amt.PercentOf(grand),
		}
		if c, ok := byID[id]; ok {
			slice.CategoryName = c.Name
			slice.Icon = c.Icon
		}
		out = append(out, slice)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		if out[i].CategoryName != out[j].CategoryName {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// MonthComparison is budget vs actual for one month.
type MonthComparison struct {
	Month    int        `json:"month"`
	Budgeted core.Money `json:"budgeted"`
	Spent    core.Money `json:"spent"`
}

// MonthlyComparison returns budgeted and spent totals for months 1..12.
func MonthlyComparison(items []core.BudgetAllocation, yearly core.YearlySummary) []MonthComparison {
	out := make([]MonthComparison, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, MonthComparison{
			Month:    m,
			Budgeted: BudgetedFor(items, m),
			Spent:    yearly.MonthlyTotals[m],
		})
	}
	return out
}

// MonthTotals summarises a month's total budget against total spending.
type MonthTotals struct {
	Budgeted   core.Money `json:"budgeted"`
	Spent      core.Money `json:"spent"`
	Remaining  core.Money `json:"remaining"`
	Percentage float64    `json:"percentage"`
	Level      Level      `json:"level"`
}

// Totals computes the month summary from the applicable allocations and the
// month's total spending.
func Totals(items []core.BudgetAllocation, month int, spent core.Money) MonthTotals {
	budgeted := BudgetedFor(items, month)
	pct := spent.PercentOf(budgeted)
	return MonthTotals{
		Budgeted:   budgeted,
		Spent:      spent,
		Remaining:  budgeted.Sub(spent),
		Percentage: pct,
		Level:      BurnLevel(pct),
	}
}

// FundBasis names what the emergency-fund target was derived from.
type FundBasis string

const (
	BasisMandatoryBudget FundBasis = "mandatory-budget"
	BasisSalary          FundBasis = "salary"
)

// EmergencyFundStatus is the progress towards the emergency-fund target.
type EmergencyFundStatus struct {
	Months       int        `json:"months"`
	Basis        FundBasis  `json:"basis"`
	MonthlyBasis core.Money `json:"monthlyBasis"`
	Target       core.Money `json:"target"`
	Saved        core.Money `json:"saved"`
	Progress     float64    `json:"progress"`
	Level        Level      `json:"level"`
}

// MandatoryMonthly sums the recurring allocations of mandatory categories.
func MandatoryMonthly(items []core.BudgetAllocation) core.Money {
	total := core.Zero
	for _, it := range items {
		if !it.IsOneTime && it.Category.IsMandatory {
			total = total.Add(it.Amount)
		}
	}
	return total
}

// EmergencyFund sizes the target as months x mandatory monthly spending,
// falling back to months x salary when the budget has no mandatory
// recurring allocations.
func EmergencyFund(prefs core.Preferences, items []core.BudgetAllocation) EmergencyFundStatus {
	basis := BasisMandatoryBudget
	monthly := MandatoryMonthly(items)
	if !monthly.IsPositive() {
		basis = BasisSalary
		monthly = prefs.MonthlySalary
	}
	target := monthly.Times(prefs.EmergencyFundMonths)
	progress := prefs.EmergencyFundSaved.PercentOf(target)
	return EmergencyFundStatus{
		Months:       prefs.EmergencyFundMonths,
		Basis:        basis,
		MonthlyBasis: monthly,
		Target:       target,
		Saved:        prefs.EmergencyFundSaved,
		Progress:     progress,
		Level:        FundLevel(progress),
	}
}

// FundLevel maps fund progress to a level: 100% is good, 50% a warning.
func FundLevel(progress float64) Level {
	switch {
	case progress >= 100:
		return LevelGood
	case progress >= 50:
		return LevelWarning
	default:
		return LevelCritical
	}
}
