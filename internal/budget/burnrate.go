package budget

import (
	"sort"

	"finboard/internal/core"
)

// BurnRateResult reports how much of one allocation has been spent.
type BurnRateResult struct {
	AllocationID string     `json:"allocationId"`
	CategoryID   string     `json:"expenseTypeId"`
	CategoryName string     `json:"expenseTypeName"`
	Icon         string     `json:"icon"`
	IsOneTime    bool       `json:"isOneTime"`
	BudgetAmount core.Money `json:"budgetAmount"`
	SpentAmount  core.Money `json:"spentAmount"`
	Percentage   float64    `json:"percentage"`
}

// Level buckets the percentage for display.
func (r BurnRateResult) Level() Level { return BurnLevel(r.Percentage) }

// Remaining is budget minus spent; negative when overspent.
func (r BurnRateResult) Remaining() core.Money { return r.BudgetAmount.Sub(r.SpentAmount) }

// BurnRate computes one result per allocation applicable to month, using
// spent (category ID -> amount) as the month's spending. Categories with no
// entry in spent count as zero spend.
//
// Results are ordered by descending percentage; ties are broken by category
// name ascending, then by input order.
func BurnRate(items []core.BudgetAllocation, month int, spent map[string]core.Money) []BurnRateResult {
	applicable := ApplicableAllocations(items, month)
	results := make([]BurnRateResult, 0, len(applicable))
	for _, it := range applicable {
		s := spent[it.Category.ID]
		results = append(results, BurnRateResult{
			AllocationID: it.ID,
			CategoryID:   it.Category.ID,
			CategoryName: it.Category.Name,
			Icon:         it.Category.Icon,
			IsOneTime:    it.IsOneTime,
			BudgetAmount: it.Amount,
			SpentAmount:  s,
			Percentage:   s.PercentOf(it.Amount),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Percentage != results[j].Percentage {
			return results[i].Percentage > results[j].Percentage
		}
		return results[i].CategoryName < results[j].CategoryName
	})
	return results
}

// Level is a coarse status bucket used to colour widgets.
type Level string

const (
	LevelGood     Level = "good"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// BurnLevel maps a spent percentage to a level: 80% and above is critical,
// 50% and above is a warning.
func BurnLevel(pct float64) Level {
	switch {
	case pct >= 80:
		return LevelCritical
	case pct >= 50:
		return LevelWarning
	default:
		return LevelGood
	}
}
