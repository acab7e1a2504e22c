package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
)

func TestDistribution(t *testing.T) {
	categories := []core.ExpenseCategory{
		category("f", "Food", false),
		category("r", "Rent", false),
		category("b", "Books", false),
	}
	spending := []core.CategorySpending{
		{CategoryID: "f", Total: money("50")},
		{CategoryID: "r", Total: money("150")},
		{CategoryID: "b", Total: money("0")},
		{CategoryID: "gone", Total: money("50")},
		{CategoryID: "f", Total: money("0.00")},
	}

	slices := Distribution(spending, categories)

	require.Len(t, slices, 3)
	assert.Equal(t, "Rent", slices[0].CategoryName)
	assert.Equal(t, 60.0, slices[0].Share)
	// Equal amounts fall back to name order.
	assert.Equal(t, "Food", slices[1].CategoryName)
	assert.Equal(t, UnknownCategoryName, slices[2].CategoryName)
	assert.Equal(t, core.DefaultCategoryIcon, slices[2].Icon)
	assert.Equal(t, 20.0, slices[2].Share)
}

func TestDistribution_Empty(t *testing.T) {
	assert.Empty(t, Distribution(nil, nil))
}

func TestMonthlyComparison(t *testing.T) {
	food := category("f", "Food", false)
	items := []core.BudgetAllocation{
		recurring("a1", food, "100"),
		oneTime("a2", food, "300", 12),
	}
	yearly := core.YearlySummary{
		Year:          2025,
		MonthlyTotals: map[int]core.Money{1: money("80"), 12: money("410")},
	}

	rows := MonthlyComparison(items, yearly)

	require.Len(t, rows, 12)
	assert.Equal(t, 1, rows[0].Month)
	assert.Equal(t, "100.00", rows[0].Budgeted.String())
	assert.Equal(t, "80.00", rows[0].Spent.String())
	assert.True(t, rows[5].Spent.IsZero())
	assert.Equal(t, "400.00", rows[11].Budgeted.String())
	assert.Equal(t, "410.00", rows[11].Spent.String())
}

func TestTotals(t *testing.T) {
	items := []core.BudgetAllocation{
		recurring("a1", category("f", "Food", false), "300"),
		recurring("a2", category("r", "Rent", false), "700"),
	}

	tests := []struct {
		name      string
		spent     string
		remaining string
		pct       float64
		level     Level
	}{
		{"under half", "200", "800.00", 20, LevelGood},
		{"warning", "500", "500.00", 50, LevelWarning},
		{"critical", "800", "200.00", 80, LevelCritical},
		{"overspent", "1100", "-100.00", 110, LevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Totals(items, 4, money(tt.spent))
			assert.Equal(t, "1000.00", got.Budgeted.String())
			assert.Equal(t, tt.remaining, got.Remaining.String())
			assert.Equal(t, tt.pct, got.Percentage)
			assert.Equal(t, tt.level, got.Level)
		})
	}
}

func TestEmergencyFund(t *testing.T) {
	rent := core.ExpenseCategory{ID: "r", Name: "Rent", IsMandatory: true}
	utilities := core.ExpenseCategory{ID: "u", Name: "Utilities", IsMandatory: true}
	fun := core.ExpenseCategory{ID: "f", Name: "Fun"}

	t.Run("mandatory recurring budget", func(t *testing.T) {
		items := []core.BudgetAllocation{
			recurring("a1", rent, "1000"),
			recurring("a2", utilities, "200"),
			recurring("a3", fun, "400"),
			oneTime("a4", rent, "5000", 3),
		}
		prefs := core.DefaultPreferences("a@example.com")
		prefs.EmergencyFundSaved = money("1800")
		prefs.MonthlySalary = money("4000")

		got := EmergencyFund(prefs, items)

		assert.Equal(t, BasisMandatoryBudget, got.Basis)
		assert.Equal(t, "1200.00", got.MonthlyBasis.String())
		assert.Equal(t, "3600.00", got.Target.String())
		assert.Equal(t, 50.0, got.Progress)
		assert.Equal(t, LevelWarning, got.Level)
	})

	t.Run("salary fallback", func(t *testing.T) {
		prefs := core.DefaultPreferences("a@example.com")
		prefs.EmergencyFundMonths = 6
		prefs.MonthlySalary = money("2000")
		prefs.EmergencyFundSaved = money("12000")

		got := EmergencyFund(prefs, []core.BudgetAllocation{recurring("a1", fun, "400")})

		assert.Equal(t, BasisSalary, got.Basis)
		assert.Equal(t, "12000.00", got.Target.String())
		assert.Equal(t, 100.0, got.Progress)
		assert.Equal(t, LevelGood, got.Level)
	})

	t.Run("nothing to size against", func(t *testing.T) {
		got := EmergencyFund(core.DefaultPreferences("a@example.com"), nil)
		assert.True(t, got.Target.IsZero())
		assert.Equal(t, 0.0, got.Progress)
		assert.Equal(t, LevelCritical, got.Level)
	})
}
