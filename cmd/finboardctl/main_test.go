package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/auth"
	"finboard/internal/budget"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("AUTH_DEV_EMAIL", "ana@example.com")
	t.Setenv("LOG_LEVEL", "error")
}

func TestWriteBurnRate(t *testing.T) {
	var out bytes.Buffer
	writeBurnRate(&out, dashboard.BurnRateView{
		Period:    core.YearMonth{Year: 2025, Month: 6},
		HasBudget: true,
		Items: []budget.BurnRateResult{
			{CategoryName: "Food", BudgetAmount: core.MustParseMoney("1200"), SpentAmount: core.MustParseMoney("1020"), Percentage: 85},
			{CategoryName: "Gifts", IsOneTime: true, BudgetAmount: core.MustParseMoney("300"), SpentAmount: core.MustParseMoney("30"), Percentage: 10},
		},
	})

	s := out.String()
	assert.Contains(t, s, "Budget burn rate, June 2025")
	assert.Contains(t, s, "CATEGORY")
	assert.Contains(t, s, "1,200.00")
	assert.Contains(t, s, "85%")
	assert.Contains(t, s, "critical")
	assert.Contains(t, s, "Gifts (one-time)")
	assert.Contains(t, s, "good")
}

func TestTableAlignsStyledCells(t *testing.T) {
	sgr := regexp.MustCompile("\x1b\\[[0-9;]*m")
	var tbl table
	tbl.row("\x1b[1;38;5;86mID\x1b[0m", "\x1b[1;38;5;86mLEVEL\x1b[0m", "NOTE")
	tbl.row("category", "\x1b[38;5;196mcritical\x1b[0m", "x")

	var out bytes.Buffer
	require.NoError(t, tbl.write(&out))
	lines := strings.Split(strings.TrimSuffix(sgr.ReplaceAllString(out.String(), ""), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID        LEVEL     NOTE", lines[0])
	assert.Equal(t, "category  critical  x", lines[1])
}

func TestWriteBurnRateWithoutBudget(t *testing.T) {
	var out bytes.Buffer
	writeBurnRate(&out, dashboard.BurnRateView{Period: core.YearMonth{Year: 2024, Month: 3}})
	assert.Contains(t, out.String(), "No budget for 2024.")
	assert.NotContains(t, out.String(), "CATEGORY")
}

func TestWriteAccumulation(t *testing.T) {
	var out bytes.Buffer
	writeAccumulation(&out, dashboard.AccumulationView{
		Period:      core.YearMonth{Year: 2025, Month: 3},
		HasBudget:   true,
		Policy:      budget.FailOpen.String(),
		Unavailable: []int{1},
		Items: []budget.AccumulationResult{{
			CategoryName:   "Food",
			MonthlyBudget:  core.MustParseMoney("100"),
			Accumulated:    core.MustParseMoney("260"),
			SpentThisMonth: core.MustParseMoney("20"),
			Remaining:      core.MustParseMoney("240"),
		}},
	})

	s := out.String()
	assert.Contains(t, s, "March 2025")
	assert.Contains(t, s, "policy "+budget.FailOpen.String())
	assert.Contains(t, s, "Spending unavailable for: January")
	assert.Contains(t, s, "260.00")
	assert.Contains(t, s, "240.00")
}

func TestReportCommands(t *testing.T) {
	memoryEnv(t)

	out, err := run(t, "report", "burn-rate", "--period", "2025-06")
	require.NoError(t, err)
	assert.Contains(t, out, "June 2025")
	assert.Contains(t, out, "No budget for 2025.")

	out, err = run(t, "report", "accumulation", "--period", "2025-06", "--policy", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, "policy strict")

	_, err = run(t, "report", "burn-rate", "--period", "2025-13")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--period")

	_, err = run(t, "report", "accumulation", "--policy", "sometimes")
	require.Error(t, err)
}

func TestSessionRequiresEmail(t *testing.T) {
	memoryEnv(t)
	t.Setenv("AUTH_DEV_EMAIL", "")

	_, err := run(t, "report", "burn-rate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email")

	_, err = run(t, "report", "burn-rate", "--email", "bo@example.com", "--period", "2025-01")
	assert.NoError(t, err)
}

func TestRemoteBackendRequiresToken(t *testing.T) {
	memoryEnv(t)
	t.Setenv("DATA_BACKEND", "remote")

	_, err := run(t, "budget", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")
}

func TestMigrateCommands(t *testing.T) {
	memoryEnv(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, "migrate", "up", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1 (clean)")

	out, err = run(t, "migrate", "down", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0 (clean)")

	_, err = run(t, "migrate", "down", "--db", db, "--steps", "0")
	assert.Error(t, err)

	t.Setenv("SQLITE_DB_PATH", db)
	out, err = run(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, db+": schema version 0")
}

func TestBudgetCopy(t *testing.T) {
	memoryEnv(t)
	db := filepath.Join(t.TempDir(), "budgets.db")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", db)

	// The target year must be open for creation, so copy into the current one.
	year := time.Now().Year()
	sess := auth.Session{Email: "ana@example.com"}

	repo, err := storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	ctx := context.Background()
	food, err := repo.CreateCategory(ctx, sess, core.ExpenseCategory{Name: "Food", Accumulate: true})
	require.NoError(t, err)
	_, err = repo.CreateBudget(ctx, sess, year-1, []core.AllocationInput{
		{CategoryID: food.ID, Amount: core.MustParseMoney("100")},
		{CategoryID: food.ID, Amount: core.MustParseMoney("40"), IsOneTime: true, ApplicableMonth: 12},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	from, to := strconv.Itoa(year-1), strconv.Itoa(year)
	out, err := run(t, "budget", "copy", "--from", from, "--to", to)
	require.NoError(t, err)
	assert.Contains(t, out, "Copied 2 items from "+from+" to "+to+".")

	_, err = run(t, "budget", "copy", "--from", from, "--to", to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)

	out, err = run(t, "budget", "list")
	require.NoError(t, err)
	assert.Contains(t, out, from)
	assert.Contains(t, out, to)

	_, err = run(t, "budget", "copy", "--from", from)
	assert.Error(t, err)
}

func TestSheetsAuthorizeNeedsClient(t *testing.T) {
	memoryEnv(t)
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")

	_, err := run(t, "sheets", "authorize", "--timeout", "1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing oauth client")
}
