// Package memory is an in-process backend used for local development and
// tests. Data lives for the lifetime of the process.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
)

var _ ports.Backend = (*Store)(nil)

// DefaultSeed are the categories every new user starts with.
var DefaultSeed = []core.ExpenseCategory{
	{Name: "Rent", Icon: "home", IsMandatory: true},
	{Name: "Utilities", Icon: "bolt", IsMandatory: true},
	{Name: "Groceries", Icon: "cart", IsMandatory: true, Accumulate: true},
	{Name: "Transport", Icon: "car", Accumulate: true},
	{Name: "Leisure", Icon: "star", Accumulate: true},
}

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	seed         []core.ExpenseCategory
	seeded       map[string]bool
	categories   map[string]core.ExpenseCategory
	budgets      map[string]*core.Budget // key: email|year
	transactions map[string]core.Transaction
	prefs        map[string]core.Preferences
}

// New returns an empty store that seeds each user with seed on first access.
func New(seed []core.ExpenseCategory) *Store {
	return &Store{
		now:          time.Now,
		seed:         append([]core.ExpenseCategory(nil), seed...),
		seeded:       map[string]bool{},
		categories:   map[string]core.ExpenseCategory{},
		budgets:      map[string]*core.Budget{},
		transactions: map[string]core.Transaction{},
		prefs:        map[string]core.Preferences{},
	}
}

// NewFromFiles reads seed categories from base/seed_categories.txt, one per
// line as "name[,icon[,flags]]" where flags may contain "mandatory" and
// "accumulate". DefaultSeed is used when the file is missing or empty.
func NewFromFiles(base string) *Store {
	seed := parseSeed(readLines(filepath.Join(base, "seed_categories.txt")))
	if len(seed) == 0 {
		seed = DefaultSeed
	}
	return New(seed)
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) ensureSeeded(email string) {
	if s.seeded[email] {
		return
	}
	s.seeded[email] = true
	now := s.now()
	for _, c := range s.seed {
		c = c.Normalize()
		c.ID = uuid.NewString()
		c.UserEmail = email
		c.CreatedAt, c.UpdatedAt = now, now
		s.categories[c.ID] = c
	}
}

// Categories

func (s *Store) ListCategories(_ context.Context, sess auth.Session) ([]core.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded(sess.Email)

	out := make([]core.ExpenseCategory, 0)
	for _, c := range s.categories {
		if c.UserEmail != sess.Email {
			continue
		}
		c.CanDelete = !s.categoryInUse(sess.Email, c.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !strings.EqualFold(out[i].Name, out[j].Name) {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, sess auth.Session, id string) (core.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded(sess.Email)

	c, ok := s.categories[id]
	if !ok || c.UserEmail != sess.Email {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %s: %w", id, core.ErrNotFound)
	}
	c.CanDelete = !s.categoryInUse(sess.Email, id)
	return c, nil
}

func (s *Store) nameTaken(email, name, exceptID string) bool {
	for _, c := range s.categories {
		if c.UserEmail == email && c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(_ context.Context, sess auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded(sess.Email)

	if s.nameTaken(sess.Email, c.Name, "") {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %q already exists: %w", c.Name, core.ErrConflict)
	}
	now := s.now()
	c.ID = uuid.NewString()
	c.UserEmail = sess.Email
	c.CreatedAt, c.UpdatedAt = now, now
	c.CanDelete = true
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, sess auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded(sess.Email)

	existing, ok := s.categories[c.ID]
	if !ok || existing.UserEmail != sess.Email {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %s: %w", c.ID, core.ErrNotFound)
	}
	if s.nameTaken(sess.Email, c.Name, c.ID) {
		return core.ExpenseCategory{}, fmt.Errorf("expense type %q already exists: %w", c.Name, core.ErrConflict)
	}
	existing.Name = c.Name
	existing.Icon = c.Icon
	existing.IsMandatory = c.IsMandatory
	existing.Accumulate = c.Accumulate
	existing.UpdatedAt = s.now()
	s.categories[c.ID] = existing
	existing.CanDelete = !s.categoryInUse(sess.Email, c.ID)
	return existing, nil
}

func (s *Store) DeleteCategory(_ context.Context, sess auth.Session, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok || c.UserEmail != sess.Email {
		return fmt.Errorf("expense type %s: %w", id, core.ErrNotFound)
	}
	if s.categoryInUse(sess.Email, id) {
		return fmt.Errorf("expense type %q is used by a budget: %w", c.Name, core.ErrConflict)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CategoryInUse(_ context.Context, sess auth.Session, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryInUse(sess.Email, id), nil
}

func (s *Store) categoryInUse(email, id string) bool {
	for _, b := range s.budgets {
		if b.UserEmail != email {
			continue
		}
		for _, it := range b.Items {
			if it.Category.ID == id {
				return true
			}
		}
	}
	return false
}

// Budgets

func budgetKey(email string, year int) string { return fmt.Sprintf("%s|%d", email, year) }

// snapshot returns a copy of b with allocation categories refreshed, so
// renames and flag changes are visible on read.
func (s *Store) snapshot(b *core.Budget) core.Budget {
	out := *b
	out.Items = make([]core.BudgetAllocation, len(b.Items))
	for i, it := range b.Items {
		if c, ok := s.categories[it.Category.ID]; ok {
			it.Category = c
		}
		out.Items[i] = it
	}
	return out
}

func (s *Store) ListBudgets(_ context.Context, sess auth.Session) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.UserEmail == sess.Email {
			out = append(out, s.snapshot(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, sess auth.Session, year int) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.budgets[budgetKey(sess.Email, year)]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", year, core.ErrNotFound)
	}
	return s.snapshot(b), nil
}

func (s *Store) buildItems(email, budgetID string, items []core.AllocationInput, existing []core.BudgetAllocation, now time.Time) ([]core.BudgetAllocation, error) {
	reuse := core.ReusableIDs(existing)
	out := make([]core.BudgetAllocation, 0, len(items))
	for _, in := range items {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		c, ok := s.categories[in.CategoryID]
		if !ok || c.UserEmail != email {
			return nil, fmt.Errorf("expense type %s: %w", in.CategoryID, core.ErrNotFound)
		}
		id, ok := reuse[in.Slot()]
		if ok {
			delete(reuse, in.Slot())
		} else {
			id = uuid.NewString()
		}
		out = append(out, core.BudgetAllocation{
			ID:              id,
			BudgetID:        budgetID,
			Category:        c,
			Amount:          in.Amount,
			IsOneTime:       in.IsOneTime,
			ApplicableMonth: in.ApplicableMonth,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, sess auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded(sess.Email)

	key := budgetKey(sess.Email, year)
	if _, ok := s.budgets[key]; ok {
		return core.Budget{}, fmt.Errorf("budget %d already exists: %w", year, core.ErrConflict)
	}
	now := s.now()
	b := &core.Budget{ID: uuid.NewString(), UserEmail: sess.Email, Year: year, CreatedAt: now, UpdatedAt: now}
	allocs, err := s.buildItems(sess.Email, b.ID, items, nil, now)
	if err != nil {
		return core.Budget{}, err
	}
	b.Items = allocs
	s.budgets[key] = b
	return s.snapshot(b), nil
}

func (s *Store) ReplaceAllocations(_ context.Context, sess auth.Session, year int, items []core.AllocationInput) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.budgets[budgetKey(sess.Email, year)]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", year, core.ErrNotFound)
	}
	now := s.now()
	allocs, err := s.buildItems(sess.Email, b.ID, items, b.Items, now)
	if err != nil {
		return core.Budget{}, err
	}
	b.Items = allocs
	b.UpdatedAt = now
	return s.snapshot(b), nil
}

func (s *Store) DeleteBudget(_ context.Context, sess auth.Session, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey(sess.Email, year)
	if _, ok := s.budgets[key]; !ok {
		return fmt.Errorf("budget %d: %w", year, core.ErrNotFound)
	}
	delete(s.budgets, key)
	return nil
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, sess auth.Session, f core.TransactionFilter) (core.TransactionPage, error) {
	f = f.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []core.Transaction
	for _, t := range s.transactions {
		if t.UserEmail == sess.Email && f.Matches(t) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date.Time) {
			return matched[i].Date.After(matched[j].Date.Time)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.Page * f.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return core.NewTransactionPage(matched[start:end:end], f, total), nil
}

func (s *Store) GetTransaction(_ context.Context, sess auth.Session, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.UserEmail != sess.Email {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) CreateTransaction(_ context.Context, sess auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t.ID = uuid.NewString()
	t.UserEmail = sess.Email
	t.CreatedAt, t.UpdatedAt = now, now
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, sess auth.Session, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[t.ID]
	if !ok || existing.UserEmail != sess.Email {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	t.UserEmail = existing.UserEmail
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, sess auth.Session, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok || t.UserEmail != sess.Email {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) AllocationHasTransactions(_ context.Context, sess auth.Session, allocationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.UserEmail == sess.Email && t.BudgetItemID == allocationID {
			return true, nil
		}
	}
	return false, nil
}

// Spending

func (s *Store) SpendingByCategory(_ context.Context, sess auth.Session, period core.YearMonth) ([]core.CategorySpending, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := map[string]core.Money{}
	for _, t := range s.transactions {
		if t.UserEmail == sess.Email && period.Contains(t.Date) {
			totals[t.CategoryID] = totals[t.CategoryID].Add(t.Amount)
		}
	}
	out := make([]core.CategorySpending, 0, len(totals))
	for id, amt := range totals {
		out = append(out, core.CategorySpending{CategoryID: id, Total: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *Store) MonthlySummary(_ context.Context, sess auth.Session, period core.YearMonth) (core.MonthlySummary, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := core.MonthlySummary{Year: period.Year, Month: period.Month, TotalExpenses: core.Zero}
	for _, t := range s.transactions {
		if t.UserEmail == sess.Email && period.Contains(t.Date) {
			sum.TotalExpenses = sum.TotalExpenses.Add(t.Amount)
			sum.TransactionCount++
		}
	}
	return sum, nil
}

func (s *Store) YearlySummary(_ context.Context, sess auth.Session, year int) (core.YearlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := core.YearlySummary{Year: year, MonthlyTotals: map[int]core.Money{}, YearlyTotal: core.Zero}
	for _, t := range s.transactions {
		if t.UserEmail != sess.Email || t.Date.Year() != year {
			continue
		}
		m := t.Date.Month()
		sum.MonthlyTotals[m] = sum.MonthlyTotals[m].Add(t.Amount)
		sum.YearlyTotal = sum.YearlyTotal.Add(t.Amount)
	}
	return sum, nil
}

// Preferences

func (s *Store) GetPreferences(_ context.Context, sess auth.Session) (core.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[sess.Email]
	if !ok {
		return core.Preferences{}, fmt.Errorf("preferences for %s: %w", sess.Email, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) SavePreferences(_ context.Context, sess auth.Session, p core.Preferences) (core.Preferences, error) {
	if err := p.Validate(); err != nil {
		return core.Preferences{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p.Email = sess.Email
	if existing, ok := s.prefs[sess.Email]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.prefs[sess.Email] = p
	return p, nil
}

func parseSeed(lines []string) []core.ExpenseCategory {
	var out []core.ExpenseCategory
	for _, line := range lines {
		parts := strings.Split(line, ",")
		c := core.ExpenseCategory{Name: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			c.Icon = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			flags := strings.ToLower(parts[2])
			c.IsMandatory = strings.Contains(flags, "mandatory")
			c.Accumulate = strings.Contains(flags, "accumulate")
		}
		if c.Validate() == nil {
			out = append(out, c)
		}
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
