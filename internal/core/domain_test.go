package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExpenseCategoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		cat     ExpenseCategory
		wantErr error
	}{
		{"valid", ExpenseCategory{Name: "Groceries", Icon: "cart"}, nil},
		{"blank name", ExpenseCategory{Name: "   "}, ErrEmptyName},
		{"long name", ExpenseCategory{Name: strings.Repeat("x", 101)}, errors.New("too long")},
		{"long icon", ExpenseCategory{Name: "Rent", Icon: strings.Repeat("i", 51)}, errors.New("too long")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cat.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %T", err)
			}
			if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpenseCategoryNormalize(t *testing.T) {
	c := ExpenseCategory{Name: "  Rent  "}.Normalize()
	if c.Name != "Rent" || c.Icon != DefaultCategoryIcon {
		t.Fatalf("normalize = %+v", c)
	}
}

func TestAllocationInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      AllocationInput
		wantErr error
	}{
		{"recurring", AllocationInput{CategoryID: "c1", Amount: MustParseMoney("100")}, nil},
		{"zero amount", AllocationInput{CategoryID: "c1", Amount: Zero}, nil},
		{"one-time", AllocationInput{CategoryID: "c1", Amount: MustParseMoney("500"), IsOneTime: true, ApplicableMonth: 6}, nil},
		{"missing category", AllocationInput{Amount: MustParseMoney("1")}, ErrMissingCategory},
		{"negative", AllocationInput{CategoryID: "c1", Amount: MoneyFromCents(-1)}, ErrInvalidAmount},
		{"one-time without month", AllocationInput{CategoryID: "c1", IsOneTime: true}, ErrMissingMonth},
		{"one-time bad month", AllocationInput{CategoryID: "c1", IsOneTime: true, ApplicableMonth: 13}, ErrInvalidMonth},
		{"recurring with month", AllocationInput{CategoryID: "c1", ApplicableMonth: 3}, ErrUnexpectedMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBudgetAllocationAppliesTo(t *testing.T) {
	recurring := BudgetAllocation{}
	oneTime := BudgetAllocation{IsOneTime: true, ApplicableMonth: 6}
	for m := 1; m <= 12; m++ {
		if !recurring.AppliesTo(m) {
			t.Fatalf("recurring should apply to month %d", m)
		}
		if got := oneTime.AppliesTo(m); got != (m == 6) {
			t.Fatalf("one-time AppliesTo(%d) = %v", m, got)
		}
	}
}

func TestReusableIDs(t *testing.T) {
	food := ExpenseCategory{ID: "food"}
	existing := []BudgetAllocation{
		{ID: "a", Category: food},
		{ID: "b", Category: food},
		{ID: "c", Category: food, IsOneTime: true, ApplicableMonth: 6},
	}
	got := ReusableIDs(existing)
	want := map[string]string{"food/recurring": "a", "food/once/6": "c"}
	if len(got) != len(want) {
		t.Fatalf("ReusableIDs = %v, want %v", got, want)
	}
	for slot, id := range want {
		if got[slot] != id {
			t.Errorf("slot %s keeps %q, want %q", slot, got[slot], id)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	base := Transaction{
		BudgetItemID: "b1",
		CategoryID:   "c1",
		Amount:       MustParseMoney("12.30"),
		Date:         NewDate(2025, 3, 14),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	mutations := map[string]func(*Transaction){
		"zero amount":      func(tx *Transaction) { tx.Amount = Zero },
		"missing date":     func(tx *Transaction) { tx.Date = Date{} },
		"missing category": func(tx *Transaction) { tx.CategoryID = "" },
		"missing item":     func(tx *Transaction) { tx.BudgetItemID = " " },
		"long description": func(tx *Transaction) { tx.Description = strings.Repeat("d", 501) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tx := base
			mutate(&tx)
			if err := tx.Validate(); err == nil || !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPreferences(t *testing.T) {
	p := DefaultPreferences("a@b.c")
	if !p.IsFirstTime || p.Currency != "USD" || p.EmergencyFundMonths != 3 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	p.Currency = "usd"
	if !errors.Is(p.Validate(), ErrInvalidCurrency) {
		t.Fatalf("lowercase currency accepted")
	}
	p.Currency = "EUR"
	p.EmergencyFundMonths = 0
	if !errors.Is(p.Validate(), ErrInvalidFundRange) {
		t.Fatalf("zero months accepted")
	}
}

func TestYearMonthNavigation(t *testing.T) {
	jan := YearMonth{Year: 2025, Month: 1}
	if got := jan.Prev(); got != (YearMonth{Year: 2024, Month: 12}) {
		t.Fatalf("Prev(jan) = %v", got)
	}
	dec := YearMonth{Year: 2024, Month: 12}
	if got := dec.Next(); got != jan {
		t.Fatalf("Next(dec) = %v", got)
	}
	if !dec.Before(jan) || jan.Before(dec) || jan.Before(jan) {
		t.Fatalf("Before ordering broken")
	}
	if got := (YearMonth{Year: 2024, Month: 2}).LastDay().Day(); got != 29 {
		t.Fatalf("leap february last day = %d", got)
	}
	if got := CurrentYearMonth(time.Date(2025, time.July, 31, 23, 0, 0, 0, time.UTC)); got != (YearMonth{Year: 2025, Month: 7}) {
		t.Fatalf("CurrentYearMonth = %v", got)
	}
	if err := (YearMonth{Year: 2025, Month: 0}).Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("month 0 accepted")
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := d.UnmarshalJSON([]byte(`"2025-03-14T10:00:00Z"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2025-03-14" {
		t.Fatalf("date = %s", d)
	}
	out, _ := d.MarshalJSON()
	if string(out) != `"2025-03-14"` {
		t.Fatalf("marshal = %s", out)
	}
}

func TestTransactionPaging(t *testing.T) {
	f := TransactionFilter{Page: -1, PageSize: 500}.Normalize()
	if f.Page != 0 || f.PageSize != MaxPageSize {
		t.Fatalf("normalize = %+v", f)
	}
	page := NewTransactionPage(nil, TransactionFilter{PageSize: 20}, 41)
	if page.TotalPages != 3 || page.Content == nil {
		t.Fatalf("page = %+v", page)
	}
}

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    YearMonth
		wantErr bool
	}{
		{in: "2025-06", want: YearMonth{Year: 2025, Month: 6}},
		{in: " 1999-12 ", want: YearMonth{Year: 1999, Month: 12}},
		{in: "2025-13", wantErr: true},
		{in: "2025/06", wantErr: true},
		{in: "1800-01", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseYearMonth(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseYearMonth(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseYearMonth(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
