package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultCategoryIcon    = "circle"
	DefaultCurrency        = "USD"
	DefaultEmergencyMonths = 3

	maxCategoryNameLen = 100
	maxIconLen         = 50
	maxDescriptionLen  = 500
)

type (
	// ExpenseCategory is a user-defined spending bucket ("expense type").
	ExpenseCategory struct {
		ID          string    `json:"id"`
		UserEmail   string    `json:"userEmail"`
		Name        string    `json:"name"`
		Icon        string    `json:"icon"`
		IsMandatory bool      `json:"isMandatory"`
		Accumulate  bool      `json:"accumulate"`
		CanDelete   bool      `json:"canDelete"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Budget groups the allocations of one user for one calendar year.
	Budget struct {
		ID        string             `json:"id"`
		UserEmail string             `json:"userEmail"`
		Year      int                `json:"year"`
		Items     []BudgetAllocation `json:"items"`
		CreatedAt time.Time          `json:"createdAt"`
		UpdatedAt time.Time          `json:"updatedAt"`
	}

	// BudgetAllocation is a planned amount for a category within a budget year.
	// Recurring allocations apply to every month; one-time allocations apply
	// only to ApplicableMonth.
	BudgetAllocation struct {
		ID              string          `json:"id"`
		BudgetID        string          `json:"budgetId"`
		Category        ExpenseCategory `json:"expenseType"`
		Amount          Money           `json:"amount"`
		IsOneTime       bool            `json:"isOneTime"`
		ApplicableMonth int             `json:"applicableMonth,omitempty"`
		CreatedAt       time.Time       `json:"createdAt"`
		UpdatedAt       time.Time       `json:"updatedAt"`
	}

	// AllocationInput is the writable part of an allocation.
	AllocationInput struct {
		CategoryID      string `json:"expenseTypeId"`
		Amount          Money  `json:"amount"`
		IsOneTime       bool   `json:"isOneTime"`
		ApplicableMonth int    `json:"applicableMonth,omitempty"`
	}

	// Transaction is a single recorded expense against a budget allocation.
	Transaction struct {
		ID           string    `json:"id"`
		UserEmail    string    `json:"userEmail"`
		BudgetItemID string    `json:"budgetItemId"`
		CategoryID   string    `json:"expenseTypeId"`
		Amount       Money     `json:"amount"`
		Description  string    `json:"description"`
		Date         Date      `json:"transactionDate"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// Preferences holds per-user settings used by the dashboard widgets.
	Preferences struct {
		Email               string    `json:"email"`
		Currency            string    `json:"currency"`
		EmergencyFundMonths int       `json:"emergencyFundMonths"`
		MonthlySalary       Money     `json:"monthlySalary"`
		EmergencyFundSaved  Money     `json:"emergencyFundSaved"`
		AvatarURL           string    `json:"avatarUrl,omitempty"`
		IsFirstTime         bool      `json:"isFirstTime"`
		CreatedAt           time.Time `json:"createdAt"`
		UpdatedAt           time.Time `json:"updatedAt"`
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingCategory  = errors.New("missing expense type")
	ErrMissingMonth     = errors.New("one-time allocations must have an applicable month")
	ErrUnexpectedMonth  = errors.New("recurring allocations cannot have an applicable month")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidFundRange = errors.New("emergency fund months must be between 1 and 24")
)

// ValidationError marks a user-correctable input problem.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidMonth reports whether m is in 1..12.
func ValidMonth(m int) bool { return m >= 1 && m <= 12 }

func (c ExpenseCategory) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return invalid("name", ErrEmptyName)
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		return invalid("name", fmt.Errorf("too long (max %d characters)", maxCategoryNameLen))
	}
	if utf8.RuneCountInString(c.Icon) > maxIconLen {
		return invalid("icon", fmt.Errorf("too long (max %d characters)", maxIconLen))
	}
	return nil
}

// Normalize trims the name and applies the default icon.
func (c ExpenseCategory) Normalize() ExpenseCategory {
	c.Name = strings.TrimSpace(c.Name)
	c.Icon = strings.TrimSpace(c.Icon)
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	return c
}

func (a AllocationInput) Validate() error {
	if strings.TrimSpace(a.CategoryID) == "" {
		return invalid("expenseTypeId", ErrMissingCategory)
	}
	if a.Amount.IsNegative() {
		return invalid("amount", ErrInvalidAmount)
	}
	if a.IsOneTime {
		if a.ApplicableMonth == 0 {
			return invalid("applicableMonth", ErrMissingMonth)
		}
		if !ValidMonth(a.ApplicableMonth) {
			return invalid("applicableMonth", ErrInvalidMonth)
		}
		return nil
	}
	if a.ApplicableMonth != 0 {
		return invalid("applicableMonth", ErrUnexpectedMonth)
	}
	return nil
}

// Slot identifies the budget line an allocation fills: category plus
// schedule. Replacing a budget's allocations keeps the IDs of matching slots
// so booked transactions stay attached.
func (a AllocationInput) Slot() string {
	if !a.IsOneTime {
		return a.CategoryID + "/recurring"
	}
	return fmt.Sprintf("%s/once/%d", a.CategoryID, a.ApplicableMonth)
}

// AppliesTo reports whether the allocation is in effect for the given month.
func (a BudgetAllocation) AppliesTo(month int) bool {
	if !a.IsOneTime {
		return true
	}
	return a.ApplicableMonth == month
}

// Input returns the writable view of the allocation.
func (a BudgetAllocation) Input() AllocationInput {
	return AllocationInput{
		CategoryID:      a.Category.ID,
		Amount:          a.Amount,
		IsOneTime:       a.IsOneTime,
		ApplicableMonth: a.ApplicableMonth,
	}
}

// ReusableIDs maps each slot of existing to the item ID a replacement keeps
// for it. When several items share a slot only the first keeps its ID.
func ReusableIDs(existing []BudgetAllocation) map[string]string {
	reuse := make(map[string]string, len(existing))
	for _, it := range existing {
		slot := it.Input().Slot()
		if _, ok := reuse[slot]; !ok {
			reuse[slot] = it.ID
		}
	}
	return reuse
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return invalid("transactionDate", err)
	}
	if !t.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return invalid("expenseTypeId", ErrMissingCategory)
	}
	if strings.TrimSpace(t.BudgetItemID) == "" {
		return invalid("budgetItemId", errors.New("missing budget item"))
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return invalid("description", fmt.Errorf("too long (max %d characters)", maxDescriptionLen))
	}
	return nil
}

// DefaultPreferences returns the settings used before the user saves any.
func DefaultPreferences(email string) Preferences {
	return Preferences{
		Email:               email,
		Currency:            DefaultCurrency,
		EmergencyFundMonths: DefaultEmergencyMonths,
		IsFirstTime:         true,
	}
}

func (p Preferences) Validate() error {
	if len(p.Currency) != 3 || strings.ToUpper(p.Currency) != p.Currency {
		return invalid("currency", ErrInvalidCurrency)
	}
	if p.EmergencyFundMonths < 1 || p.EmergencyFundMonths > 24 {
		return invalid("emergencyFundMonths", ErrInvalidFundRange)
	}
	if p.MonthlySalary.IsNegative() {
		return invalid("monthlySalary", ErrInvalidAmount)
	}
	if p.EmergencyFundSaved.IsNegative() {
		return invalid("emergencyFundSaved", ErrInvalidAmount)
	}
	return nil
}
