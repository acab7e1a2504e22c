package http

import (
	"context"
	"net/http"
	"strings"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
)

// apiSession returns the caller's session or answers 401.
func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, err := session(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return auth.Session{}, false
	}
	return sess, true
}

// Expense types

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	cats, err := s.deps.Categories.List(r.Context(), sess)
	if err != nil {
		s.writeAPIError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	cat, err := s.deps.Categories.Get(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		s.writeAPIError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var in core.ExpenseCategory
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)
	created, err := s.deps.Categories.Create(r.Context(), sess, in)
	if err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var in core.ExpenseCategory
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	in.ID = r.PathValue("id")
	in.Name = sanitizeInput(in.Name)
	updated, err := s.deps.Categories.Update(r.Context(), sess, in)
	if err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	if err := s.deps.Categories.Delete(r.Context(), sess, r.PathValue("id")); err != nil {
		s.writeAPIError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Budgets

type createBudgetRequest struct {
	Year int `json:"year"`
	// Budget.Year is the nested form used by the upstream budget service.
	Budget struct {
		Year int `json:"year"`
	} `json:"budget"`
	Items []core.AllocationInput `json:"items"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	budgets, err := s.deps.Budgets.List(r.Context(), sess)
	if err != nil {
		s.writeAPIError(w, r, log.OpList, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	year, err := ParseYear("year", r.PathValue("year"))
	if err != nil {
		s.writeAPIError(w, r, log.OpRead, err)
		return
	}
	b, err := s.deps.Budgets.Get(r.Context(), sess, year)
	if err != nil {
		s.writeAPIError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var req createBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	year := req.Year
	if year == 0 {
		year = req.Budget.Year
	}
	b, err := s.deps.Budgets.Create(r.Context(), sess, year, req.Items)
	if err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleReplaceBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	year, err := ParseYear("year", r.PathValue("year"))
	if err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	var items []core.AllocationInput
	if err := decodeJSON(w, r, &items); err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	b, err := s.deps.Budgets.Replace(r.Context(), sess, year, items)
	if err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	year, err := ParseYear("year", r.PathValue("year"))
	if err != nil {
		s.writeAPIError(w, r, log.OpDelete, err)
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), sess, year); err != nil {
		s.writeAPIError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCopyBudget copies ?fromYear into ?toYear.
func (s *Server) handleCopyBudget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := ParseYear("fromYear", q.Get("fromYear"))
	if err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	to, err := ParseYear("toYear", q.Get("toYear"))
	if err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	b, err := s.deps.Budgets.Copy(r.Context(), sess, from, to)
	if err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		s.writeAPIError(w, r, log.OpList, err)
		return
	}
	page, err := s.deps.Transactions.List(r.Context(), sess, f)
	if err != nil {
		s.writeAPIError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	t, err := s.deps.Transactions.Get(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		s.writeAPIError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var in core.Transaction
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	created, err := s.deps.Transactions.Create(r.Context(), sess, in)
	if err != nil {
		s.writeAPIError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().
			WithTransaction(created.ID, created.CategoryID, created.Amount.String()).
			WithPeriod(created.Date.Year(), created.Date.Month()).
			ToSlice()...)
	writeTransactionChange(w, http.StatusCreated, created, "Transaction saved")
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var in core.Transaction
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	in.ID = r.PathValue("id")
	in.Description = sanitizeInput(in.Description)
	updated, err := s.deps.Transactions.Update(r.Context(), sess, in)
	if err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	writeTransactionChange(w, http.StatusOK, updated, "Transaction updated")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	tx, err := s.deps.Backend.GetTransaction(r.Context(), sess, id)
	if err != nil {
		s.writeAPIError(w, r, log.OpDelete, err)
		return
	}
	if err := s.deps.Transactions.Delete(r.Context(), sess, id); err != nil {
		s.writeAPIError(w, r, log.OpDelete, err)
		return
	}
	writeTransactionChange(w, http.StatusNoContent, tx, "Transaction deleted")
}

// writeTransactionChange answers a transaction write and tells the dashboard
// to reload the widgets of the transaction's month.
func writeTransactionChange(w http.ResponseWriter, status int, tx core.Transaction, message string) {
	b := NewHTMXResponse().
		Status(status).
		TriggerTransactionChanged(tx.Date.Year(), tx.Date.Month()).
		TriggerSuccessNotification(message)
	if status == http.StatusCreated {
		b.TriggerFormReset()
	}
	if status != http.StatusNoContent {
		b.JSON(tx)
	}
	b.Write(w)
}

func (s *Server) handleCheckBudgetItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	has, err := s.deps.Backend.AllocationHasTransactions(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		s.writeAPIError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, has)
}

// Summaries

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	s.servePeriod(w, r, func(ctx context.Context, sess auth.Session, p core.YearMonth) (any, error) {
		return s.deps.Backend.MonthlySummary(ctx, sess, p)
	})
}

func (s *Server) handleSpendingByType(w http.ResponseWriter, r *http.Request) {
	s.servePeriod(w, r, func(ctx context.Context, sess auth.Session, p core.YearMonth) (any, error) {
		rows, err := s.deps.Backend.SpendingByCategory(ctx, sess, p)
		if rows == nil && err == nil {
			rows = []core.CategorySpending{}
		}
		return rows, err
	})
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	s.serveYear(w, r, func(ctx context.Context, sess auth.Session, year int) (any, error) {
		return s.deps.Backend.YearlySummary(ctx, sess, year)
	})
}

// Preferences

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Preferences.Get(r.Context(), sess)
	if err != nil {
		s.writeAPIError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	var in core.Preferences
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	saved, err := s.deps.Preferences.Save(r.Context(), sess, in)
	if err != nil {
		s.writeAPIError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Dashboard

func (s *Server) handleAPIBurnRate(w http.ResponseWriter, r *http.Request) {
	s.servePeriod(w, r, func(ctx context.Context, sess auth.Session, p core.YearMonth) (any, error) {
		return s.deps.Dashboard.BurnRate(ctx, sess, p)
	})
}

func (s *Server) handleAPIAccumulation(w http.ResponseWriter, r *http.Request) {
	s.servePeriod(w, r, func(ctx context.Context, sess auth.Session, p core.YearMonth) (any, error) {
		return s.deps.Dashboard.Accumulation(ctx, sess, p)
	})
}

func (s *Server) handleAPIDistribution(w http.ResponseWriter, r *http.Request) {
	s.servePeriod(w, r, func(ctx context.Context, sess auth.Session, p core.YearMonth) (any, error) {
		return s.deps.Dashboard.Distribution(ctx, sess, p)
	})
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	s.servePeriod(w, r, func(ctx context.Context, sess auth.Session, p core.YearMonth) (any, error) {
		return s.deps.Dashboard.Summary(ctx, sess, p)
	})
}

func (s *Server) handleAPIComparison(w http.ResponseWriter, r *http.Request) {
	s.serveYear(w, r, func(ctx context.Context, sess auth.Session, year int) (any, error) {
		return s.deps.Dashboard.Comparison(ctx, sess, year)
	})
}

func (s *Server) handleAPIEmergencyFund(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	status, err := s.deps.Dashboard.EmergencyFund(r.Context(), sess)
	if err != nil {
		s.writeAPIError(w, r, log.OpLoad, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// servePeriod answers a read about one month, taken from the query string.
func (s *Server) servePeriod(w http.ResponseWriter, r *http.Request, load func(context.Context, auth.Session, core.YearMonth) (any, error)) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.writeAPIError(w, r, log.OpLoad, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), widgetTimeout)
	defer cancel()
	v, err := load(ctx, sess, p)
	if err != nil {
		s.writeAPIError(w, r, log.OpLoad, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// serveYear answers a read about one year, ?year defaulting to the current
// one.
func (s *Server) serveYear(w http.ResponseWriter, r *http.Request, load func(context.Context, auth.Session, int) (any, error)) {
	sess, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	year := s.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		var err error
		if year, err = ParseYear("year", v); err != nil {
			s.writeAPIError(w, r, log.OpLoad, err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), widgetTimeout)
	defer cancel()
	v, err := load(ctx, sess, year)
	if err != nil {
		s.writeAPIError(w, r, log.OpLoad, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
