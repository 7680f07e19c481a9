package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

type expenseForm struct {
	Amount     string
	CategoryID int64
	Categories []core.Category
}

type filterView struct {
	From     string
	To       string
	Searched bool
	Result   services.FilterResult
}

func (s *Server) handleExpenseForm(w http.ResponseWriter, r *http.Request) {
	form := expenseForm{}
	var toast *Toast
	cats, err := s.expenses.Categories(r.Context())
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		_, toast = failure(err, "Failed to load categories.")
	}
	form.Categories = cats
	s.render(w, r, http.StatusOK, "expense_form.html", "Add expense", toast, form)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	receipt, err := parseExpenseForm(w, r)
	if err != nil {
		msg := "Invalid form submission."
		status := http.StatusBadRequest
		if errors.Is(err, ErrReceiptTooLarge) {
			msg, status = "Receipt is too large (max 5 MB).", http.StatusRequestEntityTooLarge
		}
		s.renderExpenseForm(w, r, status, errorToast(msg), expenseForm{Amount: formValue(r, "amount")})
		return
	}

	form := expenseForm{Amount: formValue(r, "amount")}
	form.CategoryID, _ = strconv.ParseInt(formValue(r, "category_id"), 10, 64)

	exp, err := s.expenses.CreateExpense(r.Context(), form.Amount, formValue(r, "category_id"), receipt)
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		status, toast := failure(err, "Failed to add expense.")
		s.renderExpenseForm(w, r, status, toast, form)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.FieldOperation, log.OpCreate, "expense_id", exp.ID, "amount_cents", exp.Amount.Cents)
	Redirect("/expenses/me").Flash(ToastSuccess, "Expense added!").Write(w)
}

func (s *Server) renderExpenseForm(w http.ResponseWriter, r *http.Request, status int, toast *Toast, form expenseForm) {
	cats, err := s.expenses.Categories(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Category list unavailable", log.FieldError, err.Error())
	}
	form.Categories = cats
	s.render(w, r, status, "expense_form.html", "Add expense", toast, form)
}

func (s *Server) handleMyExpenses(w http.ResponseWriter, r *http.Request) {
	exps, err := s.expenses.MyExpenses(r.Context())
	var toast *Toast
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		_, toast = failure(err, "Failed to load expenses.")
	}
	s.render(w, r, http.StatusOK, "my_expenses.html", "My expenses", toast, struct{ Expenses []core.Expense }{exps})
}

// handleExportCSV streams the backend's CSV straight through.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	body, err := s.expenses.ExportCSV(r.Context())
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		_, toast := failure(err, "Failed to export CSV.")
		Redirect("/expenses/me").Flash(toast.Kind, toast.Message).Write(w)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "CSV stream interrupted", err, log.OpExport, nil)
	}
}

func (s *Server) handleFilterByDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := filterView{From: sanitizeInput(q.Get("from")), To: sanitizeInput(q.Get("to"))}
	if !q.Has("from") && !q.Has("to") {
		s.render(w, r, http.StatusOK, "filter_date.html", "Filter by date", nil, view)
		return
	}

	res, err := s.expenses.FilterByDate(r.Context(), view.From, view.To)
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		status, toast := failure(err, "Failed to filter expenses.")
		s.render(w, r, status, "filter_date.html", "Filter by date", toast, view)
		return
	}
	view.Searched = true
	view.Result = res
	s.render(w, r, http.StatusOK, "filter_date.html", "Filter by date", nil, view)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.expenses.Categories(r.Context())
	var toast *Toast
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		_, toast = failure(err, "Failed to load categories.")
	}
	s.render(w, r, http.StatusOK, "categories.html", "Categories", toast, struct{ Categories []core.Category }{cats})
}
