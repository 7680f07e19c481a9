package services

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
)

const categoriesKey = "categories"

type ExpenseAPI interface {
	Categories(ctx context.Context) ([]core.Category, error)
	CreateExpense(ctx context.Context, e core.NewExpense, receipt *api.Receipt) (core.Expense, error)
	MyExpenses(ctx context.Context) ([]core.Expense, error)
	ExportCSV(ctx context.Context) (io.ReadCloser, error)
	FilterByDate(ctx context.Context, r core.DateRange) ([]core.Expense, core.Money, error)
}

// ExpenseService serves the signed-in user's expense pages.
type ExpenseService struct {
	api        ExpenseAPI
	categories cache.Cache[[]core.Category]
}

func NewExpenseService(expenseAPI ExpenseAPI, categories cache.Cache[[]core.Category]) *ExpenseService {
	return &ExpenseService{api: expenseAPI, categories: categories}
}

// Categories returns the category list, from cache when it is fresh.
func (s *ExpenseService) Categories(ctx context.Context) ([]core.Category, error) {
	if s.categories == nil {
		return s.api.Categories(ctx)
	}
	return s.categories.GetOrLoad(ctx, categoriesKey, s.api.Categories)
}

// CreateExpense parses the raw form values and submits the expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, amount, categoryID string, receipt *api.Receipt) (core.Expense, error) {
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.Expense{}, invalid("Please enter a valid amount.")
	}
	catID, err := strconv.ParseInt(strings.TrimSpace(categoryID), 10, 64)
	if err != nil || catID <= 0 {
		return core.Expense{}, invalid("Please choose a category.")
	}
	return s.api.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: cents}, CategoryID: catID}, receipt)
}

func (s *ExpenseService) MyExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.api.MyExpenses(ctx)
}

func (s *ExpenseService) ExportCSV(ctx context.Context) (io.ReadCloser, error) {
	return s.api.ExportCSV(ctx)
}

// FilterResult is a date-filtered listing.
type FilterResult struct {
	Range    core.DateRange
	Expenses []core.Expense
	Total    core.Money
}

// FilterByDate accepts YYYY-MM-DD bounds; either may be blank.
func (s *ExpenseService) FilterByDate(ctx context.Context, from, to string) (FilterResult, error) {
	var r core.DateRange
	var err error
	if r.From, err = parseDate(from); err != nil {
		return FilterResult{}, invalid("Invalid start date.")
	}
	if r.To, err = parseDate(to); err != nil {
		return FilterResult{}, invalid("Invalid end date.")
	}
	if r.Validate() != nil {
		return FilterResult{}, invalid("Start date must not be after end date.")
	}

	expenses, total, err := s.api.FilterByDate(ctx, r)
	if err != nil {
		return FilterResult{}, err
	}
	return FilterResult{Range: r, Expenses: expenses, Total: total}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
