package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
)

type fakeAuthAPI struct {
	user       core.User
	credential string
	register   api.RegisterResult
	err        error

	lastCreds api.Credentials
	lastReset [3]string
}

func (f *fakeAuthAPI) Login(_ context.Context, creds api.Credentials) (core.User, string, error) {
	f.lastCreds = creds
	if f.err != nil {
		return core.User{}, "", f.err
	}
	return f.user, f.credential, nil
}

func (f *fakeAuthAPI) Register(context.Context, api.Registration) (api.RegisterResult, error) {
	return f.register, f.err
}

func (f *fakeAuthAPI) ForgotPassword(context.Context, string) error { return f.err }

func (f *fakeAuthAPI) ResetPassword(_ context.Context, token, userID, password string) (string, error) {
	f.lastReset = [3]string{token, userID, password}
	return "", f.err
}

func (f *fakeAuthAPI) SendEmail(context.Context, string, string) (string, error) {
	return "https://preview/1", f.err
}

type fakeExpenseAPI struct {
	categoryCalls atomic.Int32
	created       core.NewExpense
	lastRange     core.DateRange
	err           error
}

func (f *fakeExpenseAPI) Categories(context.Context) ([]core.Category, error) {
	f.categoryCalls.Add(1)
	return []core.Category{{ID: 1, Name: "Food"}}, f.err
}

func (f *fakeExpenseAPI) CreateExpense(_ context.Context, e core.NewExpense, _ *api.Receipt) (core.Expense, error) {
	f.created = e
	return core.Expense{ID: 1, Amount: e.Amount, CategoryID: e.CategoryID}, f.err
}

func (f *fakeExpenseAPI) MyExpenses(context.Context) ([]core.Expense, error) {
	return []core.Expense{{ID: 1}}, f.err
}

func (f *fakeExpenseAPI) ExportCSV(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("id\n1\n")), f.err
}

func (f *fakeExpenseAPI) FilterByDate(_ context.Context, r core.DateRange) ([]core.Expense, core.Money, error) {
	f.lastRange = r
	return nil, core.Money{Cents: 500}, f.err
}

type fakeAdminAPI struct {
	mu         sync.Mutex
	calls      map[string]int
	statsErr   error
	summaryErr error
}

func (f *fakeAdminAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeAdminAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAdminAPI) AdminCategories(context.Context) ([]core.Category, error) {
	f.hit("list")
	return []core.Category{{ID: 1, Name: "Food"}}, nil
}

func (f *fakeAdminAPI) CreateCategory(context.Context, string) error {
	f.hit("create")
	return nil
}

func (f *fakeAdminAPI) UpdateCategory(context.Context, int64, string) error {
	f.hit("update")
	return nil
}

func (f *fakeAdminAPI) DeleteCategory(context.Context, int64) error {
	f.hit("delete")
	return nil
}

func (f *fakeAdminAPI) DashboardStats(context.Context) (core.DashboardStats, error) {
	f.hit("stats")
	return core.DashboardStats{Users: 2, Categories: 3, Expenses: 9}, f.statsErr
}

func (f *fakeAdminAPI) CategorySummary(context.Context) ([]core.CategorySpend, error) {
	f.hit("summary")
	return []core.CategorySpend{{Category: "Food", TotalSpent: core.Money{Cents: 1000}}}, f.summaryErr
}
