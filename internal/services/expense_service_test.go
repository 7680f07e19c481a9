package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
)

func TestExpenseService_CategoriesAreCached(t *testing.T) {
	fake := &fakeExpenseAPI{}
	svc := NewExpenseService(fake, cache.NewLRUCache[[]core.Category](8, time.Minute))

	for i := 0; i < 3; i++ {
		cats, err := svc.Categories(context.Background())
		require.NoError(t, err)
		assert.Len(t, cats, 1)
	}
	assert.Equal(t, int32(1), fake.categoryCalls.Load())
}

func TestExpenseService_CategoriesWithoutCache(t *testing.T) {
	fake := &fakeExpenseAPI{}
	svc := NewExpenseService(fake, nil)
	_, _ = svc.Categories(context.Background())
	_, _ = svc.Categories(context.Background())
	assert.Equal(t, int32(2), fake.categoryCalls.Load())
}

func TestExpenseService_CreateExpense(t *testing.T) {
	fake := &fakeExpenseAPI{}
	svc := NewExpenseService(fake, nil)

	exp, err := svc.CreateExpense(context.Background(), "12,34", "2", nil)
	require.NoError(t, err)
	assert.Equal(t, core.NewExpense{Amount: core.Money{Cents: 1234}, CategoryID: 2}, fake.created)
	assert.Equal(t, int64(1234), exp.Amount.Cents)

	tests := []struct{ amount, category string }{
		{"", "2"},
		{"-5", "2"},
		{"abc", "2"},
		{"10", ""},
		{"10", "0"},
		{"10", "food"},
	}
	for _, tt := range tests {
		_, err := svc.CreateExpense(context.Background(), tt.amount, tt.category, nil)
		assert.True(t, IsValidation(err), "amount=%q category=%q", tt.amount, tt.category)
	}
}

func TestExpenseService_FilterByDate(t *testing.T) {
	fake := &fakeExpenseAPI{}
	svc := NewExpenseService(fake, nil)

	res, err := svc.FilterByDate(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Total.Cents)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), fake.lastRange.From)

	_, err = svc.FilterByDate(context.Background(), "2024-02-01", "2024-01-01")
	assert.True(t, IsValidation(err))
	_, err = svc.FilterByDate(context.Background(), "01/02/2024", "")
	assert.True(t, IsValidation(err))

	fake.err = errors.New("down")
	_, err = svc.FilterByDate(context.Background(), "", "")
	assert.Error(t, err)
	assert.False(t, IsValidation(err))
}
