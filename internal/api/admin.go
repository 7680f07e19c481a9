package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"expensetracker/internal/core"
)

// count accepts 3 and "3"; aggregate columns come back as strings from
// some database drivers.
type count int64

func (n *count) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*n = count(v)
	return nil
}

func (c *Client) AdminCategories(ctx context.Context) ([]core.Category, error) {
	var resp struct {
		Categories []core.Category `json:"categories"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "admin/", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) error {
	cat := core.Category{Name: strings.TrimSpace(name)}
	if err := cat.Validate(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "admin/", nil, map[string]string{"name": cat.Name}, nil)
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, name string) error {
	cat := core.Category{ID: id, Name: strings.TrimSpace(name)}
	if err := cat.Validate(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, "admin/"+strconv.FormatInt(id, 10), nil, map[string]string{"name": cat.Name}, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "admin/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) DashboardStats(ctx context.Context) (core.DashboardStats, error) {
	var resp struct {
		Users      count `json:"users"`
		Categories count `json:"categories"`
		Expenses   count `json:"expenses"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "admin/stats", nil, nil, &resp); err != nil {
		return core.DashboardStats{}, err
	}
	return core.DashboardStats{
		Users:      int64(resp.Users),
		Categories: int64(resp.Categories),
		Expenses:   int64(resp.Expenses),
	}, nil
}

func (c *Client) CategorySummary(ctx context.Context) ([]core.CategorySpend, error) {
	var resp struct {
		Summary []core.CategorySpend `json:"summary"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "admin/expenses/summary", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Summary, nil
}
