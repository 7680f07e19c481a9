package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"expensetracker/internal/core"
)

const dateLayout = "2006-01-02"

// Receipt is an optional file attached to a new expense.
type Receipt struct {
	Filename string
	Body     io.Reader
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var resp struct {
		Categories []core.Category `json:"categories"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "categories/all", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// CreateExpense uploads the expense as multipart form data.
func (c *Client) CreateExpense(ctx context.Context, e core.NewExpense, receipt *Receipt) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("amount", e.Amount.Decimal()); err != nil {
		return core.Expense{}, fmt.Errorf("write amount: %w", err)
	}
	if err := mw.WriteField("category_id", strconv.FormatInt(e.CategoryID, 10)); err != nil {
		return core.Expense{}, fmt.Errorf("write category: %w", err)
	}
	if receipt != nil && receipt.Body != nil {
		part, err := mw.CreateFormFile("receipt", receipt.Filename)
		if err != nil {
			return core.Expense{}, fmt.Errorf("create receipt part: %w", err)
		}
		if _, err := io.Copy(part, receipt.Body); err != nil {
			return core.Expense{}, fmt.Errorf("copy receipt: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return core.Expense{}, fmt.Errorf("close multipart: %w", err)
	}

	req, authenticated, err := c.newRequest(ctx, http.MethodPost, "expenses", nil, &buf, mw.FormDataContentType())
	if err != nil {
		return core.Expense{}, err
	}
	resp, err := c.send(req, authenticated)
	if err != nil {
		return core.Expense{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Expense core.Expense `json:"expense"`
	}
	if err := decodeBody(resp.Body, &out); err != nil {
		return core.Expense{}, fmt.Errorf("decode created expense: %w", err)
	}
	return out.Expense, nil
}

func (c *Client) MyExpenses(ctx context.Context) ([]core.Expense, error) {
	var resp struct {
		Expenses []core.Expense `json:"expenses"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "expenses/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Expenses, nil
}

// ExportCSV streams the caller's expenses as CSV. The caller closes the reader.
func (c *Client) ExportCSV(ctx context.Context) (io.ReadCloser, error) {
	req, authenticated, err := c.newRequest(ctx, http.MethodGet, "expenses/export/csv", nil, nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := c.send(req, authenticated)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FilterByDate lists expenses inside r with the backend's total for them.
func (c *Client) FilterByDate(ctx context.Context, r core.DateRange) ([]core.Expense, core.Money, error) {
	if err := r.Validate(); err != nil {
		return nil, core.Money{}, err
	}
	q := url.Values{}
	if !r.From.IsZero() {
		q.Set("from", r.From.Format(dateLayout))
	}
	if !r.To.IsZero() {
		q.Set("to", r.To.Format(dateLayout))
	}

	var resp struct {
		Expenses    []core.Expense `json:"expenses"`
		TotalAmount core.Money     `json:"totalAmount"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "expenses/filter/date", q, nil, &resp); err != nil {
		return nil, core.Money{}, err
	}
	return resp.Expenses, resp.TotalAmount, nil
}

func decodeBody(r io.Reader, out any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
