package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

type (
	Role string

	// User is the identity returned by the backend on login or registration.
	User struct {
		ID          int64  `json:"id"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
		Role        Role   `json:"role"`
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Expense struct {
		ID          int64     `json:"id"`
		Amount      Money     `json:"amount"`
		CategoryID  int64     `json:"category_id"`
		Category    string    `json:"category"`
		CreatedAt   time.Time `json:"created_at"`
		ReceiptPath string    `json:"receipt_path"`
	}

	// NewExpense is what the expense form submits.
	NewExpense struct {
		Amount     Money
		CategoryID int64
	}

	DashboardStats struct {
		Users      int64 `json:"users"`
		Categories int64 `json:"categories"`
		Expenses   int64 `json:"expenses"`
	}

	CategorySpend struct {
		Category   string `json:"category"`
		TotalSpent Money  `json:"total_spent"`
	}

	DateRange struct {
		From time.Time
		To   time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrIncompleteUser  = errors.New("incomplete user")
)

// ParseRole maps the backend's role names onto Role. The backend reports
// ordinary accounts as "user".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "standard", "user":
		return RoleStandard, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Validate reports whether u is complete enough to back a session.
func (u User) Validate() error {
	if u.ID <= 0 || strings.TrimSpace(u.Email) == "" {
		return ErrIncompleteUser
	}
	if u.Role != RoleAdmin && u.Role != RoleStandard {
		return ErrInvalidRole
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e NewExpense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

// Validate accepts open-ended ranges; when both ends are set From must not be after To.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return ErrInvalidRange
	}
	return nil
}
