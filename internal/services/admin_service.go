package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
)

const (
	adminCategoriesKey = "admin-categories"
	statsKey           = "stats"
)

type AdminAPI interface {
	AdminCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, name string) error
	UpdateCategory(ctx context.Context, id int64, name string) error
	DeleteCategory(ctx context.Context, id int64) error
	DashboardStats(ctx context.Context) (core.DashboardStats, error)
	CategorySummary(ctx context.Context) ([]core.CategorySpend, error)
}

// AdminService serves category management and the dashboard. The
// categories cache is the one ExpenseService reads from; category writes
// purge it so both admin and user pages pick the change up.
type AdminService struct {
	api        AdminAPI
	categories cache.Cache[[]core.Category]
	stats      cache.Cache[core.DashboardStats]
}

func NewAdminService(adminAPI AdminAPI, categories cache.Cache[[]core.Category], stats cache.Cache[core.DashboardStats]) *AdminService {
	return &AdminService{api: adminAPI, categories: categories, stats: stats}
}

func (s *AdminService) Categories(ctx context.Context) ([]core.Category, error) {
	if s.categories == nil {
		return s.api.AdminCategories(ctx)
	}
	return s.categories.GetOrLoad(ctx, adminCategoriesKey, s.api.AdminCategories)
}

func (s *AdminService) CreateCategory(ctx context.Context, name string) error {
	if err := validateCategoryName(name); err != nil {
		return err
	}
	if err := s.api.CreateCategory(ctx, name); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *AdminService) UpdateCategory(ctx context.Context, id int64, name string) error {
	if id <= 0 {
		return invalid("Unknown category.")
	}
	if err := validateCategoryName(name); err != nil {
		return err
	}
	if err := s.api.UpdateCategory(ctx, id, name); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *AdminService) DeleteCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalid("Unknown category.")
	}
	if err := s.api.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *AdminService) invalidate() {
	if s.categories != nil {
		s.categories.Purge()
	}
	if s.stats != nil {
		s.stats.Purge()
	}
}

type Dashboard struct {
	Stats   core.DashboardStats
	Summary []core.CategorySpend
}

// Dashboard fetches stats and the per-category summary concurrently. Either
// failing fails the whole page.
func (s *AdminService) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if s.stats != nil {
			d.Stats, err = s.stats.GetOrLoad(gctx, statsKey, s.api.DashboardStats)
		} else {
			d.Stats, err = s.api.DashboardStats(gctx)
		}
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		summary, err := s.api.CategorySummary(gctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		d.Summary = summary
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func validateCategoryName(name string) error {
	err := core.Category{Name: strings.TrimSpace(name)}.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrEmptyName):
		return invalid("Name is required")
	default:
		return invalid(err.Error())
	}
}
