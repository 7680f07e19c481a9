package http

import (
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

const adminCategoriesPath = "/admin/categories"

func (s *Server) handleAdminCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.admin.Categories(r.Context())
	var toast *Toast
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		_, toast = failure(err, "Failed to load categories.")
	}
	s.render(w, r, http.StatusOK, "admin_categories.html", "Manage categories", toast,
		struct{ Categories []core.Category }{cats})
}

// handleAdminCategoryAction dispatches on the form's action field and
// always answers with a redirect back to the list.
func (s *Server) handleAdminCategoryAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		Redirect(adminCategoriesPath).Flash(ToastError, "Invalid form submission.").Write(w)
		return
	}

	ctx := r.Context()
	action := formValue(r, "action")
	var (
		err     error
		op      string
		success string
	)
	switch action {
	case "create":
		op, success = log.OpCreate, "Category created."
		err = s.admin.CreateCategory(ctx, formValue(r, "name"))
	case "update", "delete":
		id, idErr := parseID(r, "id")
		if idErr != nil {
			Redirect(adminCategoriesPath).Flash(ToastError, "Unknown category.").Write(w)
			return
		}
		if action == "update" {
			op, success = log.OpUpdate, "Category updated."
			err = s.admin.UpdateCategory(ctx, id, formValue(r, "name"))
		} else {
			op, success = log.OpDelete, "Category deleted."
			err = s.admin.DeleteCategory(ctx, id)
		}
	default:
		Redirect(adminCategoriesPath).Flash(ToastError, "Unknown action.").Write(w)
		return
	}

	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		if !services.IsValidation(err) {
			log.FromContext(ctx).LogError(ctx, "Category change failed", err, op, nil)
		}
		_, toast := failure(err, "Failed to save category.")
		Redirect(adminCategoriesPath).Flash(toast.Kind, toast.Message).Write(w)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Category changed", log.FieldOperation, op)
	Redirect(adminCategoriesPath).Flash(ToastSuccess, success).Write(w)
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.admin.Dashboard(r.Context())
	var toast *Toast
	if err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		_, toast = failure(err, "Failed to load dashboard.")
	}
	s.render(w, r, http.StatusOK, "admin_dashboard.html", "Dashboard", toast, d)
}
