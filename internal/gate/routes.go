package gate

import "strings"

// Routes lists the protected views and what each one needs. Anything not
// listed is public.
var Routes = map[string]Requirement{
	"/expenses":             Authenticated,
	"/expenses/me":          Authenticated,
	"/expenses/export.csv":  Authenticated,
	"/expenses/filter/date": Authenticated,
	"/categories":           Authenticated,
	"/admin/categories":     Admin,
	"/admin/dashboard":      Admin,
}

// RequirementFor looks path up in Routes. Anything under /admin/ is
// treated as admin-only even when it is not listed.
func RequirementFor(path string) Requirement {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if req, ok := Routes[path]; ok {
		return req
	}
	if path == "/admin" || strings.HasPrefix(path, "/admin/") {
		return Admin
	}
	return Public
}
