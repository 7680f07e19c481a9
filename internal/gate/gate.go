// Package gate decides, per navigation, whether a protected view may
// render. Decide is a pure function; the HTTP layer calls it on every
// request with a fresh session snapshot.
package gate

import "expensetracker/internal/core"

// LoginPath is where denied navigations are sent.
const LoginPath = "/login"

type Requirement int

const (
	// Public views are never gated.
	Public Requirement = iota
	// Authenticated views need any signed-in user.
	Authenticated
	// Admin views need a signed-in admin.
	Admin
)

func (r Requirement) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "public"
	}
}

type Outcome int

const (
	Loading Outcome = iota
	Redirect
	Allow
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is the gate's answer. Location is set only for Redirect, and a
// redirect always replaces the current history entry.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide evaluates, in order: restore still pending, no user, missing
// admin role. Until restored is true the answer is Loading whatever user
// holds, so a returning user is never bounced to login while their session
// is still being read back.
//
// A signed-in non-admin asking for an admin view is sent to login like an
// anonymous visitor.
func Decide(restored bool, user *core.User, required Requirement) Decision {
	if required == Public {
		return Decision{Outcome: Allow}
	}
	if !restored {
		return Decision{Outcome: Loading}
	}
	if user == nil {
		return Decision{Outcome: Redirect, Location: LoginPath}
	}
	if required == Admin && !user.Role.IsAdmin() {
		return Decision{Outcome: Redirect, Location: LoginPath}
	}
	return Decision{Outcome: Allow}
}

// Landing is where a freshly signed-in user is sent.
func Landing(user core.User) string {
	if user.Role.IsAdmin() {
		return "/admin/categories"
	}
	return "/"
}
