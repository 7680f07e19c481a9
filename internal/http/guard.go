package http

import (
	"net/http"

	"expensetracker/internal/gate"
	"expensetracker/internal/log"
)

// guard consults the gate for every protected path. GET requests that
// arrive while the session is still being restored get the loading page,
// which refreshes itself. Other methods wait for the restore to finish
// so a form post is not lost.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required := gate.RequirementFor(r.URL.Path)
		if required == gate.Public {
			next.ServeHTTP(w, r)
			return
		}

		snap := s.store.Snapshot()
		decision := gate.Decide(snap.Restored, snap.User, required)

		if decision.Outcome == gate.Loading && r.Method != http.MethodGet && r.Method != http.MethodHead {
			select {
			case <-s.store.Ready():
				snap = s.store.Snapshot()
				decision = gate.Decide(snap.Restored, snap.User, required)
			case <-r.Context().Done():
				return
			}
		}

		log.FromContext(r.Context()).WithComponent(log.ComponentGate).DebugContext(r.Context(), "Route gate decision",
			log.FieldRoute, r.URL.Path,
			"required", required.String(),
			log.FieldDecision, decision.Outcome.String())

		switch decision.Outcome {
		case gate.Allow:
			next.ServeHTTP(w, r)
		case gate.Redirect:
			Redirect(decision.Location).Write(w)
		default:
			w.Header().Set("Cache-Control", "no-store")
			s.render(w, r, http.StatusOK, "loading.html", "Loading", nil, nil)
		}
	})
}
