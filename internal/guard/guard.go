// Package guard decides whether a navigation may proceed based on the caller's
// authentication state.
package guard

import (
	"context"
	"net/http"

	"github.com/noah-isme/air593-booking/internal/common"
)

// State is the authentication snapshot a decision is made on.
type State struct {
	Authenticated bool
	Admin         bool
}

// Decision is either Allow or a redirect target.
type Decision struct {
	Allow    bool
	Redirect string
}

var allow = Decision{Allow: true}

// Customer guards customer pages: anonymous users go to /login and
// administrators are sent to their panel.
func Customer(s State) Decision {
	switch {
	case !s.Authenticated:
		return Decision{Redirect: "/login"}
	case s.Admin:
		return Decision{Redirect: "/admin"}
	default:
		return allow
	}
}

// Admin guards the admin panel.
func Admin(s State) Decision {
	switch {
	case !s.Authenticated:
		return Decision{Redirect: "/login"}
	case !s.Admin:
		return Decision{Redirect: "/gestion"}
	default:
		return allow
	}
}

// Checker answers the questions a guard needs. auth.Service implements it.
type Checker interface {
	IsAuthenticated(ctx context.Context) bool
	IsAdmin(ctx context.Context) bool
}

// StateOf reads the authentication state of ctx.
func StateOf(ctx context.Context, c Checker) State {
	return State{Authenticated: c.IsAuthenticated(ctx), Admin: c.IsAdmin(ctx)}
}

// Require turns a decision function into middleware. Unauthenticated callers get
// 401 and wrong-role callers 403; both carry the redirect in details.
func Require(c Checker, decide func(State) Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := StateOf(r.Context(), c)
			d := decide(st)
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}
			details := map[string]string{"redirect": d.Redirect}
			if !st.Authenticated {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", details)
				return
			}
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "not allowed for this role", details)
		})
	}
}
