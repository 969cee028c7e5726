// Package guard gates the admin subtree on the current auth state.
package guard

import (
	"net/http"

	"github.com/mellanby-hall/portal/internal/session"
)

// Decision is the route guard's verdict for a protected request.
type Decision int

const (
	// DecisionPending means auth state has not settled yet; show a neutral
	// pending response and do not redirect.
	DecisionPending Decision = iota
	// DecisionRedirectLogin means no session is present.
	DecisionRedirectLogin
	// DecisionRedirectHome means the session's user is not an admin;
	// non-admins are bounced to public content without an error.
	DecisionRedirectHome
	// DecisionAllow permits the protected subtree.
	DecisionAllow
)

// Decide maps an auth snapshot to a verdict. Evaluated fresh on every
// protected request, so a sign-out revokes access on the next evaluation.
func Decide(state session.AuthState) Decision {
	if state.Loading {
		return DecisionPending
	}
	if state.Session == nil {
		return DecisionRedirectLogin
	}
	if !state.IsAdmin {
		return DecisionRedirectHome
	}
	return DecisionAllow
}

// StateReader is the slice of the session store the guard needs.
type StateReader interface {
	State() session.AuthState
}

// Guard applies Decide to incoming requests as HTTP middleware.
type Guard struct {
	store     StateReader
	loginPath string
	homePath  string
}

// New creates a guard redirecting unauthenticated callers to loginPath and
// authenticated non-admins to homePath.
func New(store StateReader, loginPath, homePath string) *Guard {
	return &Guard{store: store, loginPath: loginPath, homePath: homePath}
}

// Protect wraps next with the route-guard decision.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch Decide(g.store.State()) {
		case DecisionPending:
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Checking session...\n"))
		case DecisionRedirectLogin:
			http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
		case DecisionRedirectHome:
			http.Redirect(w, r, g.homePath, http.StatusSeeOther)
		case DecisionAllow:
			next.ServeHTTP(w, r)
		}
	})
}
