// Package guard decides whether a protected view may render for the
// current auth state. It is pure navigation logic: the embedding UI (or
// the HTTP layer) executes the redirects it prescribes.
package guard

import (
	"github.com/resellium/console/internal/core/domain"
)

// Decision is the guard's verdict for a navigation.
type Decision string

const (
	// DecisionPending means the first session check has not completed;
	// render a loading placeholder and make no navigation decision yet.
	DecisionPending Decision = "pending"
	DecisionAllow   Decision = "allow"
	// DecisionLogin redirects an unauthenticated navigation to the login
	// view, remembering the attempted path.
	DecisionLogin Decision = "login"
	// DecisionDenied redirects an authenticated but under-privileged
	// navigation to the default view, not to login.
	DecisionDenied Decision = "denied"
)

// Result carries the verdict plus the redirect target when one applies.
// Redirect is false on a repeated evaluation for the same path, so stable
// re-renders never re-fire navigation.
type Result struct {
	Decision   Decision
	RedirectTo string
	Reason     domain.RedirectReason
	Redirect   bool
}

// Guard wraps one protected view. Zero or more allowed roles may be
// configured; with none, any authenticated role passes.
type Guard struct {
	allowed     map[domain.Role]struct{}
	loginPath   string
	defaultPath string

	decidedPath   string
	decided       bool
	last          Result
	attemptedPath string
}

// New creates a guard. loginPath and defaultPath default to "/login" and
// "/dashboard".
func New(allowedRoles []domain.Role, loginPath, defaultPath string) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	if defaultPath == "" {
		defaultPath = "/dashboard"
	}
	g := &Guard{loginPath: loginPath, defaultPath: defaultPath}
	if len(allowedRoles) > 0 {
		g.allowed = make(map[domain.Role]struct{}, len(allowedRoles))
		for _, r := range allowedRoles {
			g.allowed[r] = struct{}{}
		}
	}
	return g
}

// Evaluate decides for the given state and path. The decision is made at
// most once per path: while the path is stable, repeats return the same
// verdict with Redirect false. A path change resets the gate.
func (g *Guard) Evaluate(state domain.AuthState, path string) Result {
	if state.Loading || !state.SessionChecked {
		// Deciding now would flash a redirect before the first check.
		g.decided = false
		return Result{Decision: DecisionPending}
	}

	if g.decided && g.decidedPath == path {
		repeat := g.last
		repeat.Redirect = false
		return repeat
	}

	res := g.decide(state, path)
	g.decided = true
	g.decidedPath = path
	g.last = res
	return res
}

func (g *Guard) decide(state domain.AuthState, path string) Result {
	if !state.IsAuthenticated() {
		if path != g.loginPath {
			g.attemptedPath = path
		}
		return Result{
			Decision:   DecisionLogin,
			RedirectTo: g.loginPath,
			Reason:     state.Reason,
			Redirect:   path != g.loginPath,
		}
	}

	if g.allowed != nil {
		if _, ok := g.allowed[state.Role]; !ok {
			return Result{
				Decision:   DecisionDenied,
				RedirectTo: g.defaultPath,
				Redirect:   path != g.defaultPath,
			}
		}
	}

	return Result{Decision: DecisionAllow}
}

// ConsumeAttemptedPath returns the path captured before a login redirect,
// for post-login restore, and clears it.
func (g *Guard) ConsumeAttemptedPath() string {
	p := g.attemptedPath
	g.attemptedPath = ""
	return p
}
