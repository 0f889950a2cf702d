package ports

import (
	"context"

	"github.com/resellium/console/internal/core/domain"
)

// SessionSource is the identity provider as seen by one client instance:
// it issues and drops a session and notifies subscribers of every change.
//
// Re-entrancy rule: session-change callbacks run while the source holds
// its own lock. A callback must never call back into the source
// synchronously; defer any follow-up work to another goroutine or queue.
type SessionSource interface {
	// GetSession returns the current session, or nil. The returned
	// session may already be past its expiry; callers must check.
	GetSession() *domain.Session

	// SignInWithPassword verifies credentials and installs a new session.
	// Failures are uniformly domain.ErrInvalidCredentials.
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)

	// SignOut drops the current session. Signing out with no session is
	// a no-op.
	SignOut(ctx context.Context) error

	// OnSessionChange registers a subscriber. The subscriber immediately
	// receives an initial_session event reflecting the current state.
	// The returned function unsubscribes.
	OnSessionChange(fn func(domain.SessionEvent)) (unsubscribe func())
}

// IdentityProvider is the stateless credential/token surface backing both
// the per-client SessionSource and the HTTP handlers.
type IdentityProvider interface {
	Authenticate(ctx context.Context, email, password string) (*domain.Session, error)
	ParseToken(token string) (*domain.Session, error)
	Refresh(ctx context.Context, s *domain.Session) (*domain.Session, error)
	Register(ctx context.Context, email, password string) (string, error)
}
