package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// SessionClient is the per-client session source: it holds the one
// current session for this process and fans session-change events out to
// subscribers.
//
// Subscriber callbacks run while the client's lock is held. Calling any
// SessionClient method from inside a callback deadlocks, which is why the
// machine defers all event processing to its own task queue.
type SessionClient struct {
	provider ports.IdentityProvider
	log      zerolog.Logger

	mu      sync.Mutex
	session *domain.Session
	subs    map[int]func(domain.SessionEvent)
	nextSub int
}

func NewSessionClient(provider ports.IdentityProvider, log zerolog.Logger) *SessionClient {
	return &SessionClient{
		provider: provider,
		log:      log,
		subs:     make(map[int]func(domain.SessionEvent)),
	}
}

// GetSession returns a copy of the current session, or nil. The copy may
// already be past its expiry; callers decide what that means.
func (c *SessionClient) GetSession() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSession(c.session)
}

// SignInWithPassword authenticates and installs the resulting session,
// emitting signed_in. Credential failure leaves the current session
// untouched.
func (c *SessionClient) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	sess, err := c.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = sess
	c.emitLocked(domain.SessionEvent{Type: domain.EventSignedIn, Session: cloneSession(sess)})
	c.mu.Unlock()

	return cloneSession(sess), nil
}

// SignOut drops the current session and emits signed_out. A no-op when
// no session is held.
func (c *SessionClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	c.session = nil
	c.emitLocked(domain.SessionEvent{Type: domain.EventSignedOut})
	return nil
}

// Refresh reissues the current session's token and emits token_refreshed.
func (c *SessionClient) Refresh(ctx context.Context) error {
	c.mu.Lock()
	current := cloneSession(c.session)
	c.mu.Unlock()
	if current == nil {
		return domain.ErrNoSession
	}

	next, err := c.provider.Refresh(ctx, current)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = next
	c.emitLocked(domain.SessionEvent{Type: domain.EventTokenRefreshed, Session: cloneSession(next)})
	c.mu.Unlock()
	return nil
}

// NotifyUserUpdated emits user_updated for the current session, prompting
// subscribers to re-derive anything cached off the profile (role, the
// two-factor requirement). A no-op when no session is held.
func (c *SessionClient) NotifyUserUpdated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return
	}
	c.emitLocked(domain.SessionEvent{Type: domain.EventUserUpdated, Session: cloneSession(c.session)})
}

// OnSessionChange registers a subscriber and immediately delivers an
// initial_session event reflecting the current state.
func (c *SessionClient) OnSessionChange(fn func(domain.SessionEvent)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	fn(domain.SessionEvent{Type: domain.EventInitialSession, Session: cloneSession(c.session)})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *SessionClient) emitLocked(ev domain.SessionEvent) {
	for _, fn := range c.subs {
		fn(ev)
	}
}

func cloneSession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
