package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

const (
	resolveTimeout = 10 * time.Second
	taskBuffer     = 64
)

// Machine composes the session source, profile resolver, and two-factor
// gate into one observable auth state, and keeps that state consistent
// across session-change events, explicit actions, and remote sign-outs.
//
// Event processing is deferred: session-change callbacks only enqueue a
// task, because the source invokes them under its own lock and forbids
// re-entrant calls. Tasks run serially on one goroutine, which preserves
// event order; explicit actions mutate state directly and bump an epoch
// counter so an in-flight resolution that loses the race is discarded
// rather than resurrecting a dead session.
type Machine struct {
	source    ports.SessionSource
	resolver  ports.ProfileResolver
	gate      *TwoFactorGate
	broadcast ports.Broadcast
	recorder  ports.OperationRecorder
	log       zerolog.Logger
	now       func() time.Time

	mu           sync.Mutex
	state        domain.AuthState
	epoch        uint64
	lastIdentity string
	watchers     map[int]func(domain.AuthState)
	nextWatcher  int

	tasks       chan func()
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	unsubSource func()
	unsubBcast  func()
}

// NewMachine creates a machine in the uninitialized state. broadcast and
// recorder may be nil for clients that run without them.
func NewMachine(
	source ports.SessionSource,
	resolver ports.ProfileResolver,
	gate *TwoFactorGate,
	broadcast ports.Broadcast,
	recorder ports.OperationRecorder,
	log zerolog.Logger,
) *Machine {
	return &Machine{
		source:    source,
		resolver:  resolver,
		gate:      gate,
		broadcast: broadcast,
		recorder:  recorder,
		log:       log,
		now:       time.Now,
		state:     domain.AuthState{Status: domain.StatusUninitialized},
		watchers:  make(map[int]func(domain.AuthState)),
		tasks:     make(chan func(), taskBuffer),
		stop:      make(chan struct{}),
	}
}

// Start launches the task loop and subscribes to the session source and
// the sign-out broadcast. The source delivers an initial_session event on
// subscription, which drives the first resolution.
func (m *Machine) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)

	m.unsubSource = m.source.OnSessionChange(func(ev domain.SessionEvent) {
		m.enqueue(func() { m.handleSessionEvent(ctx, ev) })
	})

	if m.broadcast != nil {
		m.unsubBcast = m.broadcast.Subscribe(func(n domain.SignOutNotice) {
			m.enqueue(func() { m.handleRemoteSignOut(ctx, n) })
		})
	}
}

// Close unsubscribes and stops the task loop. Pending tasks are dropped.
func (m *Machine) Close() {
	m.stopOnce.Do(func() {
		if m.unsubSource != nil {
			m.unsubSource()
		}
		if m.unsubBcast != nil {
			m.unsubBcast()
		}
		close(m.stop)
	})
	m.wg.Wait()
}

// State returns the current auth state snapshot.
func (m *Machine) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a watcher that receives every state snapshot after
// a change. The returned function cancels the subscription.
func (m *Machine) Subscribe(fn func(domain.AuthState)) (cancel func()) {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Login delegates credential verification to the session source. Success
// means the credential step passed, not that authentication is complete:
// the signed_in event drives profile resolution and the two-factor gate.
func (m *Machine) Login(ctx context.Context, email, password string) (bool, error) {
	sess, err := m.source.SignInWithPassword(ctx, email, password)
	if err != nil {
		return false, err
	}
	m.record(domain.OpLogin, sess.IdentityID)
	return true, nil
}

// CheckSession reports whether a session exists and has not passed its
// expiry. An expired session the source still holds counts as absent.
func (m *Machine) CheckSession() bool {
	return m.source.GetSession().Valid(m.now())
}

// Logout signs out of the session source, clears the durable two-factor
// marker, resets to unauthenticated, and broadcasts the sign-out to
// sibling clients. When the local session is already gone or expired it
// short-circuits to clearing local state; calling it while already
// unauthenticated is a no-op.
func (m *Machine) Logout(ctx context.Context) error {
	sess := m.source.GetSession()
	if !sess.Valid(m.now()) {
		// Nothing to sign out of remotely.
		if sess != nil {
			m.gate.Reset(ctx, sess.IdentityID)
			_ = m.source.SignOut(ctx)
		}
		m.applySignedOut(ctx, domain.RedirectNone)
		return nil
	}

	identityID := sess.IdentityID
	if err := m.source.SignOut(ctx); err != nil {
		m.log.Warn().Err(err).Msg("remote sign-out failed, clearing local state anyway")
	}

	m.gate.Reset(ctx, identityID)
	m.applySignedOut(ctx, domain.RedirectNone)

	if m.broadcast != nil {
		notice := domain.SignOutNotice{ID: uuid.NewString(), IdentityID: identityID, At: m.now()}
		if err := m.broadcast.Publish(ctx, notice); err != nil {
			m.log.Warn().Err(err).Msg("failed to broadcast sign-out")
		}
	}

	m.record(domain.OpLogout, identityID)
	return nil
}

// VerifyTwoFactor validates a one-time code. On success the durable
// marker is set and, if the machine is awaiting the second factor for a
// live session, it transitions to authenticated. On failure the state is
// unchanged and the uniform domain.ErrInvalidCode is returned.
func (m *Machine) VerifyTwoFactor(ctx context.Context, identityID, code string) error {
	if err := m.gate.Verify(ctx, identityID, code); err != nil {
		m.record(domain.OpTwoFactorFail, identityID)
		return err
	}
	m.record(domain.OpTwoFactorPass, identityID)

	if !m.CheckSession() {
		// Session died between the challenge and the verify; the marker
		// is set but there is nothing to authenticate.
		return nil
	}

	m.mu.Lock()
	if m.state.Status != domain.StatusAwaitingTwoFactor {
		m.mu.Unlock()
		return nil
	}
	st := m.state
	st.TwoFactorVerified = true
	st.Status = domain.StatusAuthenticated
	st.Loading = false
	st.Reason = domain.RedirectNone
	m.state = st
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// HandleSessionExpired clears auth state and tags it with the
// session-expired reason so the guard can redirect to login with an
// explanatory indicator. Callable at any time.
func (m *Machine) HandleSessionExpired(ctx context.Context) {
	_ = m.source.SignOut(ctx)
	m.applySignedOut(ctx, domain.RedirectSessionExpired)
}

func (m *Machine) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case task := <-m.tasks:
			task()
		}
	}
}

func (m *Machine) enqueue(task func()) {
	select {
	case m.tasks <- task:
	case <-m.stop:
	}
}

// handleSessionEvent runs on the task goroutine, strictly in delivery
// order. signed_out applies immediately; everything else triggers a full
// resolution.
func (m *Machine) handleSessionEvent(ctx context.Context, ev domain.SessionEvent) {
	if ev.Type == domain.EventSignedOut {
		// Preserve any reason already set (e.g. a remote sign-out that
		// triggered this local SignOut).
		m.mu.Lock()
		reason := m.state.Reason
		m.mu.Unlock()
		m.applySignedOut(ctx, reason)
		return
	}

	m.mu.Lock()
	epoch := m.epoch
	st := m.state
	st.Loading = true
	if st.Status == domain.StatusUninitialized {
		st.Status = domain.StatusResolving
	}
	m.state = st
	m.mu.Unlock()
	m.notify(st)

	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	sess := m.source.GetSession()
	next := ComputeState(rctx, sess, m.resolver, m.gate, m.now())

	m.mu.Lock()
	if m.epoch != epoch {
		// The machine moved on (logout, expiry, remote sign-out) while
		// this resolution was in flight; its result is stale.
		m.mu.Unlock()
		m.log.Debug().Str("event", string(ev.Type)).Msg("discarding stale session resolution")
		return
	}
	if next.Status == domain.StatusUnauthenticated {
		next.Reason = m.state.Reason
	}
	if next.SessionPresent {
		m.lastIdentity = sess.IdentityID
	}
	m.state = next
	m.mu.Unlock()

	m.notify(next)
}

// handleRemoteSignOut reacts to a sign-out broadcast from a sibling
// client: if this client is authenticated as the same identity, drop
// everything and tag the state so the UI can explain the redirect.
func (m *Machine) handleRemoteSignOut(ctx context.Context, n domain.SignOutNotice) {
	m.mu.Lock()
	present := m.state.SessionPresent
	m.mu.Unlock()
	if !present {
		return
	}

	sess := m.source.GetSession()
	if sess == nil || sess.IdentityID != n.IdentityID {
		return
	}

	m.log.Info().Str("identity_id", n.IdentityID).Msg("signed out in another window")
	m.gate.Reset(ctx, n.IdentityID)
	m.applySignedOut(ctx, domain.RedirectSignedOutElsewhere)
	_ = m.source.SignOut(ctx)
}

// applySignedOut resets to unauthenticated. It bumps the epoch so any
// in-flight resolution is discarded, and clears the durable marker for
// the last resolved identity. SessionChecked survives: the first check
// has still happened. Already-unauthenticated state with the same reason
// is left untouched.
func (m *Machine) applySignedOut(ctx context.Context, reason domain.RedirectReason) {
	m.mu.Lock()
	if m.state.Status == domain.StatusUnauthenticated && m.state.Reason == reason {
		m.mu.Unlock()
		return
	}
	m.epoch++
	identityID := m.lastIdentity
	m.lastIdentity = ""
	st := domain.AuthState{
		Status:         domain.StatusUnauthenticated,
		SessionChecked: true,
		Reason:         reason,
	}
	m.state = st
	m.mu.Unlock()

	if identityID != "" {
		m.gate.Reset(ctx, identityID)
	}
	m.notify(st)
}

func (m *Machine) notify(st domain.AuthState) {
	m.mu.Lock()
	fns := make([]func(domain.AuthState), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (m *Machine) record(kind domain.OperationKind, identityID string) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(domain.Operation{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Kind:       kind,
		At:         m.now(),
	})
}
