package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// env bundles the collaborators a machine needs, shared across "tabs" the
// way a browser profile shares its identity provider, marker store, and
// broadcast channel.
type env struct {
	idRepo   *memIdentityRepo
	profiles *memProfileRepo
	markers  *memMarkerStore
	codes    *staticCodeValidator
	bcast    *memBroadcast
	provider *IdentityService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		idRepo:   newMemIdentityRepo(),
		profiles: newMemProfileRepo(),
		markers:  newMemMarkerStore(),
		codes:    &staticCodeValidator{accepted: "123456"},
		bcast:    newMemBroadcast(),
	}
	e.provider = NewIdentityService(e.idRepo, "secret", time.Hour, zerolog.Nop())
	return e
}

// addUser registers credentials and a linked profile, returning the
// identity id.
func (e *env) addUser(t *testing.T, email, classification string, twoFactor bool) string {
	t.Helper()
	identityID, err := e.provider.Register(context.Background(), email, "s3cret-pass")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	e.profiles.add(&domain.Profile{
		ID:               uuid.NewString(),
		AuthUserID:       identityID,
		Email:            email,
		Classification:   classification,
		TwoFactorEnabled: twoFactor,
		Credits:          10,
	})
	return identityID
}

// newMachine builds and starts a machine on a fresh session client (one
// "tab").
func (e *env) newMachine(t *testing.T) *Machine {
	t.Helper()
	client := NewSessionClient(e.provider, zerolog.Nop())
	resolver := NewProfileResolver(e.profiles, zerolog.Nop())
	gate := NewTwoFactorGate(e.markers, e.codes, zerolog.Nop())
	m := NewMachine(client, resolver, gate, e.bcast, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		m.Close()
		cancel()
	})
	return m
}

func TestMachine_InitialResolution_NoSession(t *testing.T) {
	e := newEnv(t)
	m := e.newMachine(t)

	st := waitForState(t, m, "first check complete", func(st domain.AuthState) bool {
		return st.SessionChecked && !st.Loading
	})
	if st.Status != domain.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", st.Status)
	}
	if st.IsAuthenticated() {
		t.Fatalf("no session must never be authenticated")
	}
}

func TestMachine_Login_NoTwoFactor(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "admin", false)
	m := e.newMachine(t)

	ok, err := m.Login(context.Background(), "alice@example.com", "s3cret-pass")
	if err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}

	st := waitForState(t, m, "authenticated", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})
	if !st.IsAuthenticated() || st.NeedsTwoFactor {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", st.Role)
	}
}

func TestMachine_Login_BadCredentials(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "admin", false)
	m := e.newMachine(t)

	ok, err := m.Login(context.Background(), "alice@example.com", "wrong")
	if ok || err != domain.ErrInvalidCredentials {
		t.Fatalf("expected uniform credential failure, got ok=%v err=%v", ok, err)
	}

	st := waitForState(t, m, "first check complete", func(st domain.AuthState) bool {
		return st.SessionChecked && !st.Loading
	})
	if st.IsAuthenticated() {
		t.Fatalf("failed login must not authenticate")
	}
}

func TestMachine_TwoFactorFlow(t *testing.T) {
	e := newEnv(t)
	identityID := e.addUser(t, "alice@example.com", "user", true)
	m := e.newMachine(t)

	// Every observed state must satisfy the core invariant.
	var mu sync.Mutex
	var observed []domain.AuthState
	unsub := m.Subscribe(func(st domain.AuthState) {
		mu.Lock()
		observed = append(observed, st)
		mu.Unlock()
	})
	defer unsub()

	if ok, err := m.Login(context.Background(), "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}

	st := waitForState(t, m, "awaiting second factor", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAwaitingTwoFactor
	})
	if st.IsAuthenticated() {
		t.Fatalf("pending second factor must not be authenticated")
	}
	if !st.NeedsTwoFactor || st.TwoFactorVerified {
		t.Fatalf("unexpected gate state: %+v", st)
	}

	// Wrong code: state unchanged, uniform error.
	if err := m.VerifyTwoFactor(context.Background(), identityID, "000000"); err != domain.ErrInvalidCode {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if got := m.State(); got.Status != domain.StatusAwaitingTwoFactor {
		t.Fatalf("failed verify changed state: %+v", got)
	}

	if err := m.VerifyTwoFactor(context.Background(), identityID, "123456"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	st = waitForState(t, m, "authenticated after verify", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})
	if !st.IsAuthenticated() || !st.TwoFactorVerified {
		t.Fatalf("unexpected state after verify: %+v", st)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, st := range observed {
		if st.IsAuthenticated() && st.NeedsTwoFactor && !st.TwoFactorVerified {
			t.Fatalf("state %d violates the 2FA invariant: %+v", i, st)
		}
	}
}

func TestMachine_SessionCheckedOnce(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "user", false)
	m := e.newMachine(t)

	var mu sync.Mutex
	var observed []domain.AuthState
	unsub := m.Subscribe(func(st domain.AuthState) {
		mu.Lock()
		observed = append(observed, st)
		mu.Unlock()
	})
	defer unsub()

	waitForState(t, m, "first check complete", func(st domain.AuthState) bool {
		return st.SessionChecked
	})

	if ok, err := m.Login(context.Background(), "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}
	waitForState(t, m, "authenticated", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	seen := false
	for i, st := range observed {
		if seen && !st.SessionChecked {
			t.Fatalf("state %d reverted sessionChecked to false", i)
		}
		if st.SessionChecked {
			seen = true
		}
	}
	if !seen {
		t.Fatalf("sessionChecked never became true")
	}
}

func TestMachine_Logout_Idempotent(t *testing.T) {
	e := newEnv(t)
	m := e.newMachine(t)

	waitForState(t, m, "first check complete", func(st domain.AuthState) bool {
		return st.SessionChecked && !st.Loading
	})

	before := m.State()
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout on unauthenticated machine returned error: %v", err)
	}
	if after := m.State(); after != before {
		t.Fatalf("logout changed state: before=%+v after=%+v", before, after)
	}
	if e.bcast.publishedCount() != 0 {
		t.Fatalf("idempotent logout must not broadcast")
	}
}

func TestMachine_FailClosed_NoProfile(t *testing.T) {
	e := newEnv(t)
	// Credentials exist, but no profile row under either key.
	if _, err := e.provider.Register(context.Background(), "orphan@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("register: %v", err)
	}
	m := e.newMachine(t)

	if ok, err := m.Login(context.Background(), "orphan@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("credential step should pass: ok=%v err=%v", ok, err)
	}

	st := waitForState(t, m, "resolution complete", func(st domain.AuthState) bool {
		return st.SessionChecked && !st.Loading
	})
	if st.IsAuthenticated() {
		t.Fatalf("missing profile must fail closed, got %+v", st)
	}
	if st.Status != domain.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", st.Status)
	}
}

func TestMachine_MarkerLifecycle(t *testing.T) {
	e := newEnv(t)
	identityID := e.addUser(t, "alice@example.com", "user", true)
	m := e.newMachine(t)
	ctx := context.Background()

	if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}
	waitForState(t, m, "awaiting second factor", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAwaitingTwoFactor
	})
	if err := m.VerifyTwoFactor(ctx, identityID, "123456"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if set, _ := e.markers.IsSet(ctx, identityID); !set {
		t.Fatalf("marker missing after verification")
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	waitForState(t, m, "unauthenticated after logout", func(st domain.AuthState) bool {
		return st.Status == domain.StatusUnauthenticated
	})
	if set, _ := e.markers.IsSet(ctx, identityID); set {
		t.Fatalf("marker survived logout")
	}

	// A fresh login must require the second factor again.
	if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("second login failed: ok=%v err=%v", ok, err)
	}
	st := waitForState(t, m, "awaiting second factor again", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAwaitingTwoFactor
	})
	if st.TwoFactorVerified || st.IsAuthenticated() {
		t.Fatalf("verification state leaked across logins: %+v", st)
	}
}

func TestMachine_CrossTabSignOut(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "user", false)

	tabA := e.newMachine(t)
	tabB := e.newMachine(t)
	ctx := context.Background()

	for _, m := range []*Machine{tabA, tabB} {
		if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
			t.Fatalf("login failed: ok=%v err=%v", ok, err)
		}
		waitForState(t, m, "authenticated", func(st domain.AuthState) bool {
			return st.Status == domain.StatusAuthenticated
		})
	}

	if err := tabA.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	st := waitForState(t, tabB, "signed out by broadcast", func(st domain.AuthState) bool {
		return st.Status == domain.StatusUnauthenticated
	})
	if st.Reason != domain.RedirectSignedOutElsewhere {
		t.Fatalf("expected signed_out_elsewhere reason, got %q", st.Reason)
	}
	if st.IsAuthenticated() {
		t.Fatalf("tab B still authenticated after broadcast")
	}
}

func TestMachine_CrossTab_DifferentIdentityUntouched(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "user", false)
	e.addUser(t, "carol@example.com", "admin", false)

	tabAlice := e.newMachine(t)
	tabCarol := e.newMachine(t)
	ctx := context.Background()

	if ok, err := tabAlice.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("alice login failed: ok=%v err=%v", ok, err)
	}
	if ok, err := tabCarol.Login(ctx, "carol@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("carol login failed: ok=%v err=%v", ok, err)
	}
	waitForState(t, tabAlice, "alice authenticated", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})
	waitForState(t, tabCarol, "carol authenticated", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})

	if err := tabAlice.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	// Carol's sign-out is somebody else's: her tab stays authenticated.
	time.Sleep(50 * time.Millisecond)
	if st := tabCarol.State(); st.Status != domain.StatusAuthenticated {
		t.Fatalf("unrelated identity was signed out: %+v", st)
	}
}

func TestMachine_CheckSession_Expired(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "user", false)
	// Issue sessions that are already past expiry.
	e.provider.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	m := e.newMachine(t)
	ctx := context.Background()

	if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}

	st := waitForState(t, m, "resolution complete", func(st domain.AuthState) bool {
		return st.SessionChecked && !st.Loading
	})
	if m.CheckSession() {
		t.Fatalf("expired session must read as absent")
	}
	if st.IsAuthenticated() {
		t.Fatalf("expired session must not authenticate: %+v", st)
	}
}

func TestMachine_HandleSessionExpired(t *testing.T) {
	e := newEnv(t)
	identityID := e.addUser(t, "alice@example.com", "user", true)
	m := e.newMachine(t)
	ctx := context.Background()

	if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}
	waitForState(t, m, "awaiting second factor", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAwaitingTwoFactor
	})
	if err := m.VerifyTwoFactor(ctx, identityID, "123456"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	waitForState(t, m, "authenticated", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})

	m.HandleSessionExpired(ctx)

	st := waitForState(t, m, "unauthenticated after expiry", func(st domain.AuthState) bool {
		return st.Status == domain.StatusUnauthenticated
	})
	if st.Reason != domain.RedirectSessionExpired {
		t.Fatalf("expected session_expired reason, got %q", st.Reason)
	}
	if set, _ := e.markers.IsSet(ctx, identityID); set {
		t.Fatalf("marker survived session expiry")
	}
}

// blockingResolver parks every lookup until release is closed, simulating
// a slow profile fetch.
type blockingResolver struct {
	inner   ports.ProfileResolver
	entered chan struct{}
	release chan struct{}
}

func (r *blockingResolver) Resolve(ctx context.Context, identityID string) *domain.Profile {
	r.entered <- struct{}{}
	<-r.release
	return r.inner.Resolve(ctx, identityID)
}

// A sign-out that lands while a signed_in resolution is still in flight
// must win: the late result is discarded, never resurrecting the session.
func TestMachine_StaleResolutionDiscarded(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "alice@example.com", "admin", false)

	client := NewSessionClient(e.provider, zerolog.Nop())
	resolver := &blockingResolver{
		inner:   NewProfileResolver(e.profiles, zerolog.Nop()),
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	gate := NewTwoFactorGate(e.markers, e.codes, zerolog.Nop())
	m := NewMachine(client, resolver, gate, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		m.Close()
		cancel()
	})

	var mu sync.Mutex
	var observed []domain.AuthState
	unsub := m.Subscribe(func(st domain.AuthState) {
		mu.Lock()
		observed = append(observed, st)
		mu.Unlock()
	})
	defer unsub()

	if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}

	// Wait until the signed_in resolution is parked inside the lookup.
	select {
	case <-resolver.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("resolution never started")
	}

	// Sign out while the resolution is in flight, then let it finish.
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	close(resolver.release)

	// Tasks run serially: once this one completes, the stale result and
	// the queued signed_out event have both been handled.
	done := make(chan struct{})
	m.enqueue(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("task queue never drained")
	}

	if st := m.State(); st.Status != domain.StatusUnauthenticated {
		t.Fatalf("stale resolution resurrected state: %+v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, st := range observed {
		if st.IsAuthenticated() {
			t.Fatalf("state %d resurrected an authenticated snapshot: %+v", i, st)
		}
	}
}

func TestMachine_UserUpdatedReevaluatesGate(t *testing.T) {
	e := newEnv(t)
	identityID := e.addUser(t, "alice@example.com", "user", false)
	m := e.newMachine(t)
	ctx := context.Background()

	if ok, err := m.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}
	waitForState(t, m, "authenticated", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAuthenticated
	})

	// The profile now requires a second factor; a user_updated event must
	// re-derive the gate verdict instead of trusting the cached state.
	p, err := e.profiles.FindByAuthUserID(ctx, identityID)
	if err != nil {
		t.Fatalf("profile lookup failed: %v", err)
	}
	p.TwoFactorEnabled = true
	e.profiles.add(p)

	m.source.(*SessionClient).NotifyUserUpdated()

	st := waitForState(t, m, "awaiting second factor after update", func(st domain.AuthState) bool {
		return st.Status == domain.StatusAwaitingTwoFactor
	})
	if st.IsAuthenticated() {
		t.Fatalf("unverified second factor must not stay authenticated: %+v", st)
	}
}
