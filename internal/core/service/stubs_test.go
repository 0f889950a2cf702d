package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// ── In-memory identity repository ─────────────────────────────────────────────

type memIdentityRepo struct {
	mu    sync.Mutex
	byEml map[string]*ports.Identity
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{byEml: make(map[string]*ports.Identity)}
}

func (r *memIdentityRepo) Create(_ context.Context, id *ports.Identity) (*ports.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEml[id.Email]; exists {
		return nil, domain.ErrIdentityExists
	}
	clone := *id
	r.byEml[id.Email] = &clone
	out := clone
	return &out, nil
}

func (r *memIdentityRepo) FindByEmail(_ context.Context, email string) (*ports.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEml[email]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	clone := *id
	return &clone, nil
}

// ── In-memory profile repository ──────────────────────────────────────────────

type memProfileRepo struct {
	mu     sync.Mutex
	byID   map[string]*domain.Profile
	byAuth map[string]*domain.Profile
	// failWith, when set, makes every lookup fail transiently.
	failWith error
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{
		byID:   make(map[string]*domain.Profile),
		byAuth: make(map[string]*domain.Profile),
	}
}

func (r *memProfileRepo) add(p *domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	if p.AuthUserID != "" {
		r.byAuth[p.AuthUserID] = p
	}
}

func cloneProfile(p *domain.Profile) *domain.Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (r *memProfileRepo) FindByID(_ context.Context, id string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	if p, ok := r.byID[id]; ok {
		return cloneProfile(p), nil
	}
	return nil, domain.ErrProfileNotFound
}

func (r *memProfileRepo) FindByAuthUserID(_ context.Context, authUserID string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	if p, ok := r.byAuth[authUserID]; ok {
		return cloneProfile(p), nil
	}
	return nil, domain.ErrProfileNotFound
}

func (r *memProfileRepo) List(_ context.Context) ([]domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Profile, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memProfileRepo) ListByDistributor(_ context.Context, distributorID string) ([]domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Profile
	for _, p := range r.byID {
		if p.DistributorID == distributorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProfileRepo) Create(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	r.add(cloneProfile(p))
	return cloneProfile(p), nil
}

func (r *memProfileRepo) AdjustCredits(_ context.Context, id string, delta int64) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	p.Credits += delta
	return cloneProfile(p), nil
}

// ── In-memory marker store ────────────────────────────────────────────────────

type memMarkerStore struct {
	mu      sync.Mutex
	markers map[string]bool
}

func newMemMarkerStore() *memMarkerStore {
	return &memMarkerStore{markers: make(map[string]bool)}
}

func (s *memMarkerStore) Set(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[identityID] = true
	return nil
}

func (s *memMarkerStore) Clear(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, identityID)
	return nil
}

func (s *memMarkerStore) IsSet(_ context.Context, identityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers[identityID], nil
}

// ── Static one-time-code validator ────────────────────────────────────────────

type staticCodeValidator struct {
	accepted string
}

func (v *staticCodeValidator) Validate(_ context.Context, _, code string) (bool, error) {
	return code == v.accepted, nil
}

// ── In-memory broadcast ───────────────────────────────────────────────────────

type memBroadcast struct {
	mu        sync.Mutex
	subs      map[int]func(domain.SignOutNotice)
	nextSub   int
	published []domain.SignOutNotice
}

func newMemBroadcast() *memBroadcast {
	return &memBroadcast{subs: make(map[int]func(domain.SignOutNotice))}
}

func (b *memBroadcast) Publish(_ context.Context, notice domain.SignOutNotice) error {
	b.mu.Lock()
	b.published = append(b.published, notice)
	fns := make([]func(domain.SignOutNotice), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(notice)
	}
	return nil
}

func (b *memBroadcast) Subscribe(fn func(domain.SignOutNotice)) (cancel func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *memBroadcast) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// waitForState polls the machine until the predicate holds or the
// deadline passes.
func waitForState(t *testing.T, m *Machine, msg string, pred func(domain.AuthState) bool) domain.AuthState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := m.State()
		if pred(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state: %s (last: %+v)", msg, m.State())
	return domain.AuthState{}
}
