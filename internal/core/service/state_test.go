package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
)

func statePipeline(t *testing.T) (*memProfileRepo, *memMarkerStore, *ProfileResolverService, *TwoFactorGate) {
	t.Helper()
	profiles := newMemProfileRepo()
	markers := newMemMarkerStore()
	resolver := NewProfileResolver(profiles, zerolog.Nop())
	gate := NewTwoFactorGate(markers, &staticCodeValidator{accepted: "123456"}, zerolog.Nop())
	return profiles, markers, resolver, gate
}

func liveSession(identityID string) *domain.Session {
	return &domain.Session{
		Token:      "tok",
		IdentityID: identityID,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestComputeState_NilSession(t *testing.T) {
	_, _, resolver, gate := statePipeline(t)

	st := ComputeState(context.Background(), nil, resolver, gate, time.Now())
	if st.Status != domain.StatusUnauthenticated || !st.SessionChecked {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestComputeState_ExpiredSession(t *testing.T) {
	profiles, _, resolver, gate := statePipeline(t)
	profiles.add(&domain.Profile{ID: "id-1", Classification: "admin"})

	sess := &domain.Session{IdentityID: "id-1", ExpiresAt: time.Now().Add(-time.Minute)}
	st := ComputeState(context.Background(), sess, resolver, gate, time.Now())
	if st.SessionPresent || st.IsAuthenticated() {
		t.Fatalf("expired session leaked through: %+v", st)
	}
}

func TestComputeState_Authenticated(t *testing.T) {
	profiles, _, resolver, gate := statePipeline(t)
	profiles.add(&domain.Profile{ID: "p-1", AuthUserID: "id-1", Classification: "distributor"})

	st := ComputeState(context.Background(), liveSession("id-1"), resolver, gate, time.Now())
	if st.Status != domain.StatusAuthenticated || !st.IsAuthenticated() {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Role != domain.RoleDistributor || st.Profile == nil {
		t.Fatalf("profile context missing: %+v", st)
	}
}

func TestComputeState_AwaitingTwoFactor(t *testing.T) {
	profiles, markers, resolver, gate := statePipeline(t)
	profiles.add(&domain.Profile{ID: "p-1", AuthUserID: "id-1", Classification: "user", TwoFactorEnabled: true})
	ctx := context.Background()

	st := ComputeState(ctx, liveSession("id-1"), resolver, gate, time.Now())
	if st.Status != domain.StatusAwaitingTwoFactor || st.IsAuthenticated() {
		t.Fatalf("unexpected state: %+v", st)
	}

	// With the durable marker present the same session authenticates.
	if err := markers.Set(ctx, "id-1"); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	st = ComputeState(ctx, liveSession("id-1"), resolver, gate, time.Now())
	if st.Status != domain.StatusAuthenticated || !st.TwoFactorVerified {
		t.Fatalf("marker not honored: %+v", st)
	}
}

func TestComputeState_UnresolvableProfile(t *testing.T) {
	_, _, resolver, gate := statePipeline(t)

	st := ComputeState(context.Background(), liveSession("ghost"), resolver, gate, time.Now())
	if st.SessionPresent || st.Status != domain.StatusUnauthenticated {
		t.Fatalf("missing profile must fail closed: %+v", st)
	}
}
