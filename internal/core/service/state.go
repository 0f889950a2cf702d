package service

import (
	"context"
	"time"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// ComputeState derives the terminal auth state for a session: expiry
// check, dual-key profile resolution, then the two-factor gate. Both the
// machine and the HTTP middleware go through this single pipeline, so the
// "never authenticated while 2FA is pending" invariant lives in one place.
func ComputeState(ctx context.Context, sess *domain.Session, resolver ports.ProfileResolver, gate *TwoFactorGate, now time.Time) domain.AuthState {
	st := domain.AuthState{Status: domain.StatusUnauthenticated, SessionChecked: true}

	if !sess.Valid(now) {
		return st
	}

	profile := resolver.Resolve(ctx, sess.IdentityID)
	if profile == nil {
		// No profile row under either key, or the lookup failed: the
		// application cannot establish role or permissions, so fail closed.
		return st
	}

	verdict := gate.Evaluate(ctx, sess.IdentityID, profile.TwoFactorEnabled)

	st.SessionPresent = true
	st.NeedsTwoFactor = verdict.NeedsTwoFactor
	st.TwoFactorVerified = verdict.TwoFactorVerified
	st.Role = profile.Role
	st.Profile = profile
	if st.IsAuthenticated() {
		st.Status = domain.StatusAuthenticated
	} else {
		st.Status = domain.StatusAwaitingTwoFactor
	}
	return st
}
