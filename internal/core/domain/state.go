package domain

// AuthStatus is the lifecycle phase of the auth state machine.
type AuthStatus string

const (
	StatusUninitialized     AuthStatus = "uninitialized"
	StatusResolving         AuthStatus = "resolving"
	StatusUnauthenticated   AuthStatus = "unauthenticated"
	StatusAwaitingTwoFactor AuthStatus = "awaiting_2fa"
	StatusAuthenticated     AuthStatus = "authenticated"
)

// RedirectReason annotates a forced transition to unauthenticated so the
// login view can explain what happened instead of showing a generic landing.
type RedirectReason string

const (
	RedirectNone               RedirectReason = ""
	RedirectSessionExpired     RedirectReason = "session_expired"
	RedirectSignedOutElsewhere RedirectReason = "signed_out_elsewhere"
)

// AuthState is the composite observable state of the auth core. Snapshots
// are immutable: the machine swaps whole values, never partial fields, so
// observers can never see a half-resolved combination.
type AuthState struct {
	Status AuthStatus `json:"status"`

	// SessionChecked becomes true after the first session resolution
	// attempt completes, success or failure, and never reverts.
	SessionChecked bool `json:"session_checked"`

	// Loading is true while a resolution is in flight.
	Loading bool `json:"loading"`

	// SessionPresent is true only once a valid provider session has been
	// confirmed and its profile resolved.
	SessionPresent bool `json:"session_present"`

	NeedsTwoFactor    bool `json:"needs_two_factor"`
	TwoFactorVerified bool `json:"two_factor_verified"`

	Role    Role     `json:"role,omitempty"`
	Profile *Profile `json:"profile,omitempty"`

	Reason RedirectReason `json:"reason,omitempty"`
}

// IsAuthenticated derives full authentication. It is never stored: a
// session pending its second factor must not count as authenticated.
func (s AuthState) IsAuthenticated() bool {
	return s.SessionPresent && (!s.NeedsTwoFactor || s.TwoFactorVerified)
}
