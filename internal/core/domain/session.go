package domain

import "time"

// Session is the read-only view of an identity provider session held by
// the auth core. The token is opaque to everything except the provider.
type Session struct {
	Token      string    `json:"token"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Valid reports whether the session exists and has not passed its expiry.
// An expired session is treated identically to no session at all, even if
// the identity provider has not yet pruned it locally.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// SessionEventType identifies a session lifecycle change emitted by the
// identity provider.
type SessionEventType string

const (
	EventInitialSession SessionEventType = "initial_session"
	EventSignedIn       SessionEventType = "signed_in"
	EventSignedOut      SessionEventType = "signed_out"
	EventTokenRefreshed SessionEventType = "token_refreshed"
	EventUserUpdated    SessionEventType = "user_updated"
)

// SessionEvent is delivered to session-change subscribers. Session is nil
// for signed_out and for an initial_session with no active session.
type SessionEvent struct {
	Type    SessionEventType
	Session *Session
}

// SignOutNotice is the message broadcast to sibling clients when an
// identity signs out, so every open view drops to logged-out together.
type SignOutNotice struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	At         time.Time `json:"at"`
}
