package domain

import "errors"

// Sentinel errors returned by the auth core. The API layer maps these to
// HTTP status codes in one place; services wrap them with context.
var (
	// ErrInvalidCredentials is the uniform login failure. It deliberately
	// does not distinguish an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidCode is the uniform one-time-code failure. It does not
	// reveal whether the identity or the code was wrong.
	ErrInvalidCode = errors.New("invalid code")

	ErrProfileNotFound  = errors.New("profile not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrNoSession        = errors.New("no active session")
	ErrForbidden        = errors.New("access forbidden")
)
