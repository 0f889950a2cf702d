package ports

import "context"

// MarkerStore is the durable "already passed the second factor" flag,
// keyed per identity so one identity's verification can never carry over
// to another in the same browser profile. Writes are idempotent set/clear
// operations; no locking is required.
type MarkerStore interface {
	Set(ctx context.Context, identityID string) error
	Clear(ctx context.Context, identityID string) error
	IsSet(ctx context.Context, identityID string) (bool, error)
}

// CodeValidator checks a one-time code delivered out of band. It reports
// only pass/fail; the caller owns the uniform error message.
type CodeValidator interface {
	Validate(ctx context.Context, identityID, code string) (bool, error)
}

// CodeIssuer generates and stores a fresh one-time code for an identity.
type CodeIssuer interface {
	Issue(ctx context.Context, identityID string) (string, error)
}
