package ports

import (
	"context"
	"time"
)

// Identity is a credential record in the identity store. It is distinct
// from the application Profile, which is keyed off the identity id.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityRepository persists credential records.
type IdentityRepository interface {
	// FindByEmail returns domain.ErrIdentityNotFound on a miss.
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// Create returns domain.ErrIdentityExists on a duplicate email.
	Create(ctx context.Context, id *Identity) (*Identity, error)
}
