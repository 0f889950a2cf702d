package ports

import (
	"context"

	"github.com/resellium/console/internal/core/domain"
)

// ProfileRepository is the queryable table of application user records.
// Lookup misses return domain.ErrProfileNotFound, never a nil profile.
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	FindByAuthUserID(ctx context.Context, authUserID string) (*domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
	ListByDistributor(ctx context.Context, distributorID string) ([]domain.Profile, error)
	Create(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	AdjustCredits(ctx context.Context, id string, delta int64) (*domain.Profile, error)
}

// ProfileResolver resolves an identity id to its application profile.
// A nil result means authentication cannot complete: the row is missing
// under both keys, or the lookup failed transiently. Either way the
// caller must fail closed.
type ProfileResolver interface {
	Resolve(ctx context.Context, identityID string) *domain.Profile
}
