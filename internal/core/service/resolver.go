package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// ProfileResolverService resolves identity ids to application profiles
// using the dual-key scheme: primary id first, then the identity-linking
// key. Callers never learn which key matched.
type ProfileResolverService struct {
	repo ports.ProfileRepository
	log  zerolog.Logger
}

func NewProfileResolver(repo ports.ProfileRepository, log zerolog.Logger) *ProfileResolverService {
	return &ProfileResolverService{repo: repo, log: log}
}

// Resolve returns the profile for an identity, or nil when authentication
// cannot complete. A transient lookup failure is logged and surfaces as
// nil: the caller fails closed. No retries.
func (r *ProfileResolverService) Resolve(ctx context.Context, identityID string) *domain.Profile {
	if identityID == "" {
		return nil
	}

	p, err := r.repo.FindByID(ctx, identityID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		p, err = r.repo.FindByAuthUserID(ctx, identityID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			r.log.Debug().Str("identity_id", identityID).Msg("no profile row under either key")
		} else {
			r.log.Warn().Err(err).Str("identity_id", identityID).Msg("profile lookup failed")
		}
		return nil
	}

	p.Role = domain.RoleFromString(p.Classification)
	return p
}
