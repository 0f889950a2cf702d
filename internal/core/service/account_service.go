package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// AccountService covers the small administrative surface the console
// needs from the auth core: listing users and adjusting credit balances.
type AccountService struct {
	profiles   ports.ProfileRepository
	identities ports.IdentityProvider
	operations ports.OperationRepository
	recorder   ports.OperationRecorder
	log        zerolog.Logger
	now        func() time.Time
}

func NewAccountService(
	profiles ports.ProfileRepository,
	identities ports.IdentityProvider,
	operations ports.OperationRepository,
	recorder ports.OperationRecorder,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		profiles:   profiles,
		identities: identities,
		operations: operations,
		recorder:   recorder,
		log:        log,
		now:        time.Now,
	}
}

// NewUserInput carries the fields an admin supplies when provisioning a
// console account.
type NewUserInput struct {
	Email            string
	Password         string
	Name             string
	Classification   string
	TwoFactorEnabled bool
	Credits          int64
	DistributorID    string
}

// CreateUser provisions a credential record and its application profile.
// The profile is keyed by its own id with the identity id in the linking
// field, the scheme all new rows use. Admin only.
func (s *AccountService) CreateUser(ctx context.Context, actorRole domain.Role, in NewUserInput) (*domain.Profile, error) {
	if actorRole != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	identityID, err := s.identities.Register(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile := &domain.Profile{
		ID:               uuid.NewString(),
		AuthUserID:       identityID,
		Email:            in.Email,
		Name:             in.Name,
		Classification:   in.Classification,
		TwoFactorEnabled: in.TwoFactorEnabled,
		Credits:          in.Credits,
		DistributorID:    in.DistributorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.profiles.Create(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	created.Role = domain.RoleFromString(created.Classification)
	return created, nil
}

// ListOperations returns recent audit entries for an identity. Admin only.
func (s *AccountService) ListOperations(ctx context.Context, actorRole domain.Role, identityID string, limit int64) ([]domain.Operation, error) {
	if actorRole != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	ops, err := s.operations.ListByIdentity(ctx, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

// ListUsers returns every profile. Admin only.
func (s *AccountService) ListUsers(ctx context.Context, actorRole domain.Role) ([]domain.Profile, error) {
	if actorRole != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	normalizeRoles(profiles)
	return profiles, nil
}

// ListDistributorUsers returns the profiles assigned to a distributor.
func (s *AccountService) ListDistributorUsers(ctx context.Context, actorRole domain.Role, distributorID string) ([]domain.Profile, error) {
	if actorRole != domain.RoleDistributor && actorRole != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	profiles, err := s.profiles.ListByDistributor(ctx, distributorID)
	if err != nil {
		return nil, fmt.Errorf("list distributor users: %w", err)
	}
	normalizeRoles(profiles)
	return profiles, nil
}

// AdjustCredits applies a credit delta to a profile and records the
// operation in the audit trail. Admin only.
func (s *AccountService) AdjustCredits(ctx context.Context, actorRole domain.Role, actorID, profileID string, delta int64, note string) (*domain.Profile, error) {
	if actorRole != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	updated, err := s.profiles.AdjustCredits(ctx, profileID, delta)
	if err != nil {
		return nil, fmt.Errorf("adjust credits: %w", err)
	}
	updated.Role = domain.RoleFromString(updated.Classification)

	if s.recorder != nil {
		s.recorder.Record(domain.Operation{
			ID:         uuid.NewString(),
			IdentityID: identityKey(updated),
			Kind:       domain.OpCreditAdjust,
			Amount:     delta,
			Actor:      actorID,
			Note:       note,
			At:         s.now(),
		})
	}

	return updated, nil
}

func normalizeRoles(profiles []domain.Profile) {
	for i := range profiles {
		profiles[i].Role = domain.RoleFromString(profiles[i].Classification)
	}
}

// identityKey prefers the identity-linking key; legacy rows reuse the
// primary id for it.
func identityKey(p *domain.Profile) string {
	if p.AuthUserID != "" {
		return p.AuthUserID
	}
	return p.ID
}
