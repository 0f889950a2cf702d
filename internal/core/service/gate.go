package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
)

// GateResult is the two-factor verdict for a session.
type GateResult struct {
	NeedsTwoFactor    bool
	TwoFactorVerified bool
}

// EvaluateGate is the pure gate function over the profile's two-factor
// flag and the durable verified marker.
func EvaluateGate(twoFactorEnabled, markerSet bool) GateResult {
	if !twoFactorEnabled {
		return GateResult{NeedsTwoFactor: false, TwoFactorVerified: true}
	}
	return GateResult{NeedsTwoFactor: true, TwoFactorVerified: markerSet}
}

// TwoFactorGate combines the pure gate with the durable marker store and
// the out-of-band code validator.
type TwoFactorGate struct {
	markers ports.MarkerStore
	codes   ports.CodeValidator
	log     zerolog.Logger
}

func NewTwoFactorGate(markers ports.MarkerStore, codes ports.CodeValidator, log zerolog.Logger) *TwoFactorGate {
	return &TwoFactorGate{markers: markers, codes: codes, log: log}
}

// Evaluate computes the gate verdict for an identity. When the profile no
// longer requires a second factor, any stale marker is cleared so it
// cannot mask a future re-enable. Marker read failures count as unset:
// the gate fails closed.
func (g *TwoFactorGate) Evaluate(ctx context.Context, identityID string, twoFactorEnabled bool) GateResult {
	if !twoFactorEnabled {
		if err := g.markers.Clear(ctx, identityID); err != nil {
			g.log.Warn().Err(err).Str("identity_id", identityID).Msg("failed to clear stale 2fa marker")
		}
		return EvaluateGate(false, false)
	}

	set, err := g.markers.IsSet(ctx, identityID)
	if err != nil {
		g.log.Warn().Err(err).Str("identity_id", identityID).Msg("2fa marker read failed, treating as unverified")
		set = false
	}
	return EvaluateGate(true, set)
}

// Verify checks a one-time code and, on success, sets the durable marker
// for the identity. Failures are uniformly domain.ErrInvalidCode.
func (g *TwoFactorGate) Verify(ctx context.Context, identityID, code string) error {
	ok, err := g.codes.Validate(ctx, identityID, code)
	if err != nil {
		g.log.Warn().Err(err).Str("identity_id", identityID).Msg("code validation failed")
		return domain.ErrInvalidCode
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	if err := g.markers.Set(ctx, identityID); err != nil {
		g.log.Error().Err(err).Str("identity_id", identityID).Msg("failed to persist 2fa marker")
		return domain.ErrInvalidCode
	}
	return nil
}

// Reset clears the durable marker. Called on logout, detected session
// loss, and receipt of a remote sign-out. Idempotent.
func (g *TwoFactorGate) Reset(ctx context.Context, identityID string) {
	if identityID == "" {
		return
	}
	if err := g.markers.Clear(ctx, identityID); err != nil {
		g.log.Warn().Err(err).Str("identity_id", identityID).Msg("failed to clear 2fa marker")
	}
}
