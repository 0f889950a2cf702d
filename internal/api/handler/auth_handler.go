package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/api/metrics"
	"github.com/resellium/console/internal/api/middleware"
	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
	"github.com/resellium/console/internal/core/service"
)

// AuthHandler exposes the session lifecycle over HTTP: login, two-factor
// challenge/verify, logout, and session introspection.
type AuthHandler struct {
	provider  ports.IdentityProvider
	resolver  ports.ProfileResolver
	gate      *service.TwoFactorGate
	codes     ports.CodeIssuer
	broadcast ports.Broadcast
	recorder  ports.OperationRecorder
	log       zerolog.Logger
}

func NewAuthHandler(
	provider ports.IdentityProvider,
	resolver ports.ProfileResolver,
	gate *service.TwoFactorGate,
	codes ports.CodeIssuer,
	broadcast ports.Broadcast,
	recorder ports.OperationRecorder,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		resolver:  resolver,
		gate:      gate,
		codes:     codes,
		broadcast: broadcast,
		recorder:  recorder,
		log:       log,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

type sessionResponse struct {
	Token             string          `json:"token,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	SessionChecked    bool            `json:"session_checked"`
	Authenticated     bool            `json:"authenticated"`
	NeedsTwoFactor    bool            `json:"needs_two_factor"`
	TwoFactorVerified bool            `json:"two_factor_verified"`
	Role              domain.Role     `json:"role,omitempty"`
	User              *domain.Profile `json:"user,omitempty"`
}

func stateResponse(st domain.AuthState) sessionResponse {
	return sessionResponse{
		SessionChecked:    st.SessionChecked,
		Authenticated:     st.IsAuthenticated(),
		NeedsTwoFactor:    st.NeedsTwoFactor,
		TwoFactorVerified: st.TwoFactorVerified,
		Role:              st.Role,
		User:              st.Profile,
	}
}

// Login verifies credentials and returns a session token plus the gate
// verdict. A token is issued even when the second factor is still
// pending: it unlocks only the 2FA endpoints until verification passes.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sess, err := h.provider.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return err
	}

	st := service.ComputeState(c.Request().Context(), sess, h.resolver, h.gate, time.Now())
	if !st.SessionPresent {
		// Valid credentials but no profile row under either key: the
		// console cannot establish role or permissions. Fail closed with
		// the uniform message.
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		h.log.Warn().Str("identity_id", sess.IdentityID).Msg("login without resolvable profile")
		return domain.ErrInvalidCredentials
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.record(domain.OpLogin, sess.IdentityID)

	resp := stateResponse(st)
	resp.Token = sess.Token
	resp.ExpiresAt = &sess.ExpiresAt
	return c.JSON(http.StatusOK, resp)
}

// Challenge issues a fresh one-time code for the session's identity. The
// code travels out of band; the response only acknowledges issuance.
//
// @Summary      Request a two-factor code
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      202   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /v1/auth/2fa/challenge [post]
func (h *AuthHandler) Challenge(c echo.Context) error {
	sess, err := middleware.BearerSession(c, h.provider)
	if err != nil {
		return err
	}
	if !sess.Valid(time.Now()) {
		return domain.ErrSessionExpired
	}

	if _, err := h.codes.Issue(c.Request().Context(), sess.IdentityID); err != nil {
		h.log.Error().Err(err).Msg("failed to issue one-time code")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue code")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "code sent"})
}

// Verify checks a one-time code. Success sets the durable verified marker
// for the identity; failure is the uniform "invalid code" regardless of
// cause.
//
// @Summary      Verify a two-factor code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      verifyRequest  true  "One-time code"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  map[string]string
// @Router       /v1/auth/2fa/verify [post]
func (h *AuthHandler) Verify(c echo.Context) error {
	sess, err := middleware.BearerSession(c, h.provider)
	if err != nil {
		return err
	}
	if !sess.Valid(time.Now()) {
		return domain.ErrSessionExpired
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.gate.Verify(c.Request().Context(), sess.IdentityID, req.Code); err != nil {
		metrics.TwoFactorAttemptsTotal.WithLabelValues("fail").Inc()
		h.record(domain.OpTwoFactorFail, sess.IdentityID)
		return err
	}

	metrics.TwoFactorAttemptsTotal.WithLabelValues("pass").Inc()
	h.record(domain.OpTwoFactorPass, sess.IdentityID)

	st := service.ComputeState(c.Request().Context(), sess, h.resolver, h.gate, time.Now())
	return c.JSON(http.StatusOK, stateResponse(st))
}

// Logout clears the durable two-factor marker and broadcasts the
// sign-out to sibling clients. Idempotent: a missing or expired session
// still yields 204, there is simply nothing to sign out of.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Router       /v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, err := middleware.BearerSession(c, h.provider)
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}

	h.gate.Reset(c.Request().Context(), sess.IdentityID)

	if h.broadcast != nil {
		notice := domain.SignOutNotice{ID: uuid.NewString(), IdentityID: sess.IdentityID, At: time.Now()}
		if err := h.broadcast.Publish(c.Request().Context(), notice); err != nil {
			h.log.Warn().Err(err).Msg("failed to broadcast sign-out")
		} else {
			metrics.SignOutBroadcastsTotal.WithLabelValues("published").Inc()
		}
	}

	h.record(domain.OpLogout, sess.IdentityID)
	return c.NoContent(http.StatusNoContent)
}

// Session reports the auth state for the presented token. Unlike the
// protected routes it never rejects: an absent, invalid, or expired token
// simply reads as unauthenticated.
//
// @Summary      Introspect the current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  sessionResponse
// @Router       /v1/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	sess, err := middleware.BearerSession(c, h.provider)
	if err != nil {
		return c.JSON(http.StatusOK, stateResponse(domain.AuthState{
			Status:         domain.StatusUnauthenticated,
			SessionChecked: true,
		}))
	}

	st := service.ComputeState(c.Request().Context(), sess, h.resolver, h.gate, time.Now())
	return c.JSON(http.StatusOK, stateResponse(st))
}

func (h *AuthHandler) record(kind domain.OperationKind, identityID string) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(domain.Operation{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Kind:       kind,
		At:         time.Now(),
	})
}
