package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/resellium/console/internal/api/metrics"
	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
	"github.com/resellium/console/internal/core/service"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxAuthState  = "auth_state"
	CtxIdentityID = "identity_id"
	CtxRole       = "role"
	CtxProfile    = "profile"
)

// BearerSession extracts and parses the bearer token into a session. The
// session may be past its expiry; callers decide what that means.
func BearerSession(c echo.Context, provider ports.IdentityProvider) (*domain.Session, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	sess, err := provider.ParseToken(parts[1])
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return sess, nil
}

// Auth derives the request's auth state through the shared resolution
// pipeline (expiry check, dual-key profile lookup, two-factor gate) and
// rejects anything not fully authenticated. A session whose second factor
// is still pending is told so explicitly but gets no protected content.
func Auth(provider ports.IdentityProvider, resolver ports.ProfileResolver, gate *service.TwoFactorGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := BearerSession(c, provider)
			if err != nil {
				return err
			}

			st := service.ComputeState(c.Request().Context(), sess, resolver, gate, time.Now())
			metrics.SessionResolutionsTotal.WithLabelValues(string(st.Status)).Inc()

			if !st.IsAuthenticated() {
				if st.Status == domain.StatusAwaitingTwoFactor {
					return echo.NewHTTPError(http.StatusUnauthorized, "two-factor verification required")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(CtxAuthState, st)
			c.Set(CtxIdentityID, sess.IdentityID)
			c.Set(CtxRole, string(st.Role))
			c.Set(CtxProfile, st.Profile)

			return next(c)
		}
	}
}
