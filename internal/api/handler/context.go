package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/resellium/console/internal/api/middleware"
	"github.com/resellium/console/internal/core/domain"
)

// ctxPrincipal extracts the auth context injected by the Auth middleware
// and fast-fails before any service call:
//   - role must be non-empty (presence proves the middleware ran).
//   - the profile snapshot must be present; without it the request is
//     structurally authenticated but operationally unusable.
func ctxPrincipal(c echo.Context) (role domain.Role, identityID string, profile *domain.Profile, err error) {
	rawRole, _ := c.Get(middleware.CtxRole).(string)
	if rawRole == "" {
		return "", "", nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	identityID, _ = c.Get(middleware.CtxIdentityID).(string)
	profile, _ = c.Get(middleware.CtxProfile).(*domain.Profile)
	if profile == nil {
		return "", "", nil, echo.NewHTTPError(http.StatusUnauthorized, "missing profile context")
	}

	return domain.Role(rawRole), identityID, profile, nil
}
