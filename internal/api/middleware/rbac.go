package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/resellium/console/internal/core/domain"
)

// RBAC enforces role-based access control. An authenticated caller whose
// role is not in the allowed set gets 403, never a login redirect: they
// are signed in, just under-privileged.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if _, ok := allowed[domain.Role(role)]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
