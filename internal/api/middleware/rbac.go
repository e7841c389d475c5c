package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/medistore/medistore-api/internal/core/domain"
)

// RBAC admits callers whose role is one of allowedRoles. It must run after
// Auth; a request without an identity is treated as unauthenticated.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return domain.ErrMissingIdentity
			}
			if !id.HasRole(allowedRoles...) {
				return fmt.Errorf("%w: role %s cannot access %s", domain.ErrForbidden, id.Role, c.Path())
			}
			return next(c)
		}
	}
}
