package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/024globalconnect/portal/internal/core/domain"
)

// RoleSet is an allow-list of roles. The empty set allows every role. Roles
// are compared in their canonical form, so unknown roles count as affiliate.
type RoleSet map[domain.Role]struct{}

func NewRoleSet(roles ...domain.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Allows(role domain.Role) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[role.Canonical()]
	return ok
}

// RBAC enforces role-based access control on the role Guard placed on the
// context. It must run after Guard.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := NewRoleSet(allowedRoles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ctxKeyRole).(string)
			if role == "" || !allowed.Allows(domain.Role(role)) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
