package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/response"
)

// Self may be passed to RBAC to admit callers whose id matches the :id param.
const Self = "SELF"

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		actor := ActorFromContext(c)
		if actor == nil {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, authz.ReasonAuthenticationNeeded))
			return
		}

		if _, ok := allowedRoles[actor.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == actor.ID {
				c.Next()
				return
			}
		}

		response.Abort(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// RequireManager admits manager, management and super_admin.
func RequireManager() gin.HandlerFunc {
	return guard(authz.RequireManagerRole)
}

// RequireManagement admits management and super_admin.
func RequireManagement() gin.HandlerFunc {
	return guard(authz.RequireManagementRole)
}

// RequireSuperAdmin admits super_admin only.
func RequireSuperAdmin() gin.HandlerFunc {
	return guard(authz.RequireSuperAdmin)
}

func guard(check func(*authz.Actor) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFromContext(c)
		if actor == nil {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, authz.ReasonAuthenticationNeeded))
			return
		}
		if err := check(actor); err != nil {
			response.Abort(c, err)
			return
		}
		c.Next()
	}
}
