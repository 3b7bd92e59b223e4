package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/uniclinic/medsched-api/internal/models"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/response"
)

// SelfRule allows a request when the :id route parameter matches the
// authenticated user's ID.
const SelfRule = "SELF"

// RBAC allows the request when the caller's role is in the allowed set,
// or when SelfRule is allowed and the caller targets their own resource.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, rule := range allowed {
			if rule == SelfRule {
				if id := c.Param("id"); id != "" && id == claims.UserID {
					c.Next()
					return
				}
				continue
			}
			if string(claims.Role) == rule {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a readability helper over RBAC for role-only checks.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed = append(allowed, string(role))
	}
	return RBAC(allowed...)
}
