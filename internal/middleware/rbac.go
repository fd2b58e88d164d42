package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formador-scheduler/internal/models"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
	"github.com/noah-isme/formador-scheduler/pkg/response"
)

// RequireRoles lets through requests whose token carries one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not use this endpoint"))
		c.Abort()
	}
}
