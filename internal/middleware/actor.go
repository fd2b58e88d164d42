package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formador-scheduler/internal/models"
	"github.com/noah-isme/formador-scheduler/internal/service"
	"github.com/noah-isme/formador-scheduler/pkg/middleware/requestid"
)

// Actor attaches the caller identity to the request context so services can audit it.
// It must run after JWT.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := service.Actor{
			RequestID: requestid.Value(c),
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				actor.UserID = claims.UserID
				actor.Role = claims.Role
			}
		}
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
