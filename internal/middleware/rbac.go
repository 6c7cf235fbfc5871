package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

// RequireCapability lets the request through only when the caller's role holds every capability.
func RequireCapability(caps ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, capability := range caps {
			if !actor.Role.Can(capability) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing capability "+string(capability)))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RequireRoles restricts a route to the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
