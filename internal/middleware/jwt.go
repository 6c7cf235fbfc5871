package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// ContextActorKey is the gin context key storing the resolved models.Actor.
const ContextActorKey = "currentActor"

// TokenValidator parses and verifies access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token and resolves the caller into an Actor.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or malformed authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when present but does not block.
func OptionalJWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := validator.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// ActorFromContext returns the caller resolved by JWT.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

func setClaims(c *gin.Context, claims *models.JWTClaims) {
	c.Set(ContextUserKey, claims)
	c.Set(ContextActorKey, models.Actor{
		UserID: claims.UserID,
		Role:   claims.Role,
		Name:   claims.FullName,
		Email:  claims.Email,
		IP:     c.ClientIP(),
	})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
