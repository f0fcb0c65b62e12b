package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/charity-tasks-api/internal/models"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
	"github.com/noah-isme/charity-tasks-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "currentActor"

// ActorResolver maps validated claims to the calling actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, claims *models.JWTClaims) (*models.Actor, error)
}

// Actor resolves the caller once per request. It must run after JWT.
func Actor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		actor, err := resolver.ResolveActor(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the resolved actor, if any.
func ActorFromContext(c *gin.Context) *models.Actor {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	actor, ok := value.(*models.Actor)
	if !ok {
		return nil
	}
	return actor
}
