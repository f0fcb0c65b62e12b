package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/charity-tasks-api/internal/models"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
	"github.com/noah-isme/charity-tasks-api/pkg/response"
)

// Profile names a role profile an actor may own.
type Profile string

const (
	ProfileCharity    Profile = "charity"
	ProfileBenefactor Profile = "benefactor"
)

var profileDenied = map[Profile]string{
	ProfileCharity:    "Only charities can perform this action.",
	ProfileBenefactor: "Only benefactors can perform this action.",
}

// RequireProfile rejects callers that own none of the given profiles. It
// runs before the handler so the check precedes any lookup.
func RequireProfile(allowed ...Profile) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFromContext(c)
		if actor == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, p := range allowed {
			if hasProfile(actor, p) {
				c.Next()
				return
			}
		}

		message := ""
		if len(allowed) == 1 {
			message = profileDenied[allowed[0]]
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, message))
		c.Abort()
	}
}

// RequireCharity is a helper for charity-only routes.
func RequireCharity() gin.HandlerFunc {
	return RequireProfile(ProfileCharity)
}

// RequireBenefactor is a helper for benefactor-only routes.
func RequireBenefactor() gin.HandlerFunc {
	return RequireProfile(ProfileBenefactor)
}

func hasProfile(actor *models.Actor, p Profile) bool {
	switch p {
	case ProfileCharity:
		return actor.IsCharity()
	case ProfileBenefactor:
		return actor.IsBenefactor()
	default:
		return false
	}
}
