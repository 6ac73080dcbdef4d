package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, authz.ReasonAuthenticationNeeded))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ActorFromContext returns the authenticated actor, or nil when the request
// carries no validated claims.
func ActorFromContext(c *gin.Context) *authz.Actor {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return authz.ActorFromClaims(claims)
}
