package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/middleware"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
)

// requireActor returns the authenticated actor or an Unauthorized error.
func requireActor(c *gin.Context) (*authz.Actor, error) {
	actor := middleware.ActorFromContext(c)
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, authz.ReasonAuthenticationNeeded)
	}
	return actor, nil
}
