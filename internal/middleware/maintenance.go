package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/response"
)

// Maintenance rejects traffic with 503 while enabled. Health checks and the
// admin surface under adminPrefix stay reachable so operators can repair data.
func Maintenance(enabled bool, adminPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || (adminPrefix != "" && strings.HasPrefix(path, adminPrefix)) {
			c.Next()
			return
		}
		c.Header("Retry-After", "300")
		response.Abort(c, appErrors.ErrMaintenance)
	}
}
