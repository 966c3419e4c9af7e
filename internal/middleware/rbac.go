package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/response"
)

type userSyncer interface {
	SyncCurrentUser(ctx context.Context, identity models.Identity) (*models.User, error)
}

// RouteGuard resolves the account behind the verified token and enforces the route table.
// It must run after JWT. apiPrefix is stripped before matching.
func RouteGuard(users userSyncer, apiPrefix string) gin.HandlerFunc {
	prefix := strings.TrimRight(apiPrefix, "/")
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.SyncCurrentUser(c.Request.Context(), claims.Identity())
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Error(c, appErrors.ErrInactiveAccount)
			c.Abort()
			return
		}

		path := strings.TrimPrefix(c.Request.URL.Path, prefix)
		if !rbac.CanAccessRoute(user.Role, path) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(user.Role)+" cannot access "+path))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}
