package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/metrics"
)

type AuthUserResolver interface {
	Resolve(ctx context.Context, header http.Header) (*authz.AuthUser, error)
}

// WithAuthUser resolves the auth user of the request, anonymous included, and stores it in the context.
func WithAuthUser(resolver AuthUserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		user, err := resolver.Resolve(ctx, c.Request.Header)
		if err != nil {
			log.Error(ctx, "failed to resolve auth user", log.Cause(err))
			abortWithCause(c, http.StatusInternalServerError, errAuthUserResolution, err)

			return
		}

		ctx, err = authz.WithAuthUser(ctx, user)
		if err != nil {
			abortWithCause(c, http.StatusInternalServerError, ErrInternal, err)
			return
		}

		metrics.RecordResolvedScope(ctx, user.Scope().String())

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
