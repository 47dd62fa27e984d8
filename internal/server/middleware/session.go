package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/contexts"
	"github.com/looplj/todohub/internal/log"
)

// WithSession looks up the session of the request and stores it in the context.
// Requests without a session continue, RequireSession rejects them.
func WithSession(sessions authz.SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.GetSession(c.Request.Context(), c.Request.Header)
		if err != nil {
			log.Error(c.Request.Context(), "failed to get session", log.Cause(err))
			abortWithCause(c, http.StatusInternalServerError, errSessionLookup, err)

			return
		}

		if session != nil {
			c.Request = c.Request.WithContext(contexts.WithSession(c.Request.Context(), session))
		}

		c.Next()
	}
}

// RequireSession rejects requests that WithSession found no session for.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := contexts.GetSession(c.Request.Context()); !ok {
			AbortWithError(c, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
