package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/log"
)

// Recovery turns a panic in a handler into a 500 response and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctx := c.Request.Context()
			log.Error(ctx, "panic recovered",
				log.Any("panic", r),
				log.String("path", c.Request.URL.Path),
				log.String("stack", string(debug.Stack())),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			abortWithCause(c, http.StatusInternalServerError, ErrInternal, fmt.Errorf("panic: %v", r))
		}()

		c.Next()
	}
}
