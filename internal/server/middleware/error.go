package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/objects"
)

var (
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrTooManyRequests    = errors.New("Too many requests. Please try again later.")
	ErrInternal           = errors.New("Internal server error")
	errSessionLookup      = errors.New("Failed to get session")
	errAuthUserResolution = errors.New("Failed to resolve request context")
)

// AbortWithError aborts the request with a JSON error response and adds the error to gin context for access logging.
func AbortWithError(c *gin.Context, status int, err error) {
	abortJSON(c, status, err, err)
}

// abortWithCause responds with the public error, the cause only reaches the access log.
func abortWithCause(c *gin.Context, status int, public, cause error) {
	abortJSON(c, status, public, cause)
}

func abortJSON(c *gin.Context, status int, public, cause error) {
	_ = c.Error(cause)
	c.AbortWithStatusJSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: public.Error(),
		},
	})
}
