package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/server/biz"
)

// JSONError returns a JSON error response and adds the error to gin context for access logging.
func JSONError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: err.Error(),
		},
	})
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{biz.ErrInvalidInput, http.StatusBadRequest},
	{biz.ErrInvalidToken, http.StatusBadRequest},
	{biz.ErrLastOwner, http.StatusBadRequest},
	{biz.ErrInvitationExpired, http.StatusBadRequest},
	{biz.ErrInvalidPassword, http.StatusUnauthorized},
	{biz.ErrUnauthorized, http.StatusUnauthorized},
	{biz.ErrForbidden, http.StatusForbidden},
	{biz.ErrUserBanned, http.StatusForbidden},
	{biz.ErrEmailNotVerified, http.StatusForbidden},
	{biz.ErrNotFound, http.StatusNotFound},
	{biz.ErrUserExists, http.StatusConflict},
	{biz.ErrSlugTaken, http.StatusConflict},
	{biz.ErrAlreadyMember, http.StatusConflict},
	{biz.ErrAlreadyInvited, http.StatusConflict},
}

// ServiceError maps a service error to its status, unknown errors are logged and hidden behind a 500.
func ServiceError(c *gin.Context, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			JSONError(c, e.status, err)
			return
		}
	}

	log.Error(c.Request.Context(), "request failed", log.Cause(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(http.StatusInternalServerError),
			Message: "Internal server error",
		},
	})
}
