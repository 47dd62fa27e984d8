package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/contexts"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/server/biz"
)

var errInvalidRequestFormat = errors.New("Invalid request format")

// bindJSON decodes the body into req, replying 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		JSONError(c, http.StatusBadRequest, errInvalidRequestFormat)
		return false
	}

	return true
}

// currentSession is only called behind middleware.RequireSession.
func currentSession(c *gin.Context) *objects.SessionWithUser {
	session, _ := contexts.GetSession(c.Request.Context())
	return session
}

func requestMeta(c *gin.Context) biz.RequestMeta {
	return biz.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// safeRedirect reports whether target stays on this server: a relative path or a url under baseURL.
func safeRedirect(baseURL, target string) bool {
	if target == "" {
		return false
	}

	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\") {
		return true
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	return u.Scheme == base.Scheme && u.Host == base.Host
}

func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String()
}
