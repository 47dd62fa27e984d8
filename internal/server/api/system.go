package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/build"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/server/biz"
)

type SystemHandlersParams struct {
	fx.In

	SystemService *biz.SystemService
}

func NewSystemHandlers(params SystemHandlersParams) *SystemHandlers {
	return &SystemHandlers{
		SystemService: params.SystemService,
	}
}

type SystemHandlers struct {
	SystemService *biz.SystemService
}

type HealthResponse struct {
	Status string     `json:"status"`
	Build  build.Info `json:"build"`
}

// Health reports 503 when the database cannot be read.
func (h *SystemHandlers) Health(c *gin.Context) {
	if _, err := h.SystemService.Version(c.Request.Context()); err != nil {
		log.Warn(c.Request.Context(), "health check failed", log.Cause(err))
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Build: build.GetBuildInfo()})

		return
	}

	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Build: build.GetBuildInfo()})
}
