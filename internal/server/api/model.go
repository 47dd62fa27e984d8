package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/dataapi"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/objects"
)

const maxModelBodySize = 1 << 20

var errRequestTooLarge = errors.New("Request body too large")

type ModelHandlersParams struct {
	fx.In

	Engine *dataapi.Engine
}

func NewModelHandlers(params ModelHandlersParams) *ModelHandlers {
	return &ModelHandlers{
		Engine: params.Engine,
	}
}

// ModelHandlers serve the model data api, "/api/model/{model}/{operation}".
// The auth user must be resolved by middleware.WithAuthUser before.
type ModelHandlers struct {
	Engine *dataapi.Engine
}

func (h *ModelHandlers) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := authz.GetAuthUser(ctx)
	if !ok {
		log.Error(ctx, "model request without resolved auth user")
		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))

		return
	}

	var body []byte

	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodDelete {
		var err error

		body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxModelBodySize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				JSONError(c, http.StatusRequestEntityTooLarge, errRequestTooLarge)
				return
			}

			JSONError(c, http.StatusBadRequest, errInvalidRequestFormat)

			return
		}
	}

	req, err := dataapi.ParseRequest(c.Request.Method, c.Param("path"), c.Request.URL.Query(), body)
	if err != nil {
		modelError(c, err)
		return
	}

	result, err := h.Engine.Enhance(user).Call(ctx, req.Model, req.Operation, req.Args)
	if err != nil {
		modelError(c, err)
		return
	}

	status := http.StatusOK
	if req.Operation == dataapi.OperationCreate {
		status = http.StatusCreated
	}

	c.JSON(status, objects.DataResponse{Data: result})
}

func modelError(c *gin.Context, err error) {
	var apiErr *dataapi.Error
	if !errors.As(err, &apiErr) {
		ServiceError(c, err)
		return
	}

	_ = c.Error(err)
	c.JSON(apiErr.Status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(apiErr.Status),
			Message: apiErr.Message,
			Reason:  apiErr.Reason,
		},
	})
}
