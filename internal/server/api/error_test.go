package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/server/biz"
)

func TestServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "wrapped invalid input",
			err:         fmt.Errorf("%w: invalid email", biz.ErrInvalidInput),
			wantStatus:  http.StatusBadRequest,
			wantMessage: biz.ErrInvalidInput.Error() + ": invalid email",
		},
		{
			name:        "invalid password",
			err:         biz.ErrInvalidPassword,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: biz.ErrInvalidPassword.Error(),
		},
		{
			name:        "forbidden",
			err:         fmt.Errorf("%w: admin role required", biz.ErrForbidden),
			wantStatus:  http.StatusForbidden,
			wantMessage: biz.ErrForbidden.Error() + ": admin role required",
		},
		{
			name:        "not found",
			err:         biz.ErrNotFound,
			wantStatus:  http.StatusNotFound,
			wantMessage: biz.ErrNotFound.Error(),
		},
		{
			name:        "slug taken",
			err:         biz.ErrSlugTaken,
			wantStatus:  http.StatusConflict,
			wantMessage: biz.ErrSlugTaken.Error(),
		},
		{
			name:        "unknown errors are hidden",
			err:         errors.New("dial tcp 10.0.0.1:5432: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			ServiceError(c, tt.err)

			require.Equal(t, tt.wantStatus, w.Code)

			var resp objects.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
			assert.Equal(t, http.StatusText(tt.wantStatus), resp.Error.Type)

			require.Len(t, c.Errors, 1)
			assert.ErrorIs(t, c.Errors[0].Err, tt.err)
		})
	}
}
