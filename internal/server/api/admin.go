package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/server/biz"
)

type AdminHandlersParams struct {
	fx.In

	AdminService *biz.AdminService
}

func NewAdminHandlers(params AdminHandlersParams) *AdminHandlers {
	return &AdminHandlers{
		AdminService: params.AdminService,
	}
}

// AdminHandlers serve the user management endpoints, the service rejects callers without the admin role.
type AdminHandlers struct {
	AdminService *biz.AdminService
}

func (h *AdminHandlers) ListUsers(c *gin.Context) {
	var req biz.ListUsersInput
	if err := c.ShouldBindQuery(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errInvalidRequestFormat)
		return
	}

	result, err := h.AdminService.ListUsers(c.Request.Context(), currentSession(c).User, req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type SetRoleRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

func (h *AdminHandlers) SetRole(c *gin.Context) {
	var req SetRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.AdminService.SetRole(c.Request.Context(), currentSession(c).User, req.UserID, req.Role)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandlers) BanUser(c *gin.Context) {
	var req biz.BanUserInput
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.AdminService.BanUser(c.Request.Context(), currentSession(c).User, req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

type UserIDRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *AdminHandlers) UnbanUser(c *gin.Context) {
	var req UserIDRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.AdminService.UnbanUser(c.Request.Context(), currentSession(c).User, req.UserID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandlers) ListUserSessions(c *gin.Context) {
	var req UserIDRequest
	if !bindJSON(c, &req) {
		return
	}

	sessions, err := h.AdminService.ListUserSessions(c.Request.Context(), currentSession(c).User, req.UserID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *AdminHandlers) RevokeUserSessions(c *gin.Context) {
	var req UserIDRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.AdminService.RevokeUserSessions(c.Request.Context(), currentSession(c).User, req.UserID); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandlers) RemoveUser(c *gin.Context) {
	var req UserIDRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.AdminService.RemoveUser(c.Request.Context(), currentSession(c).User, req.UserID); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
