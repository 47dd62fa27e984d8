package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/server/biz"
)

var errNoActiveOrganization = errors.New("No active organization")

type OrganizationHandlersParams struct {
	fx.In

	OrganizationService *biz.OrganizationService
}

func NewOrganizationHandlers(params OrganizationHandlersParams) *OrganizationHandlers {
	return &OrganizationHandlers{
		OrganizationService: params.OrganizationService,
	}
}

type OrganizationHandlers struct {
	OrganizationService *biz.OrganizationService
}

// organizationID returns the requested organization, or the active one of the session.
func organizationID(c *gin.Context, requested *string) (string, bool) {
	if requested != nil && *requested != "" {
		return *requested, true
	}

	session := currentSession(c)
	if session.Session.ActiveOrganizationID != nil {
		return *session.Session.ActiveOrganizationID, true
	}

	JSONError(c, http.StatusBadRequest, errNoActiveOrganization)

	return "", false
}

func (h *OrganizationHandlers) Create(c *gin.Context) {
	var req biz.CreateOrganizationInput
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.OrganizationService.CreateOrganization(c.Request.Context(), currentSession(c).Session, req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type CheckSlugRequest struct {
	Slug string `json:"slug" binding:"required"`
}

func (h *OrganizationHandlers) CheckSlug(c *gin.Context) {
	var req CheckSlugRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.OrganizationService.CheckSlug(c.Request.Context(), req.Slug); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *OrganizationHandlers) List(c *gin.Context) {
	orgs, err := h.OrganizationService.ListOrganizations(c.Request.Context(), currentSession(c).User.ID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, orgs)
}

type SetActiveRequest struct {
	// OrganizationID null clears the active organization.
	OrganizationID *string `json:"organizationId"`
}

func (h *OrganizationHandlers) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.OrganizationService.SetActiveOrganization(c.Request.Context(), currentSession(c).Session, req.OrganizationID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (h *OrganizationHandlers) GetFull(c *gin.Context) {
	var requested *string
	if id := c.Query("organizationId"); id != "" {
		requested = &id
	}

	session := currentSession(c)
	if requested == nil && session.Session.ActiveOrganizationID == nil {
		c.JSON(http.StatusOK, nil)
		return
	}

	orgID, _ := organizationID(c, requested)

	org, err := h.OrganizationService.GetFullOrganization(c.Request.Context(), session.User.ID, orgID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type UpdateOrganizationRequest struct {
	OrganizationID *string                     `json:"organizationId"`
	Data           biz.UpdateOrganizationInput `json:"data"`
}

func (h *OrganizationHandlers) Update(c *gin.Context) {
	var req UpdateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	orgID, ok := organizationID(c, req.OrganizationID)
	if !ok {
		return
	}

	org, err := h.OrganizationService.UpdateOrganization(c.Request.Context(), currentSession(c).User.ID, orgID, req.Data)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type OrganizationIDRequest struct {
	OrganizationID string `json:"organizationId" binding:"required"`
}

func (h *OrganizationHandlers) Delete(c *gin.Context) {
	var req OrganizationIDRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.OrganizationService.DeleteOrganization(c.Request.Context(), currentSession(c).User.ID, req.OrganizationID); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *OrganizationHandlers) Leave(c *gin.Context) {
	var req OrganizationIDRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.OrganizationService.LeaveOrganization(c.Request.Context(), currentSession(c).User.ID, req.OrganizationID); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

type InviteMemberRequest struct {
	biz.InviteMemberInput

	OrganizationID *string `json:"organizationId"`
}

func (h *OrganizationHandlers) InviteMember(c *gin.Context) {
	var req InviteMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	orgID, ok := organizationID(c, req.OrganizationID)
	if !ok {
		return
	}

	invitation, err := h.OrganizationService.InviteMember(c.Request.Context(), currentSession(c).User, orgID, req.InviteMemberInput)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

type InvitationIDRequest struct {
	InvitationID string `json:"invitationId" binding:"required"`
}

type AcceptInvitationResponse struct {
	Invitation *objects.Invitation `json:"invitation"`
	Member     *objects.Member     `json:"member"`
}

func (h *OrganizationHandlers) AcceptInvitation(c *gin.Context) {
	var req InvitationIDRequest
	if !bindJSON(c, &req) {
		return
	}

	invitation, member, err := h.OrganizationService.AcceptInvitation(c.Request.Context(), *currentSession(c), req.InvitationID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, AcceptInvitationResponse{Invitation: invitation, Member: member})
}

func (h *OrganizationHandlers) RejectInvitation(c *gin.Context) {
	var req InvitationIDRequest
	if !bindJSON(c, &req) {
		return
	}

	invitation, err := h.OrganizationService.RejectInvitation(c.Request.Context(), currentSession(c).User, req.InvitationID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (h *OrganizationHandlers) CancelInvitation(c *gin.Context) {
	var req InvitationIDRequest
	if !bindJSON(c, &req) {
		return
	}

	invitation, err := h.OrganizationService.CancelInvitation(c.Request.Context(), currentSession(c).User.ID, req.InvitationID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (h *OrganizationHandlers) GetInvitation(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		JSONError(c, http.StatusBadRequest, errInvalidRequestFormat)
		return
	}

	invitation, err := h.OrganizationService.GetInvitation(c.Request.Context(), currentSession(c).User, id)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (h *OrganizationHandlers) ListInvitations(c *gin.Context) {
	var requested *string
	if id := c.Query("organizationId"); id != "" {
		requested = &id
	}

	orgID, ok := organizationID(c, requested)
	if !ok {
		return
	}

	invitations, err := h.OrganizationService.ListInvitations(c.Request.Context(), currentSession(c).User.ID, orgID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitations)
}

func (h *OrganizationHandlers) ListUserInvitations(c *gin.Context) {
	invitations, err := h.OrganizationService.ListUserInvitations(c.Request.Context(), currentSession(c).User)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitations)
}

type RemoveMemberRequest struct {
	OrganizationID  *string `json:"organizationId"`
	MemberIDOrEmail string  `json:"memberIdOrEmail" binding:"required"`
}

func (h *OrganizationHandlers) RemoveMember(c *gin.Context) {
	var req RemoveMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	orgID, ok := organizationID(c, req.OrganizationID)
	if !ok {
		return
	}

	member, err := h.OrganizationService.RemoveMember(c.Request.Context(), currentSession(c).User.ID, orgID, req.MemberIDOrEmail)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"member": member})
}

type UpdateMemberRoleRequest struct {
	OrganizationID *string `json:"organizationId"`
	MemberID       string  `json:"memberId" binding:"required"`
	Role           string  `json:"role" binding:"required"`
}

func (h *OrganizationHandlers) UpdateMemberRole(c *gin.Context) {
	var req UpdateMemberRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	orgID, ok := organizationID(c, req.OrganizationID)
	if !ok {
		return
	}

	member, err := h.OrganizationService.UpdateMemberRole(c.Request.Context(), currentSession(c).User.ID, orgID, req.MemberID, req.Role)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

func (h *OrganizationHandlers) GetActiveMember(c *gin.Context) {
	member, err := h.OrganizationService.GetActiveMember(c.Request.Context(), currentSession(c).Session)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}
