package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/server/biz"
)

// HeaderAuthToken returns the session token to bearer clients.
const HeaderAuthToken = "Set-Auth-Token"

type AuthHandlersParams struct {
	fx.In

	Config         biz.AuthConfig
	AuthService    *biz.AuthService
	SessionService *biz.SessionService
	UserService    *biz.UserService
}

func NewAuthHandlers(params AuthHandlersParams) *AuthHandlers {
	return &AuthHandlers{
		Config:         params.Config,
		AuthService:    params.AuthService,
		SessionService: params.SessionService,
		UserService:    params.UserService,
	}
}

type AuthHandlers struct {
	Config         biz.AuthConfig
	AuthService    *biz.AuthService
	SessionService *biz.SessionService
	UserService    *biz.UserService
}

type SignInResponse struct {
	Token string       `json:"token"`
	User  objects.User `json:"user"`
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, result *biz.SignInResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(biz.SessionCookieName, result.Token, int(time.Until(result.Session.ExpiresAt).Seconds()), "/", "", h.Config.CookieSecure, true)
	c.Header(HeaderAuthToken, result.Token)
}

func (h *AuthHandlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(biz.SessionCookieName, "", -1, "/", "", h.Config.CookieSecure, true)
}

func (h *AuthHandlers) respondSignIn(c *gin.Context, result *biz.SignInResult) {
	if result.Token != "" {
		h.setSessionCookie(c, result)
	}

	c.JSON(http.StatusOK, SignInResponse{Token: result.Token, User: result.User})
}

// SignUpEmail creates an account, the response carries no token when email verification is required.
func (h *AuthHandlers) SignUpEmail(c *gin.Context) {
	var req biz.SignUpInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.AuthService.SignUp(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	h.respondSignIn(c, result)
}

func (h *AuthHandlers) SignInEmail(c *gin.Context) {
	var req biz.SignInInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.AuthService.SignIn(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	h.respondSignIn(c, result)
}

func (h *AuthHandlers) SignOut(c *gin.Context) {
	session := currentSession(c)

	if err := h.AuthService.SignOut(c.Request.Context(), session.Session); err != nil {
		ServiceError(c, err)
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSession returns the current session and user, null without a session.
func (h *AuthHandlers) GetSession(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		c.JSON(http.StatusOK, nil)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *AuthHandlers) ListSessions(c *gin.Context) {
	session := currentSession(c)

	sessions, err := h.SessionService.ListSessions(c.Request.Context(), session.User.ID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

type RevokeSessionRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandlers) RevokeSession(c *gin.Context) {
	var req RevokeSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session := currentSession(c)

	if err := h.SessionService.RevokeSession(c.Request.Context(), session.User.ID, req.Token); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *AuthHandlers) RevokeOtherSessions(c *gin.Context) {
	session := currentSession(c)

	if err := h.SessionService.RevokeOtherSessions(c.Request.Context(), session.User.ID, session.Session.Token); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *AuthHandlers) RevokeSessions(c *gin.Context) {
	session := currentSession(c)

	if err := h.SessionService.RevokeAllSessions(c.Request.Context(), session.User.ID); err != nil {
		ServiceError(c, err)
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	var req biz.ChangePasswordInput
	if !bindJSON(c, &req) {
		return
	}

	session := currentSession(c)

	if err := h.AuthService.ChangePassword(c.Request.Context(), session.Session, req); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

func (h *AuthHandlers) UpdateUser(c *gin.Context) {
	var req biz.UpdateUserInput
	if !bindJSON(c, &req) {
		return
	}

	session := currentSession(c)

	user, err := h.UserService.UpdateUser(c.Request.Context(), session.User.ID, req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

type SendVerificationEmailRequest struct {
	Email       string `json:"email" binding:"required"`
	CallbackURL string `json:"callbackURL"`
}

func (h *AuthHandlers) SendVerificationEmail(c *gin.Context) {
	var req SendVerificationEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.AuthService.SendVerificationEmail(c.Request.Context(), req.Email, req.CallbackURL); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

// VerifyEmail is the target of the verification link.
// It redirects to callbackURL when one is given, with an error query parameter on failure.
func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	callbackURL := c.Query("callbackURL")
	redirect := safeRedirect(h.Config.BaseURL, callbackURL)

	user, err := h.AuthService.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		if redirect {
			c.Redirect(http.StatusFound, withQuery(callbackURL, "error", "INVALID_TOKEN"))
			return
		}

		ServiceError(c, err)

		return
	}

	if redirect {
		c.Redirect(http.StatusFound, callbackURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "user": user})
}

type ForgetPasswordRequest struct {
	Email      string `json:"email" binding:"required"`
	RedirectTo string `json:"redirectTo"`
}

func (h *AuthHandlers) ForgetPassword(c *gin.Context) {
	var req ForgetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.AuthService.ForgetPassword(c.Request.Context(), req.Email, req.RedirectTo); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}

// ResetPasswordCallback is the target of the reset link, it hands the token to the client page.
func (h *AuthHandlers) ResetPasswordCallback(c *gin.Context) {
	token := c.Param("token")
	callbackURL := c.Query("callbackURL")
	redirect := safeRedirect(h.Config.BaseURL, callbackURL)

	if err := h.AuthService.CheckResetToken(c.Request.Context(), token); err != nil {
		if redirect {
			c.Redirect(http.StatusFound, withQuery(callbackURL, "error", "INVALID_TOKEN"))
			return
		}

		ServiceError(c, err)

		return
	}

	if redirect {
		c.Redirect(http.StatusFound, withQuery(callbackURL, "token", token))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.AuthService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		ServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true})
}
