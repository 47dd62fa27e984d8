package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/server/api"
	"github.com/looplj/todohub/internal/server/biz"
	"github.com/looplj/todohub/internal/server/middleware"
)

type Handlers struct {
	fx.In

	Auth         *api.AuthHandlers
	Organization *api.OrganizationHandlers
	Admin        *api.AdminHandlers
	System       *api.SystemHandlers
	Model        *api.ModelHandlers
}

type Services struct {
	fx.In

	SessionService *biz.SessionService
	Resolver       *authz.ContextResolver
}

func SetupRoutes(server *Server, handlers Handlers, services Services) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithLoggingTracing(server.Config.Trace))
	server.Use(middleware.WithMetrics())

	// Setup CORS middleware at server level if enabled
	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	timeout := middleware.WithTimeout(server.Config.RequestTimeout)

	// Health check endpoint - no authentication required
	server.GET("/health", timeout, handlers.System.Health)

	authGroup := server.Group("/api/auth",
		timeout,
		middleware.WithRateLimit(server.Config.RateLimit),
		middleware.WithSession(services.SessionService),
	)
	{
		authGroup.POST("/sign-up/email", handlers.Auth.SignUpEmail)
		authGroup.POST("/sign-in/email", handlers.Auth.SignInEmail)
		authGroup.GET("/get-session", handlers.Auth.GetSession)
		authGroup.GET("/verify-email", handlers.Auth.VerifyEmail)
		authGroup.POST("/send-verification-email", handlers.Auth.SendVerificationEmail)
		authGroup.POST("/forget-password", handlers.Auth.ForgetPassword)
		authGroup.GET("/reset-password/:token", handlers.Auth.ResetPasswordCallback)
		authGroup.POST("/reset-password", handlers.Auth.ResetPassword)
	}

	sessionGroup := authGroup.Group("", middleware.RequireSession())
	{
		sessionGroup.POST("/sign-out", handlers.Auth.SignOut)
		sessionGroup.GET("/list-sessions", handlers.Auth.ListSessions)
		sessionGroup.POST("/revoke-session", handlers.Auth.RevokeSession)
		sessionGroup.POST("/revoke-other-sessions", handlers.Auth.RevokeOtherSessions)
		sessionGroup.POST("/revoke-sessions", handlers.Auth.RevokeSessions)
		sessionGroup.POST("/change-password", handlers.Auth.ChangePassword)
		sessionGroup.POST("/update-user", handlers.Auth.UpdateUser)
	}

	{
		orgGroup := sessionGroup.Group("/organization")
		orgGroup.POST("/create", handlers.Organization.Create)
		orgGroup.POST("/check-slug", handlers.Organization.CheckSlug)
		orgGroup.GET("/list", handlers.Organization.List)
		orgGroup.POST("/set-active", handlers.Organization.SetActive)
		orgGroup.GET("/get-full-organization", handlers.Organization.GetFull)
		orgGroup.POST("/update", handlers.Organization.Update)
		orgGroup.POST("/delete", handlers.Organization.Delete)
		orgGroup.POST("/leave", handlers.Organization.Leave)
		orgGroup.POST("/invite-member", handlers.Organization.InviteMember)
		orgGroup.POST("/accept-invitation", handlers.Organization.AcceptInvitation)
		orgGroup.POST("/reject-invitation", handlers.Organization.RejectInvitation)
		orgGroup.POST("/cancel-invitation", handlers.Organization.CancelInvitation)
		orgGroup.GET("/get-invitation", handlers.Organization.GetInvitation)
		orgGroup.GET("/list-invitations", handlers.Organization.ListInvitations)
		orgGroup.GET("/list-user-invitations", handlers.Organization.ListUserInvitations)
		orgGroup.POST("/remove-member", handlers.Organization.RemoveMember)
		orgGroup.POST("/update-member-role", handlers.Organization.UpdateMemberRole)
		orgGroup.GET("/get-active-member", handlers.Organization.GetActiveMember)
	}

	{
		adminGroup := sessionGroup.Group("/admin")
		adminGroup.GET("/list-users", handlers.Admin.ListUsers)
		adminGroup.POST("/set-role", handlers.Admin.SetRole)
		adminGroup.POST("/ban-user", handlers.Admin.BanUser)
		adminGroup.POST("/unban-user", handlers.Admin.UnbanUser)
		adminGroup.POST("/list-user-sessions", handlers.Admin.ListUserSessions)
		adminGroup.POST("/revoke-user-sessions", handlers.Admin.RevokeUserSessions)
		adminGroup.POST("/remove-user", handlers.Admin.RemoveUser)
	}

	// Model data api, every request is scoped by the auth user resolved from its session.
	server.Any("/api/model/*path", timeout, middleware.WithAuthUser(services.Resolver), handlers.Model.Handle)
}
