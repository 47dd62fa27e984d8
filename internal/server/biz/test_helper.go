package biz

import (
	"github.com/looplj/todohub/internal/mail"
	"github.com/looplj/todohub/internal/pkg/xcache"
	"github.com/looplj/todohub/internal/server/db"
)

// Services bundles the wired services, used by tests of this and dependent packages.
type Services struct {
	System       *SystemService
	User         *UserService
	Session      *SessionService
	Auth         *AuthService
	Organization *OrganizationService
	Admin        *AdminService
	Mails        *mail.Recorder
}

// NewServicesForTest wires every service on client with a memory cache and a recording mailer.
func NewServicesForTest(client *db.Client, cfg AuthConfig) *Services {
	cacheConfig := xcache.Config{Mode: xcache.ModeMemory}
	recorder := &mail.Recorder{}
	mailer := mail.NewMailer(mail.Config{}, recorder)

	systemService, err := NewSystemService(SystemServiceParams{CacheConfig: cacheConfig, DB: client})
	if err != nil {
		panic(err)
	}

	userService, err := NewUserService(UserServiceParams{CacheConfig: cacheConfig, DB: client})
	if err != nil {
		panic(err)
	}

	sessionService := NewSessionService(SessionServiceParams{
		Config:        cfg,
		DB:            client,
		SystemService: systemService,
		UserService:   userService,
	})

	return &Services{
		System:  systemService,
		User:    userService,
		Session: sessionService,
		Auth: NewAuthService(AuthServiceParams{
			Config:         cfg,
			DB:             client,
			SessionService: sessionService,
			UserService:    userService,
			Mailer:         mailer,
		}),
		Organization: NewOrganizationService(OrganizationServiceParams{
			Config:         cfg,
			DB:             client,
			SessionService: sessionService,
			UserService:    userService,
			Mailer:         mailer,
		}),
		Admin: NewAdminService(AdminServiceParams{
			UserService:    userService,
			SessionService: sessionService,
		}),
		Mails: recorder,
	}
}
