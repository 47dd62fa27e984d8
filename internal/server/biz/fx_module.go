package biz

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("biz",
	fx.Provide(NewSystemService),
	fx.Provide(NewUserService),
	fx.Provide(NewSessionService),
	fx.Provide(NewAuthService),
	fx.Provide(NewOrganizationService),
	fx.Provide(NewAdminService),
	fx.Invoke(func(lc fx.Lifecycle, svc *SystemService) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return svc.Initialize(ctx)
			},
		})
	}),
)
