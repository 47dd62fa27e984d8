package dependencies

import (
	"context"

	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/dataapi"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/mail"
	"github.com/looplj/todohub/internal/server/db"
)

var Module = fx.Module("dependencies",
	fx.Provide(log.New),
	fx.Provide(db.NewClient),
	fx.Provide(mail.NewSender),
	fx.Provide(mail.NewMailer),
	fx.Provide(dataapi.NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, client *db.Client) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
	}),
)
