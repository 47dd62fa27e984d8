package biz

import (
	"context"

	"github.com/looplj/todohub/internal/server/db"
)

type AbstractService struct {
	db *db.Client
}

// RunInTransaction runs fn in a transaction, joining the one already carried by ctx.
func (a *AbstractService) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return a.db.WithTx(ctx, fn)
}
