package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/pkg/xtest"
	"github.com/looplj/todohub/internal/server/db"
)

func insertList(t *testing.T, ctx context.Context, client *db.Client, id, name string, orgID *string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := client.Exec(ctx, client.SQL().
		Insert(db.TableTodoLists).
		Columns("id", "created_at", "updated_at", "name", "owner_id", "organization_id").
		Values(id, now, now, name, "owner-1", orgID))
	require.NoError(t, err)
}

func TestClient_Migrate(t *testing.T) {
	client := xtest.NewDB(t)
	ctx := t.Context()

	// A second run must be a no-op.
	require.NoError(t, client.Migrate(ctx))

	for _, table := range db.Tables {
		n, err := client.Count(ctx, client.SQL().Select(entsql.Count("*")).From(entsql.Table(table.Name)))
		require.NoError(t, err, table.Name)
		assert.Equal(t, 0, n, table.Name)
	}
}

func TestClient_QueryRow(t *testing.T) {
	client := xtest.NewDB(t)
	ctx := t.Context()

	org := "org-1"
	insertList(t, ctx, client, "l1", "groceries", &org)
	insertList(t, ctx, client, "l2", "chores", nil)

	var (
		name  string
		orgID *string
	)

	err := client.QueryRow(ctx,
		client.SQL().Select("name", "organization_id").From(entsql.Table(db.TableTodoLists)).Where(entsql.EQ("id", "l1")),
		func(rows *entsql.Rows) error { return rows.Scan(&name, &orgID) },
	)
	require.NoError(t, err)
	assert.Equal(t, "groceries", name)
	require.NotNil(t, orgID)
	assert.Equal(t, "org-1", *orgID)

	err = client.QueryRow(ctx,
		client.SQL().Select("name", "organization_id").From(entsql.Table(db.TableTodoLists)).Where(entsql.EQ("id", "l2")),
		func(rows *entsql.Rows) error { return rows.Scan(&name, &orgID) },
	)
	require.NoError(t, err)
	assert.Nil(t, orgID)

	err = client.QueryRow(ctx,
		client.SQL().Select("name").From(entsql.Table(db.TableTodoLists)).Where(entsql.EQ("id", "missing")),
		func(rows *entsql.Rows) error { return rows.Scan(&name) },
	)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestClient_WithTx(t *testing.T) {
	client := xtest.NewDB(t)
	ctx := t.Context()

	count := func() int {
		n, err := client.Count(ctx, client.SQL().Select(entsql.Count("*")).From(entsql.Table(db.TableTodoLists)))
		require.NoError(t, err)

		return n
	}

	t.Run("commit", func(t *testing.T) {
		err := client.WithTx(ctx, func(ctx context.Context) error {
			insertList(t, ctx, client, "commit-1", "a", nil)

			// Nested calls join the outer transaction.
			return client.WithTx(ctx, func(ctx context.Context) error {
				insertList(t, ctx, client, "commit-2", "b", nil)
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count())
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")

		err := client.WithTx(ctx, func(ctx context.Context) error {
			insertList(t, ctx, client, "rollback-1", "c", nil)
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 2, count())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = client.WithTx(ctx, func(ctx context.Context) error {
				insertList(t, ctx, client, "panic-1", "d", nil)
				panic("boom")
			})
		})
		assert.Equal(t, 2, count())
	})
}

func TestAfterCommit(t *testing.T) {
	client := xtest.NewDB(t)
	ctx := t.Context()

	t.Run("outside a transaction runs immediately", func(t *testing.T) {
		ran := false

		db.AfterCommit(ctx, func(context.Context) { ran = true })
		assert.True(t, ran)
	})

	t.Run("runs after commit", func(t *testing.T) {
		var seen int

		err := client.WithTx(ctx, func(ctx context.Context) error {
			insertList(t, ctx, client, "hook-1", "a", nil)

			db.AfterCommit(ctx, func(ctx context.Context) {
				// The committed row is visible outside of the transaction.
				n, err := client.Count(ctx, client.SQL().Select(entsql.Count("*")).From(entsql.Table(db.TableTodoLists)).
					Where(entsql.EQ("id", "hook-1")))
				require.NoError(t, err)

				seen = n
			})

			assert.Zero(t, seen)

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, seen)
	})

	t.Run("dropped on rollback", func(t *testing.T) {
		ran := false

		err := client.WithTx(ctx, func(ctx context.Context) error {
			db.AfterCommit(ctx, func(context.Context) { ran = true })
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.False(t, ran)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	client := xtest.NewDB(t)
	ctx := t.Context()

	insert := func() error {
		now := time.Now().UTC()
		_, err := client.Exec(ctx, client.SQL().
			Insert(db.TableUsers).
			Columns("id", "name", "email", "email_verified", "password", "role", "banned", "created_at", "updated_at").
			Values("u-"+now.Format(time.RFC3339Nano), "u", "dup@example.com", false, "x", "user", false, now, now))

		return err
	}

	require.NoError(t, insert())

	err := insert()
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	assert.False(t, db.IsUniqueViolation(nil))
	assert.False(t, db.IsUniqueViolation(errors.New("connection refused")))
}

func TestOpen_InvalidDialect(t *testing.T) {
	_, err := db.Open(db.Config{Dialect: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dialect")
}
