package dataapi

import (
	"net/http"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtest"
)

const orgID = "org-1"

var (
	alicePersonal = &authz.AuthUser{UserID: "alice"}
	bobPersonal   = &authz.AuthUser{UserID: "bob"}
	aliceOwner    = &authz.AuthUser{UserID: "alice", OrganizationID: lo.ToPtr(orgID), OrganizationRole: lo.ToPtr(objects.RoleOwner)}
	bobMember     = &authz.AuthUser{UserID: "bob", OrganizationID: lo.ToPtr(orgID), OrganizationRole: lo.ToPtr(objects.RoleMember)}
	carolAdmin    = &authz.AuthUser{UserID: "carol", OrganizationID: lo.ToPtr(orgID), OrganizationRole: lo.ToPtr(objects.RoleAdmin)}
	daveNoRole    = &authz.AuthUser{UserID: "dave", OrganizationID: lo.ToPtr(orgID)}
	eveOtherOrg   = &authz.AuthUser{UserID: "eve", OrganizationID: lo.ToPtr("org-2"), OrganizationRole: lo.ToPtr(objects.RoleOwner)}
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(xtest.NewDB(t))
}

func requireAPIError(t *testing.T, err error, status int, reason string) {
	t.Helper()

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.Status, apiErr.Message)
	assert.Equal(t, reason, apiErr.Reason)
}

func mustCreate(t *testing.T, c *Client, m *Model, data Row) Row {
	t.Helper()

	row, err := c.Create(t.Context(), m, &Args{Data: data})
	require.NoError(t, err)

	return row
}

func ids(rows []Row) []string {
	return lo.Map(rows, func(r Row, _ int) string { return r.String("id") })
}

func TestClient_Anonymous(t *testing.T) {
	engine := newTestEngine(t)
	ctx := t.Context()

	mustCreate(t, engine.Enhance(aliceOwner), todoListModel, Row{"name": "Roadmap"})

	anon := engine.Enhance(nil)

	rows, err := anon.FindMany(ctx, todoListModel, &Args{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	n, err := anon.Count(ctx, todoModel, &Args{})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = anon.Create(ctx, todoListModel, &Args{Data: Row{"name": "x"}})
	requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

	_, err = anon.Update(ctx, todoListModel, &Args{Where: Row{"id": "any"}, Data: Row{"name": "y"}})
	requireAPIError(t, err, http.StatusNotFound, ReasonResourceNotFound)

	_, err = anon.Delete(ctx, todoListModel, &Args{Where: Row{"id": "any"}})
	requireAPIError(t, err, http.StatusNotFound, ReasonResourceNotFound)
}

func TestClient_CreateDefaults(t *testing.T) {
	engine := newTestEngine(t)

	personal := mustCreate(t, engine.Enhance(alicePersonal), todoListModel, Row{"name": "Groceries"})
	assert.Equal(t, "alice", personal["ownerId"])
	assert.Nil(t, personal["organizationId"])
	assert.NotEmpty(t, personal["id"])
	assert.NotZero(t, personal["createdAt"])

	shared := mustCreate(t, engine.Enhance(aliceOwner), todoListModel, Row{"name": "Roadmap"})
	assert.Equal(t, orgID, shared["organizationId"])

	todo := mustCreate(t, engine.Enhance(aliceOwner), todoModel, Row{"title": "Ship", "listId": shared.String("id")})
	assert.Equal(t, false, todo["done"])
	assert.Equal(t, "alice", todo["ownerId"])

	t.Run("required fields", func(t *testing.T) {
		_, err := engine.Enhance(alicePersonal).Create(t.Context(), todoListModel, &Args{Data: Row{"organizationId": nil}})
		requireAPIError(t, err, http.StatusBadRequest, ReasonInvalidRequest)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := engine.Enhance(alicePersonal).Create(t.Context(), todoListModel, &Args{Data: Row{"id": personal.String("id"), "name": "again"}})
		requireAPIError(t, err, http.StatusBadRequest, ReasonInvalidRequest)
	})
}

func TestClient_TodoListPolicy(t *testing.T) {
	engine := newTestEngine(t)
	ctx := t.Context()

	alicePrivate := mustCreate(t, engine.Enhance(alicePersonal), todoListModel, Row{"name": "Alice private"})
	bobPrivate := mustCreate(t, engine.Enhance(bobPersonal), todoListModel, Row{"name": "Bob private"})
	aliceShared := mustCreate(t, engine.Enhance(aliceOwner), todoListModel, Row{"name": "Alice shared"})
	bobShared := mustCreate(t, engine.Enhance(bobMember), todoListModel, Row{"name": "Bob shared"})
	eveShared := mustCreate(t, engine.Enhance(eveOtherOrg), todoListModel, Row{"name": "Eve shared"})

	visible := func(user *authz.AuthUser) []string {
		rows, err := engine.Enhance(user).FindMany(ctx, todoListModel, &Args{})
		require.NoError(t, err)

		return ids(rows)
	}

	t.Run("read", func(t *testing.T) {
		assert.ElementsMatch(t, ids([]Row{alicePrivate}), visible(alicePersonal))
		assert.ElementsMatch(t, ids([]Row{bobPrivate}), visible(bobPersonal))
		assert.ElementsMatch(t, ids([]Row{aliceShared, bobShared}), visible(aliceOwner))
		assert.ElementsMatch(t, ids([]Row{aliceShared, bobShared}), visible(bobMember))
		assert.ElementsMatch(t, ids([]Row{aliceShared, bobShared}), visible(daveNoRole))
		assert.ElementsMatch(t, ids([]Row{eveShared}), visible(eveOtherOrg))
	})

	t.Run("members cannot change other lists", func(t *testing.T) {
		_, err := engine.Enhance(bobMember).Update(ctx, todoListModel, &Args{
			Where: Row{"id": aliceShared.String("id")},
			Data:  Row{"name": "hijacked"},
		})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

		_, err = engine.Enhance(bobMember).Delete(ctx, todoListModel, &Args{Where: Row{"id": aliceShared.String("id")}})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)
	})

	t.Run("lists outside the active organization are invisible", func(t *testing.T) {
		_, err := engine.Enhance(aliceOwner).Update(ctx, todoListModel, &Args{
			Where: Row{"id": alicePrivate.String("id")},
			Data:  Row{"name": "renamed"},
		})
		requireAPIError(t, err, http.StatusNotFound, ReasonResourceNotFound)

		_, err = engine.Enhance(aliceOwner).Delete(ctx, todoListModel, &Args{Where: Row{"id": eveShared.String("id")}})
		requireAPIError(t, err, http.StatusNotFound, ReasonResourceNotFound)
	})

	t.Run("cannot create for another organization", func(t *testing.T) {
		_, err := engine.Enhance(aliceOwner).Create(ctx, todoListModel, &Args{Data: Row{"name": "x", "organizationId": "org-2"}})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

		_, err = engine.Enhance(bobMember).Create(ctx, todoListModel, &Args{Data: Row{"name": "x", "ownerId": "alice"}})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)
	})

	t.Run("owners, admins and list owners can write", func(t *testing.T) {
		updated, err := engine.Enhance(carolAdmin).Update(ctx, todoListModel, &Args{
			Where: Row{"id": bobShared.String("id")},
			Data:  Row{"name": "Bob shared (edited)"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Bob shared (edited)", updated["name"])

		updated, err = engine.Enhance(bobMember).Update(ctx, todoListModel, &Args{
			Where: Row{"id": bobShared.String("id")},
			Data:  Row{"name": "Bob shared"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Bob shared", updated["name"])

		_, err = engine.Enhance(daveNoRole).Update(ctx, todoListModel, &Args{
			Where: Row{"id": bobShared.String("id")},
			Data:  Row{"name": "dave was here"},
		})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

		deleted, err := engine.Enhance(aliceOwner).Delete(ctx, todoListModel, &Args{Where: Row{"id": bobShared.String("id")}})
		require.NoError(t, err)
		assert.Equal(t, bobShared.String("id"), deleted.String("id"))
		assert.ElementsMatch(t, ids([]Row{aliceShared}), visible(bobMember))
	})

	t.Run("only some fields are updatable", func(t *testing.T) {
		_, err := engine.Enhance(aliceOwner).Update(ctx, todoListModel, &Args{
			Where: Row{"id": aliceShared.String("id")},
			Data:  Row{"ownerId": "bob"},
		})
		requireAPIError(t, err, http.StatusBadRequest, ReasonInvalidRequest)
	})
}

func TestClient_TodoPolicy(t *testing.T) {
	engine := newTestEngine(t)
	ctx := t.Context()

	aliceShared := mustCreate(t, engine.Enhance(aliceOwner), todoListModel, Row{"name": "Alice shared"})
	alicePrivate := mustCreate(t, engine.Enhance(alicePersonal), todoListModel, Row{"name": "Alice private"})

	todo := mustCreate(t, engine.Enhance(aliceOwner), todoModel, Row{"title": "Ship", "listId": aliceShared.String("id")})
	mustCreate(t, engine.Enhance(alicePersonal), todoModel, Row{"title": "Milk", "listId": alicePrivate.String("id")})

	t.Run("readable through the list", func(t *testing.T) {
		rows, err := engine.Enhance(bobMember).FindMany(ctx, todoModel, &Args{Where: Row{"listId": aliceShared.String("id")}})
		require.NoError(t, err)
		assert.Equal(t, []string{todo.String("id")}, ids(rows))

		n, err := engine.Enhance(bobPersonal).Count(ctx, todoModel, &Args{})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = engine.Enhance(alicePersonal).Count(ctx, todoModel, &Args{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("writes follow the list", func(t *testing.T) {
		_, err := engine.Enhance(bobMember).Create(ctx, todoModel, &Args{Data: Row{"title": "x", "listId": aliceShared.String("id")}})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

		_, err = engine.Enhance(bobMember).Update(ctx, todoModel, &Args{Where: Row{"id": todo.String("id")}, Data: Row{"done": true}})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

		_, err = engine.Enhance(aliceOwner).Create(ctx, todoModel, &Args{Data: Row{"title": "x", "listId": "missing"}})
		requireAPIError(t, err, http.StatusForbidden, ReasonAccessPolicyViolation)

		updated, err := engine.Enhance(carolAdmin).Update(ctx, todoModel, &Args{Where: Row{"id": todo.String("id")}, Data: Row{"done": true}})
		require.NoError(t, err)
		assert.Equal(t, true, updated["done"])
	})

	t.Run("deleting a list removes its todos", func(t *testing.T) {
		_, err := engine.Enhance(aliceOwner).Delete(ctx, todoListModel, &Args{Where: Row{"id": aliceShared.String("id")}})
		require.NoError(t, err)

		n, err := engine.Enhance(aliceOwner).Count(ctx, todoModel, &Args{})
		require.NoError(t, err)
		assert.Zero(t, n)

		row, err := engine.Enhance(aliceOwner).FindUnique(ctx, todoModel, &Args{Where: Row{"id": todo.String("id")}})
		require.NoError(t, err)
		assert.Nil(t, row)
	})
}

func TestClient_Queries(t *testing.T) {
	engine := newTestEngine(t)
	ctx := t.Context()
	alice := engine.Enhance(alicePersonal)

	var created []Row
	for _, name := range []string{"a", "b", "c", "d"} {
		created = append(created, mustCreate(t, alice, todoListModel, Row{"name": name}))
	}

	desc := []order{{Field: lo.Must(todoListModel.field("name")), Desc: true}}

	rows, err := alice.FindMany(ctx, todoListModel, &Args{OrderBy: desc})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, lo.Map(rows, func(r Row, _ int) string { return r.String("name") }))

	rows, err = alice.FindMany(ctx, todoListModel, &Args{OrderBy: desc, Take: lo.ToPtr(2), Skip: lo.ToPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, lo.Map(rows, func(r Row, _ int) string { return r.String("name") }))

	rows, err = alice.FindMany(ctx, todoListModel, &Args{OrderBy: desc, Skip: lo.ToPtr(3)})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	first, err := alice.FindFirst(ctx, todoListModel, &Args{OrderBy: desc})
	require.NoError(t, err)
	assert.Equal(t, "d", first["name"])

	unique, err := alice.FindUnique(ctx, todoListModel, &Args{Where: Row{"id": created[0].String("id")}})
	require.NoError(t, err)
	assert.Equal(t, "a", unique["name"])

	_, err = alice.FindUnique(ctx, todoListModel, &Args{Where: Row{"name": "a"}})
	requireAPIError(t, err, http.StatusBadRequest, ReasonInvalidRequest)

	n, err := alice.Count(ctx, todoListModel, &Args{Where: Row{"organizationId": nil, "name": "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	result, err := alice.Call(ctx, todoListModel, OperationCount, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, result)

	_, err = alice.Call(ctx, todoListModel, "aggregate", nil)
	requireAPIError(t, err, http.StatusBadRequest, ReasonInvalidRequest)
}

// The sql read filter and the in-memory rule must agree on every row.
func TestTodoListPolicy_ReadFilterMatchesRule(t *testing.T) {
	engine := newTestEngine(t)
	ctx := t.Context()

	users := []*authz.AuthUser{nil, alicePersonal, bobPersonal, aliceOwner, bobMember, carolAdmin, daveNoRole, eveOtherOrg}

	var all []Row

	for _, u := range users[1:] {
		all = append(all, mustCreate(t, engine.Enhance(u), todoListModel, Row{"name": u.String()}))
	}

	for _, u := range users {
		rows, err := engine.Enhance(u).FindMany(ctx, todoListModel, &Args{})
		require.NoError(t, err)

		want := lo.Filter(all, func(r Row, _ int) bool { return todoListAllows(u, OpRead, r) })
		assert.ElementsMatch(t, ids(want), ids(rows), u.String())
	}
}
