package dataapi

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/objects"
)

// Operation is the kind of access a policy rule is checked for.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type policy interface {
	// readFilter restricts a select to the readable rows, nil means no row is readable.
	readFilter(c *Client) *entsql.Predicate
	// allows reports whether op may run on row.
	allows(ctx context.Context, c *Client, op Operation, row Row) (bool, error)
}

// todoListPolicy:
//   - anonymous callers are denied everything
//   - lists outside the active organization are denied, a list without organization matches no active organization
//   - the owner may create
//   - the owner and organization owners and admins may do everything
//   - lists of an organization are readable by everyone in it
type todoListPolicy struct{}

func (todoListPolicy) readFilter(c *Client) *entsql.Predicate {
	user := c.user
	if user == nil {
		return nil
	}

	scope := entsql.IsNull("organization_id")
	if user.OrganizationID != nil {
		scope = entsql.EQ("organization_id", *user.OrganizationID)
	}

	if user.HasOrganizationRole(objects.RoleOwner, objects.RoleAdmin) {
		return scope
	}

	return entsql.And(scope, entsql.Or(
		entsql.EQ("owner_id", user.UserID),
		entsql.NotNull("organization_id"),
	))
}

func (todoListPolicy) allows(_ context.Context, c *Client, op Operation, row Row) (bool, error) {
	return todoListAllows(c.user, op, row), nil
}

func todoListAllows(user *authz.AuthUser, op Operation, row Row) bool {
	if user == nil {
		return false
	}

	organizationID := row.OptionalString("organizationId")
	if !sameOrganization(user.OrganizationID, organizationID) {
		return false
	}

	if row.String("ownerId") == user.UserID {
		return true
	}

	if user.HasOrganizationRole(objects.RoleOwner, objects.RoleAdmin) {
		return true
	}

	return op == OpRead && organizationID != nil
}

func sameOrganization(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

// todoPolicy grants an operation on a todo when its list grants the same operation.
type todoPolicy struct{}

func (todoPolicy) readFilter(c *Client) *entsql.Predicate {
	lists := todoListPolicy{}.readFilter(c)
	if lists == nil {
		return nil
	}

	readable := c.db.SQL().Select("id").From(entsql.Table(todoListModel.Table)).Where(lists)

	return entsql.In("list_id", readable)
}

func (todoPolicy) allows(ctx context.Context, c *Client, op Operation, row Row) (bool, error) {
	list, err := c.findByID(ctx, todoListModel, row.String("listId"), nil)
	if err != nil {
		return false, err
	}

	if list == nil {
		return false, nil
	}

	return todoListAllows(c.user, op, list), nil
}
