package biz

import (
	"context"
	"errors"
	"slices"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/server/db"
)

var (
	userColumns = []string{
		"id", "name", "email", "email_verified", "image", "role",
		"banned", "ban_reason", "ban_expires", "created_at", "updated_at",
	}
	sessionColumns = []string{
		"id", "token", "user_id", "expires_at", "ip_address", "user_agent",
		"active_organization_id", "created_at", "updated_at",
	}
	organizationColumns = []string{"id", "name", "slug", "logo", "metadata", "created_at"}
	memberColumns       = []string{"id", "organization_id", "user_id", "role", "created_at"}
	invitationColumns   = []string{"id", "organization_id", "email", "role", "status", "expires_at", "inviter_id"}
)

func scanUser(rows *entsql.Rows) (objects.User, error) {
	var u objects.User
	err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image, &u.Role,
		&u.Banned, &u.BanReason, &u.BanExpires, &u.CreatedAt, &u.UpdatedAt)

	return u, err
}

func scanSession(rows *entsql.Rows) (objects.Session, error) {
	var s objects.Session
	err := rows.Scan(&s.ID, &s.Token, &s.UserID, &s.ExpiresAt, &s.IPAddress, &s.UserAgent,
		&s.ActiveOrganizationID, &s.CreatedAt, &s.UpdatedAt)

	return s, err
}

func scanOrganization(rows *entsql.Rows) (objects.Organization, error) {
	var o objects.Organization
	err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.Metadata, &o.CreatedAt)

	return o, err
}

func scanMember(rows *entsql.Rows) (objects.Member, error) {
	var m objects.Member
	err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)

	return m, err
}

func scanInvitation(rows *entsql.Rows) (objects.Invitation, error) {
	var i objects.Invitation
	err := rows.Scan(&i.ID, &i.OrganizationID, &i.Email, &i.Role, &i.Status, &i.ExpiresAt, &i.InviterID)

	return i, err
}

// queryAll scans every row of q.
func queryAll[T any](ctx context.Context, client *db.Client, q entsql.Querier, scan func(*entsql.Rows) (T, error)) ([]T, error) {
	rows, err := client.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []T

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

// queryOne scans the first row of q, nil when there is none.
func queryOne[T any](ctx context.Context, client *db.Client, q entsql.Querier, scan func(*entsql.Rows) (T, error)) (*T, error) {
	var item T

	err := client.QueryRow(ctx, q, func(rows *entsql.Rows) error {
		var err error

		item, err = scan(rows)

		return err
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &item, nil
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)

	return keys
}
