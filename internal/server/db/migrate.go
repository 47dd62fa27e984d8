package db

import (
	"context"
	"fmt"
	"math"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	TableUsers         = "users"
	TableSessions      = "sessions"
	TableVerifications = "verifications"
	TableOrganizations = "organizations"
	TableMembers       = "members"
	TableInvitations   = "invitations"
	TableSystems       = "systems"
	TableTodoLists     = "todo_lists"
	TableTodos         = "todos"
)

const textSize = math.MaxInt32

var (
	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "name", Type: field.TypeString, Default: ""},
		{Name: "email", Type: field.TypeString, Unique: true},
		{Name: "email_verified", Type: field.TypeBool, Default: false},
		{Name: "image", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "password", Type: field.TypeString},
		{Name: "role", Type: field.TypeString, Default: "user"},
		{Name: "banned", Type: field.TypeBool, Default: false},
		{Name: "ban_reason", Type: field.TypeString, Nullable: true},
		{Name: "ban_expires", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       TableUsers,
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	// SessionsColumns holds the columns for the "sessions" table.
	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "token", Type: field.TypeString, Size: 128, Unique: true},
		{Name: "user_id", Type: field.TypeString, Size: 36},
		{Name: "expires_at", Type: field.TypeTime},
		{Name: "ip_address", Type: field.TypeString, Default: ""},
		{Name: "user_agent", Type: field.TypeString, Size: 1024, Default: ""},
		{Name: "active_organization_id", Type: field.TypeString, Size: 36, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// SessionsTable holds the schema information for the "sessions" table.
	SessionsTable = &schema.Table{
		Name:       TableSessions,
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "sessions_by_user_id", Columns: []*schema.Column{SessionsColumns[2]}},
		},
	}

	// VerificationsColumns holds the columns for the "verifications" table.
	VerificationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "identifier", Type: field.TypeString},
		{Name: "value", Type: field.TypeString},
		{Name: "expires_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
	}
	// VerificationsTable holds the schema information for the "verifications" table.
	VerificationsTable = &schema.Table{
		Name:       TableVerifications,
		Columns:    VerificationsColumns,
		PrimaryKey: []*schema.Column{VerificationsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "verifications_by_identifier", Columns: []*schema.Column{VerificationsColumns[1]}},
		},
	}

	// OrganizationsColumns holds the columns for the "organizations" table.
	OrganizationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "name", Type: field.TypeString},
		{Name: "slug", Type: field.TypeString, Unique: true},
		{Name: "logo", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "metadata", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// OrganizationsTable holds the schema information for the "organizations" table.
	OrganizationsTable = &schema.Table{
		Name:       TableOrganizations,
		Columns:    OrganizationsColumns,
		PrimaryKey: []*schema.Column{OrganizationsColumns[0]},
	}

	// MembersColumns holds the columns for the "members" table.
	MembersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "organization_id", Type: field.TypeString, Size: 36},
		{Name: "user_id", Type: field.TypeString, Size: 36},
		{Name: "role", Type: field.TypeString, Default: "member"},
		{Name: "created_at", Type: field.TypeTime},
	}
	// MembersTable holds the schema information for the "members" table.
	MembersTable = &schema.Table{
		Name:       TableMembers,
		Columns:    MembersColumns,
		PrimaryKey: []*schema.Column{MembersColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "members_by_organization_id_user_id",
				Unique:  true,
				Columns: []*schema.Column{MembersColumns[1], MembersColumns[2]},
			},
			{Name: "members_by_user_id", Columns: []*schema.Column{MembersColumns[2]}},
		},
	}

	// InvitationsColumns holds the columns for the "invitations" table.
	InvitationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "organization_id", Type: field.TypeString, Size: 36},
		{Name: "email", Type: field.TypeString},
		{Name: "role", Type: field.TypeString, Default: "member"},
		{Name: "status", Type: field.TypeString, Default: "pending"},
		{Name: "expires_at", Type: field.TypeTime},
		{Name: "inviter_id", Type: field.TypeString, Size: 36},
		{Name: "created_at", Type: field.TypeTime},
	}
	// InvitationsTable holds the schema information for the "invitations" table.
	InvitationsTable = &schema.Table{
		Name:       TableInvitations,
		Columns:    InvitationsColumns,
		PrimaryKey: []*schema.Column{InvitationsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "invitations_by_organization_id", Columns: []*schema.Column{InvitationsColumns[1]}},
		},
	}

	// SystemsColumns holds the columns for the "systems" table.
	SystemsColumns = []*schema.Column{
		{Name: "name", Type: field.TypeString, Size: 191},
		{Name: "value", Type: field.TypeString, Size: textSize},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// SystemsTable holds the schema information for the "systems" table.
	SystemsTable = &schema.Table{
		Name:       TableSystems,
		Columns:    SystemsColumns,
		PrimaryKey: []*schema.Column{SystemsColumns[0]},
	}

	// TodoListsColumns holds the columns for the "todo_lists" table.
	TodoListsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "name", Type: field.TypeString},
		{Name: "owner_id", Type: field.TypeString, Size: 36},
		{Name: "organization_id", Type: field.TypeString, Size: 36, Nullable: true},
	}
	// TodoListsTable holds the schema information for the "todo_lists" table.
	TodoListsTable = &schema.Table{
		Name:       TableTodoLists,
		Columns:    TodoListsColumns,
		PrimaryKey: []*schema.Column{TodoListsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "todo_lists_by_owner_id", Columns: []*schema.Column{TodoListsColumns[4]}},
			{Name: "todo_lists_by_organization_id", Columns: []*schema.Column{TodoListsColumns[5]}},
		},
	}

	// TodosColumns holds the columns for the "todos" table.
	TodosColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "title", Type: field.TypeString},
		{Name: "done", Type: field.TypeBool, Default: false},
		{Name: "list_id", Type: field.TypeString, Size: 36},
		{Name: "owner_id", Type: field.TypeString, Size: 36},
	}
	// TodosTable holds the schema information for the "todos" table.
	TodosTable = &schema.Table{
		Name:       TableTodos,
		Columns:    TodosColumns,
		PrimaryKey: []*schema.Column{TodosColumns[0]},
		Indexes: []*schema.Index{
			{Name: "todos_by_list_id", Columns: []*schema.Column{TodosColumns[5]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		UsersTable,
		SessionsTable,
		VerificationsTable,
		OrganizationsTable,
		MembersTable,
		InvitationsTable,
		SystemsTable,
		TodoListsTable,
		TodosTable,
	}
)

// Migrate creates or updates all tables. Relations are enforced by the services, not by foreign keys.
func (c *Client) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(c.driver,
		schema.WithForeignKeys(false),
		schema.WithDropIndex(true),
		schema.WithDropColumn(true),
	)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}
