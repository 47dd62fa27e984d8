package dataapi

import (
	"strings"
	"time"

	"github.com/looplj/todohub/internal/server/db"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindOptionalString
	kindBool
	kindTime
)

func (k fieldKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindOptionalString:
		return "string or null"
	case kindBool:
		return "boolean"
	case kindTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Field maps an api field to its column.
type Field struct {
	Name   string
	Column string
	Kind   fieldKind

	// Required fields must be present on create once defaults are applied.
	Required bool
	// Updatable fields may appear in update data.
	Updatable bool
}

// Model describes one table exposed by the api.
type Model struct {
	Name   string
	Table  string
	Fields []Field

	policy policy
	// defaults fills the fields a create call may omit.
	defaults func(row Row, c *Client)
}

func (m *Model) field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return Field{}, false
}

func (m *Model) columns() []string {
	columns := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		columns[i] = f.Column
	}

	return columns
}

// Row is a record keyed by api field names.
type Row map[string]any

func (r Row) String(name string) string {
	switch v := r[name].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}

	return ""
}

// OptionalString returns nil for null and missing values.
func (r Row) OptionalString(name string) *string {
	switch v := r[name].(type) {
	case string:
		return &v
	case *string:
		return v
	default:
		return nil
	}
}

const (
	ModelTodoList = "todoList"
	ModelTodo     = "todo"
)

var (
	todoListModel = &Model{
		Name:  ModelTodoList,
		Table: db.TableTodoLists,
		Fields: []Field{
			{Name: "id", Column: "id", Kind: kindString, Required: true},
			{Name: "createdAt", Column: "created_at", Kind: kindTime, Required: true},
			{Name: "updatedAt", Column: "updated_at", Kind: kindTime, Required: true},
			{Name: "name", Column: "name", Kind: kindString, Required: true, Updatable: true},
			{Name: "ownerId", Column: "owner_id", Kind: kindString, Required: true},
			{Name: "organizationId", Column: "organization_id", Kind: kindOptionalString},
		},
		policy: todoListPolicy{},
		defaults: func(row Row, c *Client) {
			if _, ok := row["ownerId"]; !ok && c.user != nil {
				row["ownerId"] = c.user.UserID
			}

			if _, ok := row["organizationId"]; !ok {
				if c.user != nil && c.user.OrganizationID != nil {
					row["organizationId"] = *c.user.OrganizationID
				} else {
					row["organizationId"] = nil
				}
			}
		},
	}

	todoModel = &Model{
		Name:  ModelTodo,
		Table: db.TableTodos,
		Fields: []Field{
			{Name: "id", Column: "id", Kind: kindString, Required: true},
			{Name: "createdAt", Column: "created_at", Kind: kindTime, Required: true},
			{Name: "updatedAt", Column: "updated_at", Kind: kindTime, Required: true},
			{Name: "title", Column: "title", Kind: kindString, Required: true, Updatable: true},
			{Name: "done", Column: "done", Kind: kindBool, Required: true, Updatable: true},
			{Name: "listId", Column: "list_id", Kind: kindString, Required: true},
			{Name: "ownerId", Column: "owner_id", Kind: kindString, Required: true},
		},
		policy: todoPolicy{},
		defaults: func(row Row, c *Client) {
			if _, ok := row["ownerId"]; !ok && c.user != nil {
				row["ownerId"] = c.user.UserID
			}

			if _, ok := row["done"]; !ok {
				row["done"] = false
			}
		},
	}

	models = []*Model{todoListModel, todoModel}
)

// LookupModel resolves a model name, matching case-insensitively.
func LookupModel(name string) (*Model, bool) {
	for _, m := range models {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}

	return nil, false
}

// scanTargets returns scan destinations for the model columns and a func building the row from them.
func (m *Model) scanTargets() ([]any, func() Row) {
	targets := make([]any, len(m.Fields))

	for i, f := range m.Fields {
		switch f.Kind {
		case kindString:
			targets[i] = new(string)
		case kindOptionalString:
			targets[i] = new(*string)
		case kindBool:
			targets[i] = new(bool)
		case kindTime:
			targets[i] = new(time.Time)
		}
	}

	return targets, func() Row {
		row := make(Row, len(m.Fields))

		for i, f := range m.Fields {
			switch v := targets[i].(type) {
			case *string:
				row[f.Name] = *v
			case **string:
				if *v == nil {
					row[f.Name] = nil
				} else {
					row[f.Name] = **v
				}
			case *bool:
				row[f.Name] = *v
			case *time.Time:
				row[f.Name] = v.UTC()
			}
		}

		return row
	}
}
