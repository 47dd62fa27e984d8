package dataapi

import (
	"context"
	"fmt"
	"math"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/looplj/todohub/internal/authz"
	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/pkg/xtime"
	"github.com/looplj/todohub/internal/server/db"
)

const (
	OperationFindMany   = "findMany"
	OperationFindUnique = "findUnique"
	OperationFindFirst  = "findFirst"
	OperationCount      = "count"
	OperationCreate     = "create"
	OperationUpdate     = "update"
	OperationDelete     = "delete"
)

// Engine executes model calls against the database.
type Engine struct {
	db *db.Client
}

func NewEngine(client *db.Client) *Engine {
	return &Engine{db: client}
}

// Enhance returns a client that enforces the model policies for user, nil is the anonymous caller.
func (e *Engine) Enhance(user *authz.AuthUser) *Client {
	return &Client{db: e.db, user: user}
}

// Client runs calls on behalf of one auth user. It lives for a single request.
type Client struct {
	db   *db.Client
	user *authz.AuthUser
}

func (c *Client) User() *authz.AuthUser {
	return c.user
}

// Call dispatches op on m.
func (c *Client) Call(ctx context.Context, m *Model, op string, args *Args) (any, error) {
	if args == nil {
		args = &Args{}
	}

	switch op {
	case OperationFindMany:
		return c.FindMany(ctx, m, args)
	case OperationFindUnique:
		return c.FindUnique(ctx, m, args)
	case OperationFindFirst:
		return c.FindFirst(ctx, m, args)
	case OperationCount:
		return c.Count(ctx, m, args)
	case OperationCreate:
		return c.Create(ctx, m, args)
	case OperationUpdate:
		return c.Update(ctx, m, args)
	case OperationDelete:
		return c.Delete(ctx, m, args)
	default:
		return nil, invalidRequest("unknown operation %q", op)
	}
}

// wherePredicate turns the where filters into column equality, null matches IS NULL.
func wherePredicate(m *Model, where Row) *entsql.Predicate {
	if len(where) == 0 {
		return nil
	}

	keys := lo.Keys(where)
	preds := make([]*entsql.Predicate, 0, len(keys))

	for _, f := range m.Fields {
		if !lo.Contains(keys, f.Name) {
			continue
		}

		if v := where[f.Name]; v == nil {
			preds = append(preds, entsql.IsNull(f.Column))
		} else {
			preds = append(preds, entsql.EQ(f.Column, v))
		}
	}

	return entsql.And(preds...)
}

// selectRows builds the select of readable rows matching args, nil when nothing is readable.
func (c *Client) selectRows(m *Model, args *Args, columns ...string) *entsql.Selector {
	filter := m.policy.readFilter(c)
	if filter == nil {
		return nil
	}

	q := c.db.SQL().Select(columns...).From(entsql.Table(m.Table)).Where(filter)
	if where := wherePredicate(m, args.Where); where != nil {
		q.Where(where)
	}

	return q
}

func (c *Client) queryRows(ctx context.Context, m *Model, q *entsql.Selector) ([]Row, error) {
	rows, err := c.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", m.Name, err)
	}
	defer rows.Close()

	result := []Row{}

	for rows.Next() {
		targets, build := m.scanTargets()
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", m.Name, err)
		}

		result = append(result, build())
	}

	return result, rows.Err()
}

func (c *Client) FindMany(ctx context.Context, m *Model, args *Args) ([]Row, error) {
	q := c.selectRows(m, args, m.columns()...)
	if q == nil {
		return []Row{}, nil
	}

	for _, o := range args.OrderBy {
		if o.Desc {
			q.OrderBy(entsql.Desc(o.Field.Column))
		} else {
			q.OrderBy(entsql.Asc(o.Field.Column))
		}
	}

	if args.Take != nil {
		q.Limit(*args.Take)
	}

	if args.Skip != nil && *args.Skip > 0 {
		if args.Take == nil {
			q.Limit(math.MaxInt32)
		}

		q.Offset(*args.Skip)
	}

	return c.queryRows(ctx, m, q)
}

// FindUnique returns the row identified by where.id, nil when it does not exist or is not readable.
func (c *Client) FindUnique(ctx context.Context, m *Model, args *Args) (Row, error) {
	if args.Where.String("id") == "" {
		return nil, invalidRequest("%s requires where.id", OperationFindUnique)
	}

	return c.FindFirst(ctx, m, &Args{Where: args.Where})
}

func (c *Client) FindFirst(ctx context.Context, m *Model, args *Args) (Row, error) {
	first := *args
	first.Take = lo.ToPtr(1)

	rows, err := c.FindMany(ctx, m, &first)
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	return rows[0], nil
}

func (c *Client) Count(ctx context.Context, m *Model, args *Args) (int, error) {
	q := c.selectRows(m, args, entsql.Count("*"))
	if q == nil {
		return 0, nil
	}

	n, err := c.db.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", m.Name, err)
	}

	return n, nil
}

// findByID loads a row by id, restricted by filter when it is not nil.
func (c *Client) findByID(ctx context.Context, m *Model, id string, filter *entsql.Predicate) (Row, error) {
	q := c.db.SQL().Select(m.columns()...).From(entsql.Table(m.Table)).Where(entsql.EQ("id", id))
	if filter != nil {
		q.Where(filter)
	}

	rows, err := c.queryRows(ctx, m, q.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	return rows[0], nil
}

func (c *Client) deny(ctx context.Context, m *Model, op Operation) error {
	log.Debug(ctx, "model call denied by policy",
		log.String("model", m.Name),
		log.String("operation", string(op)),
		log.String("auth_user", c.user.String()),
	)

	return policyViolation(m.Name, string(op))
}

func (c *Client) Create(ctx context.Context, m *Model, args *Args) (Row, error) {
	if len(args.Data) == 0 {
		return nil, invalidRequest("%s requires data", OperationCreate)
	}

	if c.user == nil {
		return nil, c.deny(ctx, m, OpCreate)
	}

	now := xtime.Now()
	row := Row{"id": uuid.NewString(), "createdAt": now, "updatedAt": now}

	for k, v := range args.Data {
		row[k] = v
	}

	m.defaults(row, c)

	columns := make([]string, 0, len(m.Fields))
	values := make([]any, 0, len(m.Fields))

	for _, f := range m.Fields {
		v, ok := row[f.Name]
		if f.Required && (!ok || v == nil) {
			return nil, invalidRequest("field %q is required", f.Name)
		}

		columns = append(columns, f.Column)
		values = append(values, v)
	}

	var created Row

	err := c.db.WithTx(ctx, func(ctx context.Context) error {
		ok, err := m.policy.allows(ctx, c, OpCreate, row)
		if err != nil {
			return err
		}

		if !ok {
			return c.deny(ctx, m, OpCreate)
		}

		if _, err := c.db.Exec(ctx, c.db.SQL().Insert(m.Table).Columns(columns...).Values(values...)); err != nil {
			if db.IsUniqueViolation(err) {
				return invalidRequest("%s %s already exists", m.Name, row.String("id"))
			}

			return fmt.Errorf("failed to create %s: %w", m.Name, err)
		}

		created, err = c.findByID(ctx, m, row.String("id"), nil)

		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// loadForWrite finds the row a write targets. Rows the caller cannot read are reported as not found.
func (c *Client) loadForWrite(ctx context.Context, m *Model, op Operation, args *Args) (Row, error) {
	id := args.Where.String("id")
	if id == "" {
		return nil, invalidRequest("%s requires where.id", op)
	}

	filter := m.policy.readFilter(c)
	if filter == nil {
		return nil, notFound(m.Name)
	}

	if where := wherePredicate(m, args.Where); where != nil {
		filter = entsql.And(filter, where)
	}

	row, err := c.findByID(ctx, m, id, filter)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, notFound(m.Name)
	}

	ok, err := m.policy.allows(ctx, c, op, row)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, c.deny(ctx, m, op)
	}

	return row, nil
}

func (c *Client) Update(ctx context.Context, m *Model, args *Args) (Row, error) {
	if len(args.Data) == 0 {
		return nil, invalidRequest("%s requires data", OperationUpdate)
	}

	for name, v := range args.Data {
		f, _ := m.field(name)
		if !f.Updatable {
			return nil, invalidRequest("field %q cannot be updated", name)
		}

		if f.Required && v == nil {
			return nil, invalidRequest("field %q cannot be null", name)
		}
	}

	var updated Row

	err := c.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := c.loadForWrite(ctx, m, OpUpdate, args)
		if err != nil {
			return err
		}

		update := c.db.SQL().Update(m.Table).Set("updated_at", xtime.Now()).Where(entsql.EQ("id", row.String("id")))

		for _, f := range m.Fields {
			if v, ok := args.Data[f.Name]; ok {
				update.Set(f.Column, v)
			}
		}

		if _, err := c.db.Exec(ctx, update); err != nil {
			return fmt.Errorf("failed to update %s: %w", m.Name, err)
		}

		updated, err = c.findByID(ctx, m, row.String("id"), nil)

		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes the row and returns it. Deleting a list removes its todos.
func (c *Client) Delete(ctx context.Context, m *Model, args *Args) (Row, error) {
	var deleted Row

	err := c.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := c.loadForWrite(ctx, m, OpDelete, args)
		if err != nil {
			return err
		}

		id := row.String("id")

		if m == todoListModel {
			if _, err := c.db.Exec(ctx, c.db.SQL().Delete(todoModel.Table).Where(entsql.EQ("list_id", id))); err != nil {
				return fmt.Errorf("failed to delete todos of list: %w", err)
			}
		}

		if _, err := c.db.Exec(ctx, c.db.SQL().Delete(m.Table).Where(entsql.EQ("id", id))); err != nil {
			return fmt.Errorf("failed to delete %s: %w", m.Name, err)
		}

		deleted = row

		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}
