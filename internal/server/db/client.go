package db

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"

	entsql "entgo.io/ent/dialect/sql"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/looplj/todohub/internal/log"
	_ "github.com/looplj/todohub/internal/pkg/sqlite"
)

// ErrNotFound is returned when a single row lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Client executes statements built with the ent SQL builder.
// A transaction started by WithTx travels in the context and is picked up by every call made with it.
type Client struct {
	driver  *entsql.Driver
	dialect string
	debug   bool
}

// Open connects to the configured database without migrating it.
func Open(cfg Config) (*Client, error) {
	var (
		driverName string
		dbDialect  string
	)

	switch strings.ToLower(cfg.Dialect) {
	case "postgres", "pgx", "postgresdb", "pg", "postgresql":
		driverName, dbDialect = "pgx", dialect.Postgres
	case "sqlite3", "sqlite", "":
		driverName, dbDialect = "sqlite3", dialect.SQLite
	case "mysql", "tidb":
		driverName, dbDialect = "mysql", dialect.MySQL
	default:
		return nil, fmt.Errorf("invalid dialect: %s", cfg.Dialect)
	}

	sqlDB, err := stdsql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{
		driver:  entsql.OpenDB(dbDialect, sqlDB),
		dialect: dbDialect,
		debug:   cfg.Debug,
	}, nil
}

// NewClient opens the database and migrates the schema.
func NewClient(cfg Config) (*Client, error) {
	client, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Migrate(context.Background()); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) Dialect() string {
	return c.dialect
}

// SQL returns a statement builder for the client dialect.
func (c *Client) SQL() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c *Client) DB() *stdsql.DB {
	return c.driver.DB()
}

func (c *Client) Close() error {
	return c.driver.Close()
}

type txKey struct{}

type txState struct {
	tx       dialect.Tx
	onCommit []func(context.Context)
}

func txFromContext(ctx context.Context) (*txState, bool) {
	state, ok := ctx.Value(txKey{}).(*txState)
	return state, ok
}

func (c *Client) conn(ctx context.Context) dialect.ExecQuerier {
	if state, ok := txFromContext(ctx); ok {
		return state.tx
	}

	return c.driver
}

// AfterCommit runs fn once the transaction carried by ctx commits, or right away outside of one.
// Hooks of a rolled back transaction are dropped.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if state, ok := txFromContext(ctx); ok {
		state.onCommit = append(state.onCommit, fn)
		return
	}

	fn(ctx)
}

// Exec runs a statement produced by a builder.
func (c *Client) Exec(ctx context.Context, q entsql.Querier) (stdsql.Result, error) {
	query, args := q.Query()
	c.trace(ctx, query, args)

	var res stdsql.Result
	if err := c.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}

	return res, nil
}

// Query runs a select produced by a builder, the caller closes the rows.
func (c *Client) Query(ctx context.Context, q entsql.Querier) (*entsql.Rows, error) {
	query, args := q.Query()
	c.trace(ctx, query, args)

	rows := &entsql.Rows{}
	if err := c.conn(ctx).Query(ctx, query, args, rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// QueryRow runs a select and scans the first row with scan.
// It returns ErrNotFound when there is no row.
func (c *Client) QueryRow(ctx context.Context, q entsql.Querier, scan func(*entsql.Rows) error) error {
	rows, err := c.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}

		return ErrNotFound
	}

	if err := scan(rows); err != nil {
		return err
	}

	return rows.Err()
}

// Count runs a "SELECT COUNT(*)" style query and returns the single integer result.
func (c *Client) Count(ctx context.Context, q entsql.Querier) (int, error) {
	var n int

	err := c.QueryRow(ctx, q, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()

			panic(r)
		}

		if !committed {
			_ = tx.Rollback()
		}
	}()

	state := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	committed = true

	for _, hook := range state.onCommit {
		hook(ctx)
	}

	return nil
}

func (c *Client) trace(ctx context.Context, query string, args []any) {
	if !c.debug {
		return
	}

	log.Debug(ctx, "sql", log.String("query", query), log.Int("args", len(args)))
}

// IsUniqueViolation reports whether err is a unique constraint failure on any supported dialect.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
