package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	// both drivers are registered: "pgx" for the service connection,
	// "postgres" for test rigs connecting through lib/pq
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/lib/pq"
)

type DbConnector interface {
	CreateTransactionConnector() (DbConnector, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	NamedQueryContext(ctx context.Context, query string, arg interface{}) (*sqlx.Rows, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
	Commit() error
	Rollback() error
	Ping() error
}

type dbConnector struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

func CreateDbConnector(db *sqlx.DB) DbConnector {
	return &dbConnector{
		db: db,
	}
}

func (c *dbConnector) CreateTransactionConnector() (DbConnector, error) {
	tx, err := c.db.Beginx()
	if err != nil {
		log.Error().Err(err).Msg(MsgBeginTransactionFailed)
		return nil, ErrBeginTransactionFailed
	}
	return &dbConnector{
		db: c.db,
		tx: tx,
	}, nil
}

func (c *dbConnector) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.ExecContext(ctx, query, args...)
	}
	return c.db.ExecContext(ctx, query, args...)
}

func (c *dbConnector) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.NamedExecContext(ctx, query, arg)
	}
	return c.db.NamedExecContext(ctx, query, arg)
}

func (c *dbConnector) NamedQueryContext(ctx context.Context, query string, arg interface{}) (*sqlx.Rows, error) {
	if c.tx != nil {
		return sqlx.NamedQueryContext(ctx, c.tx, query, arg)
	}
	return c.db.NamedQueryContext(ctx, query, arg)
}

func (c *dbConnector) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	if c.tx != nil {
		return c.tx.QueryxContext(ctx, query, args...)
	}
	return c.db.QueryxContext(ctx, query, args...)
}

func (c *dbConnector) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	if c.tx != nil {
		return c.tx.QueryRowxContext(ctx, query, args...)
	}
	return c.db.QueryRowxContext(ctx, query, args...)
}

func (c *dbConnector) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if c.tx != nil {
		return c.tx.GetContext(ctx, dest, query, args...)
	}
	return c.db.GetContext(ctx, dest, query, args...)
}

func (c *dbConnector) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if c.tx != nil {
		return c.tx.SelectContext(ctx, dest, query, args...)
	}
	return c.db.SelectContext(ctx, dest, query, args...)
}

func (c *dbConnector) Rebind(query string) string {
	if c.tx != nil {
		return c.tx.Rebind(query)
	}
	return c.db.Rebind(query)
}

func (c *dbConnector) Commit() error {
	if c.tx == nil {
		return ErrNoActiveTransaction
	}
	return c.tx.Commit()
}

func (c *dbConnector) Rollback() error {
	if c.tx == nil {
		return ErrNoActiveTransaction
	}
	return c.tx.Rollback()
}

func (c *dbConnector) Ping() error {
	return c.db.Ping()
}
