package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/installkit/installkit/pkg/setup"
)

// Opener opens a connection from credentials.
type Opener interface {
	Open(ctx context.Context, cfg ConnectionConfig) (*Conn, error)
}

// Observer opens connections that never create the database, for read-only
// probes such as status queries.
type Observer interface {
	Observe(ctx context.Context, cfg ConnectionConfig) (*Conn, error)
}

// observeDSNer is implemented by dialects whose default DSN creates the
// database on first open.
type observeDSNer interface {
	ObserveDSN(cfg ConnectionConfig, charset string) string
}

// Conn is a connection handle scoped to a single operation.
type Conn struct {
	db      *sqlx.DB
	dialect Dialect
	charset string
}

// NewConn wraps an existing handle, e.g. one backed by sqlmock.
func NewConn(db *sqlx.DB, dialect Dialect) *Conn {
	return &Conn{db: db, dialect: dialect}
}

// DB returns the underlying handle.
func (c *Conn) DB() *sqlx.DB {
	return c.db
}

// Dialect returns the connection's dialect.
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// Charset returns the table charset configured for the connection.
func (c *Conn) Charset() string {
	return c.charset
}

// Quote quotes an identifier for the connection's dialect.
func (c *Conn) Quote(ident string) string {
	return c.dialect.Quote(ident)
}

// Rebind rewrites ? placeholders for the connection's driver.
func (c *Conn) Rebind(query string) string {
	return c.db.Rebind(query)
}

// Close releases the handle.
func (c *Conn) Close() error {
	return c.db.Close()
}

// Connector opens connections for one dialect.
type Connector struct {
	dialect Dialect
	charset string
}

var (
	_ Opener   = (*Connector)(nil)
	_ Observer = (*Connector)(nil)
)

// NewConnector creates a connector for the named driver.
func NewConnector(driver, charset string) (*Connector, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, setup.NewConfigurationError("invalid database driver", err)
	}
	return &Connector{dialect: d, charset: charset}, nil
}

// Dialect returns the connector's dialect.
func (c *Connector) Dialect() Dialect {
	return c.dialect
}

// URL returns the DATABASE_URL form of cfg.
func (c *Connector) URL(cfg ConnectionConfig) string {
	return c.dialect.URL(cfg, c.charset)
}

// Open connects and pings once. The driver's own connect timeout applies.
func (c *Connector) Open(ctx context.Context, cfg ConnectionConfig) (*Conn, error) {
	return c.open(ctx, c.dialect.DSN(cfg, c.charset))
}

// Observe is Open for an existing database only. A missing sqlite file is a
// connectivity failure instead of being created.
func (c *Connector) Observe(ctx context.Context, cfg ConnectionConfig) (*Conn, error) {
	dsn := c.dialect.DSN(cfg, c.charset)
	if o, ok := c.dialect.(observeDSNer); ok {
		dsn = o.ObserveDSN(cfg, c.charset)
	}
	return c.open(ctx, dsn)
}

func (c *Connector) open(ctx context.Context, dsn string) (*Conn, error) {
	db, err := sqlx.Open(c.dialect.DriverName(), dsn)
	if err != nil {
		return nil, setup.NewConnectivityError("failed to open database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, setup.NewConnectivityError(
			fmt.Sprintf("database connection failed (%s)", c.dialect.Name()), err)
	}

	conn := NewConn(db, c.dialect)
	conn.charset = c.charset
	return conn, nil
}
