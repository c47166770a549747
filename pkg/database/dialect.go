package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/installkit/installkit/pkg/model"
)

// Dialect captures the per-engine SQL behaviour the installer relies on.
type Dialect interface {
	// Name is the definition's driver name (mysql, postgres, sqlite).
	Name() string

	// DriverName is the database/sql driver name.
	DriverName() string

	// DSN builds the driver connection string.
	DSN(cfg ConnectionConfig, charset string) string

	// URL builds the DATABASE_URL form of cfg.
	URL(cfg ConnectionConfig, charset string) string

	// Quote quotes an identifier.
	Quote(ident string) string

	// ColumnDefinition returns the column clause for f, without the name.
	ColumnDefinition(f *model.Field) string

	// TableOptions is appended to CREATE TABLE.
	TableOptions(charset string) string

	// Columns lists the columns of table. An absent table yields no columns.
	Columns(ctx context.Context, db *sqlx.DB, table string) ([]string, error)

	// EnsureUniqueIndex creates a unique index on column unless it exists.
	EnsureUniqueIndex(ctx context.Context, db *sqlx.DB, table, column string) error

	// IsUniqueViolation reports whether err is a uniqueness violation.
	IsUniqueViolation(err error) bool
}

var dialects = map[string]Dialect{
	"mysql":    mysqlDialect{},
	"postgres": postgresDialect{},
	"sqlite":   sqliteDialect{},
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	if name == "pgsql" {
		name = "postgres"
	}
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", name)
	}
	return d, nil
}

// Dialects returns the names of every supported dialect.
func Dialects() []string {
	return []string{"mysql", "postgres", "sqlite"}
}

func uniqueIndexName(table, column string) string {
	return "uniq_" + strings.ReplaceAll(table, ".", "_") + "_" + column
}

func quoteWith(q, ident string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
