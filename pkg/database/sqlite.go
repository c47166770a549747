package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/installkit/installkit/pkg/model"
)

func init() {
	// sqlx only knows the cgo driver name
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// sqliteDialect treats dbname as the database file path. Host, port and user
// are stored but unused.
type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) DSN(cfg ConnectionConfig, _ string) string {
	return cfg.DBName + "?_pragma=busy_timeout(5000)"
}

// ObserveDSN opens the file read-write without creating it.
func (sqliteDialect) ObserveDSN(cfg ConnectionConfig, _ string) string {
	return "file:" + cfg.DBName + "?mode=rw&_pragma=busy_timeout(5000)"
}

func (sqliteDialect) URL(cfg ConnectionConfig, _ string) string {
	u := url.URL{Scheme: "sqlite", Path: "/" + strings.TrimPrefix(cfg.DBName, "/")}
	return u.String()
}

func (sqliteDialect) Quote(ident string) string {
	return quoteWith(`"`, ident)
}

func (sqliteDialect) ColumnDefinition(f *model.Field) string {
	if f.PrimaryKey && f.AutoIncrement {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	var t string
	switch f.Kind {
	case model.KindString, model.KindText, model.KindJSON:
		t = "TEXT"
	case model.KindInt:
		t = "INTEGER"
	case model.KindFloat:
		t = "REAL"
	case model.KindBool:
		t = "BOOLEAN NOT NULL DEFAULT 0"
	case model.KindTime:
		t = "DATETIME"
	default:
		t = "TEXT"
	}
	if f.PrimaryKey {
		t += " PRIMARY KEY"
	}
	return t
}

func (sqliteDialect) TableOptions(string) string {
	return ""
}

func (sqliteDialect) Columns(ctx context.Context, db *sqlx.DB, table string) ([]string, error) {
	var cols []string
	err := db.SelectContext(ctx, &cols, "SELECT name FROM pragma_table_info(?)", table)
	return cols, err
}

func (d sqliteDialect) EnsureUniqueIndex(ctx context.Context, db *sqlx.DB, table, column string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Quote(uniqueIndexName(table, column)), d.Quote(table), d.Quote(column)))
	return err
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
