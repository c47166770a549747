package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/installkit/installkit/pkg/model"
)

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "postgres" }

func (d postgresDialect) DSN(cfg ConnectionConfig, _ string) string {
	return d.URL(cfg, "")
}

func (postgresDialect) URL(cfg ConnectionConfig, charset string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	if charset != "" && charset != "utf8mb4" {
		q.Set("client_encoding", charset)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (postgresDialect) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (postgresDialect) ColumnDefinition(f *model.Field) string {
	if f.PrimaryKey && f.AutoIncrement {
		return "BIGSERIAL PRIMARY KEY"
	}
	var t string
	switch f.Kind {
	case model.KindString:
		t = "VARCHAR(255)"
	case model.KindText, model.KindJSON:
		t = "TEXT"
	case model.KindInt:
		t = "BIGINT"
	case model.KindFloat:
		t = "DOUBLE PRECISION"
	case model.KindBool:
		t = "BOOLEAN NOT NULL DEFAULT FALSE"
	case model.KindTime:
		t = "TIMESTAMP NULL"
	default:
		t = "TEXT"
	}
	if f.PrimaryKey {
		t += " PRIMARY KEY"
	}
	return t
}

func (postgresDialect) TableOptions(string) string {
	return ""
}

func (postgresDialect) Columns(ctx context.Context, db *sqlx.DB, table string) ([]string, error) {
	var cols []string
	err := db.SelectContext(ctx, &cols,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position",
		table)
	return cols, err
}

func (d postgresDialect) EnsureUniqueIndex(ctx context.Context, db *sqlx.DB, table, column string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Quote(uniqueIndexName(table, column)), d.Quote(table), d.Quote(column)))
	return err
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
