package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/installkit/installkit/pkg/model"
)

type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DSN(cfg ConnectionConfig, charset string) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	if charset != "" {
		mc.Params = map[string]string{"charset": charset}
	}
	return mc.FormatDSN()
}

func (mysqlDialect) URL(cfg ConnectionConfig, charset string) string {
	u := url.URL{
		Scheme: "mysql",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.DBName,
	}
	q := url.Values{}
	q.Set("serverVersion", "8.0")
	if charset != "" {
		q.Set("charset", charset)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (mysqlDialect) Quote(ident string) string {
	return quoteWith("`", ident)
}

func (mysqlDialect) ColumnDefinition(f *model.Field) string {
	if f.PrimaryKey && f.AutoIncrement {
		return "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}
	var t string
	switch f.Kind {
	case model.KindString:
		t = "VARCHAR(255)"
	case model.KindText, model.KindJSON:
		t = "LONGTEXT"
	case model.KindInt:
		t = "BIGINT"
	case model.KindFloat:
		t = "DOUBLE"
	case model.KindBool:
		t = "TINYINT(1) NOT NULL DEFAULT 0"
	case model.KindTime:
		t = "DATETIME NULL"
	default:
		t = "LONGTEXT"
	}
	if f.PrimaryKey {
		t += " NOT NULL PRIMARY KEY"
	}
	return t
}

func (mysqlDialect) TableOptions(charset string) string {
	if charset == "" {
		return " ENGINE=InnoDB"
	}
	return fmt.Sprintf(" DEFAULT CHARACTER SET %s ENGINE=InnoDB", charset)
}

func (mysqlDialect) Columns(ctx context.Context, db *sqlx.DB, table string) ([]string, error) {
	var cols []string
	err := db.SelectContext(ctx, &cols,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position",
		table)
	return cols, err
}

func (d mysqlDialect) EnsureUniqueIndex(ctx context.Context, db *sqlx.DB, table, column string) error {
	name := uniqueIndexName(table, column)

	// MySQL has no CREATE INDEX IF NOT EXISTS
	var count int
	err := db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?",
		table, name)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
		d.Quote(name), d.Quote(table), d.Quote(column)))
	return err
}

func (mysqlDialect) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
