package account

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/model"
)

// insert writes every non auto-increment column of instance.
func insert(ctx context.Context, conn *database.Conn, m *model.Model, instance reflect.Value) error {
	cols := make([]string, 0, len(m.Fields))
	marks := make([]string, 0, len(m.Fields))
	args := make([]interface{}, 0, len(m.Fields))

	for _, f := range m.Fields {
		if f.AutoIncrement {
			continue
		}
		v, err := f.Value(instance)
		if err != nil {
			return err
		}
		cols = append(cols, conn.Quote(f.Column))
		marks = append(marks, "?")
		args = append(args, v)
	}

	query := conn.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		conn.Quote(m.Table), strings.Join(cols, ", "), strings.Join(marks, ", ")))

	_, err := conn.DB().ExecContext(ctx, query, args...)
	return err
}
