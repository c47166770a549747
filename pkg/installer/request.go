package installer

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/setup"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ConnectionRequest is the caller input for SaveConnection. The password
// may be empty but must be present.
type ConnectionRequest struct {
	DBName   string      `json:"db_name" validate:"required"`
	Host     string      `json:"host" validate:"required"`
	Port     interface{} `json:"port" validate:"required"`
	User     string      `json:"db_user" validate:"required"`
	Password *string     `json:"password" validate:"required"`
}

// Config validates the request and converts it to connection credentials.
func (r ConnectionRequest) Config() (database.ConnectionConfig, error) {
	if err := validate.Struct(r); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			field := errs[0].Field()
			return database.ConnectionConfig{}, setup.NewValidationError(field, fmt.Sprintf("Field %s is required", field))
		}
		return database.ConnectionConfig{}, setup.NewValidationError("", err.Error())
	}

	port, err := cast.ToIntE(r.Port)
	if err != nil || port <= 0 || port > 65535 {
		return database.ConnectionConfig{}, setup.NewValidationError("port", "Field port must be a valid port number")
	}

	return database.ConnectionConfig{
		Host:        strings.TrimSpace(r.Host),
		Port:        port,
		DBName:      strings.TrimSpace(r.DBName),
		User:        strings.TrimSpace(r.User),
		Password:    *r.Password,
		PasswordSet: true,
	}, nil
}
