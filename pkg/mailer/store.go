package mailer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/installkit/installkit/pkg/database"
	"github.com/installkit/installkit/pkg/introspect"
	"github.com/installkit/installkit/pkg/model"
	"github.com/installkit/installkit/pkg/setup"
)

const (
	DefaultPort       = 587
	DefaultEncryption = "tls"
)

// Port is an SMTP port that decodes from a JSON number or a numeric string.
type Port int

// UnmarshalJSON accepts 587, "587", "" and null. Empty values leave the port
// unset so the default applies.
func (p *Port) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || raw == "" {
		*p = 0
		return nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return fmt.Errorf("invalid smtp port %s: %w", data, err)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("smtp port %d out of range", n)
	}
	*p = Port(n)
	return nil
}

// Settings is the caller input for outbound mail transport.
type Settings struct {
	Skip       bool   `json:"skip"`
	Host       string `json:"smtpHost"`
	Port       Port   `json:"smtpPort"`
	User       string `json:"smtpUsername"`
	Password   string `json:"smtpPassword"`
	Encryption string `json:"smtpEncryption"`
	FromEmail  string `json:"smtpFromEmail"`
	FromName   string `json:"smtpFromName"`
}

// values pairs every transport role with its input value.
func (s Settings) values() map[introspect.Role]interface{} {
	v := map[introspect.Role]interface{}{
		introspect.RoleTransportHost:        s.Host,
		introspect.RoleTransportUser:        s.User,
		introspect.RoleTransportSecret:      s.Password,
		introspect.RoleTransportEncryption:  s.Encryption,
		introspect.RoleTransportFromAddress: s.FromEmail,
		introspect.RoleTransportFromName:    s.FromName,
	}
	if s.Port != 0 {
		v[introspect.RoleTransportPort] = int(s.Port)
	} else {
		v[introspect.RoleTransportPort] = ""
	}
	return v
}

// Record is the side configuration document for out-of-band consumers.
type Record struct {
	Parameters RecordParameters `yaml:"parameters"`
}

// RecordParameters mirrors the transport settings.
type RecordParameters struct {
	Transport  string `yaml:"mailer_transport"`
	Host       string `yaml:"mailer_host"`
	Port       int    `yaml:"mailer_port"`
	User       string `yaml:"mailer_user"`
	Password   string `yaml:"mailer_password"`
	Encryption string `yaml:"mailer_encryption"`
	FromEmail  string `yaml:"mailer_from_email"`
	FromName   string `yaml:"mailer_from_name"`
}

// Store attaches transport settings to an account and mirrors them to the
// side record.
type Store struct {
	introspector *introspect.Introspector
	recordPath   string
	logger       zerolog.Logger
}

// NewStore creates a transport config store writing its side record to
// recordPath.
func NewStore(in *introspect.Introspector, recordPath string, logger zerolog.Logger) *Store {
	return &Store{
		introspector: in,
		recordPath:   recordPath,
		logger:       logger.With().Str("component", "mailer").Logger(),
	}
}

// Save applies settings to the target account. A nil model is auto-detected
// and a nil field map is detected from the model. Without a target identity
// the account with the highest primary key is used.
func (s *Store) Save(ctx context.Context, conn *database.Conn, m *model.Model, fm introspect.FieldMap, settings Settings, targetIdentity string) setup.Result {
	if settings.Skip {
		return setup.Succeeded("SMTP configuration skipped").With("skipped", true)
	}

	if m == nil {
		detected, err := s.introspector.ResolveAccountModel("")
		if err != nil {
			return setup.Failed(setup.NewConfigurationError(
				"No account model found. Register a model implementing setup.Account and list it in entities", err))
		}
		m = detected
	}
	if fm == nil {
		fm = s.introspector.DetectFields(m)
	}

	pk := m.PrimaryKey()
	if pk == nil {
		return setup.Failed(setup.NewConfigurationError(
			fmt.Sprintf("model %s has no primary key", m.Name), nil))
	}

	id, err := s.findTarget(ctx, conn, m, fm, pk, targetIdentity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return setup.Failed(setup.NewPreconditionError("Admin user not found. Please create an admin user first.", nil))
		}
		if setup.ClassOf(err) != setup.ErrorClassInternal {
			return setup.Failed(err)
		}
		return setup.Failed(setup.NewInternalError("failed to locate admin user", err))
	}

	updated, err := s.apply(ctx, conn, m, fm, pk, id, settings)
	if err != nil {
		return setup.Failed(setup.NewInternalError("failed to save SMTP configuration", err))
	}

	if err := s.writeRecord(settings); err != nil {
		return setup.Failed(err)
	}

	s.logger.Info().
		Str("model", m.Name).
		Int("fields_updated", updated).
		Str("record", s.recordPath).
		Msg("SMTP configuration saved")

	return setup.Succeeded("SMTP configuration saved successfully").
		With("fields_updated", updated)
}

func (s *Store) findTarget(ctx context.Context, conn *database.Conn, m *model.Model, fm introspect.FieldMap, pk *model.Field, identity string) (interface{}, error) {
	var (
		query string
		args  []interface{}
	)
	if identity != "" {
		column, ok := fm.Column(m, introspect.RoleIdentity)
		if !ok {
			return nil, setup.NewConfigurationError(fmt.Sprintf("model %s has no identity field", m.Name), nil)
		}
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			conn.Quote(pk.Column), conn.Quote(m.Table), conn.Quote(column))
		args = append(args, strings.ToLower(strings.TrimSpace(identity)))
	} else {
		query = fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT 1",
			conn.Quote(pk.Column), conn.Quote(m.Table), conn.Quote(pk.Column))
	}

	var id interface{}
	if err := conn.DB().QueryRowxContext(ctx, conn.Rebind(query), args...).Scan(&id); err != nil {
		return nil, err
	}
	return id, nil
}

// apply sets every non-empty transport value through the mutator table and
// updates the mapped columns of row id. It returns the number of columns written.
func (s *Store) apply(ctx context.Context, conn *database.Conn, m *model.Model, fm introspect.FieldMap, pk *model.Field, id interface{}, settings Settings) (int, error) {
	instance := m.New()
	mutators := s.introspector.Mutators(m, fm)
	values := settings.values()

	var (
		sets []string
		args []interface{}
	)
	for _, role := range introspect.TransportRoles {
		v := values[role]
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		applied, err := mutators.Apply(instance, role, v)
		if err != nil {
			return 0, err
		}
		if !applied {
			continue
		}

		name, _ := fm.Field(role)
		f, _ := m.Field(name)
		stored, err := f.Value(instance)
		if err != nil {
			return 0, err
		}
		sets = append(sets, conn.Quote(f.Column)+" = ?")
		args = append(args, stored)
	}

	if len(sets) == 0 {
		return 0, nil
	}

	args = append(args, id)
	query := conn.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		conn.Quote(m.Table), strings.Join(sets, ", "), conn.Quote(pk.Column)))
	if _, err := conn.DB().ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	return len(sets), nil
}

func (s *Store) writeRecord(settings Settings) error {
	rec := Record{Parameters: RecordParameters{
		Transport:  "smtp",
		Host:       settings.Host,
		Port:       int(settings.Port),
		User:       settings.User,
		Password:   settings.Password,
		Encryption: settings.Encryption,
		FromEmail:  settings.FromEmail,
		FromName:   settings.FromName,
	}}
	if rec.Parameters.Port == 0 {
		rec.Parameters.Port = DefaultPort
	}
	if rec.Parameters.Encryption == "" {
		rec.Parameters.Encryption = DefaultEncryption
	}

	data, err := yaml.Marshal(&rec)
	if err != nil {
		return setup.NewInternalError("failed to encode SMTP record", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.recordPath), 0755); err != nil {
		return setup.NewInternalError("failed to create config directory", err)
	}
	if err := os.WriteFile(s.recordPath, data, 0600); err != nil {
		return setup.NewInternalError(fmt.Sprintf("failed to write %s", s.recordPath), err)
	}
	return nil
}

// ReadRecord loads the side record. It returns nil, nil when absent.
func (s *Store) ReadRecord() (*Record, error) {
	data, err := os.ReadFile(s.recordPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("malformed SMTP record: %w", err)
	}
	return &rec, nil
}

// RecordExists reports whether the side record has been written.
func (s *Store) RecordExists() bool {
	_, err := os.Stat(s.recordPath)
	return err == nil
}
