package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/installkit/installkit/pkg/setup"
)

// ConnectionConfig holds datastore connection credentials.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
	User     string `json:"user"`
	Password string `json:"password"`

	// PasswordSet records whether the password key was present. An empty
	// password is valid; a missing one means "not yet configured".
	PasswordSet bool `json:"-"`
}

// configDocument is the on-disk shape. Pointers distinguish missing keys
// from empty values.
type configDocument struct {
	Parameters configParameters `yaml:"parameters"`
}

type configParameters struct {
	DBName   *string `yaml:"dbname"`
	Host     *string `yaml:"host"`
	Port     *int    `yaml:"port"`
	User     *string `yaml:"user"`
	Password *string `yaml:"password"`
}

// ConfigStore persists connection credentials as a YAML document.
type ConfigStore struct {
	path      string
	connector *Connector
	logger    zerolog.Logger
}

// NewConfigStore creates a store writing to path and testing connections
// through connector.
func NewConfigStore(path string, connector *Connector, logger zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		path:      path,
		connector: connector,
		logger:    logger.With().Str("component", "connection-config").Logger(),
	}
}

// Path returns the document path.
func (s *ConfigStore) Path() string {
	return s.path
}

// Write persists all five credentials, replacing any previous document.
func (s *ConfigStore) Write(cfg ConnectionConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return setup.NewInternalError("failed to create config directory", err)
	}

	password := cfg.Password
	doc := configDocument{
		Parameters: configParameters{
			DBName:   &cfg.DBName,
			Host:     &cfg.Host,
			Port:     &cfg.Port,
			User:     &cfg.User,
			Password: &password,
		},
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return setup.NewInternalError("failed to encode connection config", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return setup.NewInternalError(fmt.Sprintf("failed to write %s", s.path), err)
	}

	s.logger.Info().
		Str("path", s.path).
		Str("host", cfg.Host).
		Str("dbname", cfg.DBName).
		Msg("Connection config written")
	return nil
}

// Read loads the persisted credentials. It returns nil, nil when no
// document exists.
func (s *ConfigStore) Read() (*ConnectionConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, setup.NewInternalError(fmt.Sprintf("failed to read %s", s.path), err)
	}

	var doc configDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, setup.NewConfigurationError(fmt.Sprintf("malformed connection config %s", s.path), err)
	}

	p := doc.Parameters
	cfg := &ConnectionConfig{}
	if p.DBName != nil {
		cfg.DBName = *p.DBName
	}
	if p.Host != nil {
		cfg.Host = *p.Host
	}
	if p.Port != nil {
		cfg.Port = *p.Port
	}
	if p.User != nil {
		cfg.User = *p.User
	}
	if p.Password != nil {
		cfg.Password = *p.Password
		cfg.PasswordSet = true
	}
	return cfg, nil
}

// Validate reports whether dbname, host, port and user are non-empty and
// the password key is present. The password itself may be empty.
func (s *ConfigStore) Validate(cfg *ConnectionConfig) bool {
	if cfg == nil {
		return false
	}
	return cfg.DBName != "" &&
		cfg.Host != "" &&
		cfg.Port > 0 &&
		cfg.User != "" &&
		cfg.PasswordSet
}

// TestConnection opens a connection and pings it once. It never retries and
// never returns an error; failures are reported in the result.
func (s *ConfigStore) TestConnection(ctx context.Context, cfg ConnectionConfig) (res setup.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = setup.Failed(setup.NewConnectivityError("connection test failed", fmt.Errorf("%v", r)))
		}
	}()

	conn, err := s.connector.Open(ctx, cfg)
	if err != nil {
		s.logger.Warn().Err(err).Str("host", cfg.Host).Msg("Connection test failed")
		return setup.Failed(err)
	}
	defer conn.Close()

	return setup.Succeeded("Database connection successful")
}
