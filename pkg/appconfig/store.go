package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/setup"
)

const (
	ParamBaseURL       = "app.base_url"
	ParamBasePath      = "app.base_path"
	ParamAssetsBaseURL = "app.assets_base_url"
)

// Store writes the final application parameters and the completion marker.
type Store struct {
	configPath   string
	servicesPath string
	parameters   []config.ParameterDefinition
	marker       setup.MarkerStore
	now          func() time.Time
	logger       zerolog.Logger
}

// NewStore creates an application parameter store from the definition's
// app_config section.
func NewStore(cfg config.AppConfigConfig, marker setup.MarkerStore, logger zerolog.Logger) *Store {
	services := cfg.ServicesPath
	if services == "" {
		services = filepath.Join(filepath.Dir(cfg.ConfigPath), "services.yaml")
	}
	return &Store{
		configPath:   cfg.ConfigPath,
		servicesPath: services,
		parameters:   cfg.Parameters,
		marker:       marker,
		now:          time.Now,
		logger:       logger.With().Str("component", "appconfig").Logger(),
	}
}

// Parameters returns the declared custom parameters.
func (s *Store) Parameters() []config.ParameterDefinition {
	return s.parameters
}

// Save normalizes and writes params, references the document from
// services.yaml and writes the completion marker.
func (s *Store) Save(params map[string]interface{}) setup.Result {
	for _, p := range s.parameters {
		if !p.Required || p.Default != "" {
			continue
		}
		if v, ok := params[p.Name]; !ok || fmt.Sprint(v) == "" {
			return setup.Failed(setup.NewValidationError(p.Name, fmt.Sprintf("%s is required", labelOf(p))))
		}
	}

	out := BuildParameters(params, s.parameters)

	data, err := yaml.Marshal(map[string]interface{}{"parameters": out})
	if err != nil {
		return setup.Failed(setup.NewInternalError("failed to encode application configuration", err))
	}
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return setup.Failed(setup.NewInternalError("failed to create config directory", err))
	}
	if err := os.WriteFile(s.configPath, data, 0644); err != nil {
		return setup.Failed(setup.NewInternalError(fmt.Sprintf("failed to write %s", s.configPath), err))
	}

	imported, err := s.ensureImport()
	if err != nil {
		return setup.Failed(setup.NewInternalError("failed to update services configuration", err))
	}

	if err := s.marker.Write(MarkerPayload(s.now())); err != nil {
		return setup.Failed(setup.NewInternalError("failed to write installation marker", err))
	}

	s.logger.Info().
		Str("path", s.configPath).
		Int("parameters", len(out)).
		Bool("services_import_added", imported).
		Msg("Application configuration saved")

	return setup.Succeeded("Application configuration saved successfully").
		With("config", out)
}

// BuildParameters applies the normalization rules: trailing slashes are
// stripped from the base URL and path, "/" becomes the empty base path, the
// assets URL derives from the base URL and declared custom parameters take
// the supplied value or their default.
func BuildParameters(params map[string]interface{}, declared []config.ParameterDefinition) map[string]interface{} {
	out := make(map[string]interface{})

	baseURL, hasBaseURL := lookup(params, "base_url", "baseUrl")
	if hasBaseURL {
		out[ParamBaseURL] = strings.TrimRight(baseURL, "/")
	}

	if basePath, ok := lookup(params, "base_path", "basePath"); ok {
		if basePath == "/" {
			basePath = ""
		}
		out[ParamBasePath] = strings.TrimRight(basePath, "/")
	}

	if hasBaseURL {
		out[ParamAssetsBaseURL] = "%" + ParamBaseURL + "%/public"
	}

	for _, p := range declared {
		if v, ok := params[p.Name]; ok && v != nil {
			out[p.Name] = v
		} else if p.Default != "" {
			out[p.Name] = p.Default
		}
	}

	return out
}

func lookup(params map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != nil {
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

func labelOf(p config.ParameterDefinition) string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

// ensureImport prepends an import of the parameter document to the services
// file when that file exists and does not reference it yet.
func (s *Store) ensureImport() (bool, error) {
	content, err := os.ReadFile(s.servicesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	resource := filepath.Base(s.configPath)
	if strings.Contains(string(content), resource) {
		return false, nil
	}

	header := fmt.Sprintf("# Import application configuration\nimports:\n    - { resource: %s }\n\n", resource)
	if err := os.WriteFile(s.servicesPath, append([]byte(header), content...), 0644); err != nil {
		return false, err
	}
	return true, nil
}
