package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/telemetry"
)

// DefaultFileName is the conventional name of the definition file.
const DefaultFileName = "installer.yaml"

// ProjectDirVar is the placeholder expanded in every path.
const ProjectDirVar = "project_dir"

var validate = validator.New()

// Default returns the definition used when installer.yaml declares nothing.
func Default() *Definition {
	return &Definition{
		Entities: []string{},
		AdminUser: AdminUserConfig{
			AdminRoles: []string{"ROLE_ADMIN"},
		},
		Database: DatabaseConfig{
			ConfigPath: "${project_dir}/config/db.yaml",
			Driver:     "mysql",
			Charset:    "utf8mb4",
			EnvFile:    "${project_dir}/.env",
		},
		Requirements: RequirementsConfig{
			GoVersion:     "1.22",
			WritableDirs:  []string{"${project_dir}/config", "${project_dir}/var"},
			MinFreeDiskMB: 100,
		},
		AppConfig: AppConfigConfig{
			ConfigPath:   "${project_dir}/config/app_config.yaml",
			ServicesPath: "${project_dir}/config/services.yaml",
		},
		Mail: MailConfig{
			ConfigPath: "${project_dir}/config/mailer.yaml",
		},
		InstallMarkerPath: "${project_dir}/var/install_completed",
		RoutePrefix:       "/install",
		JournalPath:       "${project_dir}/var/install_journal.db",
		Telemetry:         telemetry.DefaultConfig(),
	}
}

// Load reads the definition at path and resolves it against projectDir.
// An empty path yields the defaults.
func Load(path, projectDir string) (*Definition, error) {
	if path == "" {
		return Parse(nil, projectDir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, setup.NewConfigurationError(fmt.Sprintf("failed to read definition %s", path), err)
	}

	return Parse(data, projectDir)
}

// Parse decodes a definition document, applies defaults for every omitted
// key, expands ${project_dir} and validates the result.
func Parse(data []byte, projectDir string) (*Definition, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, setup.NewConfigurationError("failed to resolve project directory", err)
	}

	def := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, def); err != nil {
			return nil, setup.NewConfigurationError("failed to parse definition", err)
		}
	}

	applyDefaults(def)
	def.ProjectDir = abs
	def.expand()

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// applyDefaults restores defaults for keys present but empty in the document.
func applyDefaults(def *Definition) {
	d := Default()

	if len(def.AdminUser.AdminRoles) == 0 {
		def.AdminUser.AdminRoles = d.AdminUser.AdminRoles
	}
	if def.Database.ConfigPath == "" {
		def.Database.ConfigPath = d.Database.ConfigPath
	}
	if def.Database.Driver == "" {
		def.Database.Driver = d.Database.Driver
	}
	if def.Database.Driver == "pgsql" {
		def.Database.Driver = "postgres"
	}
	if def.Requirements.GoVersion == "" {
		def.Requirements.GoVersion = d.Requirements.GoVersion
	}
	if def.AppConfig.ConfigPath == "" {
		def.AppConfig.ConfigPath = d.AppConfig.ConfigPath
	}
	if def.Mail.ConfigPath == "" {
		def.Mail.ConfigPath = d.Mail.ConfigPath
	}
	if def.InstallMarkerPath == "" {
		def.InstallMarkerPath = d.InstallMarkerPath
	}
	if def.RoutePrefix == "" {
		def.RoutePrefix = d.RoutePrefix
	}
	if def.JournalPath == "" {
		def.JournalPath = d.JournalPath
	}
	if def.Telemetry == nil {
		def.Telemetry = d.Telemetry
	}
	if len(def.Requirements.Drivers) == 0 {
		def.Requirements.Drivers = []string{def.Database.Driver}
	}
	for i := range def.AppConfig.Parameters {
		if def.AppConfig.Parameters[i].Type == "" {
			def.AppConfig.Parameters[i].Type = "text"
		}
	}
	def.RoutePrefix = "/" + strings.Trim(def.RoutePrefix, "/")
}

// expand resolves ${project_dir} (and environment variables) in every path.
func (d *Definition) expand() {
	mapping := func(key string) string {
		if key == ProjectDirVar {
			return d.ProjectDir
		}
		return os.Getenv(key)
	}
	ex := func(s string) string {
		if s == "" {
			return s
		}
		return filepath.Clean(os.Expand(s, mapping))
	}

	d.Database.ConfigPath = ex(d.Database.ConfigPath)
	d.Database.EnvFile = ex(d.Database.EnvFile)
	d.AppConfig.ConfigPath = ex(d.AppConfig.ConfigPath)
	d.AppConfig.ServicesPath = ex(d.AppConfig.ServicesPath)
	d.Mail.ConfigPath = ex(d.Mail.ConfigPath)
	d.InstallMarkerPath = ex(d.InstallMarkerPath)
	d.JournalPath = ex(d.JournalPath)
	for i, dir := range d.Requirements.WritableDirs {
		d.Requirements.WritableDirs[i] = ex(dir)
	}
}

// Validate checks the definition's struct tags and its telemetry section.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return setup.NewConfigurationError(
				fmt.Sprintf("invalid definition: %s failed on '%s'", fe.Namespace(), fe.Tag()), nil)
		}
		return setup.NewConfigurationError("invalid definition", err)
	}

	if d.Telemetry != nil {
		if err := d.Telemetry.Validate(); err != nil {
			return setup.NewConfigurationError("invalid telemetry configuration", err)
		}
	}

	return nil
}

// AccountEntity returns the configured account model name, or "" to auto-detect.
func (d *Definition) AccountEntity() string {
	return d.AdminUser.Entity
}
