package config

import (
	"github.com/installkit/installkit/pkg/telemetry"
)

// Definition is the deployment's declaration of what to install, read from
// installer.yaml.
type Definition struct {
	// ProjectDir is the directory that ${project_dir} expands to.
	// It is set by the loader and never read from the file.
	ProjectDir string `yaml:"-"`

	// Entities lists registered model names to provision, in order.
	Entities []string `yaml:"entities" validate:"dive,required"`

	// AdminUser configures the privileged account.
	AdminUser AdminUserConfig `yaml:"admin_user"`

	// Database configures where connection credentials live.
	Database DatabaseConfig `yaml:"database"`

	// Requirements is the environment check list.
	Requirements RequirementsConfig `yaml:"requirements"`

	// AppConfig configures the final application parameters.
	AppConfig AppConfigConfig `yaml:"app_config"`

	// Mail configures the transport side record.
	Mail MailConfig `yaml:"mail"`

	// InstallMarkerPath is the completion marker file.
	InstallMarkerPath string `yaml:"install_marker_path" validate:"required"`

	// RoutePrefix is the URL prefix of the HTTP API.
	RoutePrefix string `yaml:"route_prefix" validate:"required,startswith=/"`

	// JournalPath is the SQLite file of the install journal.
	JournalPath string `yaml:"journal_path" validate:"required"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// AdminUserConfig configures privileged-account provisioning.
type AdminUserConfig struct {
	// Entity names the account model. Empty means auto-detect.
	Entity string `yaml:"entity,omitempty"`

	// AdminRoles is the role list assigned to the account.
	AdminRoles []string `yaml:"admin_roles" validate:"min=1,dive,required"`

	// Fields is an explicit role -> field name map that takes precedence
	// over name heuristics, e.g. {identity: Login}.
	Fields map[string]string `yaml:"fields,omitempty"`
}

// DatabaseConfig configures connection credential storage.
type DatabaseConfig struct {
	ConfigPath string `yaml:"config_path" validate:"required"`
	Driver     string `yaml:"driver" validate:"required,oneof=mysql postgres sqlite"`
	Charset    string `yaml:"charset"`

	// EnvFile receives DATABASE_URL when it exists.
	EnvFile string `yaml:"env_file"`
}

// RequirementsConfig is the static environment check list.
type RequirementsConfig struct {
	GoVersion          string   `yaml:"go_version" validate:"required"`
	Drivers            []string `yaml:"drivers"`
	RecommendedDrivers []string `yaml:"recommended_drivers"`
	WritableDirs       []string `yaml:"writable_dirs"`
	MinFreeDiskMB      uint64   `yaml:"min_free_disk_mb"`
}

// AppConfigConfig configures the application parameter document.
type AppConfigConfig struct {
	ConfigPath   string                `yaml:"config_path" validate:"required"`
	ServicesPath string                `yaml:"services_path"`
	Parameters   []ParameterDefinition `yaml:"parameters" validate:"dive"`
}

// ParameterDefinition declares a custom application parameter.
type ParameterDefinition struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Label    string `yaml:"label" json:"label"`
	Type     string `yaml:"type" json:"type" validate:"omitempty,oneof=text url email number boolean password"`
	Required bool   `yaml:"required" json:"required"`
	Default  string `yaml:"default" json:"default"`
}

// MailConfig configures the transport side record.
type MailConfig struct {
	ConfigPath string `yaml:"config_path" validate:"required"`
}
