package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/installkit/installkit/pkg/config"
	"github.com/installkit/installkit/pkg/setup"
)

func TestBuildParameters(t *testing.T) {
	declared := []config.ParameterDefinition{
		{Name: "site_name", Default: "My Site"},
		{Name: "support_email"},
	}

	tests := []struct {
		name   string
		params map[string]interface{}
		want   map[string]interface{}
	}{
		{
			name:   "root path becomes empty",
			params: map[string]interface{}{"base_url": "https://x/", "base_path": "/"},
			want: map[string]interface{}{
				ParamBaseURL:       "https://x",
				ParamBasePath:      "",
				ParamAssetsBaseURL: "%app.base_url%/public",
				"site_name":        "My Site",
			},
		},
		{
			name:   "trailing slash stripped from path",
			params: map[string]interface{}{"baseUrl": "https://x", "basePath": "/app/", "support_email": "help@x"},
			want: map[string]interface{}{
				ParamBaseURL:       "https://x",
				ParamBasePath:      "/app",
				ParamAssetsBaseURL: "%app.base_url%/public",
				"site_name":        "My Site",
				"support_email":    "help@x",
			},
		},
		{
			name:   "no base url means no assets url",
			params: map[string]interface{}{"site_name": "Custom"},
			want:   map[string]interface{}{"site_name": "Custom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildParameters(tt.params, declared)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func newTestStore(t *testing.T, params ...config.ParameterDefinition) (*Store, *FileMarker, string) {
	t.Helper()
	dir := t.TempDir()
	marker := NewFileMarker(filepath.Join(dir, "var", "install_completed"))
	store := NewStore(config.AppConfigConfig{
		ConfigPath: filepath.Join(dir, "config", "app_config.yaml"),
		Parameters: params,
	}, marker, zerolog.Nop())
	store.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return store, marker, dir
}

func TestSave_WritesConfigAndMarker(t *testing.T) {
	store, marker, dir := newTestStore(t)

	if marker.Exists() {
		t.Fatal("marker must not exist before save")
	}

	res := store.Save(map[string]interface{}{"base_url": "https://x", "base_path": "/"})
	if !res.Success {
		t.Fatalf("save failed: %s", res.Message)
	}
	if !marker.Exists() {
		t.Error("marker should exist after save")
	}

	payload, _ := os.ReadFile(marker.Path())
	if !strings.HasPrefix(string(payload), "Installation completed: 2025-01-02 03:04:05\n") {
		t.Errorf("unexpected marker payload %q", payload)
	}

	data, err := os.ReadFile(filepath.Join(dir, "config", "app_config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Parameters map[string]string `yaml:"parameters"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Parameters[ParamBaseURL] != "https://x" || doc.Parameters[ParamBasePath] != "" {
		t.Errorf("unexpected parameters %v", doc.Parameters)
	}
}

func TestSave_ServicesImport(t *testing.T) {
	store, _, dir := newTestStore(t)
	services := filepath.Join(dir, "config", "services.yaml")
	_ = os.MkdirAll(filepath.Dir(services), 0755)
	original := "services:\n    _defaults:\n        autowire: true\n"
	if err := os.WriteFile(services, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if res := store.Save(map[string]interface{}{"base_url": "https://x"}); !res.Success {
			t.Fatalf("save failed: %s", res.Message)
		}
	}

	content, _ := os.ReadFile(services)
	want := "# Import application configuration\nimports:\n    - { resource: app_config.yaml }\n\n" + original
	if string(content) != want {
		t.Errorf("services.yaml =\n%s\nwant\n%s", content, want)
	}
}

func TestSave_MissingServicesIsIgnored(t *testing.T) {
	store, _, dir := newTestStore(t)
	if res := store.Save(map[string]interface{}{}); !res.Success {
		t.Fatalf("save failed: %s", res.Message)
	}
	if _, err := os.Stat(filepath.Join(dir, "config", "services.yaml")); !os.IsNotExist(err) {
		t.Error("services.yaml must not be created")
	}
}

func TestSave_RequiredParameter(t *testing.T) {
	store, marker, _ := newTestStore(t, config.ParameterDefinition{Name: "site_name", Label: "Site name", Required: true})

	res := store.Save(map[string]interface{}{"base_url": "https://x"})
	if res.Success || res.Outcome != setup.OutcomeValidation || res.Field != "site_name" {
		t.Errorf("expected validation failure on site_name, got %+v", res)
	}
	if marker.Exists() {
		t.Error("failed save must not write the marker")
	}
}
